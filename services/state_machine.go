package services

import (
	"github.com/qianlnk/werewolf-session/models"
	"go.uber.org/zap"
)

// StateMachine 游戏状态机
type StateMachine struct {
	game *GameState
}

// NewStateMachine 创建状态机实例
func NewStateMachine(game *GameState) *StateMachine {
	return &StateMachine{game: game}
}

// Advance 推进游戏阶段。force 为 false 时仅在当前阶段完成后推进，
// 推进后若新阶段已无需等待任何玩家则继续推进
func (sm *StateMachine) Advance(force bool) bool {
	g := sm.game
	if g.Phase == models.PhaseEnded {
		return false
	}
	// 等待阶段只能在角色分配完后开始
	if g.Phase == models.PhasePending && force {
		force = false
	}
	if !force && !sm.isPhaseComplete() {
		return false
	}

	sm.TransitionPhase()
	for g.Phase != models.PhaseEnded && sm.isPhaseComplete() {
		sm.TransitionPhase()
	}
	return true
}

// TransitionPhase 结算当前阶段并进入下一阶段
func (sm *StateMachine) TransitionPhase() {
	g := sm.game

	switch g.Phase {
	case models.PhasePending:
		if sm.hasLivingRole(models.Amor) {
			sm.enter(models.PhaseLovers)
		} else {
			sm.enter(models.PhaseNight)
		}

	case models.PhaseLovers:
		sm.enter(models.PhaseNight)

	case models.PhaseNight:
		sm.enter(models.PhaseBewitch)

	case models.PhaseBewitch:
		sm.processNightResults()
		if sm.checkGameEnd() {
			return
		}
		sm.enter(models.PhaseElection)

	case models.PhaseElection:
		if sm.processElectionResults() {
			// 平票重新竞选
			sm.enter(models.PhaseElection)
			return
		}
		sm.enter(models.PhaseDay)

	case models.PhaseDay:
		sm.processVoteResults()
		if sm.checkGameEnd() {
			return
		}
		g.Round++
		sm.enter(models.PhaseNight)
	}
}

// isPhaseComplete 检查当前阶段需要行动的玩家是否都已行动
func (sm *StateMachine) isPhaseComplete() bool {
	g := sm.game

	switch g.Phase {
	case models.PhasePending:
		return len(g.Roles) == 0 && len(g.Players) > 0

	case models.PhaseBewitch:
		for _, p := range g.living() {
			if sm.isObligated(p) {
				return false
			}
		}
		return true

	case models.PhaseLovers, models.PhaseNight:
		for _, p := range g.living() {
			if sm.isObligated(p) && !g.Acted[p.Handle] {
				return false
			}
		}
		return true

	case models.PhaseElection, models.PhaseDay:
		for _, p := range g.living() {
			if _, voted := g.Ballots[p.Handle]; !voted {
				return false
			}
		}
		return true

	default:
		return false
	}
}

// isObligated 玩家是否需要在夜间阶段行动
func (sm *StateMachine) isObligated(p *Participant) bool {
	switch sm.game.Phase {
	case models.PhaseLovers:
		return p.Role.Kind == models.Amor
	case models.PhaseNight:
		return p.Role.IsWerewolf()
	case models.PhaseBewitch:
		// 女巫放弃或用完今晚能用的药水后不再等待
		return p.Role.Kind == models.Witch && !sm.game.Brewed[models.ActionPass] &&
			len(sm.game.remainingPotions(p)) > 0
	default:
		return false
	}
}

// enter 进入新阶段并通知玩家
func (sm *StateMachine) enter(phase models.Phase) {
	g := sm.game
	g.Phase = phase
	g.Epoch++
	g.Acted = make(map[models.Handle]bool)
	g.Ballots = make(map[models.Handle]models.Handle)
	g.Brewed = make(map[models.ActionKind]bool)
	if phase == models.PhaseNight {
		g.Victim = nil
		g.Poisoned = nil
	}

	g.Broadcast(models.Notice{Type: "phase", Phase: phase, Round: g.Round})
	for _, p := range g.living() {
		actions := availableActions(p, phase)
		if len(actions) == 0 {
			continue
		}
		prompt := models.Notice{Type: "prompt", Phase: phase, Actions: actions}
		if phase == models.PhaseBewitch {
			// 女巫需要知道今晚的刀口
			if g.Victim != nil {
				prompt.Target = handlePtr(*g.Victim)
			}
			prompt.Role = rolePtr(p.Role)
		}
		g.Send(p.Handle, prompt)
	}
	g.record("phase", 0, string(phase))
}

// processNightResults 结算夜晚的刀口和毒药
func (sm *StateMachine) processNightResults() {
	g := sm.game
	if g.Victim != nil {
		sm.kill(*g.Victim, "werewolf")
	}
	for _, h := range g.Poisoned {
		sm.kill(h, "poison")
	}
	g.Victim = nil
	g.Poisoned = nil
}

// processElectionResults 结算警长竞选，返回是否需要重新竞选。
// 无人投票时现任警长留任
func (sm *StateMachine) processElectionResults() bool {
	g := sm.game
	winner, tie := plurality(sm.tally())
	if tie {
		g.Broadcast(models.Notice{Type: "election_tie", Round: g.Round})
		g.record("election_tie", 0, "")
		return true
	}
	if winner == nil {
		g.Broadcast(models.Notice{Type: "no_mayor", Round: g.Round})
		return false
	}

	for _, p := range g.Players {
		if p.IsMayor && p.Handle != *winner {
			g.revokeMayor(p)
		}
	}
	mayor := g.Players[*winner]
	mayor.IsMayor = true
	mayor.Role.Votes = g.Settings.MayorVotes
	g.Broadcast(models.Notice{Type: "mayor", Target: handlePtr(mayor.Handle), Round: g.Round})
	g.record("mayor", mayor.Handle, "")
	return false
}

// processVoteResults 结算放逐投票，平票无人出局
func (sm *StateMachine) processVoteResults() {
	g := sm.game
	eliminated, _ := plurality(sm.tally())
	if eliminated == nil {
		g.Broadcast(models.Notice{Type: "no_elimination", Round: g.Round})
		return
	}
	sm.kill(*eliminated, "vote")
}

// tally 按票权统计选票，只计算仍在游戏中的存活玩家
func (sm *StateMachine) tally() map[models.Handle]int {
	g := sm.game
	votes := make(map[models.Handle]int)
	for voterID, targetID := range g.Ballots {
		voter, ok := g.Players[voterID]
		if !ok || !voter.Alive {
			continue
		}
		if target, ok := g.Players[targetID]; !ok || !target.Alive {
			continue
		}
		votes[targetID] += g.voteWeight(voter)
	}
	return votes
}

// plurality 找出票数严格最多的玩家，多人并列时 tie 为 true
func plurality(votes map[models.Handle]int) (winner *models.Handle, tie bool) {
	maxVotes := 0
	var leaders []models.Handle
	for h, count := range votes {
		if count <= 0 {
			continue
		}
		if count > maxVotes {
			maxVotes = count
			leaders = []models.Handle{h}
		} else if count == maxVotes {
			leaders = append(leaders, h)
		}
	}

	switch len(leaders) {
	case 0:
		return nil, false
	case 1:
		return handlePtr(leaders[0]), false
	default:
		return nil, true
	}
}

// kill 玩家出局，情侣随之殉情
func (sm *StateMachine) kill(handle models.Handle, cause string) {
	g := sm.game
	p, ok := g.Players[handle]
	if !ok || !p.Alive {
		return
	}

	p.Alive = false
	g.revokeMayor(p)
	g.Broadcast(models.Notice{Type: "death", Target: handlePtr(handle), Cause: cause, Round: g.Round})
	g.record("death", handle, cause)
	g.logger.Info("玩家出局",
		zap.String("game_id", g.ID),
		zap.Int("handle", int(handle)),
		zap.String("cause", cause),
		zap.Int("round", g.Round))

	if p.Lover != nil {
		sm.kill(*p.Lover, "heartbreak")
	}
}

// checkGameEnd 检查游戏是否结束，结束时进入终局阶段
func (sm *StateMachine) checkGameEnd() bool {
	g := sm.game
	if g.Phase == models.PhasePending || g.Phase == models.PhaseEnded {
		return false
	}

	living := g.living()
	werewolfCount := 0
	for _, p := range living {
		if p.Role.IsWerewolf() {
			werewolfCount++
		}
	}
	otherCount := len(living) - werewolfCount

	outcome := models.OutcomeNone
	// 情侣胜利优先于狼人人数判定
	switch {
	case len(living) == 2 && living[0].Lover != nil && *living[0].Lover == living[1].Handle:
		// 只剩情侣存活
		outcome = models.OutcomeLovers
	case werewolfCount == 0:
		outcome = models.OutcomeVillagers
	case werewolfCount >= otherCount:
		outcome = models.OutcomeWerewolves
	default:
		return false
	}

	g.Outcome = outcome
	g.Phase = models.PhaseEnded
	g.Epoch++
	g.Broadcast(models.Notice{
		Type:    "game_end",
		GameID:  g.ID,
		Outcome: outcome,
		Round:   g.Round,
		Players: g.Snapshot().Participants,
	})
	g.record("ended", 0, string(outcome))
	return true
}

// hasLivingRole 是否有存活的指定角色
func (sm *StateMachine) hasLivingRole(kind models.RoleKind) bool {
	for _, p := range sm.game.living() {
		if p.Role.Kind == kind {
			return true
		}
	}
	return false
}
