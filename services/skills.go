package services

import (
	"fmt"

	"github.com/qianlnk/werewolf-session/models"
)

// SkillManager 技能管理器，负责动作前置条件和效果
type SkillManager struct {
	game *GameState
}

// NewSkillManager 创建技能管理器实例
func NewSkillManager(game *GameState) *SkillManager {
	return &SkillManager{game: game}
}

// Apply 校验动作的前置条件并执行效果，调用前需通过 authorize
func (sm *SkillManager) Apply(actor *Participant, action models.Action) error {
	switch action.Kind {
	case models.ActionAttach:
		return sm.useAmorSkill(actor, action.Target, action.Lover)
	case models.ActionKill:
		return sm.useWerewolfSkill(actor, action.Target)
	case models.ActionHeal, models.ActionPoison:
		return sm.useWitchSkill(actor, action.Target, action.Kind)
	case models.ActionPass:
		sm.game.Brewed[models.ActionPass] = true
		sm.game.record(string(action.Kind), actor.Handle, "")
		return nil
	case models.ActionElect, models.ActionVote:
		return sm.castBallot(actor, action.Target)
	default:
		return fmt.Errorf("%w: 未知动作 %q", ErrMalformedAction, action.Kind)
	}
}

// 丘比特连线，每局只能使用一次
func (sm *SkillManager) useAmorSkill(amor *Participant, first, second models.Handle) error {
	if sm.game.Acted[amor.Handle] {
		return fmt.Errorf("%w: 丘比特已经连过线", ErrMalformedAction)
	}
	if first == second {
		return fmt.Errorf("%w: 不能把玩家 %d 和自己连线", ErrMalformedAction, first)
	}

	a, err := sm.findLivingPlayer(first)
	if err != nil {
		return err
	}
	b, err := sm.findLivingPlayer(second)
	if err != nil {
		return err
	}

	a.Lover = handlePtr(b.Handle)
	b.Lover = handlePtr(a.Handle)

	sm.game.Send(a.Handle, models.Notice{Type: "lover", Target: handlePtr(b.Handle)})
	sm.game.Send(b.Handle, models.Notice{Type: "lover", Target: handlePtr(a.Handle)})
	sm.game.record("attach", amor.Handle, fmt.Sprintf("%d-%d", a.Handle, b.Handle))
	return nil
}

// 狼人刀人，同一夜以最后一刀为准
func (sm *SkillManager) useWerewolfSkill(wolf *Participant, targetID models.Handle) error {
	target, err := sm.findLivingPlayer(targetID)
	if err != nil {
		return err
	}
	if target.Role.IsWerewolf() {
		return fmt.Errorf("%w: 狼人不能击杀狼人 %d", ErrMalformedAction, targetID)
	}

	sm.game.Victim = handlePtr(target.Handle)

	// 同伴之间共享刀口
	for _, p := range sm.game.living() {
		if p.Role.IsWerewolf() {
			sm.game.Send(p.Handle, models.Notice{Type: "kill", Handle: wolf.Handle, Target: handlePtr(target.Handle)})
		}
	}
	return nil
}

// 女巫使用解药或毒药，每晚每种药水最多一瓶，药水用完直接拒绝
func (sm *SkillManager) useWitchSkill(witch *Participant, targetID models.Handle, kind models.ActionKind) error {
	if sm.game.Brewed[kind] {
		return fmt.Errorf("%w: 今晚已经使用过 %s", ErrMalformedAction, kind)
	}
	target, err := sm.findLivingPlayer(targetID)
	if err != nil {
		return err
	}

	switch kind {
	case models.ActionHeal:
		if witch.Role.Heals <= 0 {
			return fmt.Errorf("%w: 解药已用完", ErrMalformedAction)
		}
		witch.Role.Heals--
		if sm.game.Victim != nil && *sm.game.Victim == target.Handle {
			sm.game.Victim = nil
		}
	case models.ActionPoison:
		if witch.Role.Poisons <= 0 {
			return fmt.Errorf("%w: 毒药已用完", ErrMalformedAction)
		}
		witch.Role.Poisons--
		sm.game.Poisoned = append(sm.game.Poisoned, target.Handle)
	}

	sm.game.Brewed[kind] = true

	sm.game.Send(witch.Handle, models.Notice{Type: "potions", Role: rolePtr(witch.Role)})
	sm.game.record(string(kind), witch.Handle, fmt.Sprint(target.Handle))
	return nil
}

// 竞选和放逐投票，重复投票覆盖之前的选择
func (sm *SkillManager) castBallot(voter *Participant, targetID models.Handle) error {
	target, err := sm.findLivingPlayer(targetID)
	if err != nil {
		return err
	}

	sm.game.Ballots[voter.Handle] = target.Handle
	return nil
}

// 辅助函数：查找存活玩家
func (sm *SkillManager) findLivingPlayer(handle models.Handle) (*Participant, error) {
	p, ok := sm.game.Players[handle]
	if !ok {
		return nil, fmt.Errorf("%w: 目标玩家 %d 不存在", ErrMalformedAction, handle)
	}
	if !p.Alive {
		return nil, fmt.Errorf("%w: 目标玩家 %d 已出局", ErrMalformedAction, handle)
	}
	return p, nil
}

func handlePtr(h models.Handle) *models.Handle {
	return &h
}

func rolePtr(r models.Role) *models.Role {
	return &r
}
