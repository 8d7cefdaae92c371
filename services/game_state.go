package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/qianlnk/werewolf-session/history"
	"github.com/qianlnk/werewolf-session/models"
	"go.uber.org/zap"
)

// Participant 已加入游戏的玩家
type Participant struct {
	Handle  models.Handle
	Role    models.Role
	Outbox  *Outbox
	Lover   *models.Handle
	IsMayor bool
	Alive   bool
}

// GameState 游戏状态，只能在 GameController 的锁内访问
type GameState struct {
	ID       string
	Settings models.Settings
	Roles    []models.Role // 尚未分配的角色
	Phase    models.Phase
	Round    int
	Players  map[models.Handle]*Participant
	Outcome  models.Outcome

	// 当前阶段的行动记录，进入新阶段时重置
	Epoch    uint64
	Acted    map[models.Handle]bool
	Ballots  map[models.Handle]models.Handle
	Brewed   map[models.ActionKind]bool // 女巫今晚已用的药水，pass 表示放弃
	Victim   *models.Handle
	Poisoned []models.Handle

	recorder history.Recorder
	logger   *zap.Logger
}

// NewGameState 创建游戏状态实例
func NewGameState(id string, settings models.Settings, roles []models.Role, recorder history.Recorder, logger *zap.Logger) *GameState {
	return &GameState{
		ID:       id,
		Settings: settings,
		Roles:    roles,
		Phase:    models.PhasePending,
		Round:    1,
		Players:  make(map[models.Handle]*Participant),
		Acted:    make(map[models.Handle]bool),
		Ballots:  make(map[models.Handle]models.Handle),
		Brewed:   make(map[models.ActionKind]bool),
		recorder: recorder,
		logger:   logger,
	}
}

// TryJoin 从角色袋末尾取出一个角色
func (gs *GameState) TryJoin() (models.Role, error) {
	if gs.Phase != models.PhasePending {
		return models.Role{}, fmt.Errorf("%w: 游戏已处于 %s 阶段", ErrNotJoinable, gs.Phase)
	}
	if len(gs.Roles) == 0 {
		return models.Role{}, fmt.Errorf("%w: 角色已分配完毕", ErrNotJoinable)
	}

	last := len(gs.Roles) - 1
	role := gs.Roles[last]
	gs.Roles = gs.Roles[:last]
	return role, nil
}

// Register 登记 TryJoin 成功后的玩家
func (gs *GameState) Register(handle models.Handle, role models.Role, outbox *Outbox) *Participant {
	p := &Participant{
		Handle: handle,
		Role:   role,
		Outbox: outbox,
		Alive:  true,
	}
	gs.Players[handle] = p
	gs.record("joined", handle, string(role.Kind))
	return p
}

// Remove 移除玩家并解除情侣关系，关闭其发送队列
func (gs *GameState) Remove(handle models.Handle) (*Participant, bool) {
	p, ok := gs.Players[handle]
	if !ok {
		return nil, false
	}
	delete(gs.Players, handle)

	if p.Lover != nil {
		if partner, exists := gs.Players[*p.Lover]; exists && partner.Lover != nil && *partner.Lover == handle {
			partner.Lover = nil
		}
	}
	delete(gs.Acted, handle)
	delete(gs.Ballots, handle)

	p.Outbox.Close()
	gs.record("left", handle, "")
	return p, true
}

// Snapshot 返回状态的深拷贝
func (gs *GameState) Snapshot() models.Snapshot {
	snap := models.Snapshot{
		GameID:       gs.ID,
		Phase:        gs.Phase,
		Round:        gs.Round,
		RolesLeft:    len(gs.Roles),
		Participants: make([]models.ParticipantView, 0, len(gs.Players)),
		Outcome:      gs.Outcome,
	}
	if gs.Victim != nil {
		victim := *gs.Victim
		snap.PendingVictim = &victim
	}

	for _, p := range gs.sortedPlayers() {
		view := models.ParticipantView{
			Handle:  p.Handle,
			Role:    p.Role,
			Alive:   p.Alive,
			IsMayor: p.IsMayor,
		}
		if p.Lover != nil {
			lover := *p.Lover
			view.Lover = &lover
		}
		snap.Participants = append(snap.Participants, view)
	}

	return snap
}

// Send 向单个玩家推送消息，玩家不存在时忽略
func (gs *GameState) Send(handle models.Handle, n models.Notice) {
	if p, ok := gs.Players[handle]; ok {
		p.Outbox.Push(n)
	}
}

// Broadcast 向所有玩家推送消息
func (gs *GameState) Broadcast(n models.Notice) {
	for _, p := range gs.sortedPlayers() {
		p.Outbox.Push(n)
	}
}

// living 按句柄排序的存活玩家
func (gs *GameState) living() []*Participant {
	players := make([]*Participant, 0, len(gs.Players))
	for _, p := range gs.sortedPlayers() {
		if p.Alive {
			players = append(players, p)
		}
	}
	return players
}

func (gs *GameState) sortedPlayers() []*Participant {
	players := make([]*Participant, 0, len(gs.Players))
	for _, p := range gs.Players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].Handle < players[j].Handle
	})
	return players
}

// voteWeight 警长的票按当选时记录的票权计算
func (gs *GameState) voteWeight(p *Participant) int {
	if p.IsMayor {
		return p.Role.Votes
	}
	return 1
}

func (gs *GameState) revokeMayor(p *Participant) {
	p.IsMayor = false
	p.Role.Votes = 0
}

// remainingPotions 女巫今晚还能使用的药水
func (gs *GameState) remainingPotions(p *Participant) []models.ActionKind {
	potions := make([]models.ActionKind, 0, 2)
	if p.Role.Heals > 0 && !gs.Brewed[models.ActionHeal] {
		potions = append(potions, models.ActionHeal)
	}
	if p.Role.Poisons > 0 && !gs.Brewed[models.ActionPoison] {
		potions = append(potions, models.ActionPoison)
	}
	return potions
}

// closeAll 关闭所有玩家的发送队列
func (gs *GameState) closeAll() {
	for _, p := range gs.Players {
		p.Outbox.Close()
	}
}

func (gs *GameState) record(kind string, handle models.Handle, detail string) {
	gs.recorder.Record(history.Event{
		GameID: gs.ID,
		Kind:   kind,
		Round:  gs.Round,
		Phase:  string(gs.Phase),
		Handle: int(handle),
		Detail: detail,
		At:     time.Now(),
	})
}
