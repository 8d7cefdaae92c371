package models

// Handle 玩家连接句柄，进程内单调递增且不复用
type Handle int

// RoleKind 游戏角色
type RoleKind string

const (
	Villager  RoleKind = "villager"  // 村民
	Werewolf  RoleKind = "werewolf"  // 狼人
	Amor      RoleKind = "amor"      // 丘比特
	Witch     RoleKind = "witch"     // 女巫
	Spectator RoleKind = "spectator" // 观战者，暂无行为
)

// Role 角色及其携带的计数器
type Role struct {
	Kind    RoleKind `json:"kind"`
	Heals   int      `json:"heals,omitempty"`   // 女巫剩余解药
	Poisons int      `json:"poisons,omitempty"` // 女巫剩余毒药
	Votes   int      `json:"votes,omitempty"`   // 当选警长后的票权
}

// IsWerewolf 是否狼人阵营
func (r Role) IsWerewolf() bool {
	return r.Kind == Werewolf
}

// Phase 游戏阶段
type Phase string

const (
	PhasePending  Phase = "pending"  // 等待玩家加入
	PhaseLovers   Phase = "lovers"   // 丘比特连线
	PhaseNight    Phase = "night"    // 狼人行动
	PhaseBewitch  Phase = "bewitch"  // 女巫行动
	PhaseElection Phase = "election" // 警长竞选
	PhaseDay      Phase = "day"      // 白天放逐投票
	PhaseEnded    Phase = "ended"    // 游戏结束
)

// Outcome 游戏结果
type Outcome string

const (
	OutcomeNone       Outcome = ""
	OutcomeVillagers  Outcome = "villagers"
	OutcomeWerewolves Outcome = "werewolves"
	OutcomeLovers     Outcome = "lovers"
)

// ActionKind 玩家动作类型
type ActionKind string

const (
	ActionAttach ActionKind = "attach"
	ActionKill   ActionKind = "kill"
	ActionHeal   ActionKind = "heal"
	ActionPoison ActionKind = "poison"
	ActionPass   ActionKind = "pass" // 女巫放弃今晚剩余的药水
	ActionElect  ActionKind = "elect"
	ActionVote   ActionKind = "vote"
)

// Action 一次性的玩家动作，只在一次校验和结算中使用
type Action struct {
	Kind   ActionKind `json:"kind"`
	Target Handle     `json:"target"`          // pass 不使用
	Lover  Handle     `json:"lover,omitempty"` // 仅 attach 使用
}

// Settings 创建游戏的参数
type Settings struct {
	NumPlayers   int `json:"num_players"`
	NumWerewolfs int `json:"num_werewolfs"`
	Heals        int `json:"heals"`
	Poisons      int `json:"poisons"`
	MayorVotes   int `json:"mayor_votes"`
}

// ParticipantView 玩家状态的只读副本
type ParticipantView struct {
	Handle  Handle  `json:"handle"`
	Role    Role    `json:"role"`
	Alive   bool    `json:"alive"`
	Lover   *Handle `json:"lover,omitempty"`
	IsMayor bool    `json:"is_mayor"`
}

// Snapshot 游戏状态快照
type Snapshot struct {
	GameID        string            `json:"game_id"`
	Phase         Phase             `json:"phase"`
	Round         int               `json:"round"`
	RolesLeft     int               `json:"roles_left"`
	Participants  []ParticipantView `json:"participants"`
	PendingVictim *Handle           `json:"pending_victim,omitempty"`
	Outcome       Outcome           `json:"outcome,omitempty"`
}

// Participant 按句柄查找快照中的玩家
func (s Snapshot) Participant(h Handle) (ParticipantView, bool) {
	for _, p := range s.Participants {
		if p.Handle == h {
			return p, true
		}
	}
	return ParticipantView{}, false
}

// HandlesWithRole 返回拥有指定角色的玩家句柄
func (s Snapshot) HandlesWithRole(kind RoleKind) []Handle {
	handles := make([]Handle, 0)
	for _, p := range s.Participants {
		if p.Role.Kind == kind {
			handles = append(handles, p.Handle)
		}
	}
	return handles
}

// Redacted 隐藏身份信息的公开视图，游戏结束后才公开角色
func (s Snapshot) Redacted() Snapshot {
	if s.Phase == PhaseEnded {
		return s
	}
	out := s
	out.PendingVictim = nil
	out.Participants = make([]ParticipantView, 0, len(s.Participants))
	for _, p := range s.Participants {
		out.Participants = append(out.Participants, ParticipantView{
			Handle:  p.Handle,
			Alive:   p.Alive,
			IsMayor: p.IsMayor,
		})
	}
	return out
}

// Notice 推送给玩家的消息
type Notice struct {
	Type    string            `json:"type"`
	GameID  string            `json:"game_id,omitempty"`
	Handle  Handle            `json:"handle,omitempty"`
	Target  *Handle           `json:"target,omitempty"`
	Role    *Role             `json:"role,omitempty"`
	Phase   Phase             `json:"phase,omitempty"`
	Round   int               `json:"round,omitempty"`
	Cause   string            `json:"cause,omitempty"`
	Outcome Outcome           `json:"outcome,omitempty"`
	Actions []ActionKind      `json:"actions,omitempty"`
	Players []ParticipantView `json:"players,omitempty"`
	Message string            `json:"message,omitempty"`
}
