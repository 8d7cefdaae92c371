package services

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/qianlnk/werewolf-session/models"
)

var (
	ErrNoGame           = errors.New("游戏尚未创建")
	ErrAlreadyExists    = errors.New("游戏已存在")
	ErrNotJoinable      = errors.New("当前无法加入游戏")
	ErrInvalidSettings  = errors.New("无效的游戏配置")
	ErrMalformedAction  = errors.New("无效的游戏动作")
	ErrActorUnavailable = errors.New("行动玩家不在游戏中")
	ErrInvalidPhase     = errors.New("当前阶段无法执行该操作")
)

// BuildRolePool 按配置生成打乱后的角色袋
func BuildRolePool(settings models.Settings, rng *rand.Rand) ([]models.Role, error) {
	if settings.NumPlayers < 0 || settings.NumWerewolfs < 0 || settings.Heals < 0 ||
		settings.Poisons < 0 || settings.MayorVotes < 0 {
		return nil, fmt.Errorf("%w: 参数不能为负数", ErrInvalidSettings)
	}
	// 丘比特和女巫各占一个好人位置
	if settings.NumPlayers < settings.NumWerewolfs+2 {
		return nil, fmt.Errorf("%w: %d 名玩家无法容纳 %d 个狼人、丘比特和女巫",
			ErrInvalidSettings, settings.NumPlayers, settings.NumWerewolfs)
	}

	roles := make([]models.Role, 0, settings.NumPlayers)
	for i := 0; i < settings.NumWerewolfs; i++ {
		roles = append(roles, models.Role{Kind: models.Werewolf})
	}
	roles = append(roles, models.Role{Kind: models.Amor})
	roles = append(roles, models.Role{
		Kind:    models.Witch,
		Heals:   settings.Heals,
		Poisons: settings.Poisons,
	})

	villagerCount := settings.NumPlayers - settings.NumWerewolfs - 2
	for i := 0; i < villagerCount; i++ {
		roles = append(roles, models.Role{Kind: models.Villager})
	}

	rng.Shuffle(len(roles), func(i, j int) {
		roles[i], roles[j] = roles[j], roles[i]
	})

	return roles, nil
}

// actionRule 动作的角色和阶段要求，role 为空表示任意存活玩家
type actionRule struct {
	role  models.RoleKind
	phase models.Phase
}

var actionRules = map[models.ActionKind]actionRule{
	models.ActionAttach: {role: models.Amor, phase: models.PhaseLovers},
	models.ActionKill:   {role: models.Werewolf, phase: models.PhaseNight},
	models.ActionHeal:   {role: models.Witch, phase: models.PhaseBewitch},
	models.ActionPoison: {role: models.Witch, phase: models.PhaseBewitch},
	models.ActionPass:   {role: models.Witch, phase: models.PhaseBewitch},
	models.ActionElect:  {phase: models.PhaseElection},
	models.ActionVote:   {phase: models.PhaseDay},
}

// authorize 校验角色和阶段是否允许该动作
func authorize(actor *Participant, phase models.Phase, action models.Action) error {
	rule, ok := actionRules[action.Kind]
	if !ok {
		return fmt.Errorf("%w: 未知动作 %q", ErrMalformedAction, action.Kind)
	}

	if !actor.Alive {
		return fmt.Errorf("%w: 玩家 %d 已出局", ErrMalformedAction, actor.Handle)
	}
	if rule.role != "" && actor.Role.Kind != rule.role {
		return fmt.Errorf("%w: 角色 %s 不能执行 %s", ErrMalformedAction, actor.Role.Kind, action.Kind)
	}
	if phase != rule.phase {
		return fmt.Errorf("%w: %s 阶段不能执行 %s", ErrMalformedAction, phase, action.Kind)
	}

	return nil
}

// availableActions 获取玩家在当前阶段可用的动作
func availableActions(p *Participant, phase models.Phase) []models.ActionKind {
	actions := make([]models.ActionKind, 0)
	if !p.Alive {
		return actions
	}

	switch phase {
	case models.PhaseLovers:
		if p.Role.Kind == models.Amor {
			actions = append(actions, models.ActionAttach)
		}
	case models.PhaseNight:
		if p.Role.IsWerewolf() {
			actions = append(actions, models.ActionKill)
		}
	case models.PhaseBewitch:
		if p.Role.Kind == models.Witch {
			if p.Role.Heals > 0 {
				actions = append(actions, models.ActionHeal)
			}
			if p.Role.Poisons > 0 {
				actions = append(actions, models.ActionPoison)
			}
			if len(actions) > 0 {
				actions = append(actions, models.ActionPass)
			}
		}
	case models.PhaseElection:
		actions = append(actions, models.ActionElect)
	case models.PhaseDay:
		actions = append(actions, models.ActionVote)
	}

	return actions
}
