package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/qianlnk/werewolf-session/models"
)

// ParseAction 解析文本动作：<动作> <目标句柄> [<情侣句柄>]，pass 不带参数
func ParseAction(raw string) (models.Action, error) {
	fields := strings.Fields(raw)
	if len(fields) > 0 && models.ActionKind(fields[0]) == models.ActionPass {
		return models.Action{Kind: models.ActionPass}, nil
	}
	if len(fields) < 2 {
		return models.Action{}, fmt.Errorf("%w: %q", ErrMalformedAction, raw)
	}

	target, err := parseHandle(fields[1])
	if err != nil {
		return models.Action{}, err
	}

	kind := models.ActionKind(fields[0])
	switch kind {
	case models.ActionAttach:
		if len(fields) < 3 {
			return models.Action{}, fmt.Errorf("%w: attach 需要两个玩家", ErrMalformedAction)
		}
		lover, err := parseHandle(fields[2])
		if err != nil {
			return models.Action{}, err
		}
		return models.Action{Kind: kind, Target: target, Lover: lover}, nil

	case models.ActionKill, models.ActionHeal, models.ActionPoison, models.ActionElect, models.ActionVote:
		return models.Action{Kind: kind, Target: target}, nil

	default:
		return models.Action{}, fmt.Errorf("%w: 未知动作 %q", ErrMalformedAction, fields[0])
	}
}

func parseHandle(s string) (models.Handle, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: 无效的玩家句柄 %q", ErrMalformedAction, s)
	}
	return models.Handle(n), nil
}
