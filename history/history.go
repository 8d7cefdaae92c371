// Package history 归档游戏事件供赛后查看，游戏只写不读
package history

import (
	"context"
	"errors"
	"time"
)

// ErrDisabled 未开启归档
var ErrDisabled = errors.New("游戏记录归档未开启")

// Event 一条游戏事件
type Event struct {
	GameID string    `json:"game_id"`
	Kind   string    `json:"kind"`
	Round  int       `json:"round"`
	Phase  string    `json:"phase"`
	Handle int       `json:"handle,omitempty"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// Recorder 事件归档，Record 不阻塞调用方
type Recorder interface {
	Record(e Event)
	Events(ctx context.Context, gameID string) ([]Event, error)
	Close() error
}

// Nop 丢弃所有事件
type Nop struct{}

// Record 直接丢弃
func (Nop) Record(Event) {}

// Events 总是返回 ErrDisabled
func (Nop) Events(context.Context, string) ([]Event, error) {
	return nil, ErrDisabled
}

// Close 无需释放资源
func (Nop) Close() error { return nil }
