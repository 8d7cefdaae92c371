package services

import (
	"sync"

	"github.com/qianlnk/werewolf-session/models"
)

// Outbox 玩家私有的无界发送队列，写入永不阻塞
type Outbox struct {
	mu     sync.Mutex
	queue  []models.Notice
	ready  chan struct{}
	closed bool
}

// NewOutbox 创建发送队列
func NewOutbox() *Outbox {
	return &Outbox{ready: make(chan struct{}, 1)}
}

// Push 追加一条消息，队列关闭后返回 false
func (o *Outbox) Push(n models.Notice) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return false
	}
	o.queue = append(o.queue, n)

	select {
	case o.ready <- struct{}{}:
	default:
	}
	return true
}

// Wait 有新消息或队列关闭时可读
func (o *Outbox) Wait() <-chan struct{} {
	return o.ready
}

// Flush 取出全部待发送消息，open 为 false 表示队列已关闭
func (o *Outbox) Flush() (notices []models.Notice, open bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	notices = o.queue
	o.queue = nil
	return notices, !o.closed
}

// Close 关闭队列，可重复调用
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.closed = true
	close(o.ready)
}
