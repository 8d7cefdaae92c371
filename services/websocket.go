package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/qianlnk/werewolf-session/models"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512
)

// WebSocketManager WebSocket连接管理器
type WebSocketManager struct {
	controller   *GameController
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	logger       *zap.Logger
}

// NewWebSocketManager 创建WebSocket管理器实例，pingInterval 为 0 时不发送心跳
func NewWebSocketManager(controller *GameController, pingInterval time.Duration, logger *zap.Logger) *WebSocketManager {
	return &WebSocketManager{
		controller: controller,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 跨域由上层中间件处理
			},
		},
		pingInterval: pingInterval,
		logger:       logger,
	}
}

// connection 单个玩家的连接
type connection struct {
	handle  models.Handle
	conn    *websocket.Conn
	outbox  *Outbox
	manager *WebSocketManager
	once    sync.Once
}

// HandleJoin 升级连接并加入游戏，不可加入时返回 404
func (wm *WebSocketManager) HandleJoin(w http.ResponseWriter, r *http.Request) {
	if !wm.controller.Joinable() {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	ws, err := wm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wm.logger.Warn("升级WebSocket连接失败", zap.Error(err))
		return
	}

	outbox := NewOutbox()
	handle, role, err := wm.controller.Join(outbox)
	if err != nil {
		// 升级后名额被其他连接抢走
		wm.logger.Info("拒绝加入", zap.Int("handle", int(handle)), zap.Error(err))
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "not joinable")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		ws.Close()
		return
	}

	c := &connection{
		handle:  handle,
		conn:    ws,
		outbox:  outbox,
		manager: wm,
	}
	wm.logger.Info("玩家已连接", zap.Int("handle", int(handle)), zap.String("role", string(role.Kind)))

	go c.writePump()
	go c.readPump()
}

// readPump 读取玩家动作直到连接关闭
func (c *connection) readPump() {
	defer c.leave()

	logger := c.manager.logger.With(zap.Int("handle", int(c.handle)))
	c.conn.SetReadLimit(maxMessageSize)
	if pongWait := c.pongWait(); pongWait > 0 {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("读取消息失败", zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		action, err := ParseAction(string(data))
		if err != nil {
			logger.Debug("丢弃无法解析的动作", zap.Error(err))
			continue
		}
		if err := c.manager.controller.Act(c.handle, action); err != nil {
			if errors.Is(err, ErrActorUnavailable) {
				return
			}
			logger.Info("动作被拒绝", zap.String("action", string(action.Kind)), zap.Error(err))
		}
	}
}

// writePump 把发送队列写入连接，并定期发送心跳
func (c *connection) writePump() {
	var tick <-chan time.Time
	if c.manager.pingInterval > 0 {
		ticker := time.NewTicker(c.manager.pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer c.conn.Close()

	for {
		select {
		case <-c.outbox.Wait():
			notices, open := c.outbox.Flush()
			for _, n := range notices {
				if err := c.write(n); err != nil {
					c.manager.logger.Debug("发送消息失败", zap.Int("handle", int(c.handle)), zap.Error(err))
					return
				}
			}
			if !open {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

		case <-tick:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) write(n models.Notice) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// leave 连接结束时只移除一次玩家
func (c *connection) leave() {
	c.once.Do(func() {
		c.manager.controller.Leave(c.handle)
		c.outbox.Close()
		c.conn.Close()
		c.manager.logger.Info("玩家已断开", zap.Int("handle", int(c.handle)))
	})
}

func (c *connection) pongWait() time.Duration {
	return c.manager.pingInterval * 2
}
