package services

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qianlnk/werewolf-session/history"
	"github.com/qianlnk/werewolf-session/models"
	"go.uber.org/zap"
)

// GameController 游戏流程控制器。进程内只有一局游戏，
// 所有读写都在同一把锁内完成，锁内不做网络 I/O
type GameController struct {
	mu         sync.Mutex
	game       *GameState
	nextHandle models.Handle
	timer      *time.Timer
	timeout    time.Duration
	rng        *rand.Rand
	recorder   history.Recorder
	logger     *zap.Logger
}

// Option 控制器可选配置
type Option func(*GameController)

// WithPhaseTimeout 设置阶段超时，超时后强制推进，0 表示不限时
func WithPhaseTimeout(d time.Duration) Option {
	return func(gc *GameController) {
		gc.timeout = d
	}
}

// WithRand 指定洗牌用的随机数生成器
func WithRand(rng *rand.Rand) Option {
	return func(gc *GameController) {
		gc.rng = rng
	}
}

// WithRecorder 指定游戏记录归档
func WithRecorder(r history.Recorder) Option {
	return func(gc *GameController) {
		gc.recorder = r
	}
}

// NewGameController 创建游戏控制器实例
func NewGameController(logger *zap.Logger, opts ...Option) *GameController {
	gc := &GameController{
		nextHandle: 1,
		timeout:    120 * time.Second,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		recorder:   history.Nop{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(gc)
	}
	return gc
}

// Create 创建游戏，已有未结束的游戏时返回 ErrAlreadyExists
func (gc *GameController) Create(settings models.Settings) (string, error) {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	if gc.game != nil && gc.game.Phase != models.PhaseEnded {
		return "", ErrAlreadyExists
	}

	roles, err := BuildRolePool(settings, gc.rng)
	if err != nil {
		return "", err
	}

	// 替换已结束的游戏，断开旧玩家
	if gc.game != nil {
		gc.game.closeAll()
	}
	gc.stopTimer()

	id := uuid.NewString()
	gc.game = NewGameState(id, settings, roles, gc.recorder, gc.logger)
	gc.game.record("created", 0, fmt.Sprintf("%+v", settings))

	gc.logger.Info("游戏已创建",
		zap.String("game_id", id),
		zap.Int("num_players", settings.NumPlayers),
		zap.Int("num_werewolfs", settings.NumWerewolfs))
	return id, nil
}

// Joinable 当前是否还能加入
func (gc *GameController) Joinable() bool {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	return gc.game != nil && gc.game.Phase == models.PhasePending && len(gc.game.Roles) > 0
}

// Join 分配句柄和角色并登记玩家，三步在同一临界区内完成
func (gc *GameController) Join(outbox *Outbox) (models.Handle, models.Role, error) {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	handle := gc.nextHandle
	gc.nextHandle++

	if gc.game == nil {
		return handle, models.Role{}, fmt.Errorf("%w: %v", ErrNotJoinable, ErrNoGame)
	}
	role, err := gc.game.TryJoin()
	if err != nil {
		return handle, models.Role{}, err
	}

	epoch := gc.game.Epoch
	gc.game.Register(handle, role, outbox)
	gc.game.Send(handle, models.Notice{
		Type:   "welcome",
		GameID: gc.game.ID,
		Handle: handle,
		Role:   rolePtr(role),
		Phase:  gc.game.Phase,
	})
	gc.game.Broadcast(models.Notice{Type: "joined", Handle: handle, Message: fmt.Sprintf("还剩 %d 个位置", len(gc.game.Roles))})

	gc.logger.Info("玩家加入",
		zap.String("game_id", gc.game.ID),
		zap.Int("handle", int(handle)),
		zap.Int("roles_left", len(gc.game.Roles)))

	NewStateMachine(gc.game).Advance(false)
	gc.afterChange(epoch)
	return handle, role, nil
}

// Leave 移除断线玩家，可重复调用
func (gc *GameController) Leave(handle models.Handle) {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	if gc.game == nil {
		return
	}
	p, ok := gc.game.Remove(handle)
	if !ok {
		return
	}

	gc.game.Broadcast(models.Notice{Type: "left", Handle: handle})
	gc.logger.Info("玩家离开",
		zap.String("game_id", gc.game.ID),
		zap.Int("handle", int(handle)),
		zap.String("role", string(p.Role.Kind)),
		zap.String("phase", string(gc.game.Phase)))

	if gc.game.Phase == models.PhasePending || gc.game.Phase == models.PhaseEnded {
		return
	}

	// 离线玩家不再计入法定人数
	epoch := gc.game.Epoch
	sm := NewStateMachine(gc.game)
	if !sm.checkGameEnd() {
		if sm.Advance(false) {
			gc.logger.Info("阶段因玩家离线而推进",
				zap.Int("handle", int(handle)),
				zap.Error(ErrActorUnavailable))
		}
	}
	gc.afterChange(epoch)
}

// Act 校验并执行玩家动作
func (gc *GameController) Act(handle models.Handle, action models.Action) error {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	if gc.game == nil {
		return ErrNoGame
	}
	actor, ok := gc.game.Players[handle]
	if !ok {
		return fmt.Errorf("%w: %d", ErrActorUnavailable, handle)
	}

	if err := authorize(actor, gc.game.Phase, action); err != nil {
		return err
	}
	if err := NewSkillManager(gc.game).Apply(actor, action); err != nil {
		return err
	}

	gc.game.Acted[handle] = true
	ack := models.Notice{Type: "ack", Message: string(action.Kind)}
	if action.Kind != models.ActionPass {
		ack.Target = handlePtr(action.Target)
	}
	gc.game.Send(handle, ack)

	epoch := gc.game.Epoch
	NewStateMachine(gc.game).Advance(false)
	gc.afterChange(epoch)
	return nil
}

// Advance 强制推进当前阶段
func (gc *GameController) Advance() error {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	if gc.game == nil {
		return ErrNoGame
	}
	if gc.game.Phase == models.PhasePending || gc.game.Phase == models.PhaseEnded {
		return fmt.Errorf("%w: %s", ErrInvalidPhase, gc.game.Phase)
	}

	epoch := gc.game.Epoch
	NewStateMachine(gc.game).Advance(true)
	gc.afterChange(epoch)
	return nil
}

// handlePhaseTimeout 阶段超时，仅当仍处于同一阶段时强制推进
func (gc *GameController) handlePhaseTimeout(epoch uint64) {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	if gc.game == nil || gc.game.Epoch != epoch {
		return
	}
	gc.logger.Info("阶段超时，强制推进",
		zap.String("game_id", gc.game.ID),
		zap.String("phase", string(gc.game.Phase)))

	NewStateMachine(gc.game).Advance(true)
	gc.afterChange(epoch)
}

// Snapshot 获取游戏状态快照
func (gc *GameController) Snapshot() (models.Snapshot, error) {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	if gc.game == nil {
		return models.Snapshot{}, ErrNoGame
	}
	return gc.game.Snapshot(), nil
}

// Reset 结束当前会话并断开所有玩家
func (gc *GameController) Reset() {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	gc.stopTimer()
	if gc.game == nil {
		return
	}
	gc.game.record("reset", 0, "")
	gc.game.closeAll()
	gc.logger.Info("会话已重置", zap.String("game_id", gc.game.ID))
	gc.game = nil
}

// afterChange 阶段变化后记录日志并重置计时器
func (gc *GameController) afterChange(epoch uint64) {
	if gc.game.Epoch == epoch {
		return
	}

	gc.logger.Info("阶段变更",
		zap.String("game_id", gc.game.ID),
		zap.String("phase", string(gc.game.Phase)),
		zap.Int("round", gc.game.Round),
		zap.String("outcome", string(gc.game.Outcome)))
	gc.startPhaseTimer()
}

// startPhaseTimer 启动阶段计时器
func (gc *GameController) startPhaseTimer() {
	gc.stopTimer()
	if gc.timeout <= 0 || gc.game.Phase == models.PhaseEnded {
		return
	}

	epoch := gc.game.Epoch
	gc.timer = time.AfterFunc(gc.timeout, func() {
		gc.handlePhaseTimeout(epoch)
	})
}

func (gc *GameController) stopTimer() {
	if gc.timer != nil {
		gc.timer.Stop()
		gc.timer = nil
	}
}
