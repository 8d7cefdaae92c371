package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/qianlnk/werewolf-session/config"
	"github.com/qianlnk/werewolf-session/history"
	"github.com/qianlnk/werewolf-session/models"
	"github.com/qianlnk/werewolf-session/services"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// .env 可选
	dotenvErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := cfg.Log.Build()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if dotenvErr != nil && !errors.Is(dotenvErr, fs.ErrNotExist) {
		logger.Warn("加载 .env 失败", zap.Error(dotenvErr))
	}

	var recorder history.Recorder = history.Nop{}
	if cfg.History.Path != "" {
		r, err := history.NewSQLiteRecorder(cfg.History.Path, logger.Named("history"))
		if err != nil {
			logger.Fatal("打开游戏记录失败", zap.Error(err))
		}
		recorder = r
	}
	defer recorder.Close()

	controller := services.NewGameController(logger.Named("controller"),
		services.WithPhaseTimeout(cfg.Game.PhaseTimeout),
		services.WithRecorder(recorder))
	webSocketMgr := services.NewWebSocketManager(controller, cfg.Game.PingInterval, logger.Named("websocket"))

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: setupRouter(cfg, controller, webSocketMgr, recorder, logger.Named("http")),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("服务器启动", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		controller.Reset()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("服务器启动失败", zap.Error(err))
	}
	logger.Info("服务器已关闭")
}

// setupRouter 注册路由，所有请求都需要 access_token，管理接口还需要 master_token
func setupRouter(cfg *config.Config, controller *services.GameController, webSocketMgr *services.WebSocketManager,
	recorder history.Recorder, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(requestLogger(logger), gin.Recovery(), corsMiddleware())
	r.Use(requireToken("access_token", cfg.Auth.AccessToken))

	h := &handlers{controller: controller, webSocketMgr: webSocketMgr, recorder: recorder}

	r.GET("/ping", h.ping)
	r.GET("/join", h.join)
	r.GET("/status", h.status)

	master := r.Group("/", requireToken("master_token", cfg.Auth.MasterToken))
	{
		master.POST("/create", h.createGame)
		master.POST("/advance", h.advance)
		master.POST("/reset", h.reset)
		master.GET("/history", h.history)
	}

	return r
}

type handlers struct {
	controller   *services.GameController
	webSocketMgr *services.WebSocketManager
	recorder     history.Recorder
}

func (h *handlers) ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

func (h *handlers) join(c *gin.Context) {
	h.webSocketMgr.HandleJoin(c.Writer, c.Request)
}

func (h *handlers) createGame(c *gin.Context) {
	var settings models.Settings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.controller.Create(settings)
	switch {
	case errors.Is(err, services.ErrAlreadyExists):
		c.String(http.StatusConflict, "Game already exists!")
	case errors.Is(err, services.ErrInvalidSettings):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"game_id": id, "message": "Created!"})
	}
}

func (h *handlers) status(c *gin.Context) {
	snap, err := h.controller.Snapshot()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap.Redacted())
}

func (h *handlers) advance(c *gin.Context) {
	err := h.controller.Advance()
	switch {
	case errors.Is(err, services.ErrNoGame):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidPhase):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		snap, _ := h.controller.Snapshot()
		c.JSON(http.StatusOK, gin.H{"phase": snap.Phase, "round": snap.Round})
	}
}

func (h *handlers) reset(c *gin.Context) {
	h.controller.Reset()
	c.JSON(http.StatusOK, gin.H{"message": "Reset!"})
}

func (h *handlers) history(c *gin.Context) {
	gameID := c.Query("game")
	if gameID == "" {
		snap, err := h.controller.Snapshot()
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		gameID = snap.GameID
	}

	events, err := h.recorder.Events(c.Request.Context(), gameID)
	switch {
	case errors.Is(err, history.ErrDisabled):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"game_id": gameID, "events": events})
	}
}
