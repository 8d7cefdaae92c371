package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config 服务配置
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Game    GameConfig    `mapstructure:"game"`
	History HistoryConfig `mapstructure:"history"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// AuthConfig 访问口令，master 口令用于创建和管理游戏
type AuthConfig struct {
	AccessToken string `mapstructure:"access_token"`
	MasterToken string `mapstructure:"master_token"`
}

type GameConfig struct {
	PhaseTimeout time.Duration `mapstructure:"phase_timeout"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

// HistoryConfig Path 为空时不归档
type HistoryConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load 读取默认值、可选的 werewolf.yaml 和 WEREWOLF_ 前缀的环境变量
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("auth.access_token", "1235")
	v.SetDefault("auth.master_token", "5321")
	v.SetDefault("game.phase_timeout", 120*time.Second)
	v.SetDefault("game.ping_interval", 30*time.Second)
	v.SetDefault("history.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetConfigName("werewolf")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "/etc/werewolf"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("WEREWOLF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查必填项
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr 不能为空")
	}
	if c.Auth.AccessToken == "" || c.Auth.MasterToken == "" {
		return errors.New("auth.access_token 和 auth.master_token 不能为空")
	}
	if c.Game.PhaseTimeout < 0 || c.Game.PingInterval < 0 {
		return errors.New("game 时间配置不能为负数")
	}
	return nil
}

// Build 按配置创建 zap 日志
func (c LogConfig) Build() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
