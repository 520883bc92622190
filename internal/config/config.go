package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 服务端配置
type Config struct {
	Server ServerConfig `yaml:"server"`
	Redis  RedisConfig  `yaml:"redis"`
	Game   GameConfig   `yaml:"game"`
}

// ServerConfig WebSocket 服务器配置
type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	MaxConnections int    `yaml:"max_connections"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// GameConfig 游戏配置
type GameConfig struct {
	HeartbeatWindow  int `yaml:"heartbeat_window"`  // 心跳静默上限（秒）
	SelectionTimeout int `yaml:"selection_timeout"` // 捕快指认倒计时（秒）
	TimerResync      int `yaml:"timer_resync"`      // 倒计时校正广播间隔（秒）
	RoundResetDelay  int `yaml:"round_reset_delay"` // 回合结算展示时长（秒）
	DestroyWindow    int `yaml:"destroy_window"`    // 掉线重连窗口（分钟）
	ReconnectGrace   int `yaml:"reconnect_grace"`   // 重连后计时补偿（秒）
	QuitGrace        int `yaml:"quit_grace"`        // 退出后强制结算延迟（秒）
	RoundsPerGame    int `yaml:"rounds_per_game"`   // 每局回合数
	SessionIdle      int `yaml:"session_idle"`      // 无房间离线会话保留时长（分钟）
}

// HeartbeatWindowDuration 返回心跳静默上限
func (c *GameConfig) HeartbeatWindowDuration() time.Duration {
	return time.Duration(c.HeartbeatWindow) * time.Second
}

// SelectionTimeoutDuration 返回指认倒计时时长
func (c *GameConfig) SelectionTimeoutDuration() time.Duration {
	return time.Duration(c.SelectionTimeout) * time.Second
}

// TimerResyncDuration 返回倒计时校正间隔
func (c *GameConfig) TimerResyncDuration() time.Duration {
	return time.Duration(c.TimerResync) * time.Second
}

// RoundResetDelayDuration 返回回合重置延迟
func (c *GameConfig) RoundResetDelayDuration() time.Duration {
	return time.Duration(c.RoundResetDelay) * time.Second
}

// DestroyWindowDuration 返回房间销毁等待窗口
func (c *GameConfig) DestroyWindowDuration() time.Duration {
	return time.Duration(c.DestroyWindow) * time.Minute
}

// ReconnectGraceDuration 返回重连计时补偿
func (c *GameConfig) ReconnectGraceDuration() time.Duration {
	return time.Duration(c.ReconnectGrace) * time.Second
}

// QuitGraceDuration 返回退出结算延迟
func (c *GameConfig) QuitGraceDuration() time.Duration {
	return time.Duration(c.QuitGrace) * time.Second
}

// SessionIdleDuration 返回离线会话保留时长
func (c *GameConfig) SessionIdleDuration() time.Duration {
	return time.Duration(c.SessionIdle) * time.Minute
}

// GetRoundsPerGame 返回每局回合数
func (c *GameConfig) GetRoundsPerGame() int {
	return c.RoundsPerGame
}

// Load 加载配置文件
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default 返回默认配置
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8844
	}
	if c.Server.MaxConnections == 0 {
		c.Server.MaxConnections = 1024
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Game.HeartbeatWindow == 0 {
		c.Game.HeartbeatWindow = 12
	}
	if c.Game.SelectionTimeout == 0 {
		c.Game.SelectionTimeout = 60
	}
	if c.Game.TimerResync == 0 {
		c.Game.TimerResync = 5
	}
	if c.Game.RoundResetDelay == 0 {
		c.Game.RoundResetDelay = 14
	}
	if c.Game.DestroyWindow == 0 {
		c.Game.DestroyWindow = 5
	}
	if c.Game.ReconnectGrace == 0 {
		c.Game.ReconnectGrace = 5
	}
	if c.Game.QuitGrace == 0 {
		c.Game.QuitGrace = 3
	}
	if c.Game.RoundsPerGame == 0 {
		c.Game.RoundsPerGame = 5
	}
	if c.Game.SessionIdle == 0 {
		c.Game.SessionIdle = 10
	}
}
