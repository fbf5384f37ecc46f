package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

const envPrefix = "RM"

type Config struct {
	Port    string        `mapstructure:"port"`
	Log     LogConfig     `mapstructure:"log"`
	DB      DBConfig      `mapstructure:"db"`
	Store   StoreConfig   `mapstructure:"store"`
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	History HistoryConfig `mapstructure:"history"`
	Auth    AuthConfig    `mapstructure:"auth"`
	WS      WSConfig      `mapstructure:"ws"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type StoreConfig struct {
	Backend string      `mapstructure:"backend"`
	Redis   RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

type MonitorConfig struct {
	HeartbeatThreshold time.Duration `mapstructure:"heartbeat_threshold"`
	// HeartbeatRecheck re-evaluates liveness between snapshots; 0 disables it.
	HeartbeatRecheck time.Duration `mapstructure:"heartbeat_recheck"`
	TimerPeriod      time.Duration `mapstructure:"timer_period"`
	LiveWindow       int           `mapstructure:"live_window"`
}

type HistoryConfig struct {
	Timezone string `mapstructure:"timezone"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type WSConfig struct {
	PushInterval time.Duration `mapstructure:"push_interval"`
}

// Load reads config.yml from the given directories (configs/ when none are
// given), then applies RM_* environment overrides, defaults and validation.
// A missing file is not an error: defaults and env still apply.
func Load(dirs ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(dirs) == 0 {
		dirs = []string{"configs"}
	}
	for _, d := range dirs {
		v.AddConfigPath(d)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

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
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys absent
// from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("db.path", "app.db")
	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "rehab:")
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "rehab-monitor")
	v.SetDefault("mqtt.topic_prefix", "rehab")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("monitor.heartbeat_threshold", "30s")
	v.SetDefault("monitor.heartbeat_recheck", "0s")
	v.SetDefault("monitor.timer_period", "1s")
	v.SetDefault("monitor.live_window", 5)
	v.SetDefault("history.timezone", "Local")
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", "12h")
	v.SetDefault("ws.push_interval", "1s")
}

func (c *Config) applyDefaults() {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.DB.Path == "" {
		c.DB.Path = "app.db"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = BackendSQLite
	}
	if c.Monitor.HeartbeatThreshold <= 0 {
		c.Monitor.HeartbeatThreshold = 30 * time.Second
	}
	if c.Monitor.TimerPeriod <= 0 {
		c.Monitor.TimerPeriod = time.Second
	}
	if c.Monitor.LiveWindow <= 0 {
		c.Monitor.LiveWindow = 5
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 12 * time.Hour
	}
	if c.WS.PushInterval <= 0 {
		c.WS.PushInterval = time.Second
	}
	if c.History.Timezone == "" {
		c.History.Timezone = "Local"
	}
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendSQLite:
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("store.backend %q: want memory, sqlite or redis", c.Store.Backend)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if c.Monitor.HeartbeatRecheck < 0 {
		return fmt.Errorf("monitor.heartbeat_recheck must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("history.timezone: %w", err)
	}
	return nil
}

// Location resolves history.timezone used for day grouping.
func (c *Config) Location() (*time.Location, error) {
	if c.History.Timezone == "" || c.History.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.History.Timezone)
}
