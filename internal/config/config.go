package config

import (
	"time"

	"github.com/spf13/viper"
)

type ServerCfg struct {
	Port                string `mapstructure:"port"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
	Development         bool   `mapstructure:"development"`
}

type MongoCfg struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisCfg struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaCfg struct {
	Brokers    []string `mapstructure:"brokers"`
	EventTopic string   `mapstructure:"event_topic"`
}

type JWTCfg struct {
	Secret string `mapstructure:"secret"`
}

type PresenceCfg struct {
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

type ChatCfg struct {
	TypingWindowSeconds  int     `mapstructure:"typing_window_seconds"`
	MaxContentLength     int     `mapstructure:"max_content_length"`
	RepoTimeoutSeconds   int     `mapstructure:"repo_timeout_seconds"`
	HistoryPageSize      int     `mapstructure:"history_page_size"`
	ClientSendBuffer     int     `mapstructure:"client_send_buffer"`
	PingIntervalSeconds  int     `mapstructure:"ping_interval_seconds"`
	WriteDeadlineSeconds int     `mapstructure:"write_deadline_seconds"`
	MaxMessageSizeBytes  int64   `mapstructure:"max_message_size_bytes"`
	InboundRatePerSec    float64 `mapstructure:"inbound_rate_per_second"`
	InboundBurst         int     `mapstructure:"inbound_burst"`
}

type Config struct {
	Server   ServerCfg   `mapstructure:"server"`
	Mongo    MongoCfg    `mapstructure:"mongo"`
	Redis    RedisCfg    `mapstructure:"redis"`
	Kafka    KafkaCfg    `mapstructure:"kafka"`
	JWT      JWTCfg      `mapstructure:"jwt"`
	Presence PresenceCfg `mapstructure:"presence"`
	Chat     ChatCfg     `mapstructure:"chat"`

	// Derived
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	PresenceTTL   time.Duration
	TypingWindow  time.Duration
	RepoTimeout   time.Duration
	PingInterval  time.Duration
	WriteDeadline time.Duration
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvPrefix("APP")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = 15
	}
	if cfg.Server.WriteTimeoutSeconds == 0 {
		cfg.Server.WriteTimeoutSeconds = 15
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "presence"
	}
	if cfg.Kafka.EventTopic == "" {
		cfg.Kafka.EventTopic = "chat.events"
	}
	if cfg.Presence.TTLSeconds == 0 {
		cfg.Presence.TTLSeconds = 60
	}
	if cfg.Chat.TypingWindowSeconds == 0 {
		cfg.Chat.TypingWindowSeconds = 5
	}
	if cfg.Chat.MaxContentLength == 0 {
		cfg.Chat.MaxContentLength = 5000
	}
	if cfg.Chat.RepoTimeoutSeconds == 0 {
		cfg.Chat.RepoTimeoutSeconds = 5
	}
	if cfg.Chat.HistoryPageSize == 0 {
		cfg.Chat.HistoryPageSize = 50
	}
	if cfg.Chat.ClientSendBuffer == 0 {
		cfg.Chat.ClientSendBuffer = 256
	}
	if cfg.Chat.PingIntervalSeconds == 0 {
		cfg.Chat.PingIntervalSeconds = 25
	}
	if cfg.Chat.WriteDeadlineSeconds == 0 {
		cfg.Chat.WriteDeadlineSeconds = 10
	}
	if cfg.Chat.MaxMessageSizeBytes == 0 {
		cfg.Chat.MaxMessageSizeBytes = 65536
	}
	if cfg.Chat.InboundRatePerSec == 0 {
		cfg.Chat.InboundRatePerSec = 10
	}
	if cfg.Chat.InboundBurst == 0 {
		cfg.Chat.InboundBurst = 20
	}

	cfg.ReadTimeout = time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second
	cfg.WriteTimeout = time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second
	cfg.PresenceTTL = time.Duration(cfg.Presence.TTLSeconds) * time.Second
	cfg.TypingWindow = time.Duration(cfg.Chat.TypingWindowSeconds) * time.Second
	cfg.RepoTimeout = time.Duration(cfg.Chat.RepoTimeoutSeconds) * time.Second
	cfg.PingInterval = time.Duration(cfg.Chat.PingIntervalSeconds) * time.Second
	cfg.WriteDeadline = time.Duration(cfg.Chat.WriteDeadlineSeconds) * time.Second
	return &cfg, nil
}
