package config

import (
	"fmt"
	"time"

	"github.com/rag133/Jeevan-saathi-sub002/pkg/config"
)

type Config struct {
	DB     config.DBConfig     `yaml:"db"`
	MQ     config.MQConfig     `yaml:"mq"`
	Redis  config.RedisConfig  `yaml:"redis"`
	JWT    config.JWTConfig    `yaml:"jwt"`
	Server config.ServerConfig `yaml:"server"`
	OTel   config.OTelConfig   `yaml:"otel"`
	Habit  config.HabitConfig  `yaml:"habit"`
	Log    config.LogConfig    `yaml:"log"`
}

// Load 读取 config/base.yaml + config/<CONFIG_ENV>.yaml，环境变量优先级最高
func Load() (*Config, error) {
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")
	return LoadFrom(env, configDir)
}

func LoadFrom(env, configDir string) (*Config, error) {
	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var cfg Config
	if err := config.Decode(cfgMap, &cfg); err != nil {
		return nil, err
	}

	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideHabitFromEnv(&cfg.Habit)
	config.OverrideLogFromEnv(&cfg.Log)

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.MQ.MaxRetries <= 0 {
		cfg.MQ.MaxRetries = 3
	}
	if cfg.Habit.StatsCacheTTL <= 0 {
		cfg.Habit.StatsCacheTTL = 10 * time.Minute
	}
	if cfg.Habit.OutboxPollInterval <= 0 {
		cfg.Habit.OutboxPollInterval = time.Second
	}
	if cfg.Habit.OutboxRetention <= 0 {
		cfg.Habit.OutboxRetention = 7 * 24 * time.Hour
	}
	if cfg.Habit.DueCheckHour < 0 || cfg.Habit.DueCheckHour > 23 {
		cfg.Habit.DueCheckHour = 0
	}
}
