package config

import (
	"os"
	"strconv"
	"time"
	_ "time/tzdata"
)

// DBConfig 数据库配置
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	// SSLMode 默认 disable
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
	// SlowQueryThreshold 慢查询阈值，0 表示使用默认值
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold"`
}

// MQConfig 消息队列配置
type MQConfig struct {
	URL string `yaml:"url"`
	// MaxRetries 可重试错误的最大重投次数，超过后进入死信队列
	MaxRetries int64 `yaml:"max_retries"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port string `yaml:"port"`
	// RateLimit 每个用户每秒允许的请求数，0 表示不限流
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `yaml:"level"`
	// Format 为 json（默认）或 console
	Format string `yaml:"format"`
}

// OTelConfig OpenTelemetry 配置
type OTelConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	// SampleRatio 采样比例，(0,1) 之外按全部采样处理
	SampleRatio float64 `yaml:"sample_ratio"`
}

// HabitConfig 习惯统计相关配置
type HabitConfig struct {
	// Timezone 决定"今天"是哪一天
	Timezone string `yaml:"timezone"`
	// StatsCacheTTL 统计结果在 Redis 中的缓存时间
	StatsCacheTTL time.Duration `yaml:"stats_cache_ttl"`
	// DueCheckHour 每天发布 habit.due 事件的整点
	DueCheckHour int `yaml:"due_check_hour"`
	// OutboxRetention 已发送的 outbox 事件保留多久
	OutboxRetention time.Duration `yaml:"outbox_retention"`
	// OutboxPollInterval Dispatcher 轮询间隔
	OutboxPollInterval time.Duration `yaml:"outbox_poll_interval"`
}

// Location 返回配置的时区，无效时回退到 UTC
func (c HabitConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// OverrideDBFromEnv 从环境变量覆盖数据库配置
func OverrideDBFromEnv(cfg *DBConfig) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Name = name
	}
}

// OverrideMQFromEnv 从环境变量覆盖MQ配置
func OverrideMQFromEnv(cfg *MQConfig) {
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.URL = url
	}
}

// OverrideRedisFromEnv 从环境变量覆盖Redis配置
func OverrideRedisFromEnv(cfg *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
}

// OverrideJWTFromEnv 从环境变量覆盖JWT配置
func OverrideJWTFromEnv(cfg *JWTConfig) {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Secret = secret
	}
}

// OverrideServerFromEnv 从环境变量覆盖服务器配置
func OverrideServerFromEnv(cfg *ServerConfig) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
}

// OverrideHabitFromEnv 从环境变量覆盖习惯配置
func OverrideHabitFromEnv(cfg *HabitConfig) {
	if tz := os.Getenv("HABIT_TIMEZONE"); tz != "" {
		cfg.Timezone = tz
	}
	if ttl := os.Getenv("HABIT_STATS_CACHE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.StatsCacheTTL = d
		}
	}
}

// OverrideLogFromEnv 从环境变量覆盖日志级别
func OverrideLogFromEnv(cfg *LogConfig) {
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Format = format
	}
}
