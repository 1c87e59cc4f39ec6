package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rag133/Jeevan-saathi-sub002/pkg/circuitbreaker"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/habit"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/metrics"
)

// StatsCache 以 (habit, 参考日) 为键缓存统计结果，Redis 不可用时降级为重新计算
type StatsCache struct {
	rdb     *redis.Client
	breaker *circuitbreaker.CircuitBreaker
	ttl     time.Duration
	logger  *zap.Logger
}

// NewBreaker 返回保护统计缓存的熔断器，状态变化写日志并更新指标
func NewBreaker(logger *zap.Logger) *circuitbreaker.CircuitBreaker {
	cfg := circuitbreaker.DefaultConfig()
	cfg.Name = "redis_stats_cache"
	cfg.OnStateChange = func(name string, from, to circuitbreaker.State) {
		metrics.SetCircuitBreakerState(name, int(to))
		logger.Warn("Circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return circuitbreaker.NewCircuitBreaker(cfg)
}

func NewStatsCache(rdb *redis.Client, breaker *circuitbreaker.CircuitBreaker, ttl time.Duration, logger *zap.Logger) *StatsCache {
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig())
	}
	return &StatsCache{rdb: rdb, breaker: breaker, ttl: ttl, logger: logger}
}

// 写操作只递增代数，旧代数下的条目不再被读取，随 TTL 过期
func statsKey(habitID string, gen int64, day string) string {
	return fmt.Sprintf("habit:stats:%s:g%d:%s", habitID, gen, day)
}

func generationKey(habitID string) string {
	return fmt.Sprintf("habit:stats:%s:gen", habitID)
}

// Generations 返回各习惯当前的缓存代数，不存在的记为 0；Redis 故障时 ok=false
func (c *StatsCache) Generations(ctx context.Context, habitIDs []string) (map[string]int64, bool) {
	gens := make(map[string]int64, len(habitIDs))
	if len(habitIDs) == 0 {
		return gens, true
	}
	keys := make([]string, len(habitIDs))
	for i, id := range habitIDs {
		keys[i] = generationKey(id)
	}

	err := c.breaker.Execute(func() error {
		vals, err := c.rdb.MGet(ctx, keys...).Result()
		if err != nil {
			return err
		}
		for i, v := range vals {
			raw, ok := v.(string)
			if !ok {
				continue
			}
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("corrupt generation for habit %s: %w", habitIDs[i], err)
			}
			gens[habitIDs[i]] = n
		}
		return nil
	})
	if err != nil {
		metrics.IncrementStatsCache("error")
		c.logger.Warn("Stats cache generation unavailable",
			zap.Int("habits", len(habitIDs)),
			zap.String("breaker", c.breaker.GetState().String()),
			zap.Error(err),
		)
		return nil, false
	}
	return gens, true
}

// Get 返回 gen 代数下缓存的统计；未命中或 Redis 故障时 ok=false
func (c *StatsCache) Get(ctx context.Context, habitID string, gen int64, day string) (habit.Stats, bool) {
	var (
		stats habit.Stats
		hit   bool
	)
	err := c.breaker.Execute(func() error {
		data, err := c.rdb.Get(ctx, statsKey(habitID, gen, day)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &stats); err != nil {
			c.logger.Warn("Corrupt stats cache entry", zap.String("habit_id", habitID), zap.Error(err))
			return nil
		}
		hit = true
		return nil
	})

	switch {
	case err != nil:
		metrics.IncrementStatsCache("error")
		c.logger.Warn("Stats cache unavailable",
			zap.String("habit_id", habitID),
			zap.String("breaker", c.breaker.GetState().String()),
			zap.Error(err),
		)
	case hit:
		metrics.IncrementStatsCache("hit")
	default:
		metrics.IncrementStatsCache("miss")
	}
	return stats, hit
}

// Set 写缓存，失败只记录日志。gen 必须在读取打卡记录之前取得
func (c *StatsCache) Set(ctx context.Context, habitID string, gen int64, day string, stats habit.Stats) {
	data, err := json.Marshal(stats)
	if err != nil {
		return
	}

	err = c.breaker.Execute(func() error {
		return c.rdb.Set(ctx, statsKey(habitID, gen, day), data, c.ttl).Err()
	})
	if err != nil {
		c.logger.Warn("Failed to cache stats", zap.String("habit_id", habitID), zap.Error(err))
	}
}

// Invalidate 递增该习惯的代数，使所有参考日的旧条目失效
func (c *StatsCache) Invalidate(ctx context.Context, habitID string) error {
	return c.breaker.Execute(func() error {
		return c.rdb.Incr(ctx, generationKey(habitID)).Err()
	})
}
