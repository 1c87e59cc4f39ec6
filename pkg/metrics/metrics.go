package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// 数据库慢查询计数
	DBSlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"operation"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 习惯统计计算耗时（秒），按习惯类型
	StatsComputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "habit_stats_compute_duration_seconds",
			Help:    "Time spent computing habit statistics",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to ~400ms
		},
		[]string{"habit_type"},
	)

	// 统计缓存命中/未命中
	StatsCacheResult = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habit_stats_cache_total",
			Help: "Habit stats cache lookups by result",
		},
		[]string{"result"}, // result: hit, miss, error
	)

	// 打卡记录计数
	HabitLogCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habit_log_count",
			Help: "Total number of habit log writes",
		},
		[]string{"action", "status"}, // action: record, delete; status: done, partial, none
	)

	// 每日到期习惯发布计数
	HabitDueCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "habit_due_published_count",
			Help: "Total number of habit.due events published",
		},
	)

	// 熔断器状态：0 closed, 1 open, 2 half_open
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0 closed, 1 open, 2 half open)",
		},
		[]string{"name"},
	)

	// 进入死信队列的消息计数
	MQDeadLetterCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mq_dead_letter_count",
			Help: "Total number of messages routed to the dead letter exchange",
		},
		[]string{"routing_key", "error_type"},
	)
)

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// IncrementSlowQuery 增加慢查询计数
func IncrementSlowQuery(operation string) {
	DBSlowQueryCount.WithLabelValues(operation).Inc()
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordStatsCompute 记录一次统计计算耗时
func RecordStatsCompute(habitType string, duration time.Duration) {
	StatsComputeDuration.WithLabelValues(habitType).Observe(duration.Seconds())
}

// IncrementStatsCache 记录缓存查询结果
func IncrementStatsCache(result string) {
	StatsCacheResult.WithLabelValues(result).Inc()
}

// IncrementHabitLog 记录一次打卡写入
func IncrementHabitLog(action, status string) {
	HabitLogCount.WithLabelValues(action, status).Inc()
}

// IncrementHabitDue 记录一次 habit.due 发布
func IncrementHabitDue() {
	HabitDueCount.Inc()
}

// IncrementDeadLetter 记录一次死信
func IncrementDeadLetter(routingKey, errorType string) {
	MQDeadLetterCount.WithLabelValues(routingKey, errorType).Inc()
}

// SetCircuitBreakerState 记录熔断器当前状态
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
