package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/rag133/Jeevan-saathi-sub002/pkg/habit"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/metrics"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/otel"
)

// computeStats 包一层 span 和耗时指标
func computeStats(ctx context.Context, h habit.Habit, logs []habit.HabitLog, ref time.Time) habit.Stats {
	_, span := otel.StartSpan(ctx, "habit.compute_stats")
	defer span.End()

	start := time.Now()
	stats := habit.ComputeStats(h, logs, ref)
	metrics.RecordStatsCompute(string(h.Type), time.Since(start))

	span.SetAttributes(
		attribute.String("habit.id", h.ID),
		attribute.String("habit.type", string(h.Type)),
		attribute.Int("habit.log_count", len(logs)),
		attribute.Int("habit.current_streak", stats.CurrentStreak),
	)
	return stats
}

// today 返回时区 loc 中的当天（UTC 零点表示）
func today(clock Clock, loc *time.Location) time.Time {
	return habit.StartOfDay(clock().In(loc))
}
