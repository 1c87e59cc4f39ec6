package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	dbcontracts "github.com/rag133/Jeevan-saathi-sub002/contracts/db"
	mqcontracts "github.com/rag133/Jeevan-saathi-sub002/contracts/mq"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/habit"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/metrics"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/trace"
)

// refreshConcurrency 限制 RefreshStats 并发计算的习惯数
const refreshConcurrency = 8

// Orchestrator 负责每日的批量任务：发布到期提醒、刷新统计快照
type Orchestrator struct {
	habits    HabitStore
	logs      LogStore
	stats     StatsStore
	cache     StatsCache
	publisher EventPublisher
	logger    *zap.Logger
}

func NewOrchestrator(
	habits HabitStore,
	logs LogStore,
	stats StatsStore,
	cache StatsCache,
	publisher EventPublisher,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		habits:    habits,
		logs:      logs,
		stats:     stats,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
	}
}

// PublishDueHabits publishes habit.due for every active habit that should be
// shown on date and returns how many events went out.
func (o *Orchestrator) PublishDueHabits(ctx context.Context, date time.Time) (int, error) {
	ctx, traceID := trace.EnsureContext(ctx)
	day := habit.DateKey(date)
	log := o.logger.With(zap.String("date", day), zap.String("trace_id", traceID))
	log.Info("Publishing due habits")

	records, logsByHabit, err := o.loadActive(ctx)
	if err != nil {
		log.Error("Failed to load active habits", zap.Error(err))
		return 0, err
	}

	published := 0
	for _, rec := range records {
		logs := logsByHabit[rec.ID]
		if !habit.ShouldDisplayOnDate(rec.Habit, date, logs) {
			continue
		}
		done, quota := habit.PeriodProgress(rec.Habit, logs, date)

		payload := mqcontracts.HabitDuePayload{
			EventID: rec.ID + ":" + day,
			TraceID: traceID,
			HabitID: rec.ID,
			UserID:  rec.UserID,
			Title:   rec.Title,
			Date:    day,
			Done:    done,
			Quota:   quota,
		}
		if err := o.publisher.PublishWithContext(ctx, mqcontracts.RoutingHabitDue, payload); err != nil {
			log.Error("Failed to publish habit.due event",
				zap.String("habit_id", rec.ID),
				zap.Error(err),
			)
			continue
		}
		metrics.IncrementHabitDue()
		published++
	}

	log.Info("Due habit publication completed",
		zap.Int("total_habits", len(records)),
		zap.Int("published", published),
	)
	return published, nil
}

// RefreshStats recomputes and persists the stats snapshot of every active
// habit as of date. Individual failures are logged and skipped.
func (o *Orchestrator) RefreshStats(ctx context.Context, date time.Time) (int, error) {
	records, err := o.habits.ListAllActive(ctx)
	if err != nil {
		o.logger.Error("Failed to load active habits", zap.Error(err))
		return 0, err
	}
	ids := habitIDs(records)

	// 代数先于打卡读取
	var (
		gens   map[string]int64
		cached bool
	)
	if o.cache != nil {
		gens, cached = o.cache.Generations(ctx, ids)
	}
	logsByHabit, err := o.logs.ListByHabits(ctx, ids)
	if err != nil {
		o.logger.Error("Failed to load habit logs", zap.Error(err))
		return 0, err
	}

	day := habit.DateKey(date)
	saved := make([]bool, len(records))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)
	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			stats := computeStats(gCtx, rec.Habit, logsByHabit[rec.ID], date)
			if err := o.stats.Save(gCtx, rec.ID, date, stats); err != nil {
				o.logger.Error("Failed to save stats snapshot",
					zap.String("habit_id", rec.ID),
					zap.Error(err),
				)
				return nil
			}
			if cached {
				o.cache.Set(gCtx, rec.ID, gens[rec.ID], day, stats)
			}
			saved[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	refreshed := 0
	for _, ok := range saved {
		if ok {
			refreshed++
		}
	}
	o.logger.Info("Stats refresh completed",
		zap.String("date", day),
		zap.Int("total_habits", len(records)),
		zap.Int("refreshed", refreshed),
	)
	return refreshed, nil
}

func (o *Orchestrator) loadActive(ctx context.Context) ([]dbcontracts.HabitRecord, map[string][]habit.HabitLog, error) {
	records, err := o.habits.ListAllActive(ctx)
	if err != nil {
		return nil, nil, err
	}
	logsByHabit, err := o.logs.ListByHabits(ctx, habitIDs(records))
	if err != nil {
		return nil, nil, err
	}
	return records, logsByHabit, nil
}

func habitIDs(records []dbcontracts.HabitRecord) []string {
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	return ids
}
