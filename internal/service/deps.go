package service

import (
	"context"
	"time"

	dbcontracts "github.com/rag133/Jeevan-saathi-sub002/contracts/db"
	mqcontracts "github.com/rag133/Jeevan-saathi-sub002/contracts/mq"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/habit"
)

// HabitStore 由 *repository.HabitRepository 实现
type HabitStore interface {
	Insert(ctx context.Context, h *dbcontracts.HabitRecord) (bool, error)
	Get(ctx context.Context, id string) (*dbcontracts.HabitRecord, error)
	ListActiveByUser(ctx context.Context, userID int) ([]dbcontracts.HabitRecord, error)
	ListAllActive(ctx context.Context) ([]dbcontracts.HabitRecord, error)
	Deactivate(ctx context.Context, id string) error
}

// LogStore 由 *repository.HabitLogRepository 实现
type LogStore interface {
	Upsert(ctx context.Context, log *habit.HabitLog, event mqcontracts.HabitLogChangedPayload) error
	Delete(ctx context.Context, habitID string, date string, event mqcontracts.HabitLogChangedPayload) error
	ListByHabit(ctx context.Context, habitID string) ([]habit.HabitLog, error)
	ListByHabits(ctx context.Context, habitIDs []string) (map[string][]habit.HabitLog, error)
}

// StatsStore 由 *repository.StatsRepository 实现
type StatsStore interface {
	Save(ctx context.Context, habitID string, referenceDate time.Time, s habit.Stats) error
	Get(ctx context.Context, habitID string) (*dbcontracts.StatsSnapshot, error)
}

// StatsCache 由 *cache.StatsCache 实现。Invalidate 推进代数，
// 在读取打卡前取到的代数下写入的结果不会覆盖之后的修改
type StatsCache interface {
	Generations(ctx context.Context, habitIDs []string) (map[string]int64, bool)
	Get(ctx context.Context, habitID string, gen int64, day string) (habit.Stats, bool)
	Set(ctx context.Context, habitID string, gen int64, day string, stats habit.Stats)
	Invalidate(ctx context.Context, habitID string) error
}

// EventPublisher 由 *mq.Publisher 实现
type EventPublisher interface {
	PublishWithContext(ctx context.Context, routingKey string, payload any) error
}

// Clock 返回当前时间；测试中注入固定时间
type Clock func() time.Time
