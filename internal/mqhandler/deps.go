package mqhandler

import (
	"context"

	dbcontracts "github.com/rag133/Jeevan-saathi-sub002/contracts/db"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/habit"
)

// Deduper 由 *util.Deduper 实现
type Deduper interface {
	AcquireOnce(ctx context.Context, handler string, eventID string) bool
	Release(ctx context.Context, handler string, eventID string)
}

// HabitCreator 由 *service.HabitService 实现
type HabitCreator interface {
	CreateHabit(ctx context.Context, userID int, title string, h habit.Habit) (*dbcontracts.HabitRecord, error)
}

// StatsRefresher 由 *service.HabitService 实现
type StatsRefresher interface {
	RefreshHabit(ctx context.Context, habitID string) (habit.Stats, error)
}
