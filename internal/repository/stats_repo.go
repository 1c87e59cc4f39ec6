package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	dbcontracts "github.com/rag133/Jeevan-saathi-sub002/contracts/db"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/habit"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/otel"
)

// StatsRepository 保存每个习惯最近一次计算的统计快照
type StatsRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewStatsRepository(db *pgxpool.Pool, logger *zap.Logger) *StatsRepository {
	return &StatsRepository{db: db, logger: logger}
}

func (r *StatsRepository) Save(ctx context.Context, habitID string, referenceDate time.Time, s habit.Stats) error {
	err := otel.Traced(ctx, "upsert", "habit_stats", func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, `
            INSERT INTO habit_stats (habit_id, reference_date, current_streak, best_streak, completion_rate,
                                     expected_days, days_completed, accumulated_progress, computed_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
            ON CONFLICT (habit_id) DO UPDATE
            SET reference_date = EXCLUDED.reference_date,
                current_streak = EXCLUDED.current_streak,
                best_streak = EXCLUDED.best_streak,
                completion_rate = EXCLUDED.completion_rate,
                expected_days = EXCLUDED.expected_days,
                days_completed = EXCLUDED.days_completed,
                accumulated_progress = EXCLUDED.accumulated_progress,
                computed_at = NOW()
        `, habitID, habit.StartOfDay(referenceDate), s.CurrentStreak, s.BestStreak, s.CompletionRate,
			s.ExpectedDays, s.DaysCompleted, s.AccumulatedProgress)
		return err
	})
	if err != nil {
		r.logger.Error("Failed to save stats snapshot", zap.String("habit_id", habitID), zap.Error(err))
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}

func (r *StatsRepository) Get(ctx context.Context, habitID string) (*dbcontracts.StatsSnapshot, error) {
	var (
		snap dbcontracts.StatsSnapshot
		ref  time.Time
	)
	err := otel.Traced(ctx, "select", "habit_stats", func(ctx context.Context) error {
		return r.db.QueryRow(ctx, `
            SELECT habit_id, reference_date, current_streak, best_streak, completion_rate,
                   expected_days, days_completed, accumulated_progress, computed_at
            FROM habit_stats WHERE habit_id = $1
        `, habitID).Scan(
			&snap.HabitID,
			&ref,
			&snap.Stats.CurrentStreak,
			&snap.Stats.BestStreak,
			&snap.Stats.CompletionRate,
			&snap.Stats.ExpectedDays,
			&snap.Stats.DaysCompleted,
			&snap.Stats.AccumulatedProgress,
			&snap.ComputedAt,
		)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("stats %s: %w", habitID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	snap.ReferenceDate = habit.DateKey(ref)
	return &snap, nil
}
