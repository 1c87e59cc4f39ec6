package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	mqcontracts "github.com/rag133/Jeevan-saathi-sub002/contracts/mq"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/habit"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/otel"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/outbox"
)

const aggregateHabit = "habit"

type HabitLogRepository struct {
	db     *pgxpool.Pool
	outbox *outbox.Repository
	logger *zap.Logger
}

func NewHabitLogRepository(db *pgxpool.Pool, outboxRepo *outbox.Repository, logger *zap.Logger) *HabitLogRepository {
	return &HabitLogRepository{
		db:     db,
		outbox: outboxRepo,
		logger: logger,
	}
}

// Upsert 写入某天的打卡（同一天只保留最后一次），并在同一事务中写 outbox 事件
func (r *HabitLogRepository) Upsert(ctx context.Context, log *habit.HabitLog, event mqcontracts.HabitLogChangedPayload) error {
	day, err := habit.ParseDateKey(log.Date)
	if err != nil {
		return fmt.Errorf("invalid log date %q: %w", log.Date, err)
	}
	completed := log.CompletedChecklistItems
	if completed == nil {
		completed = []string{}
	}

	return r.inTx(ctx, "upsert", func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
            INSERT INTO habit_logs (id, habit_id, log_date, value, completed_items, status)
            VALUES ($1, $2, $3, $4, $5, $6)
            ON CONFLICT (habit_id, log_date) DO UPDATE
            SET value = EXCLUDED.value,
                completed_items = EXCLUDED.completed_items,
                status = EXCLUDED.status,
                updated_at = NOW()
            RETURNING id
        `, log.ID, log.HabitID, day, log.Value, completed, log.Status).Scan(&log.ID)
		if err != nil {
			return fmt.Errorf("upsert habit log: %w", err)
		}

		return r.stage(ctx, tx, log.HabitID, mqcontracts.RoutingHabitLogRecorded, event)
	})
}

// Delete 删除某天的打卡，不存在时返回 ErrNotFound
func (r *HabitLogRepository) Delete(ctx context.Context, habitID string, date string, event mqcontracts.HabitLogChangedPayload) error {
	day, err := habit.ParseDateKey(date)
	if err != nil {
		return fmt.Errorf("invalid log date %q: %w", date, err)
	}

	return r.inTx(ctx, "delete", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM habit_logs WHERE habit_id = $1 AND log_date = $2`, habitID, day)
		if err != nil {
			return fmt.Errorf("delete habit log: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("log %s/%s: %w", habitID, date, ErrNotFound)
		}

		return r.stage(ctx, tx, habitID, mqcontracts.RoutingHabitLogDeleted, event)
	})
}

func (r *HabitLogRepository) ListByHabit(ctx context.Context, habitID string) ([]habit.HabitLog, error) {
	byHabit, err := r.ListByHabits(ctx, []string{habitID})
	if err != nil {
		return nil, err
	}
	return byHabit[habitID], nil
}

// ListByHabits 按习惯分组返回打卡记录，按日期升序
func (r *HabitLogRepository) ListByHabits(ctx context.Context, habitIDs []string) (map[string][]habit.HabitLog, error) {
	result := make(map[string][]habit.HabitLog, len(habitIDs))
	if len(habitIDs) == 0 {
		return result, nil
	}

	query := `
        SELECT id, habit_id, log_date, value, completed_items, status
        FROM habit_logs
        WHERE habit_id = ANY($1)
        ORDER BY habit_id, log_date ASC
    `
	err := otel.Traced(ctx, "select", "habit_logs", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query, habitIDs)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				l   habit.HabitLog
				day time.Time
			)
			if err := rows.Scan(&l.ID, &l.HabitID, &day, &l.Value, &l.CompletedChecklistItems, &l.Status); err != nil {
				return err
			}
			l.Date = habit.DateKey(day)
			result[l.HabitID] = append(result[l.HabitID], l)
		}
		return rows.Err()
	})
	if err != nil {
		r.logger.Error("Failed to list habit logs", zap.Int("habit_count", len(habitIDs)), zap.Error(err))
		return nil, fmt.Errorf("list habit logs: %w", err)
	}
	return result, nil
}

func (r *HabitLogRepository) inTx(ctx context.Context, operation string, fn func(tx pgx.Tx) error) error {
	return otel.Traced(ctx, operation, "habit_logs", func(ctx context.Context) error {
		tx, err := r.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				r.logger.Warn("Rollback failed", zap.String("operation", operation), zap.Error(rbErr))
			}
		}()

		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
}

func (r *HabitLogRepository) stage(ctx context.Context, tx pgx.Tx, habitID, routingKey string, event mqcontracts.HabitLogChangedPayload) error {
	_, err := r.outbox.Stage(ctx, tx, outbox.Aggregate{Type: aggregateHabit, ID: habitID}, routingKey, event)
	return err
}
