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

type HabitRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewHabitRepository(db *pgxpool.Pool, logger *zap.Logger) *HabitRepository {
	return &HabitRepository{
		db:     db,
		logger: logger,
	}
}

const habitColumns = `id, user_id, title, habit_type, frequency, start_date, end_date,
               daily_target, target_comparison, checklist, is_active, created_at, updated_at`

// Insert 写入新习惯；id 已存在时不做任何修改并返回 false
func (r *HabitRepository) Insert(ctx context.Context, h *dbcontracts.HabitRecord) (bool, error) {
	r.logger.Debug("Inserting habit",
		zap.String("habit_id", h.ID),
		zap.Int("user_id", h.UserID),
		zap.String("type", string(h.Type)),
		zap.String("frequency", string(h.Frequency.Kind)),
	)

	query := `
        INSERT INTO habits (id, user_id, title, habit_type, frequency, start_date, end_date,
                            daily_target, target_comparison, checklist, is_active)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        ON CONFLICT (id) DO NOTHING
        RETURNING created_at, updated_at
    `
	checklist := h.Checklist
	if checklist == nil {
		checklist = []habit.ChecklistItem{}
	}

	err := otel.Traced(ctx, "insert", "habits", func(ctx context.Context) error {
		return r.db.QueryRow(ctx, query,
			h.ID,
			h.UserID,
			h.Title,
			string(h.Type),
			h.Frequency,
			habit.StartOfDay(h.StartDate),
			endDate(h.EndDate),
			h.DailyTarget,
			string(h.DailyTargetComparison),
			checklist,
			h.IsActive,
		).Scan(&h.CreatedAt, &h.UpdatedAt)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		r.logger.Info("Habit already exists, skipped", zap.String("habit_id", h.ID))
		return false, nil
	}
	if err != nil {
		r.logger.Error("Failed to insert habit", zap.String("habit_id", h.ID), zap.Error(err))
		return false, fmt.Errorf("insert habit: %w", err)
	}

	r.logger.Info("Habit inserted successfully",
		zap.String("habit_id", h.ID),
		zap.Int("user_id", h.UserID),
	)
	return true, nil
}

func (r *HabitRepository) Get(ctx context.Context, id string) (*dbcontracts.HabitRecord, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE id = $1`

	var rec *dbcontracts.HabitRecord
	err := otel.Traced(ctx, "select", "habits", func(ctx context.Context) error {
		var err error
		rec, err = scanHabit(r.db.QueryRow(ctx, query, id))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("habit %s: %w", id, ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get habit", zap.String("habit_id", id), zap.Error(err))
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return rec, nil
}

func (r *HabitRepository) ListActiveByUser(ctx context.Context, userID int) ([]dbcontracts.HabitRecord, error) {
	r.logger.Debug("Listing active habits for user", zap.Int("user_id", userID))

	query := `
        SELECT ` + habitColumns + `
        FROM habits
        WHERE user_id = $1 AND is_active = TRUE
        ORDER BY created_at ASC
    `
	habits, err := r.list(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list habits", zap.Int("user_id", userID), zap.Error(err))
		return nil, err
	}

	r.logger.Debug("Listed habits",
		zap.Int("user_id", userID),
		zap.Int("count", len(habits)),
	)
	return habits, nil
}

func (r *HabitRepository) ListAllActive(ctx context.Context) ([]dbcontracts.HabitRecord, error) {
	query := `
        SELECT ` + habitColumns + `
        FROM habits
        WHERE is_active = TRUE
        ORDER BY created_at ASC
    `
	habits, err := r.list(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list all active habits", zap.Error(err))
		return nil, err
	}

	r.logger.Debug("Listed all active habits", zap.Int("count", len(habits)))
	return habits, nil
}

// Deactivate 软删除，历史打卡保留
func (r *HabitRepository) Deactivate(ctx context.Context, id string) error {
	err := otel.Traced(ctx, "update", "habits", func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, `
            UPDATE habits SET is_active = FALSE, updated_at = NOW()
            WHERE id = $1 AND is_active = TRUE
        `, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("habit %s: %w", id, ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to deactivate habit", zap.String("habit_id", id), zap.Error(err))
		return fmt.Errorf("deactivate habit: %w", err)
	}

	r.logger.Info("Habit deactivated", zap.String("habit_id", id))
	return nil
}

func (r *HabitRepository) list(ctx context.Context, query string, args ...any) ([]dbcontracts.HabitRecord, error) {
	var habits []dbcontracts.HabitRecord
	err := otel.Traced(ctx, "select", "habits", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanHabit(rows)
			if err != nil {
				return err
			}
			habits = append(habits, *rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	return habits, nil
}

func scanHabit(row pgx.Row) (*dbcontracts.HabitRecord, error) {
	var (
		rec        dbcontracts.HabitRecord
		habitType  string
		comparison string
	)
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Title,
		&habitType,
		&rec.Frequency,
		&rec.StartDate,
		&rec.EndDate,
		&rec.DailyTarget,
		&comparison,
		&rec.Checklist,
		&rec.IsActive,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Type = habit.HabitType(habitType)
	rec.DailyTargetComparison = habit.Comparison(comparison)
	return &rec, nil
}

func endDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := habit.StartOfDay(*t)
	return &d
}
