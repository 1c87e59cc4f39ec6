package db

import (
	"time"

	"github.com/rag133/Jeevan-saathi-sub002/pkg/habit"
)

// HabitRecord 表示 habits 表的一行
type HabitRecord struct {
	habit.Habit
	UserID    int       `json:"user_id"`
	Title     string    `json:"title"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatsSnapshot 表示 habit_stats 表的一行
type StatsSnapshot struct {
	HabitID       string      `json:"habit_id"`
	ReferenceDate string      `json:"reference_date"`
	Stats         habit.Stats `json:"stats"`
	ComputedAt    time.Time   `json:"computed_at"`
}
