package mq

import (
	"time"

	"github.com/rag133/Jeevan-saathi-sub002/pkg/habit"
)

// Routing keys
const (
	RoutingHabitCreated     = "habit.created"
	RoutingHabitLogRecorded = "habit.log.recorded"
	RoutingHabitLogDeleted  = "habit.log.deleted"
	RoutingHabitDue         = "habit.due"
)

// HabitCreatedPayload 由上游服务发布的新习惯
type HabitCreatedPayload struct {
	EventID string      `json:"event_id"`
	TraceID string      `json:"trace_id,omitempty"`
	UserID  int         `json:"user_id"`
	Title   string      `json:"title"`
	Habit   habit.Habit `json:"habit"`
}

// HabitLogChangedPayload 打卡记录写入或删除后发布（经 outbox）
type HabitLogChangedPayload struct {
	EventID    string    `json:"event_id"`
	TraceID    string    `json:"trace_id,omitempty"`
	HabitID    string    `json:"habit_id"`
	UserID     int       `json:"user_id"`
	Date       string    `json:"date"`
	Action     string    `json:"action"` // recorded / deleted
	Status     string    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// HabitDuePayload 每日到期提醒
type HabitDuePayload struct {
	EventID string `json:"event_id"`
	TraceID string `json:"trace_id,omitempty"`
	HabitID string `json:"habit_id"`
	UserID  int    `json:"user_id"`
	Title   string `json:"title"`
	Date    string `json:"date"`
	Done    int    `json:"done"`
	Quota   int    `json:"quota"`
}
