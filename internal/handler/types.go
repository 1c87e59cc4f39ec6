package handler

import (
	"time"

	dbcontracts "github.com/rag133/Jeevan-saathi-sub002/contracts/db"
	"github.com/rag133/Jeevan-saathi-sub002/internal/service"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/habit"
)

type frequencyRequest struct {
	Kind  string `json:"kind" binding:"required,frequency_kind"`
	Days  []int  `json:"days" binding:"omitempty,dive,weekday"`
	Times int    `json:"times" binding:"gte=0"`
}

type checklistItemRequest struct {
	ID   string `json:"id" binding:"required,max=64"`
	Text string `json:"text" binding:"max=200"`
}

type createHabitRequest struct {
	ID                    string                 `json:"id" binding:"omitempty,max=64"`
	Title                 string                 `json:"title" binding:"required,max=200"`
	Type                  string                 `json:"type" binding:"required,habit_type"`
	Frequency             frequencyRequest       `json:"frequency"`
	StartDate             string                 `json:"start_date" binding:"omitempty,datekey"`
	EndDate               string                 `json:"end_date" binding:"omitempty,datekey"`
	DailyTarget           *float64               `json:"daily_target" binding:"omitempty,gt=0"`
	DailyTargetComparison string                 `json:"daily_target_comparison" binding:"omitempty,oneof=at_least less_than exactly any_value"`
	Checklist             []checklistItemRequest `json:"checklist" binding:"omitempty,max=50,dive"`
}

// toHabit 转换为领域对象，日期在 binding 阶段已校验
func (r createHabitRequest) toHabit() habit.Habit {
	h := habit.Habit{
		ID:   r.ID,
		Type: habit.HabitType(r.Type),
		Frequency: habit.Frequency{
			Kind:  habit.FrequencyKind(r.Frequency.Kind),
			Times: r.Frequency.Times,
		},
		DailyTarget:           r.DailyTarget,
		DailyTargetComparison: habit.Comparison(r.DailyTargetComparison),
	}
	for _, d := range r.Frequency.Days {
		h.Frequency.Days = append(h.Frequency.Days, time.Weekday(d))
	}
	if r.StartDate != "" {
		h.StartDate, _ = habit.ParseDateKey(r.StartDate)
	}
	if r.EndDate != "" {
		end, _ := habit.ParseDateKey(r.EndDate)
		h.EndDate = &end
	}
	for _, item := range r.Checklist {
		h.Checklist = append(h.Checklist, habit.ChecklistItem{ID: item.ID, Text: item.Text})
	}
	return h
}

type logRequest struct {
	Value                   *float64 `json:"value" binding:"omitempty,gte=0"`
	CompletedChecklistItems []string `json:"completed_checklist_items" binding:"omitempty,max=50,dive,required"`
}

type habitResponse struct {
	ID                    string                `json:"id"`
	UserID                int                   `json:"user_id"`
	Title                 string                `json:"title"`
	Type                  habit.HabitType       `json:"type"`
	Frequency             habit.Frequency       `json:"frequency"`
	StartDate             string                `json:"start_date"`
	EndDate               string                `json:"end_date,omitempty"`
	DailyTarget           *float64              `json:"daily_target,omitempty"`
	DailyTargetComparison habit.Comparison      `json:"daily_target_comparison,omitempty"`
	Checklist             []habit.ChecklistItem `json:"checklist,omitempty"`
	IsActive              bool                  `json:"is_active"`
}

func newHabitResponse(rec dbcontracts.HabitRecord) habitResponse {
	resp := habitResponse{
		ID:                    rec.ID,
		UserID:                rec.UserID,
		Title:                 rec.Title,
		Type:                  rec.Type,
		Frequency:             rec.Frequency,
		StartDate:             habit.DateKey(rec.StartDate),
		DailyTarget:           rec.DailyTarget,
		DailyTargetComparison: rec.DailyTargetComparison,
		Checklist:             rec.Checklist,
		IsActive:              rec.IsActive,
	}
	if rec.EndDate != nil {
		resp.EndDate = habit.DateKey(*rec.EndDate)
	}
	return resp
}

type dueResponse struct {
	habitResponse
	Classification habit.Classification `json:"classification"`
	Done           int                  `json:"done"`
	Quota          int                  `json:"quota"`
}

func newDueResponse(d service.DueHabit) dueResponse {
	return dueResponse{
		habitResponse:  newHabitResponse(d.HabitRecord),
		Classification: d.Classification,
		Done:           d.Done,
		Quota:          d.Quota,
	}
}
