// Package habit evaluates habits against their logs: whether a habit is due on
// a day, what a day's log amounts to, and streak statistics as of a reference
// date. Everything here is a pure function of its arguments.
package habit

import (
	"errors"
	"fmt"
	"time"
)

type HabitType string

const (
	TypeBinary    HabitType = "binary"
	TypeCount     HabitType = "count"
	TypeDuration  HabitType = "duration"
	TypeChecklist HabitType = "checklist"
)

func (t HabitType) Valid() bool {
	switch t {
	case TypeBinary, TypeCount, TypeDuration, TypeChecklist:
		return true
	}
	return false
}

type FrequencyKind string

const (
	FrequencyDaily        FrequencyKind = "daily"
	FrequencySpecificDays FrequencyKind = "specific_days"
	FrequencyWeekly       FrequencyKind = "weekly"
	FrequencyMonthly      FrequencyKind = "monthly"
)

func (k FrequencyKind) Valid() bool {
	switch k {
	case FrequencyDaily, FrequencySpecificDays, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Frequency is the habit schedule. Days is only read for SpecificDays and
// Times only for Weekly and Monthly.
type Frequency struct {
	Kind  FrequencyKind  `json:"kind" yaml:"kind"`
	Days  []time.Weekday `json:"days,omitempty" yaml:"days,omitempty"`
	Times int            `json:"times,omitempty" yaml:"times,omitempty"`
}

// quota is the number of completions allowed per week or month.
func (f Frequency) quota() int {
	if f.Times <= 0 {
		return 1
	}
	return f.Times
}

func (f Frequency) hasDay(d time.Weekday) bool {
	for _, day := range f.Days {
		if day == d {
			return true
		}
	}
	return false
}

type Comparison string

const (
	CompareAtLeast  Comparison = "at_least"
	CompareLessThan Comparison = "less_than"
	CompareExactly  Comparison = "exactly"
	CompareAnyValue Comparison = "any_value"
)

func (c Comparison) Valid() bool {
	switch c {
	case "", CompareAtLeast, CompareLessThan, CompareExactly, CompareAnyValue:
		return true
	}
	return false
}

type ChecklistItem struct {
	ID   string `json:"id" yaml:"id"`
	Text string `json:"text" yaml:"text"`
}

// Habit is the immutable configuration of a recurring activity.
type Habit struct {
	ID                    string          `json:"id" yaml:"id"`
	Type                  HabitType       `json:"type" yaml:"type"`
	Frequency             Frequency       `json:"frequency" yaml:"frequency"`
	StartDate             time.Time       `json:"start_date" yaml:"start_date"`
	EndDate               *time.Time      `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	DailyTarget           *float64        `json:"daily_target,omitempty" yaml:"daily_target,omitempty"`
	DailyTargetComparison Comparison      `json:"daily_target_comparison,omitempty" yaml:"daily_target_comparison,omitempty"`
	Checklist             []ChecklistItem `json:"checklist,omitempty" yaml:"checklist,omitempty"`
}

// HabitLog is one day's recorded progress. Date is a YYYY-MM-DD key.
// Status is a legacy stored flag and is never read by this package.
type HabitLog struct {
	ID                      string   `json:"id" yaml:"id"`
	HabitID                 string   `json:"habit_id" yaml:"habit_id"`
	Date                    string   `json:"date" yaml:"date"`
	Value                   *float64 `json:"value,omitempty" yaml:"value,omitempty"`
	CompletedChecklistItems []string `json:"completed_checklist_items,omitempty" yaml:"completed_checklist_items,omitempty"`
	Status                  string   `json:"status,omitempty" yaml:"status,omitempty"`
}

var (
	ErrUnknownType      = errors.New("unknown habit type")
	ErrUnknownFrequency = errors.New("unknown frequency kind")
	ErrUnknownCompare   = errors.New("unknown target comparison")
	ErrInvalidWeekday   = errors.New("weekday out of range")
	ErrEmptyDays        = errors.New("specific_days frequency needs at least one day")
	ErrEndBeforeStart   = errors.New("end date before start date")
	ErrMissingStart     = errors.New("start date required")
)

// Validate reports structural problems that would make the evaluator panic or
// give meaningless answers. Degenerate but well-formed habits (no target, an
// empty checklist) are valid.
func (h Habit) Validate() error {
	if !h.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownType, h.Type)
	}
	if !h.Frequency.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownFrequency, h.Frequency.Kind)
	}
	if !h.DailyTargetComparison.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCompare, h.DailyTargetComparison)
	}
	if h.Frequency.Kind == FrequencySpecificDays && len(h.Frequency.Days) == 0 {
		return ErrEmptyDays
	}
	for _, d := range h.Frequency.Days {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("%w: %d", ErrInvalidWeekday, d)
		}
	}
	if h.StartDate.IsZero() {
		return ErrMissingStart
	}
	if h.EndDate != nil && StartOfDay(*h.EndDate).Before(StartOfDay(h.StartDate)) {
		return ErrEndBeforeStart
	}
	return nil
}

func (h Habit) target() float64 {
	if h.DailyTarget == nil || *h.DailyTarget <= 0 {
		return 1
	}
	return *h.DailyTarget
}

func (h Habit) comparison() Comparison {
	if h.DailyTargetComparison == "" {
		return CompareAtLeast
	}
	return h.DailyTargetComparison
}
