package habit

import (
	"fmt"
	"time"
)

// IsDateActiveForStatistics reports whether date is a day on which the habit
// is expected to be acted upon. Weekly and Monthly habits count every day of
// their window; the per-period quota only matters for display.
func IsDateActiveForStatistics(h Habit, date time.Time) bool {
	return h.activeOn(StartOfDay(date))
}

// ShouldDisplayOnDate reports whether the habit belongs in the daily view for
// date. Weekly and Monthly habits drop out of the view once the containing
// week or month, date included, holds Times completions.
func ShouldDisplayOnDate(h Habit, date time.Time, logs []HabitLog) bool {
	day := StartOfDay(date)
	if !h.inWindow(day) {
		return false
	}
	switch h.Frequency.Kind {
	case FrequencyWeekly:
		from, to := WeekBounds(day)
		return completedBetween(h, indexLogs(logs), from, to) < h.Frequency.quota()
	case FrequencyMonthly:
		from, to := MonthBounds(day)
		return completedBetween(h, indexLogs(logs), from, to) < h.Frequency.quota()
	default:
		return h.activeOn(day)
	}
}

// DueOn returns the habits from habits that should be displayed on date, in
// their original order. logsByHabit is keyed by habit ID.
func DueOn(habits []Habit, logsByHabit map[string][]HabitLog, date time.Time) []Habit {
	due := make([]Habit, 0, len(habits))
	for _, h := range habits {
		if ShouldDisplayOnDate(h, date, logsByHabit[h.ID]) {
			due = append(due, h)
		}
	}
	return due
}

func (h Habit) inWindow(day time.Time) bool {
	if day.Before(StartOfDay(h.StartDate)) {
		return false
	}
	if h.EndDate != nil && day.After(StartOfDay(*h.EndDate)) {
		return false
	}
	return true
}

// activeOn expects day to already be normalized.
func (h Habit) activeOn(day time.Time) bool {
	if !h.inWindow(day) {
		return false
	}
	switch h.Frequency.Kind {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	case FrequencySpecificDays:
		return h.Frequency.hasDay(day.Weekday())
	default:
		panic(fmt.Sprintf("habit %s: unknown frequency kind %q", h.ID, h.Frequency.Kind))
	}
}

// completedBetween counts Done days in [from, to] that fall inside the habit
// window.
func completedBetween(h Habit, idx logIndex, from, to time.Time) int {
	if start := StartOfDay(h.StartDate); from.Before(start) {
		from = start
	}
	if h.EndDate != nil {
		if end := StartOfDay(*h.EndDate); to.After(end) {
			to = end
		}
	}
	n := 0
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if ClassifyLog(h, idx.at(day)).Status == StatusDone {
			n++
		}
	}
	return n
}
