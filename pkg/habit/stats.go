package habit

import (
	"math"
	"time"
)

// Stats are the longitudinal numbers for a habit as of a reference date.
type Stats struct {
	CurrentStreak       int     `json:"current_streak"`
	BestStreak          int     `json:"best_streak"`
	CompletionRate      float64 `json:"completion_rate"`
	ExpectedDays        int     `json:"expected_days"`
	DaysCompleted       int     `json:"days_completed"`
	AccumulatedProgress float64 `json:"accumulated_progress"`
}

// ComputeStats walks every day from the habit's start to referenceDate.
//
// Only days in statistics scope (see IsDateActiveForStatistics) extend, break
// or count toward streaks and the completion rate; other days are skipped.
// DaysCompleted and AccumulatedProgress cover every logged day inside the
// habit window up to referenceDate, scheduled or not. A habit that starts
// after referenceDate has zero Stats.
func ComputeStats(h Habit, logs []HabitLog, referenceDate time.Time) Stats {
	start := StartOfDay(h.StartDate)
	last := StartOfDay(referenceDate)
	if h.EndDate != nil {
		if end := StartOfDay(*h.EndDate); end.Before(last) {
			last = end
		}
	}
	if start.After(last) {
		return Stats{}
	}

	idx := indexLogs(logs)
	var (
		s         Stats
		run       int
		completed int
	)
	for day := start; !day.After(last); day = day.AddDate(0, 0, 1) {
		log := idx.at(day)
		c := ClassifyLog(h, log)
		if log != nil {
			s.AccumulatedProgress += contribution(h, log, c)
			if c.Status == StatusDone {
				s.DaysCompleted++
			}
		}

		if !h.activeOn(day) {
			continue
		}
		s.ExpectedDays++
		if c.Status != StatusDone {
			run = 0
			continue
		}
		completed++
		run++
		if run > s.BestStreak {
			s.BestStreak = run
		}
	}

	s.CurrentStreak = currentStreak(h, idx, start, last)
	if s.ExpectedDays > 0 {
		s.CompletionRate = round2(float64(completed) / float64(s.ExpectedDays) * 100)
	}
	return s
}

// currentStreak walks backward from last and stops at the first scheduled day
// that is not Done.
func currentStreak(h Habit, idx logIndex, start, last time.Time) int {
	streak := 0
	for day := last; !day.Before(start); day = day.AddDate(0, 0, -1) {
		if !h.activeOn(day) {
			continue
		}
		if ClassifyLog(h, idx.at(day)).Status != StatusDone {
			break
		}
		streak++
	}
	return streak
}

// contribution is what one logged day adds to AccumulatedProgress.
func contribution(h Habit, log *HabitLog, c Classification) float64 {
	switch h.Type {
	case TypeCount, TypeDuration:
		return value(log)
	case TypeChecklist:
		return float64(completedItems(h, log))
	default:
		if c.Status == StatusDone {
			return 1
		}
		return 0
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
