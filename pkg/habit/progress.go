package habit

import "time"

// DayProgress is one cell of a habit heatmap.
type DayProgress struct {
	Date   string `json:"date"`
	Active bool   `json:"active"`
	Classification
}

// DailyProgress classifies every day in [from, to]. It returns nil when to is
// before from.
func DailyProgress(h Habit, logs []HabitLog, from, to time.Time) []DayProgress {
	first, last := StartOfDay(from), StartOfDay(to)
	if last.Before(first) {
		return nil
	}
	idx := indexLogs(logs)
	days := int(last.Sub(first).Hours()/24) + 1
	out := make([]DayProgress, 0, days)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		out = append(out, DayProgress{
			Date:           day.Format(DateLayout),
			Active:         h.activeOn(day),
			Classification: ClassifyLog(h, idx.at(day)),
		})
	}
	return out
}

// PeriodProgress returns how many Done days the period containing date holds
// and how many are wanted. The period is the week or month for Weekly and
// Monthly habits and the single day otherwise.
func PeriodProgress(h Habit, logs []HabitLog, date time.Time) (done, quota int) {
	day := StartOfDay(date)
	idx := indexLogs(logs)
	switch h.Frequency.Kind {
	case FrequencyWeekly:
		from, to := WeekBounds(day)
		return completedBetween(h, idx, from, to), h.Frequency.quota()
	case FrequencyMonthly:
		from, to := MonthBounds(day)
		return completedBetween(h, idx, from, to), h.Frequency.quota()
	default:
		if ClassifyLog(h, idx.at(day)).Status == StatusDone {
			return 1, 1
		}
		return 0, 1
	}
}
