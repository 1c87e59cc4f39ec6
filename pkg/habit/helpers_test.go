package habit_test

import (
	"time"

	"github.com/rag133/Jeevan-saathi-sub002/pkg/habit"
)

// ref is a Wednesday afternoon. Its week runs Sun 2026-10-11 .. Sat 2026-10-17.
var ref = time.Date(2026, 10, 14, 15, 30, 0, 0, time.UTC)

func date(s string) time.Time {
	t, err := time.Parse(habit.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func daysFromRef(n int) time.Time {
	return ref.AddDate(0, 0, n)
}

func f64(v float64) *float64 { return &v }

func binaryLogs(dates ...string) []habit.HabitLog {
	logs := make([]habit.HabitLog, 0, len(dates))
	for _, d := range dates {
		logs = append(logs, habit.HabitLog{HabitID: "h1", Date: d})
	}
	return logs
}

func valueLog(d string, v float64) habit.HabitLog {
	return habit.HabitLog{HabitID: "h1", Date: d, Value: f64(v)}
}

func dailyBinary(start time.Time) habit.Habit {
	return habit.Habit{
		ID:        "h1",
		Type:      habit.TypeBinary,
		Frequency: habit.Frequency{Kind: habit.FrequencyDaily},
		StartDate: start,
	}
}
