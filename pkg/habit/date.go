package habit

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-day key format used by logs.
const DateLayout = "2006-01-02"

// StartOfDay returns the calendar day of t (as seen in t's own location) at
// midnight UTC. All day arithmetic in this package happens on these values so
// that stepping a day never crosses a DST transition.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateKey formats t as a YYYY-MM-DD log key.
func DateKey(t time.Time) string {
	return StartOfDay(t).Format(DateLayout)
}

// ParseDateKey parses a log date. Full RFC3339 timestamps are accepted and
// truncated to their calendar day.
func ParseDateKey(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return StartOfDay(t), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: want %s", s, DateLayout)
}

// WeekBounds returns the Sunday and Saturday of the week containing t.
func WeekBounds(t time.Time) (time.Time, time.Time) {
	day := StartOfDay(t)
	start := day.AddDate(0, 0, -int(day.Weekday()))
	return start, start.AddDate(0, 0, 6)
}

// MonthBounds returns the first and last day of the calendar month containing t.
func MonthBounds(t time.Time) (time.Time, time.Time) {
	day := StartOfDay(t)
	start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, -1)
}

// logIndex maps day keys to logs. When two logs share a date the later one in
// the input wins, matching last-write-wins storage.
type logIndex map[string]*HabitLog

func indexLogs(logs []HabitLog) logIndex {
	idx := make(logIndex, len(logs))
	for i := range logs {
		t, err := ParseDateKey(logs[i].Date)
		if err != nil {
			continue
		}
		idx[t.Format(DateLayout)] = &logs[i]
	}
	return idx
}

func (idx logIndex) at(day time.Time) *HabitLog {
	return idx[day.Format(DateLayout)]
}
