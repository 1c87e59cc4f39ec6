package habit

import (
	"fmt"
	"math"
)

type Status string

const (
	StatusNone    Status = "none"
	StatusPartial Status = "partial"
	StatusDone    Status = "done"
)

// Classification is what a single day's log amounts to. Progress is in [0, 1].
type Classification struct {
	Status     Status  `json:"status"`
	Progress   float64 `json:"progress"`
	IsComplete bool    `json:"is_complete"`
}

var none = Classification{Status: StatusNone}

// ClassifyLog computes a day's status from the habit type and the log's value
// or checklist. A nil log is always None. Any stored log status is ignored.
// Checklist progress counts distinct completed ids that are on the habit's
// checklist; duplicates and unknown ids are dropped.
func ClassifyLog(h Habit, log *HabitLog) Classification {
	if log == nil {
		return none
	}
	switch h.Type {
	case TypeBinary:
		return Classification{Status: StatusDone, Progress: 1, IsComplete: true}
	case TypeCount:
		return classifyValue(value(log), h.target(), h.comparison())
	case TypeDuration:
		return classifyValue(value(log), h.target(), CompareAtLeast)
	case TypeChecklist:
		return classifyChecklist(h, log)
	default:
		panic(fmt.Sprintf("habit %s: unknown type %q", h.ID, h.Type))
	}
}

func value(log *HabitLog) float64 {
	if log.Value == nil {
		return 0
	}
	return *log.Value
}

func classifyValue(v, target float64, cmp Comparison) Classification {
	var (
		complete bool
		progress float64
	)
	switch cmp {
	case CompareAtLeast:
		complete = v >= target
		progress = v / target
	case CompareLessThan:
		complete = v < target
		if v > 0 {
			progress = 1
		}
	case CompareExactly:
		complete = v == target
		if v > 0 {
			progress = v / target
		}
	case CompareAnyValue:
		complete = v > 0
		if v > 0 {
			progress = 1
		}
	default:
		panic(fmt.Sprintf("unknown target comparison %q", cmp))
	}

	c := Classification{Progress: clamp(progress), IsComplete: complete}
	switch {
	case complete:
		c.Status = StatusDone
	case v > 0:
		c.Status = StatusPartial
	default:
		c.Status = StatusNone
	}
	return c
}

// classifyChecklist counts distinct completed ids that still exist on the
// habit's checklist, so items removed from the definition never push progress
// past 1.
func classifyChecklist(h Habit, log *HabitLog) Classification {
	total := len(h.Checklist)
	if total == 0 {
		return none
	}
	completed := completedItems(h, log)
	c := Classification{
		Progress:   float64(completed) / float64(total),
		IsComplete: completed == total,
	}
	switch {
	case c.IsComplete:
		c.Status = StatusDone
	case completed > 0:
		c.Status = StatusPartial
	default:
		c.Status = StatusNone
	}
	return c
}

func completedItems(h Habit, log *HabitLog) int {
	if log == nil || len(log.CompletedChecklistItems) == 0 {
		return 0
	}
	known := make(map[string]bool, len(h.Checklist))
	for _, item := range h.Checklist {
		known[item.ID] = true
	}
	seen := make(map[string]bool, len(log.CompletedChecklistItems))
	for _, id := range log.CompletedChecklistItems {
		if known[id] && !seen[id] {
			seen[id] = true
		}
	}
	return len(seen)
}

func clamp(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
