package service

import "time"

// NextRun 返回 loc 时区中严格晚于 now 的下一个 hour:00
func NextRun(now time.Time, hour int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, 0, 0, 0, loc)
	}
	return next
}

// Today 返回 now 在 loc 时区中的日期
func Today(now time.Time, loc *time.Location) time.Time {
	return today(func() time.Time { return now }, loc)
}
