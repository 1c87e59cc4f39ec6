package service

import "errors"

var (
	ErrInvalidHabit  = errors.New("invalid habit")
	ErrHabitExists   = errors.New("habit already exists")
	ErrForbidden     = errors.New("habit belongs to another user")
	ErrHabitInactive = errors.New("habit is no longer active")
	ErrInvalidDate   = errors.New("invalid date")
	ErrFutureDate    = errors.New("date is in the future")
	ErrInvalidRange  = errors.New("invalid date range")
)
