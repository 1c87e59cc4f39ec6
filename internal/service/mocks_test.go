package service_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	dbcontracts "github.com/rag133/Jeevan-saathi-sub002/contracts/db"
	mqcontracts "github.com/rag133/Jeevan-saathi-sub002/contracts/mq"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/habit"
)

type mockHabitStore struct {
	mock.Mock
}

func (m *mockHabitStore) Insert(ctx context.Context, h *dbcontracts.HabitRecord) (bool, error) {
	args := m.Called(ctx, h)
	return args.Bool(0), args.Error(1)
}

func (m *mockHabitStore) Get(ctx context.Context, id string) (*dbcontracts.HabitRecord, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*dbcontracts.HabitRecord)
	return rec, args.Error(1)
}

func (m *mockHabitStore) ListActiveByUser(ctx context.Context, userID int) ([]dbcontracts.HabitRecord, error) {
	args := m.Called(ctx, userID)
	recs, _ := args.Get(0).([]dbcontracts.HabitRecord)
	return recs, args.Error(1)
}

func (m *mockHabitStore) ListAllActive(ctx context.Context) ([]dbcontracts.HabitRecord, error) {
	args := m.Called(ctx)
	recs, _ := args.Get(0).([]dbcontracts.HabitRecord)
	return recs, args.Error(1)
}

func (m *mockHabitStore) Deactivate(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockLogStore struct {
	mock.Mock
}

func (m *mockLogStore) Upsert(ctx context.Context, log *habit.HabitLog, event mqcontracts.HabitLogChangedPayload) error {
	return m.Called(ctx, log, event).Error(0)
}

func (m *mockLogStore) Delete(ctx context.Context, habitID string, date string, event mqcontracts.HabitLogChangedPayload) error {
	return m.Called(ctx, habitID, date, event).Error(0)
}

func (m *mockLogStore) ListByHabit(ctx context.Context, habitID string) ([]habit.HabitLog, error) {
	args := m.Called(ctx, habitID)
	logs, _ := args.Get(0).([]habit.HabitLog)
	return logs, args.Error(1)
}

func (m *mockLogStore) ListByHabits(ctx context.Context, habitIDs []string) (map[string][]habit.HabitLog, error) {
	args := m.Called(ctx, habitIDs)
	logs, _ := args.Get(0).(map[string][]habit.HabitLog)
	return logs, args.Error(1)
}

type mockStatsStore struct {
	mock.Mock
}

func (m *mockStatsStore) Save(ctx context.Context, habitID string, referenceDate time.Time, s habit.Stats) error {
	return m.Called(ctx, habitID, referenceDate, s).Error(0)
}

func (m *mockStatsStore) Get(ctx context.Context, habitID string) (*dbcontracts.StatsSnapshot, error) {
	args := m.Called(ctx, habitID)
	snap, _ := args.Get(0).(*dbcontracts.StatsSnapshot)
	return snap, args.Error(1)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Generations(ctx context.Context, habitIDs []string) (map[string]int64, bool) {
	args := m.Called(ctx, habitIDs)
	if fn, ok := args.Get(0).(func([]string) map[string]int64); ok {
		return fn(habitIDs), args.Bool(1)
	}
	gens, _ := args.Get(0).(map[string]int64)
	return gens, args.Bool(1)
}

func (m *mockCache) Get(ctx context.Context, habitID string, gen int64, day string) (habit.Stats, bool) {
	args := m.Called(ctx, habitID, gen, day)
	return args.Get(0).(habit.Stats), args.Bool(1)
}

func (m *mockCache) Set(ctx context.Context, habitID string, gen int64, day string, stats habit.Stats) {
	m.Called(ctx, habitID, gen, day, stats)
}

func (m *mockCache) Invalidate(ctx context.Context, habitID string) error {
	return m.Called(ctx, habitID).Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishWithContext(ctx context.Context, routingKey string, payload any) error {
	return m.Called(ctx, routingKey, payload).Error(0)
}
