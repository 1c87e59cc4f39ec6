package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	dbcontracts "github.com/rag133/Jeevan-saathi-sub002/contracts/db"
	mqcontracts "github.com/rag133/Jeevan-saathi-sub002/contracts/mq"
	"github.com/rag133/Jeevan-saathi-sub002/internal/repository"
	"github.com/rag133/Jeevan-saathi-sub002/internal/service"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/habit"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/trace"
)

// now is a Wednesday afternoon.
var now = time.Date(2026, 10, 14, 15, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return now }

func day(s string) time.Time {
	d, err := habit.ParseDateKey(s)
	if err != nil {
		panic(err)
	}
	return d
}

func f64(v float64) *float64 { return &v }

type fixture struct {
	habits *mockHabitStore
	logs   *mockLogStore
	stats  *mockStatsStore
	cache  *mockCache
	svc    *service.HabitService
}

func newFixture() *fixture {
	f := &fixture{
		habits: new(mockHabitStore),
		logs:   new(mockLogStore),
		stats:  new(mockStatsStore),
		cache:  new(mockCache),
	}
	f.svc = service.NewHabitService(f.habits, f.logs, f.stats, f.cache, fixedClock, time.UTC, zap.NewNop())
	return f
}

func binaryRecord(id string, userID int) *dbcontracts.HabitRecord {
	return &dbcontracts.HabitRecord{
		Habit: habit.Habit{
			ID:        id,
			Type:      habit.TypeBinary,
			Frequency: habit.Frequency{Kind: habit.FrequencyDaily},
			StartDate: day("2026-10-12"),
		},
		UserID:   userID,
		Title:    "Meditate",
		IsActive: true,
	}
}

func TestCreateHabit(t *testing.T) {
	f := newFixture()
	f.habits.On("Insert", mock.Anything, mock.Anything).Return(true, nil)

	rec, err := f.svc.CreateHabit(context.Background(), 7, "Read", habit.Habit{
		Type:        habit.TypeCount,
		Frequency:   habit.Frequency{Kind: habit.FrequencyWeekly, Times: 3},
		DailyTarget: f64(20),
	})

	require.NoError(t, err)
	assert.Len(t, rec.ID, 36)
	assert.Equal(t, day("2026-10-14"), rec.StartDate)
	assert.Equal(t, 7, rec.UserID)
	assert.True(t, rec.IsActive)
	f.habits.AssertExpectations(t)
}

func TestCreateHabit_Invalid(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateHabit(context.Background(), 7, "Bad", habit.Habit{
		Type:      "sometimes",
		Frequency: habit.Frequency{Kind: habit.FrequencyDaily},
	})

	assert.ErrorIs(t, err, service.ErrInvalidHabit)
	assert.ErrorIs(t, err, habit.ErrUnknownType)
	f.habits.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestCreateHabit_DuplicateID(t *testing.T) {
	f := newFixture()
	f.habits.On("Insert", mock.Anything, mock.Anything).Return(false, nil)

	_, err := f.svc.CreateHabit(context.Background(), 7, "Read", binaryRecord("h1", 7).Habit)
	assert.ErrorIs(t, err, service.ErrHabitExists)
}

func TestRecordLog(t *testing.T) {
	f := newFixture()
	ctx := trace.WithContext(context.Background(), "trace-1")
	f.habits.On("Get", mock.Anything, "h1").Return(binaryRecord("h1", 7), nil)
	f.logs.On("Upsert", mock.Anything,
		mock.MatchedBy(func(l *habit.HabitLog) bool {
			return l.Date == "2026-10-13" && l.Status == "done" && l.ID != ""
		}),
		mock.MatchedBy(func(e mqcontracts.HabitLogChangedPayload) bool {
			return e.Action == "recorded" && e.TraceID == "trace-1" && e.UserID == 7 && e.EventID != ""
		}),
	).Return(nil)
	f.cache.On("Invalidate", mock.Anything, "h1").Return(nil)

	log, c, err := f.svc.RecordLog(ctx, 7, habit.HabitLog{HabitID: "h1", Date: "2026-10-13"})

	require.NoError(t, err)
	assert.Equal(t, "2026-10-13", log.Date)
	assert.Equal(t, habit.StatusDone, c.Status)
	f.logs.AssertExpectations(t)
	f.cache.AssertExpectations(t)
}

func TestRecordLog_Rejections(t *testing.T) {
	inactive := binaryRecord("h2", 7)
	inactive.IsActive = false

	tests := []struct {
		name    string
		userID  int
		log     habit.HabitLog
		wantErr error
	}{
		{"other user", 8, habit.HabitLog{HabitID: "h1", Date: "2026-10-13"}, service.ErrForbidden},
		{"future", 7, habit.HabitLog{HabitID: "h1", Date: "2026-10-15"}, service.ErrFutureDate},
		{"bad date", 7, habit.HabitLog{HabitID: "h1", Date: "13/10/2026"}, service.ErrInvalidDate},
		{"inactive", 7, habit.HabitLog{HabitID: "h2", Date: "2026-10-13"}, service.ErrHabitInactive},
		{"missing", 7, habit.HabitLog{HabitID: "nope", Date: "2026-10-13"}, repository.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.habits.On("Get", mock.Anything, "h1").Return(binaryRecord("h1", 7), nil)
			f.habits.On("Get", mock.Anything, "h2").Return(inactive, nil)
			f.habits.On("Get", mock.Anything, "nope").Return(nil, repository.ErrNotFound)

			_, _, err := f.svc.RecordLog(context.Background(), tt.userID, tt.log)
			assert.ErrorIs(t, err, tt.wantErr)
			f.logs.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRecordLog_EmptyDateMeansToday(t *testing.T) {
	f := newFixture()
	f.habits.On("Get", mock.Anything, "h1").Return(binaryRecord("h1", 7), nil)
	f.logs.On("Upsert", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.cache.On("Invalidate", mock.Anything, "h1").Return(errors.New("redis down"))

	log, _, err := f.svc.RecordLog(context.Background(), 7, habit.HabitLog{HabitID: "h1"})
	require.NoError(t, err)
	assert.Equal(t, "2026-10-14", log.Date)
}

func TestDeleteLog(t *testing.T) {
	f := newFixture()
	f.habits.On("Get", mock.Anything, "h1").Return(binaryRecord("h1", 7), nil)
	f.logs.On("Delete", mock.Anything, "h1", "2026-10-13",
		mock.MatchedBy(func(e mqcontracts.HabitLogChangedPayload) bool { return e.Action == "deleted" }),
	).Return(nil)
	f.cache.On("Invalidate", mock.Anything, "h1").Return(nil)

	require.NoError(t, f.svc.DeleteLog(context.Background(), 7, "h1", "2026-10-13"))
	f.logs.AssertExpectations(t)
}

func TestClassify(t *testing.T) {
	f := newFixture()
	rec := binaryRecord("h1", 7)
	rec.Type = habit.TypeCount
	rec.DailyTarget = f64(10)
	f.habits.On("Get", mock.Anything, "h1").Return(rec, nil)
	f.logs.On("ListByHabit", mock.Anything, "h1").Return([]habit.HabitLog{
		{HabitID: "h1", Date: "2026-10-13", Value: f64(4)},
	}, nil)

	c, err := f.svc.Classify(context.Background(), 7, "h1", day("2026-10-13"))
	require.NoError(t, err)
	assert.Equal(t, habit.StatusPartial, c.Status)
	assert.InDelta(t, 0.4, c.Progress, 1e-9)

	c, err = f.svc.Classify(context.Background(), 7, "h1", day("2026-10-14"))
	require.NoError(t, err)
	assert.Equal(t, habit.StatusNone, c.Status)
}

func TestStats_CacheHit(t *testing.T) {
	f := newFixture()
	cached := habit.Stats{CurrentStreak: 9}
	f.habits.On("Get", mock.Anything, "h1").Return(binaryRecord("h1", 7), nil)
	f.cache.On("Generations", mock.Anything, []string{"h1"}).Return(map[string]int64{"h1": 2}, true)
	f.cache.On("Get", mock.Anything, "h1", int64(2), "2026-10-14").Return(cached, true)

	stats, err := f.svc.Stats(context.Background(), 7, "h1", day("2026-10-14"))
	require.NoError(t, err)
	assert.Equal(t, cached, stats)
	f.logs.AssertNotCalled(t, "ListByHabit", mock.Anything, mock.Anything)
}

func TestStats_CacheMissComputesAndStores(t *testing.T) {
	f := newFixture()
	f.habits.On("Get", mock.Anything, "h1").Return(binaryRecord("h1", 7), nil)
	f.cache.On("Generations", mock.Anything, []string{"h1"}).Return(map[string]int64{}, true)
	f.cache.On("Get", mock.Anything, "h1", int64(0), "2026-10-14").Return(habit.Stats{}, false)
	f.logs.On("ListByHabit", mock.Anything, "h1").Return([]habit.HabitLog{
		{HabitID: "h1", Date: "2026-10-12"},
		{HabitID: "h1", Date: "2026-10-13"},
		{HabitID: "h1", Date: "2026-10-14"},
	}, nil)
	f.cache.On("Set", mock.Anything, "h1", int64(0), "2026-10-14", mock.AnythingOfType("habit.Stats")).Return()

	stats, err := f.svc.Stats(context.Background(), 7, "h1", day("2026-10-14"))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.CurrentStreak)
	assert.Equal(t, 3, stats.BestStreak)
	assert.Equal(t, 100.0, stats.CompletionRate)
	f.cache.AssertExpectations(t)
}

// 统计读取打卡期间有人写入：结果写回读取前的代数，之后的读取不会命中它
func TestStats_ConcurrentWriteDoesNotPoisonCache(t *testing.T) {
	f := newFixture()
	rec := binaryRecord("h1", 7)
	f.habits.On("Get", mock.Anything, "h1").Return(rec, nil)

	gen := int64(0)
	var order []string
	f.cache.On("Generations", mock.Anything, []string{"h1"}).
		Return(func([]string) map[string]int64 {
			order = append(order, "generation")
			return map[string]int64{"h1": gen}
		}, true)
	f.cache.On("Get", mock.Anything, "h1", mock.Anything, "2026-10-14").Return(habit.Stats{}, false)
	f.cache.On("Invalidate", mock.Anything, "h1").
		Run(func(mock.Arguments) { gen++ }).
		Return(nil)

	stale := []habit.HabitLog{{HabitID: "h1", Date: "2026-10-13"}}
	f.logs.On("ListByHabit", mock.Anything, "h1").
		Run(func(mock.Arguments) {
			order = append(order, "list")
			// a log lands between the read and the cache write
			_, _, err := f.svc.RecordLog(context.Background(), 7, habit.HabitLog{HabitID: "h1", Date: "2026-10-14"})
			require.NoError(t, err)
		}).
		Return(stale, nil).Once()
	f.logs.On("Upsert", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var written []int64
	f.cache.On("Set", mock.Anything, "h1", mock.Anything, "2026-10-14", mock.Anything).
		Run(func(args mock.Arguments) { written = append(written, args.Get(2).(int64)) }).
		Return()

	_, err := f.svc.Stats(context.Background(), 7, "h1", day("2026-10-14"))
	require.NoError(t, err)

	assert.Equal(t, []string{"generation", "list"}, order)
	assert.Equal(t, []int64{0}, written)
	assert.Equal(t, int64(1), gen)
	f.cache.AssertCalled(t, "Get", mock.Anything, "h1", int64(0), "2026-10-14")
}

func TestStats_CacheUnavailableSkipsCache(t *testing.T) {
	f := newFixture()
	f.habits.On("Get", mock.Anything, "h1").Return(binaryRecord("h1", 7), nil)
	f.cache.On("Generations", mock.Anything, []string{"h1"}).Return(nil, false)
	f.logs.On("ListByHabit", mock.Anything, "h1").Return([]habit.HabitLog{{HabitID: "h1", Date: "2026-10-14"}}, nil)

	stats, err := f.svc.Stats(context.Background(), 7, "h1", day("2026-10-14"))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CurrentStreak)
	f.cache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStats_RejectsFarFutureReference(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Stats(context.Background(), 7, "h1", day("9999-12-31"))
	assert.ErrorIs(t, err, service.ErrInvalidRange)
	f.habits.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	f.logs.AssertNotCalled(t, "ListByHabit", mock.Anything, mock.Anything)
}

func TestStats_AllowsTomorrow(t *testing.T) {
	f := newFixture()
	f.habits.On("Get", mock.Anything, "h1").Return(binaryRecord("h1", 7), nil)
	f.cache.On("Generations", mock.Anything, []string{"h1"}).Return(nil, false)
	f.logs.On("ListByHabit", mock.Anything, "h1").Return([]habit.HabitLog{}, nil)

	_, err := f.svc.Stats(context.Background(), 7, "h1", day("2026-10-15"))
	require.NoError(t, err)
}

func TestCreateHabit_StartDateWindow(t *testing.T) {
	tests := []struct {
		name  string
		start string
		ok    bool
	}{
		{"ancient", "0001-01-01", false},
		{"eleven years back", "2015-10-13", false},
		{"ten years back", "2016-10-14", true},
		{"next year", "2027-10-14", true},
		{"far future", "2030-01-01", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.habits.On("Insert", mock.Anything, mock.Anything).Return(true, nil)

			h := binaryRecord("h1", 7).Habit
			h.StartDate = day(tt.start)
			_, err := f.svc.CreateHabit(context.Background(), 7, "Walk", h)

			if tt.ok {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, service.ErrInvalidHabit)
			assert.ErrorIs(t, err, service.ErrInvalidRange)
			f.habits.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
		})
	}
}

func TestRefreshHabit(t *testing.T) {
	f := newFixture()
	f.habits.On("Get", mock.Anything, "h1").Return(binaryRecord("h1", 7), nil)
	f.cache.On("Invalidate", mock.Anything, "h1").Return(nil)
	f.cache.On("Generations", mock.Anything, []string{"h1"}).Return(map[string]int64{"h1": 5}, true)
	f.logs.On("ListByHabit", mock.Anything, "h1").Return([]habit.HabitLog{
		{HabitID: "h1", Date: "2026-10-14"},
	}, nil)
	f.stats.On("Save", mock.Anything, "h1", day("2026-10-14"),
		mock.MatchedBy(func(s habit.Stats) bool { return s.CurrentStreak == 1 && s.BestStreak == 1 }),
	).Return(nil)
	f.cache.On("Set", mock.Anything, "h1", int64(5), "2026-10-14", mock.Anything).Return()

	_, err := f.svc.RefreshHabit(context.Background(), "h1")
	require.NoError(t, err)
	f.stats.AssertExpectations(t)
}

func TestDueToday(t *testing.T) {
	f := newFixture()
	daily := *binaryRecord("daily", 7)
	weekly := *binaryRecord("weekly", 7)
	weekly.Frequency = habit.Frequency{Kind: habit.FrequencyWeekly, Times: 1}

	f.habits.On("ListActiveByUser", mock.Anything, 7).Return([]dbcontracts.HabitRecord{daily, weekly}, nil)
	f.logs.On("ListByHabits", mock.Anything, []string{"daily", "weekly"}).Return(map[string][]habit.HabitLog{
		"daily":  {{HabitID: "daily", Date: "2026-10-14"}},
		"weekly": {{HabitID: "weekly", Date: "2026-10-12"}},
	}, nil)

	due, err := f.svc.DueToday(context.Background(), 7, day("2026-10-14"))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "daily", due[0].ID)
	assert.Equal(t, habit.StatusDone, due[0].Classification.Status)
	assert.Equal(t, 1, due[0].Done)
	assert.Equal(t, 1, due[0].Quota)
}

func TestProgress(t *testing.T) {
	f := newFixture()
	f.habits.On("Get", mock.Anything, "h1").Return(binaryRecord("h1", 7), nil)
	f.logs.On("ListByHabit", mock.Anything, "h1").Return([]habit.HabitLog{{HabitID: "h1", Date: "2026-10-13"}}, nil)

	series, err := f.svc.Progress(context.Background(), 7, "h1", day("2026-10-11"), day("2026-10-14"))
	require.NoError(t, err)
	require.Len(t, series, 4)
	assert.False(t, series[0].Active)
	assert.Equal(t, habit.StatusDone, series[2].Status)

	_, err = f.svc.Progress(context.Background(), 7, "h1", day("2026-10-14"), day("2026-10-11"))
	assert.ErrorIs(t, err, service.ErrInvalidRange)

	_, err = f.svc.Progress(context.Background(), 7, "h1", day("2024-01-01"), day("2026-10-14"))
	assert.ErrorIs(t, err, service.ErrInvalidRange)
}

func TestToday_UsesConfiguredTimezone(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	late := func() time.Time { return time.Date(2026, 10, 14, 20, 0, 0, 0, time.UTC) }
	svc := service.NewHabitService(nil, nil, nil, nil, late, kolkata, zap.NewNop())
	assert.Equal(t, day("2026-10-15"), svc.Today())

	utc := service.NewHabitService(nil, nil, nil, nil, late, time.UTC, zap.NewNop())
	assert.Equal(t, day("2026-10-14"), utc.Today())
}
