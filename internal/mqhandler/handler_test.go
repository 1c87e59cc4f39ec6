package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	dbcontracts "github.com/rag133/Jeevan-saathi-sub002/contracts/db"
	mqcontracts "github.com/rag133/Jeevan-saathi-sub002/contracts/mq"
	"github.com/rag133/Jeevan-saathi-sub002/internal/repository"
	"github.com/rag133/Jeevan-saathi-sub002/internal/service"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/habit"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/trace"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/util"
)

type memDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemDeduper() *memDeduper { return &memDeduper{seen: map[string]bool{}} }

func (d *memDeduper) AcquireOnce(_ context.Context, handler, eventID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := util.DedupKey(handler, eventID)
	if d.seen[key] {
		return false
	}
	d.seen[key] = true
	return true
}

func (d *memDeduper) Release(_ context.Context, handler, eventID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, util.DedupKey(handler, eventID))
}

type fakeCreator struct {
	calls   int
	err     error
	traceID string
	userID  int
}

func (f *fakeCreator) CreateHabit(ctx context.Context, userID int, title string, h habit.Habit) (*dbcontracts.HabitRecord, error) {
	f.calls++
	f.traceID = trace.FromContext(ctx)
	f.userID = userID
	if f.err != nil {
		return nil, f.err
	}
	return &dbcontracts.HabitRecord{Habit: h, UserID: userID, Title: title, IsActive: true}, nil
}

type fakeRefresher struct {
	calls []string
	err   error
}

func (f *fakeRefresher) RefreshHabit(_ context.Context, habitID string) (habit.Stats, error) {
	f.calls = append(f.calls, habitID)
	return habit.Stats{CurrentStreak: 2}, f.err
}

func createdEvent(t *testing.T) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(mqcontracts.HabitCreatedPayload{
		EventID: "evt-1",
		TraceID: "trace-abc",
		UserID:  42,
		Title:   "Walk",
		Habit: habit.Habit{
			ID:        "h-1",
			Type:      habit.TypeBinary,
			Frequency: habit.Frequency{Kind: habit.FrequencyDaily},
		},
	})
	require.NoError(t, err)
	return raw
}

func TestHabitCreatedHandler_CreatesOnce(t *testing.T) {
	creator := &fakeCreator{}
	h := NewHabitCreatedHandler(creator, newMemDeduper(), zap.NewNop())
	raw := createdEvent(t)

	require.NoError(t, h.Handle(context.Background(), raw))
	require.NoError(t, h.Handle(context.Background(), raw))

	assert.Equal(t, 1, creator.calls)
	assert.Equal(t, 42, creator.userID)
	assert.Equal(t, "trace-abc", creator.traceID)
}

func TestHabitCreatedHandler_ExistingHabitIsAcked(t *testing.T) {
	creator := &fakeCreator{err: fmt.Errorf("%w: h-1", service.ErrHabitExists)}
	h := NewHabitCreatedHandler(creator, nil, zap.NewNop())

	assert.NoError(t, h.Handle(context.Background(), createdEvent(t)))
}

func TestHabitCreatedHandler_InvalidHabitIsPermanent(t *testing.T) {
	creator := &fakeCreator{err: fmt.Errorf("%w: %w", service.ErrInvalidHabit, habit.ErrUnknownType)}
	dedup := newMemDeduper()
	h := NewHabitCreatedHandler(creator, dedup, zap.NewNop())

	err := h.Handle(context.Background(), createdEvent(t))
	retryable, kind := util.IsRetryableError(err)
	assert.False(t, retryable)
	assert.Equal(t, "invalid_habit", kind)
	assert.Empty(t, dedup.seen)
}

func TestHabitCreatedHandler_RetryableErrorReleasesDedup(t *testing.T) {
	creator := &fakeCreator{err: context.DeadlineExceeded}
	dedup := newMemDeduper()
	h := NewHabitCreatedHandler(creator, dedup, zap.NewNop())
	raw := createdEvent(t)

	err := h.Handle(context.Background(), raw)
	retryable, _ := util.IsRetryableError(err)
	assert.True(t, retryable)

	creator.err = nil
	require.NoError(t, h.Handle(context.Background(), raw))
	assert.Equal(t, 2, creator.calls)
}

func TestHabitCreatedHandler_BadPayload(t *testing.T) {
	h := NewHabitCreatedHandler(&fakeCreator{}, nil, zap.NewNop())

	err := h.Handle(context.Background(), json.RawMessage(`{"user_id":`))
	retryable, kind := util.IsRetryableError(err)
	assert.False(t, retryable)
	assert.Equal(t, "json_decode_error", kind)

	err = h.Handle(context.Background(), json.RawMessage(`{"event_id":"e","habit":{"id":"h"}}`))
	_, kind = util.IsRetryableError(err)
	assert.Equal(t, "invalid_habit", kind)
}

func TestHabitLogChangedHandler(t *testing.T) {
	refresher := &fakeRefresher{}
	h := NewHabitLogChangedHandler(refresher, newMemDeduper(), zap.NewNop())
	raw, err := json.Marshal(mqcontracts.HabitLogChangedPayload{
		EventID: "evt-9",
		HabitID: "h-1",
		Date:    "2026-10-14",
		Action:  "recorded",
	})
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), raw))
	require.NoError(t, h.Handle(context.Background(), raw))
	assert.Equal(t, []string{"h-1"}, refresher.calls)
}

func TestHabitLogChangedHandler_Errors(t *testing.T) {
	raw := json.RawMessage(`{"event_id":"evt-3","habit_id":"gone","action":"deleted"}`)

	refresher := &fakeRefresher{err: fmt.Errorf("habit gone: %w", repository.ErrNotFound)}
	h := NewHabitLogChangedHandler(refresher, newMemDeduper(), zap.NewNop())
	retryable, kind := util.IsRetryableError(h.Handle(context.Background(), raw))
	assert.False(t, retryable)
	assert.Equal(t, "habit_not_found", kind)

	refresher.err = errors.New("connection reset by peer")
	retryable, _ = util.IsRetryableError(h.Handle(context.Background(), raw))
	assert.True(t, retryable)
	assert.Len(t, refresher.calls, 2)

	_, kind = util.IsRetryableError(h.Handle(context.Background(), json.RawMessage(`{"event_id":"x"}`)))
	assert.Equal(t, "invalid_event", kind)
}
