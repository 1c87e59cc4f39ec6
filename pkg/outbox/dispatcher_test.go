package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/rag133/Jeevan-saathi-sub002/pkg/trace"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetPendingEvents(ctx context.Context, limit int) ([]*Event, error) {
	args := m.Called(ctx, limit)
	events, _ := args.Get(0).([]*Event)
	return events, args.Error(1)
}

func (m *mockStore) MarkAsSent(ctx context.Context, eventID int64) error {
	return m.Called(ctx, eventID).Error(0)
}

func (m *mockStore) MarkAsFailed(ctx context.Context, eventID int64, maxRetries int) error {
	return m.Called(ctx, eventID, maxRetries).Error(0)
}

func (m *mockStore) GetFailedEvents(ctx context.Context, limit int) ([]*Event, error) {
	args := m.Called(ctx, limit)
	events, _ := args.Get(0).([]*Event)
	return events, args.Error(1)
}

func (m *mockStore) ResetEvent(ctx context.Context, eventID int64) error {
	return m.Called(ctx, eventID).Error(0)
}

func (m *mockStore) PurgeSent(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type recordingPublisher struct {
	fail     map[string]bool
	keys     []string
	traceIDs []string
}

func (p *recordingPublisher) PublishWithContext(ctx context.Context, routingKey string, payload any) error {
	if p.fail[routingKey] {
		return errors.New("channel closed")
	}
	p.keys = append(p.keys, routingKey)
	p.traceIDs = append(p.traceIDs, trace.FromContext(ctx))
	return nil
}

func TestDispatcher_ProcessPending(t *testing.T) {
	store := new(mockStore)
	pub := &recordingPublisher{fail: map[string]bool{"habit.log.deleted": true}}
	events := []*Event{
		{ID: 1, RoutingKey: "habit.log.recorded", Payload: json.RawMessage(`{"habit_id":"h1","trace_id":"t-1"}`)},
		{ID: 2, RoutingKey: "habit.log.deleted", Payload: json.RawMessage(`{"habit_id":"h1"}`)},
		{ID: 3, RoutingKey: "habit.created", Payload: json.RawMessage(`{"habit_id":"h2"}`)},
	}

	store.On("GetPendingEvents", mock.Anything, 10).Return(events, nil)
	store.On("MarkAsSent", mock.Anything, int64(1)).Return(nil)
	store.On("MarkAsFailed", mock.Anything, int64(2), 3).Return(nil)
	store.On("MarkAsSent", mock.Anything, int64(3)).Return(nil)

	d := NewDispatcher(store, pub, zap.NewNop()).WithBatchSize(10).WithMaxRetries(3)
	sent := d.ProcessPending(context.Background())

	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{"habit.log.recorded", "habit.created"}, pub.keys)
	assert.Equal(t, []string{"t-1", ""}, pub.traceIDs)
	store.AssertExpectations(t)
}

func TestDispatcher_ProcessPending_StoreError(t *testing.T) {
	store := new(mockStore)
	store.On("GetPendingEvents", mock.Anything, 100).Return(nil, errors.New("db down"))

	d := NewDispatcher(store, &recordingPublisher{}, zap.NewNop())
	assert.Equal(t, 0, d.ProcessPending(context.Background()))
	store.AssertNotCalled(t, "MarkAsSent", mock.Anything, mock.Anything)
}

func TestReplayService_ReplayFailedEvents(t *testing.T) {
	store := new(mockStore)
	store.On("GetFailedEvents", mock.Anything, 50).Return([]*Event{{ID: 7}, {ID: 8}}, nil)
	store.On("ResetEvent", mock.Anything, int64(7)).Return(nil)
	store.On("ResetEvent", mock.Anything, int64(8)).Return(ErrEventNotFound)

	svc := NewReplayService(store, zap.NewNop())
	n, err := svc.ReplayFailedEvents(context.Background(), 50)

	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	store.AssertExpectations(t)
}

func TestTraceFromPayload(t *testing.T) {
	ctx := traceFromPayload(context.Background(), json.RawMessage(`not json`))
	assert.Empty(t, trace.FromContext(ctx))

	ctx = traceFromPayload(context.Background(), json.RawMessage(`{"trace_id":"abc"}`))
	assert.Equal(t, "abc", trace.FromContext(ctx))
}

func TestNewEvent(t *testing.T) {
	e, err := NewEvent(Aggregate{Type: "habit", ID: "h1"}, "habit.log.recorded", map[string]string{"date": "2026-10-14"})
	assert.NoError(t, err)
	assert.Equal(t, StatusPending, e.Status)
	assert.Equal(t, "habit", e.AggregateType)
	if assert.NotNil(t, e.AggregateID) {
		assert.Equal(t, "h1", *e.AggregateID)
	}
	assert.JSONEq(t, `{"date":"2026-10-14"}`, string(e.Payload))

	e, err = NewEvent(Aggregate{Type: "habit"}, "habit.created", nil)
	assert.NoError(t, err)
	assert.Nil(t, e.AggregateID)

	_, err = NewEvent(Aggregate{Type: "habit"}, "habit.created", make(chan int))
	assert.Error(t, err)
}

func TestReplayService_PurgeSent(t *testing.T) {
	store := new(mockStore)
	cutoff := time.Now().Add(-48 * time.Hour)
	store.On("PurgeSent", mock.Anything, mock.MatchedBy(func(before time.Time) bool {
		return before.Sub(cutoff).Abs() < time.Minute
	})).Return(int64(12), nil)

	n, err := NewReplayService(store, zap.NewNop()).PurgeSent(context.Background(), 48*time.Hour)
	assert.NoError(t, err)
	assert.Equal(t, int64(12), n)
	store.AssertExpectations(t)
}
