package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/rag133/Jeevan-saathi-sub002/pkg/trace"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/util"
)

type fakeAcknowledger struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.acked++
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type fakeDLQ struct {
	routingKeys []string
	errorTypes  []string
	letters     []DeadLetter
}

func (d *fakeDLQ) PublishToDLQ(letter DeadLetter) error {
	d.routingKeys = append(d.routingKeys, letter.RoutingKey)
	d.errorTypes = append(d.errorTypes, letter.ErrorType)
	d.letters = append(d.letters, letter)
	return nil
}

type fakeRetries struct {
	counts map[string]int64
}

func (r *fakeRetries) IncrementAndGet(ctx context.Context, key string) (int64, error) {
	r.counts[key]++
	return r.counts[key], nil
}

func (r *fakeRetries) Reset(ctx context.Context, key string) error {
	delete(r.counts, key)
	return nil
}

func newTestConsumer(h MessageHandler) *Consumer {
	return &Consumer{
		queue:      amqp091.Queue{Name: "habit-stats"},
		routingKey: "habit.log.recorded",
		handler:    h,
		logger:     zap.NewNop(),
	}
}

func delivery(ack *fakeAcknowledger, headers amqp091.Table) amqp091.Delivery {
	return amqp091.Delivery{
		Acknowledger: ack,
		DeliveryTag:  1,
		MessageId:    "m-1",
		Headers:      headers,
		Body:         []byte(`{"habit_id":"h1"}`),
	}
}

func TestHandleDelivery_AckOnSuccessAndPropagatesTrace(t *testing.T) {
	var gotTrace string
	c := newTestConsumer(func(ctx context.Context, data json.RawMessage) error {
		gotTrace = trace.FromContext(ctx)
		return nil
	})
	ack := &fakeAcknowledger{}

	c.handleDelivery(delivery(ack, amqp091.Table{TraceIDHeader: "trace-123"}))

	assert.Equal(t, 1, ack.acked)
	assert.Equal(t, 0, ack.nacked)
	assert.Equal(t, "trace-123", gotTrace)
}

func TestHandleDelivery_GeneratesTraceWhenMissing(t *testing.T) {
	var gotTrace string
	c := newTestConsumer(func(ctx context.Context, data json.RawMessage) error {
		gotTrace = trace.FromContext(ctx)
		return nil
	})

	c.handleDelivery(delivery(&fakeAcknowledger{}, nil))
	assert.Len(t, gotTrace, 32)
}

func TestHandleDelivery_RequeueWithoutDLQ(t *testing.T) {
	c := newTestConsumer(func(ctx context.Context, data json.RawMessage) error {
		return errors.New("boom")
	})
	ack := &fakeAcknowledger{}

	c.handleDelivery(delivery(ack, nil))

	assert.Equal(t, 1, ack.nacked)
	assert.True(t, ack.requeue)
}

func TestHandleDelivery_PermanentErrorGoesToDLQ(t *testing.T) {
	dlq := &fakeDLQ{}
	c := newTestConsumer(func(ctx context.Context, data json.RawMessage) error {
		return util.Permanent("invalid_habit", errors.New("unknown habit type"))
	}).WithDeadLetter(dlq, &fakeRetries{counts: map[string]int64{}}, 3)
	ack := &fakeAcknowledger{}

	c.handleDelivery(delivery(ack, amqp091.Table{TraceIDHeader: "trace-9"}))

	assert.Equal(t, 1, ack.acked)
	assert.Equal(t, 0, ack.nacked)
	assert.Equal(t, []string{"habit.log.recorded"}, dlq.routingKeys)
	assert.Equal(t, []string{"invalid_habit"}, dlq.errorTypes)

	letter := dlq.letters[0]
	assert.Equal(t, "m-1", letter.MessageID)
	assert.Equal(t, "trace-9", letter.TraceID)
	assert.Equal(t, "unknown habit type", letter.Error)
	assert.Zero(t, letter.RetryCount)
	assert.JSONEq(t, `{"habit_id":"h1"}`, string(letter.Body))
}

func TestHandleDelivery_RetryableUntilLimit(t *testing.T) {
	dlq := &fakeDLQ{}
	retries := &fakeRetries{counts: map[string]int64{}}
	c := newTestConsumer(func(ctx context.Context, data json.RawMessage) error {
		return context.DeadlineExceeded
	}).WithDeadLetter(dlq, retries, 2)

	for i := 0; i < 2; i++ {
		ack := &fakeAcknowledger{}
		c.handleDelivery(delivery(ack, nil))
		assert.Equal(t, 1, ack.nacked, "attempt %d", i+1)
	}
	assert.Empty(t, dlq.routingKeys)

	ack := &fakeAcknowledger{}
	c.handleDelivery(delivery(ack, nil))
	assert.Equal(t, 1, ack.acked)
	assert.Equal(t, []string{"timeout"}, dlq.errorTypes)
	assert.Equal(t, int64(3), dlq.letters[0].RetryCount)
	assert.Empty(t, retries.counts)
}

func TestHandleDelivery_PanicIsDeadLettered(t *testing.T) {
	dlq := &fakeDLQ{}
	c := newTestConsumer(func(ctx context.Context, data json.RawMessage) error {
		panic("nil map")
	}).WithDeadLetter(dlq, nil, 3)
	ack := &fakeAcknowledger{}

	assert.NotPanics(t, func() { c.handleDelivery(delivery(ack, nil)) })
	assert.Equal(t, 1, ack.acked)
	assert.Equal(t, []string{"handler_panic"}, dlq.errorTypes)
}

func TestDeadLetterHeaders(t *testing.T) {
	failedAt := time.Date(2026, 10, 14, 8, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	h := DeadLetter{
		Error:      "boom",
		ErrorType:  "timeout",
		RetryCount: 4,
		TraceID:    "trace-1",
		FailedAt:   failedAt,
	}.headers()

	assert.Equal(t, "boom", h["x-original-error"])
	assert.Equal(t, "timeout", h["x-error-type"])
	assert.Equal(t, "4", h["x-retry-count"])
	assert.Equal(t, "2026-10-14T03:00:00Z", h["x-failed-at"])
	assert.Equal(t, "trace-1", h[TraceIDHeader])
	assert.Equal(t, "habit.due.dlq", DLQQueueName("habit.due"))
}

func TestNewConnectionRetries(t *testing.T) {
	prevDial, prevAttempts, prevBackoff := dial, dialAttempts, dialBackoff
	t.Cleanup(func() { dial, dialAttempts, dialBackoff = prevDial, prevAttempts, prevBackoff })

	calls := 0
	dial = func(string) (*amqp091.Connection, error) {
		calls++
		return nil, errors.New("connection refused")
	}
	dialAttempts, dialBackoff = 3, time.Millisecond

	_, err := NewConnection("amqp://localhost")
	assert.ErrorContains(t, err, "after 3 attempts")
	assert.Equal(t, 3, calls)
}
