package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/rag133/Jeevan-saathi-sub002/pkg/metrics"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/otel"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/trace"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/util"
)

type MessageHandler func(ctx context.Context, data json.RawMessage) error

// DeadLetterPublisher 由 *Publisher 实现
type DeadLetterPublisher interface {
	PublishToDLQ(d DeadLetter) error
}

// RetryTracker 由 *util.RetryCounter 实现
type RetryTracker interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

type Consumer struct {
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	queue      amqp091.Queue
	routingKey string
	tag        string
	handler    MessageHandler
	logger     *zap.Logger

	dlq        DeadLetterPublisher
	retries    RetryTracker
	maxRetries int64

	stopOnce sync.Once
}

// NewConsumer creates a consumer for a specific routing key.
func NewConsumer(url, queueName, routingKey string, logger *zap.Logger) (*Consumer, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	closeAll := func() {
		ch.Close()
		conn.Close()
	}

	if err := DeclareExchange(ch); err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := ch.Qos(16, 0, false); err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	q, err := declareBoundQueue(ch, queueName, routingKey, ExchangeName)
	if err != nil {
		closeAll()
		return nil, err
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", queueName),
		zap.String("exchange", ExchangeName),
	)

	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q,
		routingKey: routingKey,
		tag:        queueName + "-consumer",
		logger:     logger,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

// WithDeadLetter 开启死信：不可重试的错误或超过 maxRetries 次的消息进入 DLQ
func (c *Consumer) WithDeadLetter(dlq DeadLetterPublisher, retries RetryTracker, maxRetries int64) *Consumer {
	c.dlq = dlq
	c.retries = retries
	c.maxRetries = maxRetries
	return c
}

// DeclareDeadLetterQueue 声明与该 consumer 路由键对应的死信队列
func (c *Consumer) DeclareDeadLetterQueue() error {
	if err := DeclareDLQExchange(c.channel); err != nil {
		return err
	}
	_, err := DeclareDLQQueue(c.channel, c.routingKey)
	return err
}

func (c *Consumer) IsConnected() bool {
	return c.conn != nil && !c.conn.IsClosed()
}

// Stop 停止接收新消息，进行中的消息仍会被 ack
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() {
		if c.channel != nil {
			if err := c.channel.Cancel(c.tag, false); err != nil {
				c.logger.Warn("Failed to cancel consumer", zap.String("queue", c.queue.Name), zap.Error(err))
			}
		}
	})
}

func (c *Consumer) Close() {
	c.Stop()
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming blocks until the delivery channel is closed; run it in a goroutine.
func (c *Consumer) StartConsuming() error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		c.tag,
		false, // 手动ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)

	for msg := range deliveries {
		c.handleDelivery(msg)
	}

	return nil
}

// handleDelivery 保证每条消息都会被 ack 或 nack
func (c *Consumer) handleDelivery(msg amqp091.Delivery) {
	ctx := otel.ExtractMQHeaders(context.Background(), msg.Headers)
	if traceID, ok := msg.Headers[TraceIDHeader].(string); ok && traceID != "" {
		ctx = trace.WithContext(ctx, traceID)
	}
	ctx, traceID := trace.EnsureContext(ctx)

	ctx, span := otel.MQConsumeSpan(ctx, c.routingKey, c.queue.Name)
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.RecordMQConsumeLatency(c.routingKey, c.queue.Name, time.Since(start))
	}()

	log := c.logger.With(
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
		zap.String("message_id", msg.MessageId),
		zap.String("trace_id", traceID),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Handler panic recovered", zap.Any("panic", r))
			span.SetStatus(codes.Error, "panic")
			c.fail(ctx, log, msg, util.Permanent("handler_panic", fmt.Errorf("panic: %v", r)))
		}
	}()

	if err := c.handler(ctx, msg.Body); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.fail(ctx, log, msg, err)
		return
	}

	if c.retries != nil && msg.MessageId != "" {
		_ = c.retries.Reset(ctx, util.FormatRetryKey(c.routingKey, msg.MessageId))
	}

	if err := msg.Ack(false); err != nil {
		log.Error("Failed to ack message", zap.Error(err))
		return
	}
	log.Debug("Message processed successfully")
}

// fail 决定失败的消息是重新入队还是进入死信队列
func (c *Consumer) fail(ctx context.Context, log *zap.Logger, msg amqp091.Delivery, err error) {
	retryable, errType := util.IsRetryableError(err)
	log = log.With(zap.Bool("retryable", retryable), zap.String("error_type", errType), zap.Error(err))

	if c.dlq == nil {
		log.Error("Handler error, requeue")
		if nackErr := msg.Nack(false, true); nackErr != nil {
			log.Error("Failed to nack message", zap.NamedError("nack_error", nackErr))
		}
		return
	}

	var count int64
	if retryable && c.retries != nil && msg.MessageId != "" {
		n, incErr := c.retries.IncrementAndGet(ctx, util.FormatRetryKey(c.routingKey, msg.MessageId))
		if incErr != nil {
			log.Warn("Retry counter unavailable", zap.NamedError("redis_error", incErr))
		}
		count = n
	}

	if util.ShouldRetry(count, c.maxRetries, retryable) {
		log.Warn("Handler error, requeue", zap.Int64("retry_count", count))
		if nackErr := msg.Nack(false, true); nackErr != nil {
			log.Error("Failed to nack message", zap.NamedError("nack_error", nackErr))
		}
		return
	}

	dead := DeadLetter{
		RoutingKey: c.routingKey,
		Body:       msg.Body,
		MessageID:  msg.MessageId,
		TraceID:    trace.FromContext(ctx),
		Error:      err.Error(),
		ErrorType:  errType,
		RetryCount: count,
		FailedAt:   time.Now(),
	}
	if dlqErr := c.dlq.PublishToDLQ(dead); dlqErr != nil {
		log.Error("Failed to publish to DLQ, requeue", zap.NamedError("dlq_error", dlqErr))
		if nackErr := msg.Nack(false, true); nackErr != nil {
			log.Error("Failed to nack message", zap.NamedError("nack_error", nackErr))
		}
		return
	}

	metrics.IncrementDeadLetter(c.routingKey, errType)
	log.Error("Handler error, message routed to DLQ", zap.Int64("retry_count", count))
	if c.retries != nil && msg.MessageId != "" {
		_ = c.retries.Reset(ctx, util.FormatRetryKey(c.routingKey, msg.MessageId))
	}
	if ackErr := msg.Ack(false); ackErr != nil {
		log.Error("Failed to ack message", zap.NamedError("ack_error", ackErr))
	}
}
