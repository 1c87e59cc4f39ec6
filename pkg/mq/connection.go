package mq

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "events"

	// TraceIDHeader 消息头中的 trace_id
	TraceIDHeader = "x-trace-id"
)

// 启动时 RabbitMQ 可能还没就绪，按指数退避重试
var (
	dialAttempts = 5
	dialBackoff  = 500 * time.Millisecond
	dial         = amqp091.Dial
)

// NewConnection dials RabbitMQ, retrying with exponential backoff.
func NewConnection(url string) (*amqp091.Connection, error) {
	var lastErr error
	backoff := dialBackoff
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		conn, err := dial(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if attempt < dialAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", dialAttempts, lastErr)
}

// DeclareExchange declares the durable topic exchange all habit events go through.
func DeclareExchange(ch *amqp091.Channel) error {
	return declareTopic(ch, ExchangeName)
}

func declareTopic(ch *amqp091.Channel, name string) error {
	return ch.ExchangeDeclare(name, "topic", true, false, false, false, nil)
}

// declareBoundQueue 声明持久队列并绑定到 exchange 的 routingKey
func declareBoundQueue(ch *amqp091.Channel, queue, routingKey, exchange string) (amqp091.Queue, error) {
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to bind queue %s to %s: %w", queue, exchange, err)
	}
	return q, nil
}
