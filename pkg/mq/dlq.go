package mq

import (
	"strconv"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const DLQExchangeName = "events.dlq"

// DeadLetter 描述一条被放弃的消息，字段写入 DLQ 消息头
type DeadLetter struct {
	RoutingKey string
	Body       []byte
	MessageID  string
	TraceID    string
	Error      string
	ErrorType  string
	RetryCount int64
	FailedAt   time.Time
}

func (d DeadLetter) headers() amqp091.Table {
	h := amqp091.Table{
		"x-original-error": d.Error,
		"x-error-type":     d.ErrorType,
		"x-retry-count":    strconv.FormatInt(d.RetryCount, 10),
		"x-failed-at":      d.FailedAt.UTC().Format(time.RFC3339),
	}
	if d.TraceID != "" {
		h[TraceIDHeader] = d.TraceID
	}
	return h
}

func DeclareDLQExchange(ch *amqp091.Channel) error {
	return declareTopic(ch, DLQExchangeName)
}

// DLQQueueName 返回 routingKey 对应的死信队列名
func DLQQueueName(routingKey string) string {
	return routingKey + ".dlq"
}

// DeclareDLQQueue declares <routingKey>.dlq bound to the dead letter exchange.
func DeclareDLQQueue(ch *amqp091.Channel, routingKey string) (amqp091.Queue, error) {
	return declareBoundQueue(ch, DLQQueueName(routingKey), routingKey, DLQExchangeName)
}

// PublishToDLQ publishes a dead letter under its original routing key.
func (p *Publisher) PublishToDLQ(d DeadLetter) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.Publish(
		DLQExchangeName,
		d.RoutingKey,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         d.Body,
			DeliveryMode: amqp091.Persistent,
			MessageId:    d.MessageID,
			Timestamp:    d.FailedAt,
			Headers:      d.headers(),
		},
	)
}
