package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Aggregate 标识事件所属的业务对象
type Aggregate struct {
	Type string
	ID   string
}

// NewEvent 把 payload 编码为一个 pending 事件
func NewEvent(agg Aggregate, routingKey string, payload any) (*Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", routingKey, err)
	}
	e := &Event{
		AggregateType: agg.Type,
		RoutingKey:    routingKey,
		Payload:       body,
		Status:        StatusPending,
	}
	if agg.ID != "" {
		id := agg.ID
		e.AggregateID = &id
	}
	return e, nil
}

// Stage 在业务事务 tx 中写入事件，随事务一起提交或回滚
func (r *Repository) Stage(ctx context.Context, tx pgx.Tx, agg Aggregate, routingKey string, payload any) (*Event, error) {
	e, err := NewEvent(agg, routingKey, payload)
	if err != nil {
		return nil, err
	}
	if err := r.InsertEvent(ctx, tx, e); err != nil {
		return nil, err
	}
	return e, nil
}
