package outbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ReplayStore 是重放需要的 outbox 操作
type ReplayStore interface {
	GetFailedEvents(ctx context.Context, limit int) ([]*Event, error)
	ResetEvent(ctx context.Context, eventID int64) error
	PurgeSent(ctx context.Context, before time.Time) (int64, error)
}

// ReplayService 把 failed 事件放回 pending 队列
type ReplayService struct {
	store  ReplayStore
	logger *zap.Logger
}

func NewReplayService(store ReplayStore, logger *zap.Logger) *ReplayService {
	return &ReplayService{store: store, logger: logger}
}

func (s *ReplayService) ReplayEvent(ctx context.Context, eventID int64) error {
	if err := s.store.ResetEvent(ctx, eventID); err != nil {
		return fmt.Errorf("failed to replay event: %w", err)
	}
	s.logger.Info("Outbox event queued for replay", zap.Int64("event_id", eventID))
	return nil
}

// ReplayFailedEvents 重放最多 limit 个失败事件，返回成功数量
func (s *ReplayService) ReplayFailedEvents(ctx context.Context, limit int) (int, error) {
	events, err := s.store.GetFailedEvents(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to get failed events: %w", err)
	}

	replayed := 0
	for _, event := range events {
		if err := s.ReplayEvent(ctx, event.ID); err != nil {
			s.logger.Warn("Skip outbox event replay",
				zap.Int64("event_id", event.ID),
				zap.Error(err),
			)
			continue
		}
		replayed++
	}
	return replayed, nil
}

// PurgeSent 删除 olderThan 之前已发送的事件
func (s *ReplayService) PurgeSent(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := s.store.PurgeSent(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	s.logger.Info("Sent outbox events purged", zap.Int64("deleted", n), zap.Duration("older_than", olderThan))
	return n, nil
}
