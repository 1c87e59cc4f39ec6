package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "github.com/rag133/Jeevan-saathi-sub002/contracts/mq"
	"github.com/rag133/Jeevan-saathi-sub002/internal/service"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/logger"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/trace"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/util"
)

const createdDedupName = "habit_created"

// HabitCreatedHandler 把上游发布的 habit.created 事件写入习惯表
type HabitCreatedHandler struct {
	creator HabitCreator
	deduper Deduper
	logger  *zap.Logger
}

func NewHabitCreatedHandler(creator HabitCreator, deduper Deduper, logger *zap.Logger) *HabitCreatedHandler {
	return &HabitCreatedHandler{
		creator: creator,
		deduper: deduper,
		logger:  logger,
	}
}

// Handle is idempotent: a redelivered event either hits the dedup key or
// collides on the habit id, and both are acked.
func (h *HabitCreatedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.HabitCreatedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal habit created payload",
			zap.Error(err),
			zap.String("raw_payload", string(raw)),
		)
		return fmt.Errorf("decode habit.created: %w", err)
	}
	if trace.FromContext(ctx) == "" && p.TraceID != "" {
		ctx = trace.WithContext(ctx, p.TraceID)
	}
	log := logger.WithTrace(ctx, h.logger).With(
		zap.String("event_id", p.EventID),
		zap.String("habit_id", p.Habit.ID),
		zap.Int("user_id", p.UserID),
	)

	if p.UserID <= 0 {
		return util.Permanent("invalid_habit", fmt.Errorf("habit.created: missing user_id"))
	}
	eventID := p.EventID
	if eventID == "" {
		eventID = p.Habit.ID
	}
	if eventID == "" {
		return util.Permanent("invalid_habit", fmt.Errorf("habit.created: missing event_id and habit id"))
	}

	if h.deduper != nil && !h.deduper.AcquireOnce(ctx, createdDedupName, eventID) {
		log.Info("Skipped duplicated habit.created event")
		return nil
	}

	rec, err := h.creator.CreateHabit(ctx, p.UserID, p.Title, p.Habit)
	switch {
	case err == nil:
		log.Info("Habit created from event", zap.String("habit_id", rec.ID))
		return nil
	case errors.Is(err, service.ErrHabitExists):
		log.Debug("Habit already exists, skipping")
		return nil
	case errors.Is(err, service.ErrInvalidHabit):
		h.release(ctx, eventID)
		return util.Permanent("invalid_habit", err)
	default:
		h.release(ctx, eventID)
		log.Error("Failed to create habit", zap.Error(err))
		return err
	}
}

func (h *HabitCreatedHandler) release(ctx context.Context, eventID string) {
	if h.deduper != nil {
		h.deduper.Release(ctx, createdDedupName, eventID)
	}
}
