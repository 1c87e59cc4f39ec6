package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "github.com/rag133/Jeevan-saathi-sub002/contracts/mq"
	"github.com/rag133/Jeevan-saathi-sub002/internal/repository"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/logger"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/trace"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/util"
)

const logDedupName = "habit_log_stats"

// HabitLogChangedHandler 在打卡写入或删除后重新计算统计快照
type HabitLogChangedHandler struct {
	refresher StatsRefresher
	deduper   Deduper
	logger    *zap.Logger
}

func NewHabitLogChangedHandler(refresher StatsRefresher, deduper Deduper, logger *zap.Logger) *HabitLogChangedHandler {
	return &HabitLogChangedHandler{
		refresher: refresher,
		deduper:   deduper,
		logger:    logger,
	}
}

func (h *HabitLogChangedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.HabitLogChangedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal habit log payload",
			zap.Error(err),
			zap.String("raw_payload", string(raw)),
		)
		return fmt.Errorf("decode habit log event: %w", err)
	}
	if trace.FromContext(ctx) == "" && p.TraceID != "" {
		ctx = trace.WithContext(ctx, p.TraceID)
	}
	log := logger.WithTrace(ctx, h.logger).With(
		zap.String("event_id", p.EventID),
		zap.String("habit_id", p.HabitID),
		zap.String("date", p.Date),
		zap.String("action", p.Action),
	)

	if p.HabitID == "" {
		return util.Permanent("invalid_event", fmt.Errorf("habit log event: missing habit_id"))
	}

	if h.deduper != nil && p.EventID != "" && !h.deduper.AcquireOnce(ctx, logDedupName, p.EventID) {
		log.Info("Skipped duplicated habit log event")
		return nil
	}

	stats, err := h.refresher.RefreshHabit(ctx, p.HabitID)
	if err != nil {
		if h.deduper != nil && p.EventID != "" {
			h.deduper.Release(ctx, logDedupName, p.EventID)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return util.Permanent("habit_not_found", err)
		}
		log.Error("Failed to refresh habit stats", zap.Error(err))
		return err
	}

	log.Info("Habit stats refreshed",
		zap.Int("current_streak", stats.CurrentStreak),
		zap.Int("best_streak", stats.BestStreak),
		zap.Float64("completion_rate", stats.CompletionRate),
	)
	return nil
}
