package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rag133/Jeevan-saathi-sub002/pkg/outbox"
)

const (
	// defaultReplayLimit 是 replay-failed 未指定 limit 时的上限
	defaultReplayLimit = 100
	defaultRetention   = 7 * 24 * time.Hour
)

// OutboxAdmin 由 *outbox.ReplayService 实现
type OutboxAdmin interface {
	ReplayEvent(ctx context.Context, eventID int64) error
	ReplayFailedEvents(ctx context.Context, limit int) (int, error)
	PurgeSent(ctx context.Context, olderThan time.Duration) (int64, error)
}

type AdminHandler struct {
	replayer OutboxAdmin
	logger   *zap.Logger
}

func NewAdminHandler(replayer OutboxAdmin, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		replayer: replayer,
		logger:   logger,
	}
}

// ReplayOutboxEvent 重放指定的 outbox 事件
// POST /admin/outbox/replay?id=xxx
func (h *AdminHandler) ReplayOutboxEvent(c *gin.Context) {
	idStr := c.Query("id")
	if idStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing id parameter"})
		return
	}

	eventID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || eventID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id parameter"})
		return
	}

	if err := h.replayer.ReplayEvent(c.Request.Context(), eventID); err != nil {
		if errors.Is(err, outbox.ErrEventNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		h.logger.Error("Failed to replay event",
			zap.Int64("event_id", eventID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to replay event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "replayed",
		"event_id": eventID,
	})
}

// ReplayFailedEvents 重放所有失败的事件
// POST /admin/outbox/replay-failed?limit=100
func (h *AdminHandler) ReplayFailedEvents(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultReplayLimit)))
	if err != nil || limit <= 0 {
		limit = defaultReplayLimit
	}

	replayed, err := h.replayer.ReplayFailedEvents(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to replay failed events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to replay failed events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "completed",
		"success_count": replayed,
		"limit":         limit,
	})
}

// PurgeSentEvents 删除早于 older_than 的已发送事件
// POST /admin/outbox/purge?older_than=168h
func (h *AdminHandler) PurgeSentEvents(c *gin.Context) {
	olderThan := defaultRetention
	if raw := c.Query("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid older_than parameter"})
			return
		}
		olderThan = d
	}

	deleted, err := h.replayer.PurgeSent(c.Request.Context(), olderThan)
	if err != nil {
		h.logger.Error("Failed to purge outbox", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to purge outbox"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "purged",
		"deleted":    deleted,
		"older_than": olderThan.String(),
	})
}
