package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	dbcontracts "github.com/rag133/Jeevan-saathi-sub002/contracts/db"
	"github.com/rag133/Jeevan-saathi-sub002/internal/repository"
	"github.com/rag133/Jeevan-saathi-sub002/internal/service"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/habit"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/logger"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/outbox"
)

// defaultProgressDays 是未指定 from 时 progress 返回的天数
const defaultProgressDays = 30

// HabitService 由 *service.HabitService 实现
type HabitService interface {
	Today() time.Time
	ParseDate(raw string) (time.Time, error)
	CreateHabit(ctx context.Context, userID int, title string, h habit.Habit) (*dbcontracts.HabitRecord, error)
	ListHabits(ctx context.Context, userID int) ([]dbcontracts.HabitRecord, error)
	DeleteHabit(ctx context.Context, userID int, habitID string) error
	RecordLog(ctx context.Context, userID int, log habit.HabitLog) (*habit.HabitLog, habit.Classification, error)
	DeleteLog(ctx context.Context, userID int, habitID string, date string) error
	Classify(ctx context.Context, userID int, habitID string, date time.Time) (habit.Classification, error)
	Stats(ctx context.Context, userID int, habitID string, ref time.Time) (habit.Stats, error)
	LatestSnapshot(ctx context.Context, userID int, habitID string) (*dbcontracts.StatsSnapshot, error)
	DueToday(ctx context.Context, userID int, date time.Time) ([]service.DueHabit, error)
	Progress(ctx context.Context, userID int, habitID string, from, to time.Time) ([]habit.DayProgress, error)
}

type HabitHandler struct {
	svc    HabitService
	logger *zap.Logger
}

func NewHabitHandler(svc HabitService, logger *zap.Logger) *HabitHandler {
	RegisterValidators()
	return &HabitHandler{svc: svc, logger: logger}
}

// getUserID 读取 AuthMiddleware 写入的 user_id
func getUserID(c *gin.Context) (int, bool) {
	userID, ok := c.Get("user_id")
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return 0, false
	}
	uid, ok := userID.(int)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid user_id"})
		return 0, false
	}
	return uid, true
}

// CreateHabit handles POST /habits
func (h *HabitHandler) CreateHabit(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	var req createHabitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	rec, err := h.svc.CreateHabit(c.Request.Context(), userID, req.Title, req.toHabit())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newHabitResponse(*rec))
}

// ListHabits handles GET /habits
func (h *HabitHandler) ListHabits(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	records, err := h.svc.ListHabits(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	habits := make([]habitResponse, 0, len(records))
	for _, rec := range records {
		habits = append(habits, newHabitResponse(rec))
	}
	c.JSON(http.StatusOK, gin.H{"habits": habits, "count": len(habits)})
}

// DeleteHabit handles DELETE /habits/:id
func (h *HabitHandler) DeleteHabit(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteHabit(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RecordLog handles PUT /habits/:id/logs/:date
func (h *HabitHandler) RecordLog(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	var req logRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
			return
		}
	}

	log, classification, err := h.svc.RecordLog(c.Request.Context(), userID, habit.HabitLog{
		HabitID:                 c.Param("id"),
		Date:                    c.Param("date"),
		Value:                   req.Value,
		CompletedChecklistItems: req.CompletedChecklistItems,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"log": log, "classification": classification})
}

// DeleteLog handles DELETE /habits/:id/logs/:date
func (h *HabitHandler) DeleteLog(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteLog(c.Request.Context(), userID, c.Param("id"), c.Param("date")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetStatus handles GET /habits/:id/status?date=YYYY-MM-DD
func (h *HabitHandler) GetStatus(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	date, err := h.svc.ParseDate(c.Query("date"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	classification, err := h.svc.Classify(c.Request.Context(), userID, c.Param("id"), date)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"habit_id":       c.Param("id"),
		"date":           habit.DateKey(date),
		"classification": classification,
	})
}

// GetStats handles GET /habits/:id/stats?date=YYYY-MM-DD
func (h *HabitHandler) GetStats(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	ref, err := h.svc.ParseDate(c.Query("date"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	stats, err := h.svc.Stats(c.Request.Context(), userID, c.Param("id"), ref)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"habit_id":       c.Param("id"),
		"reference_date": habit.DateKey(ref),
		"stats":          stats,
	})
}

// GetSnapshot handles GET /habits/:id/stats/snapshot
func (h *HabitHandler) GetSnapshot(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	snap, err := h.svc.LatestSnapshot(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GetProgress handles GET /habits/:id/progress?from=&to=
func (h *HabitHandler) GetProgress(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	to, err := h.svc.ParseDate(c.Query("to"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	from := to.AddDate(0, 0, -(defaultProgressDays - 1))
	if raw := c.Query("from"); raw != "" {
		if from, err = h.svc.ParseDate(raw); err != nil {
			h.writeError(c, err)
			return
		}
	}

	days, err := h.svc.Progress(c.Request.Context(), userID, c.Param("id"), from, to)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"habit_id": c.Param("id"),
		"from":     habit.DateKey(from),
		"to":       habit.DateKey(to),
		"days":     days,
	})
}

// GetDue handles GET /habits/due?date=YYYY-MM-DD
func (h *HabitHandler) GetDue(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	date, err := h.svc.ParseDate(c.Query("date"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	due, err := h.svc.DueToday(c.Request.Context(), userID, date)
	if err != nil {
		h.writeError(c, err)
		return
	}
	habits := make([]dueResponse, 0, len(due))
	for _, d := range due {
		habits = append(habits, newDueResponse(d))
	}
	c.JSON(http.StatusOK, gin.H{"date": habit.DateKey(date), "habits": habits})
}

// writeError 把领域错误映射为 HTTP 状态码
func (h *HabitHandler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.WithTrace(c.Request.Context(), h.logger).Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, outbox.ErrEventNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidHabit),
		errors.Is(err, service.ErrInvalidDate),
		errors.Is(err, service.ErrFutureDate),
		errors.Is(err, service.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrHabitExists), errors.Is(err, service.ErrHabitInactive):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
