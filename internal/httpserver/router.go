package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rag133/Jeevan-saathi-sub002/internal/handler"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/otel"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/rbac"
)

// ReadinessCheck 返回 nil 表示依赖可用
type ReadinessCheck func(ctx context.Context) error

type Options struct {
	// ServiceName 作为 HTTP span 的服务名
	ServiceName string
	JWTSecret   string
	RateLimit   float64
	RateBurst   int
	Readiness   map[string]ReadinessCheck
	Logger      *zap.Logger
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(habitHandler *handler.HabitHandler, adminHandler *handler.AdminHandler, opts Options) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := newEngine(opts.ServiceName, logger, opts.Readiness)

	// Protected
	api := r.Group("/")
	api.Use(AuthMiddleware(opts.JWTSecret))
	if opts.RateLimit > 0 {
		api.Use(NewRateLimiter(opts.RateLimit, opts.RateBurst).Middleware())
	}

	habits := api.Group("/habits")
	{
		habits.POST("", RequirePermission(rbac.PermissionCreateHabit), habitHandler.CreateHabit)
		habits.GET("", RequirePermission(rbac.PermissionReadHabit), habitHandler.ListHabits)
		habits.GET("/due", RequirePermission(rbac.PermissionReadHabit), habitHandler.GetDue)
		habits.DELETE("/:id", RequirePermission(rbac.PermissionDeleteHabit), habitHandler.DeleteHabit)

		habits.PUT("/:id/logs/:date", RequirePermission(rbac.PermissionLogHabit), habitHandler.RecordLog)
		habits.DELETE("/:id/logs/:date", RequirePermission(rbac.PermissionLogHabit), habitHandler.DeleteLog)

		habits.GET("/:id/status", RequirePermission(rbac.PermissionReadHabit), habitHandler.GetStatus)
		habits.GET("/:id/stats", RequirePermission(rbac.PermissionReadHabit), habitHandler.GetStats)
		habits.GET("/:id/stats/snapshot", RequirePermission(rbac.PermissionReadHabit), habitHandler.GetSnapshot)
		habits.GET("/:id/progress", RequirePermission(rbac.PermissionReadHabit), habitHandler.GetProgress)
	}

	if adminHandler != nil {
		admin := api.Group("/admin", RequirePermission(rbac.PermissionReplayOutbox))
		admin.POST("/outbox/replay", adminHandler.ReplayOutboxEvent)
		admin.POST("/outbox/replay-failed", adminHandler.ReplayFailedEvents)
		admin.POST("/outbox/purge", adminHandler.PurgeSentEvents)
	}

	return &Router{Engine: r}
}

// NewHealthRouter 只提供健康检查和指标，供后台进程使用
func NewHealthRouter(service string, logger *zap.Logger, readiness map[string]ReadinessCheck) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{Engine: newEngine(service, logger, readiness)}
}

func newEngine(service string, logger *zap.Logger, readiness map[string]ReadinessCheck) *gin.Engine {
	if service == "" {
		service = "habit-api"
	}
	r := gin.New()
	r.Use(gin.Recovery(), otel.GinMiddleware(service), TraceMiddleware(), RequestLogger(logger))

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/readyz", readyHandler(readiness))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func readyHandler(checks map[string]ReadinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		failed := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "errors": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

// Server 返回一个可优雅关闭的 http.Server
func (r *Router) Server(port string) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           r.Engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
