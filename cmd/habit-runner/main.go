package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rag133/Jeevan-saathi-sub002/internal/cache"
	"github.com/rag133/Jeevan-saathi-sub002/internal/config"
	"github.com/rag133/Jeevan-saathi-sub002/internal/httpserver"
	"github.com/rag133/Jeevan-saathi-sub002/internal/repository"
	"github.com/rag133/Jeevan-saathi-sub002/internal/service"
	pkgconfig "github.com/rag133/Jeevan-saathi-sub002/pkg/config"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/db"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/logger"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/mq"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/otel"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/outbox"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/redis"
)

const serviceName = "habit-runner"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log, serviceName)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	loc := cfg.Habit.Location()
	log.Info("Starting habit-runner...",
		zap.String("db_host", cfg.DB.Host),
		zap.String("mq_url", cfg.MQ.URL),
		zap.String("timezone", loc.String()),
		zap.Int("due_check_hour", cfg.Habit.DueCheckHour),
	)

	shutdownTracing, err := otel.Init(cfg.OTel, serviceName, log)
	if err != nil {
		log.Fatal("Failed to init tracing", zap.Error(err))
	}
	defer shutdownTracing()

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	rdb := redis.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	// MQ Publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Repositories
	outboxRepo := outbox.NewRepository(dbConn)
	habitRepo := repository.NewHabitRepository(dbConn, log)
	logRepo := repository.NewHabitLogRepository(dbConn, outboxRepo, log)
	statsRepo := repository.NewStatsRepository(dbConn, log)
	statsCache := cache.NewStatsCache(rdb, cache.NewBreaker(log), cfg.Habit.StatsCacheTTL, log)

	orchestrator := service.NewOrchestrator(habitRepo, logRepo, statsRepo, statsCache, publisher, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Outbox Dispatcher：把 habit.log.* 事件投递到 MQ
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, log).
		WithInterval(cfg.Habit.OutboxPollInterval)
	go dispatcher.Start(ctx)

	// Daily job - runs at due_check_hour in the habit timezone
	go func() {
		for {
			next := service.NextRun(time.Now(), cfg.Habit.DueCheckHour, loc)
			log.Info("Next daily habit run scheduled", zap.Time("at", next))

			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				log.Info("Daily habit job stopped")
				return
			case <-timer.C:
			}
			runDaily(ctx, orchestrator, service.Today(time.Now(), loc), log)
			purgeOutbox(ctx, outboxRepo, cfg.Habit.OutboxRetention, log)
		}
	}()

	// HTTP Server (for health checks)
	port := pkgconfig.GetEnv("RUNNER_PORT", "8084")
	router := httpserver.NewHealthRouter(serviceName, log, map[string]httpserver.ReadinessCheck{
		"db": dbConn.Ping,
		"mq": func(context.Context) error {
			if !publisher.IsConnected() {
				return errors.New("publisher disconnected")
			}
			return nil
		},
	})
	srv := router.Server(port)

	go func() {
		log.Info("HTTP server starting", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("habit-runner is fully initialized and running")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down habit-runner gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("habit-runner shutdown complete")
}

// runDaily 发布当天的到期提醒并刷新所有习惯的统计快照
func runDaily(ctx context.Context, o *service.Orchestrator, date time.Time, log *zap.Logger) {
	start := time.Now()
	published, err := o.PublishDueHabits(ctx, date)
	if err != nil {
		log.Error("Due habit publication failed", zap.Error(err))
	}
	refreshed, err := o.RefreshStats(ctx, date)
	if err != nil {
		log.Error("Stats refresh failed", zap.Error(err))
	}
	log.Info("Daily habit run completed",
		zap.Time("date", date),
		zap.Int("published", published),
		zap.Int("refreshed", refreshed),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// purgeOutbox 清理保留期之前已发送的 outbox 事件
func purgeOutbox(ctx context.Context, repo *outbox.Repository, retention time.Duration, log *zap.Logger) {
	n, err := repo.PurgeSent(ctx, time.Now().Add(-retention))
	if err != nil {
		log.Error("Outbox purge failed", zap.Error(err))
		return
	}
	log.Info("Outbox purged", zap.Int64("deleted", n), zap.Duration("retention", retention))
}
