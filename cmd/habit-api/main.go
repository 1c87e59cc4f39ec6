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

	mqcontracts "github.com/rag133/Jeevan-saathi-sub002/contracts/mq"
	"github.com/rag133/Jeevan-saathi-sub002/internal/cache"
	"github.com/rag133/Jeevan-saathi-sub002/internal/config"
	"github.com/rag133/Jeevan-saathi-sub002/internal/handler"
	"github.com/rag133/Jeevan-saathi-sub002/internal/httpserver"
	"github.com/rag133/Jeevan-saathi-sub002/internal/mqhandler"
	"github.com/rag133/Jeevan-saathi-sub002/internal/repository"
	"github.com/rag133/Jeevan-saathi-sub002/internal/service"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/db"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/logger"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/mq"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/otel"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/outbox"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/redis"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/util"
)

const (
	serviceName = "habit-api"
	dedupTTL    = 24 * time.Hour
	retryTTL    = time.Hour
)

type consumerBinding struct {
	queue      string
	routingKey string
	handle     mq.MessageHandler
}

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

	log.Info("Starting habit-api...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("mq_url", cfg.MQ.URL),
		zap.String("timezone", cfg.Habit.Location().String()),
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
	log.Info("Database connection established successfully")

	// Redis
	rdb := redis.NewRedisClient(cfg.Redis)
	defer rdb.Close()
	if err := redis.Ping(context.Background(), rdb); err != nil {
		// 缓存和去重都可降级，Redis 不可用时继续启动
		log.Warn("Redis unavailable, continuing without cache", zap.Error(err))
	}

	// MQ Publisher（死信队列）
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
	habitService := service.NewHabitService(habitRepo, logRepo, statsRepo, statsCache, time.Now, cfg.Habit.Location(), log)

	// MQ consumers
	deduper := util.NewDeduper(rdb, dedupTTL, log)
	retries := util.NewRetryCounter(rdb, retryTTL)
	createdHandler := mqhandler.NewHabitCreatedHandler(habitService, deduper, log)
	logChangedHandler := mqhandler.NewHabitLogChangedHandler(habitService, deduper, log)

	bindings := []consumerBinding{
		{"habit.created.q", mqcontracts.RoutingHabitCreated, createdHandler.Handle},
		{"habit.log.recorded.q", mqcontracts.RoutingHabitLogRecorded, logChangedHandler.Handle},
		{"habit.log.deleted.q", mqcontracts.RoutingHabitLogDeleted, logChangedHandler.Handle},
	}
	consumers := make([]*mq.Consumer, 0, len(bindings))
	for _, b := range bindings {
		consumer, err := mq.NewConsumer(cfg.MQ.URL, b.queue, b.routingKey, log)
		if err != nil {
			log.Fatal("Failed to init consumer", zap.String("queue", b.queue), zap.Error(err))
		}
		defer consumer.Close()

		consumer.SetHandler(b.handle)
		consumer.WithDeadLetter(publisher, retries, cfg.MQ.MaxRetries)
		if err := consumer.DeclareDeadLetterQueue(); err != nil {
			log.Fatal("Failed to declare DLQ", zap.String("queue", b.queue), zap.Error(err))
		}

		go func(c *mq.Consumer, queue string) {
			log.Info("Starting consumer...", zap.String("queue", queue))
			if err := c.StartConsuming(); err != nil {
				log.Fatal("Consumer failed", zap.String("queue", queue), zap.Error(err))
			}
		}(consumer, b.queue)
		consumers = append(consumers, consumer)
	}

	// HTTP Server
	habitHandler := handler.NewHabitHandler(habitService, log)
	adminHandler := handler.NewAdminHandler(outbox.NewReplayService(outboxRepo, log), log)
	router := httpserver.NewRouter(habitHandler, adminHandler, httpserver.Options{
		ServiceName: serviceName,
		JWTSecret:   cfg.JWT.Secret,
		RateLimit:   cfg.Server.RateLimit,
		RateBurst:   cfg.Server.RateBurst,
		Logger:      log,
		Readiness: map[string]httpserver.ReadinessCheck{
			"db": dbConn.Ping,
			"mq": func(context.Context) error {
				for _, c := range consumers {
					if !c.IsConnected() {
						return errors.New("consumer disconnected")
					}
				}
				if !publisher.IsConnected() {
					return errors.New("publisher disconnected")
				}
				return nil
			},
		},
	})
	srv := router.Server(cfg.Server.Port)

	go func() {
		log.Info("HTTP server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("habit-api is fully initialized and running",
		zap.String("http_port", cfg.Server.Port),
		zap.Int("consumers", len(consumers)),
	)

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down habit-api gracefully...")

	log.Info("Stopping MQ consumers...")
	for _, c := range consumers {
		c.Stop()
	}

	log.Info("Shutting down HTTP server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("habit-api shutdown complete")
}
