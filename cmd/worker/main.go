package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/practice-api/internal/config"
	"github.com/jwalitptl/practice-api/internal/handler/health"
	"github.com/jwalitptl/practice-api/internal/middleware"
	"github.com/jwalitptl/practice-api/internal/repository/postgres"
	"github.com/jwalitptl/practice-api/internal/service/audit"
	"github.com/jwalitptl/practice-api/internal/worker"
	"github.com/jwalitptl/practice-api/pkg/logger"
	"github.com/jwalitptl/practice-api/pkg/messaging/redis"
	"github.com/jwalitptl/practice-api/pkg/metrics"
	"github.com/jwalitptl/practice-api/pkg/notify"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Setup(cfg.Log.Level, cfg.Log.Format).With("worker")
	m := metrics.NewMetrics(cfg.Server.MetricsPrefix, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	repos := postgres.NewRepositories(db, m)

	broker, err := redis.NewRedisBroker(ctx, redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, log.Zerolog(), m)
	if err != nil {
		log.Fatal(err, "failed to create Redis broker")
	}
	defer broker.Close()

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Notify.Enabled {
		notifier = notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.Notify.SMTPHost,
			Port:     cfg.Notify.SMTPPort,
			Username: cfg.Notify.Username,
			Password: cfg.Notify.Password,
			From:     cfg.Notify.From,
			To:       cfg.Notify.To,
		})
	}

	processor, err := worker.NewOutboxProcessor(repos.Outbox, broker, notifier, worker.OutboxProcessorConfig{
		BatchSize:    cfg.Outbox.BatchSize,
		PollInterval: cfg.Outbox.PollInterval,
		Channel:      cfg.Redis.Channel,
	}, log, m)
	if err != nil {
		log.Fatal(err, "failed to create outbox processor")
	}

	cleanup := worker.NewAuditCleanupWorker(
		audit.NewService(repos.Audit),
		cfg.Audit.RetentionDays,
		cfg.Audit.CleanupInterval,
		log,
		m,
	)

	srv := healthServer(cfg.Server.HealthPort, map[string]health.Check{
		"database": db.PingContext,
	})
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err, "health check server failed")
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("shutting down")
	cancel()
	wg.Wait()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "health server forced to shutdown")
	}
}

func healthServer(port int, checks map[string]health.Check) *http.Server {
	engine := gin.New()
	engine.Use(middleware.Recovery())
	health.NewHandler(checks, nil).RegisterRoutes(engine.Group(""))

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
