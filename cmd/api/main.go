package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/jwalitptl/practice-api/internal/app"
	"github.com/jwalitptl/practice-api/internal/config"
	"github.com/jwalitptl/practice-api/internal/handler/health"
	"github.com/jwalitptl/practice-api/internal/middleware"
	"github.com/jwalitptl/practice-api/internal/repository/postgres"
	"github.com/jwalitptl/practice-api/internal/router"
	"github.com/jwalitptl/practice-api/internal/service/appointment"
	"github.com/jwalitptl/practice-api/pkg/auth"
	"github.com/jwalitptl/practice-api/pkg/logger"
	"github.com/jwalitptl/practice-api/pkg/metrics"
)

const maxBodyBytes = 1 << 20

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.Setup(cfg.Log.Level, cfg.Log.Format).With("api")
	m := metrics.NewMetrics(cfg.Server.MetricsPrefix, nil)

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	loc, err := cfg.Scheduling.Location()
	if err != nil {
		log.Fatal(err, "invalid scheduling timezone")
	}

	a, err := app.New(postgres.NewRepositories(db, m), app.Options{
		PermissionSource: cfg.Permissions.Source,
		Location:         loc,
		Appointments: appointment.Options{
			MinDuration: cfg.Scheduling.MinDuration,
			MaxDuration: cfg.Scheduling.MaxDuration,
		},
		Validator: auth.NewValidator(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience),
	}, m)
	if err != nil {
		log.Fatal(err, "failed to build services")
	}

	healthHandler := health.NewHandler(map[string]health.Check{
		"database": db.PingContext,
	}, nil)

	cors := middleware.DefaultCORSConfig()
	if len(cfg.CORS.AllowedOrigins) > 0 {
		cors.AllowOrigins = cfg.CORS.AllowedOrigins
	}

	r, err := a.Router(healthHandler, m, router.RouterConfig{
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimit: middleware.RateLimiterConfig{
			Rate:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
			Burst: cfg.RateLimit.Burst,
			TTL:   cfg.RateLimit.ClientTTL,
		},
		CORSConfig:     cors,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   maxBodyBytes,
	})
	if err != nil {
		log.Fatal(err, "failed to build router")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err, "failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "server forced to shutdown")
	}

	log.Info("server exited")
}
