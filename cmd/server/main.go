package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shototoy/qr-attendance-api/internal/config"
	"github.com/shototoy/qr-attendance-api/internal/infra"
	"github.com/shototoy/qr-attendance-api/internal/router"
	"github.com/shototoy/qr-attendance-api/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// @title QR Attendance API
// @version 1.0
// @description Staff check-in, check-out and break tracking.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: pretty in dev, JSON in production
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := infra.NewDatabase(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("failed to connect to database")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	photos, err := infra.NewPhotoStore(cfg.PhotoStoragePath, cfg.PhotoMaxSizePx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare photo storage")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Async jobs ───────────────────────────────────────────────────────────
	mailer := infra.NewMailer(cfg)
	if !mailer.Enabled() {
		log.Warn().Msg("SMTP_HOST not set, email notifications are disabled")
	}
	dispatcher := worker.NewDispatcher(rdb)

	app := router.New(cfg, db, rdb, router.Deps{Events: dispatcher, Photos: photos})

	pool := worker.StartWorkerPool(ctx, rdb, cfg.WorkerPoolSize, map[string]worker.Handler{
		worker.QueueAttendance: worker.NewAttendanceWorker(dispatcher, cfg.NotifyEmail),
		worker.QueueEmail:      worker.NewEmailWorker(mailer, infra.NewCircuitBreaker(infra.DefaultBreakerConfig())),
	})

	if cfg.StaleShiftHours > 0 {
		worker.StartStaleShiftMonitor(ctx, worker.StaleShiftConfig{
			Source:    app.Attendance,
			OlderThan: time.Duration(cfg.StaleShiftHours) * time.Hour,
		})
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      app.Engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Str("timezone", cfg.Timezone).Msgf("attendance API listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	cancel()
	pool.Wait()
	_ = rdb.Close()
	log.Info().Msg("server exited")
}
