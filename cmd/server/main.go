package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"giftpos/internal/config"
	"giftpos/internal/infra"
	"giftpos/internal/repository"
	"giftpos/internal/router"
	"giftpos/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: pretty in development, JSON in production
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("terminal", cfg.TerminalID).Logger()

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := infra.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	cb := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{Name: "cloud"})
	cloud := infra.NewCloudClient(cfg.CloudURL, cfg.CloudAPIKey, cfg.CloudTimeout, cb)
	if !cloud.Configured() {
		log.Warn().Msg("CLOUD_URL not set, running offline")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Push workers reload the order at processing time and upsert it to the
	// cloud; exhausted jobs land in the DLQ.
	worker.StartWorkerPool(ctx, rdb, cfg.WorkerPoolSize, map[string]worker.Processor{
		worker.JobOrderPush: worker.NewPushWorker(repository.NewOrderRepository(db), cloud, cfg.PushMaxAttempts),
	})

	app, err := router.New(ctx, cfg, db, rdb, cloud)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build router")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      app.Engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // notifications are streamed
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Str("sequence", cfg.FulfillmentSequence).Msgf("giftpos backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	app.Reconciler.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
