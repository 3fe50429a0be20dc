package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ventry-backend/bootstrap"
	"ventry-backend/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("app create")
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error().Err(err).Msg("close")
		}
	}()

	if app.Rdb != nil {
		if err := app.Rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("Redis connection failed")
		}
		log.Info().Msg("Redis connected")
	}
	st, err := app.Ledger.Status(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("ledger node unreachable at startup")
	} else {
		log.Info().Uint64("last_round", st.LastRound).Str("mode", cfg.LedgerMode).Msg("ledger connected")
	}

	app.Scheduler.Start()

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		app.Scheduler.Stop()
		if err := app.Fiber.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("port", cfg.Port).Msgf("Server running at http://localhost:%s", cfg.Port)
	log.Info().Msgf("Health check: http://localhost:%s/health/json", cfg.Port)
	if err := app.Fiber.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
}
