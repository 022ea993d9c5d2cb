package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"getchainpulse.com/chainpulse/internal/app"
	"getchainpulse.com/chainpulse/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("failed to load config")
	}

	log := newLogger(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := app.New(ctx, cfg, log)
	engine.Start(ctx)
	log.Info().
		Str("environment", cfg.Environment).
		Bool("database", engine.DatabaseConnected()).
		Bool("cache", engine.CacheEnabled()).
		Msg("chainpulse analytics engine started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	engine.Stop()
	log.Info().Int64("fallbacks_served", engine.Gateway.FallbackCount()).Msg("stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr)
	if cfg.Environment == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger.Level(level).With().Timestamp().Logger()
}
