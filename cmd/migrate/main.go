package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog"

	"getchainpulse.com/chainpulse/internal/config"
	"getchainpulse.com/chainpulse/internal/database"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if err := database.Migrate(cfg.DatabaseURL, *direction); err != nil {
		log.Fatal().Err(err).Str("direction", *direction).Msg("migration failed")
	}
	log.Info().Str("direction", *direction).Msg("migrations applied")
}
