package main

import (
	"flag"

	"github.com/rs/zerolog/log"
	"portal/internal/pkg/logger"
	"portal/internal/platform/config"
	"portal/internal/platform/database"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	dir := flag.String("dir", "migrations", "Directory holding .sql migrations")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := database.Migrate(db, *dir); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	log.Info().Str("dir", *dir).Msg("migration completed successfully")
}
