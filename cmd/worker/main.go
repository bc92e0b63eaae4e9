package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"portal/internal/pkg/logger"
	"portal/internal/platform/config"
	"portal/internal/platform/database"
	"portal/internal/platform/repositories"
	"portal/internal/workers"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
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

	sweeper := workers.NewSweeper(repositories.NewAuthenticationRepository(db))
	scheduler, err := workers.NewScheduler(sweeper, cfg.Jobs.SweepInterval)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}

	log.Info().Dur("interval", cfg.Jobs.SweepInterval).Msg("starting portal workers")
	scheduler.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := scheduler.Stop(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown failed")
	}
}
