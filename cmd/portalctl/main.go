package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"

	"contaportal/internal/app"
	"contaportal/internal/cli"
	"contaportal/internal/config"
	"contaportal/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	closer, err := logger.Setup(cfg.Log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up logging")
	}

	root := cli.NewRootCommand(func(ctx context.Context) (*app.App, error) {
		return app.Open(ctx, cfg)
	})
	err = root.ExecuteContext(context.Background())
	closer.Close()
	if err != nil {
		log.Error().Err(err).Msg("portalctl failed")
		os.Exit(1)
	}
}
