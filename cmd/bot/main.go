package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/SnowFuhrer/spiraltgbot/internal/app"
	"github.com/SnowFuhrer/spiraltgbot/internal/config"
	"github.com/SnowFuhrer/spiraltgbot/pkg/telemetry"
)

func main() {

	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.EnableTelemetry {
		shutdown, err := telemetry.InitTracer("spiraltgbot", os.Stderr)
		if err != nil {
			logger.Error("Failed to init telemetry", "error", err)
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error("Failed to shutdown telemetry", "error", err)
				}
			}()
		}
	}

	if err := app.NewApp(cfg, logger).Run(context.Background()); err != nil {
		logger.Error("Application error", "error", err)
		os.Exit(1)
	}
}
