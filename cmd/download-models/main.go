// Command download-models is the admin entrypoint for the Model
// Registry: it fetches the model catalog from the Config Client
// and downloads every stage artifact that is missing or stale on disk,
// atomically, before any worker is started against a fresh model volume.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"story-processor/internal/cliboot"
	"story-processor/internal/infra/model"
)

func main() {
	logger := cliboot.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configClient := cliboot.SetupConfigClient(logger)

	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	catalog, err := configClient.GetModels(fetchCtx)
	cancel()
	if err != nil {
		logger.Error("failed to load model catalog", slog.Any("error", err))
		os.Exit(cliboot.ExitConfigError)
	}
	logger.Info("model catalog loaded", slog.Int("models", len(catalog)))

	modelCfg := model.LoadConfigFromEnv()
	downloader := model.NewDownloader(modelCfg, logger)

	if err := downloader.RefreshModels(ctx, catalog); err != nil {
		logger.Error("model refresh failed", slog.Any("error", err))
		os.Exit(cliboot.ExitPartialFailure)
	}

	logger.Info("model refresh complete", slog.String("model_dir", modelCfg.ModelDir))
	os.Exit(cliboot.ExitOK)
}
