// Command queue-newscatcher runs one Ingestion Scheduler pass over
// the rate-limited commercial Source Adapter. The adapter
// itself enforces the 5 req/s ceiling; this entrypoint only wires it up.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"story-processor/internal/cliboot"
	"story-processor/internal/domain/entity"
	"story-processor/internal/infra/scraper"
	"story-processor/internal/usecase/ingest"
)

func main() {
	logger := cliboot.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database := cliboot.OpenDatabase(logger)
	defer func() { _ = database.Close() }()

	configClient := cliboot.SetupConfigClient(logger)

	taskQueue, err := cliboot.SetupQueue(ctx, logger)
	if err != nil {
		logger.Error("failed to connect to task queue", slog.Any("error", err))
		os.Exit(cliboot.ExitConfigError)
	}
	defer func() { _ = taskQueue.Close() }()

	extractor, err := cliboot.SetupExtractor(logger)
	if err != nil {
		logger.Error("failed to build content extractor", slog.Any("error", err))
		os.Exit(cliboot.ExitConfigError)
	}

	scraperCfg := scraper.LoadConfigFromEnv()
	httpClient := cliboot.SourceHTTPClient(30 * time.Second)
	factory := scraper.NewAdapterFactory(scraperCfg, httpClient, logger)
	adapter := factory.CreateAdapters()[entity.SourceNewsCatcher]

	auditRepo := cliboot.AuditRepo(database)
	notifier := cliboot.SetupNotifier(logger, 10)

	svc := ingest.NewService(
		adapter,
		extractor,
		taskQueue,
		configClient,
		auditRepo,
		notifier,
		scraper.ProjectFilterFor(entity.SourceNewsCatcher),
		ingest.WithPerProjectCap(scraperCfg.MaxStoriesPerProjectNewsCatcher),
		ingest.WithLogger(logger),
	)

	summary, err := svc.Run(ctx, ingest.Window{End: time.Now()})
	if err != nil {
		logger.Error("newscatcher run aborted", slog.Any("error", err))
		os.Exit(cliboot.ExitConfigError)
	}

	logger.Info("newscatcher run complete",
		slog.Int("projects", len(summary.Projects)),
		slog.Int("fetched", summary.TotalFetched()),
		slog.Bool("has_failures", summary.HasFailures()))

	os.Exit(cliboot.ExitCodeForSummary(summary.HasFailures()))
}
