// Command queue-mediacloud runs one Ingestion Scheduler pass over the
// full-text index Source Adapter: load projects, fetch
// candidates, extract text, persist to the Audit Store, and enqueue
// classification jobs. It is a one-shot binary meant to be invoked on a
// schedule (cron, Kubernetes CronJob) rather than run as a daemon.
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
	adapter := factory.CreateAdapters()[entity.SourceMediaCloud]

	auditRepo := cliboot.AuditRepo(database)
	notifier := cliboot.SetupNotifier(logger, 10)

	svc := ingest.NewService(
		adapter,
		extractor,
		taskQueue,
		configClient,
		auditRepo,
		notifier,
		scraper.ProjectFilterFor(entity.SourceMediaCloud),
		ingest.WithPerProjectCap(scraperCfg.MaxStoriesPerProjectFulltext),
		ingest.WithLogger(logger),
	)

	summary, err := svc.Run(ctx, ingest.Window{End: time.Now()})
	if err != nil {
		logger.Error("mediacloud run aborted", slog.Any("error", err))
		os.Exit(cliboot.ExitConfigError)
	}

	logger.Info("mediacloud run complete",
		slog.Int("projects", len(summary.Projects)),
		slog.Int("fetched", summary.TotalFetched()),
		slog.Bool("has_failures", summary.HasFailures()))

	os.Exit(cliboot.ExitCodeForSummary(summary.HasFailures()))
}
