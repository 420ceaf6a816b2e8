// Command queue-unposted-retry re-attempts the publish step for every
// story marked above_threshold but never posted,
// without re-running the classifier. It backs the operator-triggered
// remediation pass distinct from the normal worker consumer loop, and is
// the write-side counterpart to GET /stories/unposted.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"story-processor/internal/cliboot"
	"story-processor/internal/usecase/classify"
)

func main() {
	olderThanMinutes := flag.Int("older-than-minutes", 60, "only retry stories whose processed_date is at least this old")
	flag.Parse()

	logger := cliboot.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database := cliboot.OpenDatabase(logger)
	defer func() { _ = database.Close() }()

	configClient := cliboot.SetupConfigClient(logger)
	projectIndex := classify.NewProjectIndex(configClient)

	modelRegistry := cliboot.SetupModelRegistry(ctx, logger, configClient)
	entityExtractor := cliboot.SetupEntityExtractor(logger)
	posterClient := cliboot.SetupPoster(logger)
	auditRepo := cliboot.AuditRepo(database)

	classifyCfg := classify.Config{
		Version: cliboot.VersionFromEnv(),
		APIKey:  os.Getenv("FEMINICIDE_API_KEY"),
	}
	var entitySource classify.EntityExtractor
	if entityExtractor != nil {
		entitySource = entityExtractor
	}
	svc := classify.NewService(classify.RegistrySource{Registry: modelRegistry}, entitySource, projectIndex, auditRepo, posterClient, classifyCfg, logger)

	olderThan := time.Duration(*olderThanMinutes) * time.Minute
	posted, err := svc.RetryUnposted(ctx, olderThan)
	if err != nil {
		logger.Error("retry-unposted pass failed", slog.Any("error", err), slog.Int("posted", posted))
		os.Exit(cliboot.ExitPartialFailure)
	}

	logger.Info("retry-unposted pass complete", slog.Int("posted", posted), slog.Duration("older_than", olderThan))
	os.Exit(cliboot.ExitOK)
}
