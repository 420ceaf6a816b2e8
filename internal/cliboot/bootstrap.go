// Package cliboot collects the wiring shared by every one-shot ingestion
// entrypoint (cmd/queue-mediacloud, cmd/queue-wayback, cmd/queue-rss,
// cmd/queue-newscatcher, cmd/queue-unposted-retry, cmd/download-models):
// logger/database bootstrap, the Config Client, the notifier fan-out, and
// the HTTP clients each Source Adapter needs. It mirrors the setup*
// helpers cmd/worker/main.go uses for the classify-and-post side so both
// binary families share one configuration idiom.
package cliboot

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	pgRepo "story-processor/internal/infra/adapter/persistence/postgres"
	"story-processor/internal/infra/configclient"
	"story-processor/internal/infra/db"
	"story-processor/internal/infra/entityextract"
	"story-processor/internal/infra/fetcher"
	"story-processor/internal/infra/httpclient"
	"story-processor/internal/infra/model"
	"story-processor/internal/infra/notifier"
	"story-processor/internal/infra/poster"
	"story-processor/internal/infra/queue"
	"story-processor/internal/repository"
	"story-processor/internal/usecase/ingest"
	"story-processor/internal/usecase/notify"
)

// InitLogger builds the process-wide structured logger, honoring
// LOG_LEVEL=debug the same way every other entrypoint does.
func InitLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return logger
}

// OpenDatabase opens PROCESSOR_DB_URI and waits for migrations to have
// run, exiting the process on failure: an unreachable audit store aborts
// a run, so here it must abort before one even starts.
func OpenDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	const probe = "SELECT 1 FROM stories LIMIT 1"
	for i := 0; i < 10; i++ {
		if _, err := database.Exec(probe); err == nil {
			return database
		}
		logger.Info("waiting for migrations, retrying in 3s", slog.Int("attempt", i+1))
		time.Sleep(3 * time.Second)
	}
	logger.Error("migrations did not complete in time")
	os.Exit(1)
	return nil
}

// AuditRepo builds the Audit Store repository over an open database.
func AuditRepo(database *sql.DB) repository.AuditRepository {
	return pgRepo.NewAuditRepo(database)
}

// SetupConfigClient builds the Config Client, exiting if it is
// missing the central-server credentials it needs to ever succeed.
func SetupConfigClient(logger *slog.Logger) *configclient.Client {
	cfg := configclient.LoadConfigFromEnv()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config client configuration", slog.Any("error", err))
		os.Exit(1)
	}
	return configclient.New(cfg, logger)
}

// SetupQueue connects to the Task Queue broker used as the
// Scheduler's enqueue side.
func SetupQueue(ctx context.Context, logger *slog.Logger) (*queue.Queue, error) {
	cfg := queue.LoadConfigFromEnv()
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("BROKER_URL not set")
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	q, err := queue.NewFromURL(connectCtx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to task queue broker")
	return q, nil
}

// SourceHTTPClient builds the hardened HTTP client every Source Adapter
// dials external catalogs with. A non-zero timeout overrides the
// default's.
func SourceHTTPClient(timeout time.Duration) *http.Client {
	client := httpclient.NewDefault()
	if timeout > 0 {
		client.Timeout = timeout
	}
	return client
}

// SetupExtractor builds the Content Extractor: an SSRF-guarded
// Readability fetcher wrapped in an LRU cache (capacity ~50,000), adapted
// to the ingest.Extractor port.
func SetupExtractor(logger *slog.Logger) (ingest.Extractor, error) {
	cfg, err := fetcher.LoadConfigFromEnv()
	if err != nil {
		logger.Warn("content fetch configuration invalid, using defaults with fetching disabled", slog.Any("error", err))
		cfg = fetcher.DefaultConfig()
		cfg.Enabled = false
	}
	if !cfg.Enabled {
		logger.Warn("content extraction disabled via CONTENT_FETCH_ENABLED=false")
	}

	readability := fetcher.NewReadabilityFetcher(cfg)
	cached, err := fetcher.NewCachedExtractor(readability, 50000)
	if err != nil {
		return nil, fmt.Errorf("create content extraction cache: %w", err)
	}
	return fetcher.NewIngestExtractor(cached), nil
}

// SetupNotifier assembles the Notifier across every enabled
// channel (Discord, Slack, email), skipping any channel whose
// configuration is absent or invalid.
func SetupNotifier(logger *slog.Logger, maxConcurrent int) notify.Service {
	var channels []notify.Channel

	discordCfg := notifier.LoadDiscordConfigFromEnv(logger)
	if discordCfg.Enabled {
		channels = append(channels, notify.NewDiscordChannel(discordCfg))
		logger.Info("discord notification channel enabled")
	}

	slackCfg := notifier.LoadSlackConfigFromEnv(logger)
	if slackCfg.Enabled {
		channels = append(channels, notify.NewSlackChannel(slackCfg))
		logger.Info("slack notification channel enabled")
	}

	emailCfg := notifier.LoadEmailConfigFromEnv(logger)
	if emailCfg.Enabled {
		channels = append(channels, notify.NewEmailChannel(emailCfg))
		logger.Info("email notification channel enabled", slog.Int("recipients", len(emailCfg.To)))
	}

	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return notify.NewService(channels, maxConcurrent)
}

// SetupModelRegistry builds the Model Registry & Classifier over the
// model catalog fetched from the config client, exiting if the catalog
// cannot be fetched (without it no project can ever be classified).
func SetupModelRegistry(ctx context.Context, logger *slog.Logger, configClient *configclient.Client) *model.Registry {
	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	models, err := configClient.GetModels(fetchCtx)
	if err != nil {
		logger.Error("failed to load model catalog", slog.Any("error", err))
		os.Exit(ExitConfigError)
	}
	modelCfg := model.LoadConfigFromEnv()
	logger.Info("model catalog loaded", slog.Int("models", len(models)), slog.String("model_dir", modelCfg.ModelDir))
	return model.NewRegistry(modelCfg, models)
}

// SetupEntityExtractor builds the optional Entity Extractor client.
// Returns nil when ENTITY_SERVER_URL is unset, which classify.Service
// treats as "no entity enrichment".
func SetupEntityExtractor(logger *slog.Logger) *entityextract.Client {
	cfg := entityextract.LoadConfigFromEnv()
	if !cfg.Configured() {
		logger.Info("entity extractor disabled (ENTITY_SERVER_URL not set)")
		return nil
	}
	logger.Info("entity extractor enabled", slog.String("server_url", cfg.ServerURL))
	return entityextract.New(cfg, logger)
}

// SetupPoster builds the Result Publisher's HTTP transport.
func SetupPoster(logger *slog.Logger) *poster.Client {
	cfg := poster.LoadConfigFromEnv()
	return poster.New(cfg, logger)
}

// VersionFromEnv returns the VERSION env var or "dev".
func VersionFromEnv() string {
	if v := os.Getenv("VERSION"); v != "" {
		return v
	}
	return "dev"
}

// Exit codes shared by every one-shot ingestion entrypoint:
// 0 on a clean run, 1 when the run could not even start, 2 when it
// completed but recorded per-project failures worth an operator's
// attention.
const (
	ExitOK             = 0
	ExitConfigError    = 1
	ExitPartialFailure = 2
)

// ExitCodeForSummary maps a completed ingest.Run outcome to a process
// exit code per the ExitOK/ExitPartialFailure convention above.
func ExitCodeForSummary(hasFailures bool) int {
	if hasFailures {
		return ExitPartialFailure
	}
	return ExitOK
}
