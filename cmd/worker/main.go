package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"story-processor/internal/domain/entity"
	pgRepo "story-processor/internal/infra/adapter/persistence/postgres"
	"story-processor/internal/infra/configclient"
	"story-processor/internal/infra/db"
	"story-processor/internal/infra/entityextract"
	"story-processor/internal/infra/model"
	"story-processor/internal/infra/poster"
	"story-processor/internal/infra/queue"
	workerPkg "story-processor/internal/infra/worker"
	"story-processor/internal/usecase/classify"
)

func waitForMigrations(logger *slog.Logger, db *sql.DB) {
	const probe = "SELECT 1 FROM stories LIMIT 1"
	for i := 0; i < 10; i++ {
		if _, err := db.Exec(probe); err == nil {
			return
		}
		logger.Info("waiting for migrations, retrying in 3s", slog.Int("attempt", i+1))
		time.Sleep(3 * time.Second)
	}
	logger.Error("migrations did not complete in time")
	os.Exit(1)
}

func main() {
	logger := initLogger()
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.MustRegister()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.Int("concurrency", workerConfig.Concurrency),
		slog.Duration("poll_interval", workerConfig.PollInterval),
		slog.Duration("reap_interval", workerConfig.ReapInterval),
		slog.Duration("job_timeout", workerConfig.JobTimeout),
		slog.Int("health_port", workerConfig.HealthPort))

	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	logger.Info("health check server started", slog.String("addr", healthAddr))

	configClient := setupConfigClient(logger)
	projectIndex := classify.NewProjectIndex(configClient)

	modelRegistry := setupModelRegistry(ctx, logger, configClient)

	entityExtractor := setupEntityExtractor(logger)

	posterClient := setupPoster(logger)

	auditRepo := pgRepo.NewAuditRepo(database)

	classifyCfg := classify.Config{
		Version: posterVersionFromEnv(),
		APIKey:  os.Getenv("FEMINICIDE_API_KEY"),
	}
	var entitySource classify.EntityExtractor
	if entityExtractor != nil {
		entitySource = entityExtractor
	}
	classifySvc := classify.NewService(classify.RegistrySource{Registry: modelRegistry}, entitySource, projectIndex, auditRepo, posterClient, classifyCfg, logger)

	taskQueue, err := setupQueue(ctx, logger)
	if err != nil {
		logger.Error("failed to connect to task queue", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := taskQueue.Close(); err != nil {
			logger.Error("failed to close queue connection", slog.Any("error", err))
		}
	}()

	runConsumer(ctx, logger, classifySvc, taskQueue, workerConfig, workerMetrics, healthServer)

	logger.Info("worker shutting down")
}

// initLogger initializes and returns a structured logger based on environment configuration.
func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// initDatabase opens the database connection and waits for migrations to complete.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	waitForMigrations(logger, database)
	return database
}

func posterVersionFromEnv() string {
	if v := os.Getenv("VERSION"); v != "" {
		return v
	}
	return "dev"
}

// setupConfigClient builds the Config Client and validates that it
// carries enough configuration to reach the central server. A missing
// FEMINICIDE_API_URL/FEMINICIDE_API_KEY is a ConfigError and fatal at
// startup.
func setupConfigClient(logger *slog.Logger) *configclient.Client {
	cfg := configclient.LoadConfigFromEnv()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config client configuration", slog.Any("error", err))
		os.Exit(1)
	}
	return configclient.New(cfg, logger)
}

// setupModelRegistry builds the Model Registry & Classifier over the
// model catalog fetched from the config client. A catalog fetch failure is
// fatal: without it no project can ever be classified.
func setupModelRegistry(ctx context.Context, logger *slog.Logger, configClient *configclient.Client) *model.Registry {
	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	models, err := configClient.GetModels(fetchCtx)
	if err != nil {
		logger.Error("failed to load model catalog", slog.Any("error", err))
		os.Exit(1)
	}
	modelCfg := model.LoadConfigFromEnv()
	logger.Info("model catalog loaded", slog.Int("models", len(models)), slog.String("model_dir", modelCfg.ModelDir))
	return model.NewRegistry(modelCfg, models)
}

// setupEntityExtractor builds the optional Entity Extractor client.
// Returns nil when ENTITY_SERVER_URL is unset, which classify.Service
// treats as "no entity enrichment".
func setupEntityExtractor(logger *slog.Logger) *entityextract.Client {
	cfg := entityextract.LoadConfigFromEnv()
	if !cfg.Configured() {
		logger.Info("entity extractor disabled (ENTITY_SERVER_URL not set)")
		return nil
	}
	logger.Info("entity extractor enabled", slog.String("server_url", cfg.ServerURL))
	return entityextract.New(cfg, logger)
}

// setupPoster builds the Result Publisher's HTTP transport.
func setupPoster(logger *slog.Logger) *poster.Client {
	cfg := poster.LoadConfigFromEnv()
	return poster.New(cfg, logger)
}

// setupQueue connects to the Task Queue broker.
func setupQueue(ctx context.Context, logger *slog.Logger) (*queue.Queue, error) {
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

// runConsumer is the worker consumer loop: a pool of Concurrency goroutines each
// repeatedly dequeue a job, hand it to the classifier/Result Publisher
// pipeline, and resolve it as Ack/Retry/Drop depending on how the
// classify step failed. A separate goroutine periodically
// promotes ready delayed jobs and reclaims leases abandoned by crashed
// workers.
func runConsumer(
	ctx context.Context,
	logger *slog.Logger,
	classifySvc *classify.Service,
	taskQueue *queue.Queue,
	cfg *workerPkg.WorkerConfig,
	metrics *workerPkg.WorkerMetrics,
	healthServer *workerPkg.HealthServer,
) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		reapLoop(ctx, logger, taskQueue, cfg.ReapInterval)
	}()

	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			consumeLoop(ctx, logger, classifySvc, taskQueue, cfg, metrics, workerID)
		}(i)
	}

	healthServer.SetReady(true)
	logger.Info("worker pool started", slog.Int("concurrency", cfg.Concurrency))

	<-ctx.Done()
	logger.Info("shutdown signal received, draining in-flight jobs")
	healthServer.SetReady(false)
	wg.Wait()
}

func reapLoop(ctx context.Context, logger *slog.Logger, taskQueue *queue.Queue, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reapCtx, cancel := context.WithTimeout(context.Background(), interval)
			if n, err := taskQueue.PromoteReadyDelayed(reapCtx); err != nil {
				logger.Warn("failed to promote delayed jobs", slog.Any("error", err))
			} else if n > 0 {
				logger.Info("promoted delayed jobs", slog.Int("count", n))
			}
			if n, err := taskQueue.ReapExpiredLeases(reapCtx); err != nil {
				logger.Warn("failed to reap expired leases", slog.Any("error", err))
			} else if n > 0 {
				logger.Warn("reclaimed jobs from expired leases", slog.Int("count", n))
			}
			cancel()
		}
	}
}

func consumeLoop(
	ctx context.Context,
	logger *slog.Logger,
	classifySvc *classify.Service,
	taskQueue *queue.Queue,
	cfg *workerPkg.WorkerConfig,
	metrics *workerPkg.WorkerMetrics,
	workerID int,
) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := taskQueue.Dequeue(ctx)
		if err != nil {
			if err == queue.ErrEmpty {
				select {
				case <-ctx.Done():
					return
				case <-time.After(cfg.PollInterval):
				}
				continue
			}
			logger.Error("dequeue failed", slog.Any("error", err), slog.Int("worker_id", workerID))
			select {
			case <-ctx.Done():
				return
			case <-time.After(cfg.PollInterval):
			}
			continue
		}

		metrics.RecordJobDequeued()
		processJob(ctx, logger, classifySvc, taskQueue, cfg.JobTimeout, metrics, job)
	}
}

func processJob(
	ctx context.Context,
	logger *slog.Logger,
	classifySvc *classify.Service,
	taskQueue *queue.Queue,
	timeout time.Duration,
	metrics *workerPkg.WorkerMetrics,
	job *queue.Job,
) {
	start := time.Now()
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := classifySvc.Process(jobCtx, job.ProjectID, job.Source, job.Candidates)
	metrics.RecordJobDuration(time.Since(start).Seconds())

	logFields := []any{
		slog.String("job_id", job.ID),
		slog.Int64("project_id", job.ProjectID),
		slog.String("source", string(job.Source)),
		slog.Int("attempt", job.Attempt),
	}

	if err == nil {
		if ackErr := taskQueue.Ack(ctx, job); ackErr != nil {
			logger.Error("failed to ack job", append(logFields, slog.Any("error", ackErr))...)
		}
		metrics.RecordJobOutcome("acked")
		metrics.RecordLastSuccess()
		return
	}

	if entity.IsRetryable(err) {
		logger.Warn("job failed with a retryable error, requeueing", append(logFields, slog.Any("error", err))...)
		if retryErr := taskQueue.Retry(ctx, job); retryErr != nil {
			logger.Error("failed to requeue job", append(logFields, slog.Any("error", retryErr))...)
		}
		metrics.RecordJobOutcome("retried")
		return
	}

	logger.Error("job failed permanently, dropping", append(logFields, slog.Any("error", err))...)
	if dropErr := taskQueue.Drop(ctx, job); dropErr != nil {
		logger.Error("failed to drop job", append(logFields, slog.Any("error", dropErr))...)
	}
	metrics.RecordJobOutcome("dropped")
}

