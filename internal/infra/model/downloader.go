package model

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"story-processor/internal/domain/entity"
	"story-processor/internal/resilience/retry"
)

// Downloader materializes classifier artifacts named in a model catalog
// onto disk, under the deterministic layout described in
type Downloader struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewDownloader builds a Downloader from cfg. logger may be nil.
func NewDownloader(cfg Config, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.DownloadTimeout},
		logger:     logger,
	}
}

// RefreshModels downloads every artifact named by catalog, one file per
// (model id, stage, kind), under cfg.ModelDir. Embedding vectorizers are
// additionally materialized into every language bucket in
// cfg.EmbeddingLanguages.
func (d *Downloader) RefreshModels(ctx context.Context, catalog []entity.ModelSpec) error {
	for _, spec := range catalog {
		if err := spec.Validate(); err != nil {
			return &entity.ModelError{ModelID: spec.ID, Reason: "invalid model spec", Err: err}
		}
		if err := d.refreshStage(ctx, spec.ID, spec.FilenamePrefix, 1, spec.Stage1); err != nil {
			return err
		}
		if spec.ChainedModels {
			if err := d.refreshStage(ctx, spec.ID, spec.FilenamePrefix, 2, spec.Stage2); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Downloader) refreshStage(ctx context.Context, modelID int64, prefix string, stageNum int, s entity.ModelStage) error {
	modelPath := filepath.Join(d.cfg.ModelDir, fmt.Sprintf("%s_%d_model.bin", prefix, stageNum))
	if err := d.downloadWithRetry(ctx, s.ModelURLs, modelPath); err != nil {
		return &entity.ModelError{ModelID: modelID, Reason: "download model artifact", Err: err}
	}

	if s.VectorizerType == entity.VectorizerEmbeddings {
		for _, bucket := range d.cfg.EmbeddingLanguages {
			vectorizerPath := filepath.Join(d.cfg.ModelDir, fmt.Sprintf("embeddings-%s", bucket), fmt.Sprintf("%s_%d_vectorizer.bin", prefix, stageNum))
			if err := d.downloadWithRetry(ctx, s.VectorizerURLs, vectorizerPath); err != nil {
				return &entity.ModelError{ModelID: modelID, Reason: "download embeddings vectorizer", Err: err}
			}
		}
		return nil
	}

	vectorizerPath := filepath.Join(d.cfg.ModelDir, fmt.Sprintf("%s_%d_vectorizer.bin", prefix, stageNum))
	if err := d.downloadWithRetry(ctx, s.VectorizerURLs, vectorizerPath); err != nil {
		return &entity.ModelError{ModelID: modelID, Reason: "download vectorizer artifact", Err: err}
	}
	return nil
}

// downloadWithRetry tries each URL in order (redundant mirrors), retrying
// transient failures within each, until one succeeds.
func (d *Downloader) downloadWithRetry(ctx context.Context, urls []string, destPath string) error {
	if len(urls) == 0 {
		return fmt.Errorf("no artifact URLs configured for %s", destPath)
	}

	var lastErr error
	for _, url := range urls {
		err := retry.WithBackoff(ctx, retry.ArtifactDownloadConfig(), func() error {
			return d.downloadOnce(ctx, url, destPath)
		})
		if err == nil {
			d.logger.Info("model: downloaded artifact", slog.String("url", url), slog.String("dest", destPath))
			return nil
		}
		lastErr = err
		d.logger.Warn("model: artifact download failed, trying next mirror",
			slog.String("url", url), slog.Any("error", err))
	}
	return fmt.Errorf("all mirrors failed for %s: %w", destPath, lastErr)
}

// downloadOnce streams one URL into a temp file beside destPath, then
// atomically renames it into place.
func (d *Downloader) downloadOnce(ctx context.Context, url, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &retry.HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("GET %s", url)}
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, destPath)
}
