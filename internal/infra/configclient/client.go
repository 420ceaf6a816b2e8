package configclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"story-processor/internal/domain/entity"
	"story-processor/internal/resilience/circuitbreaker"
	"story-processor/internal/resilience/retry"
)

const (
	projectsFilename = "projects.json"
	modelsFilename   = "language-models.json"
)

// Client is the Config Client: it fetches the project and model
// catalog from the central server, falling back to the last-good disk
// snapshot when the network is unreachable.
type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *slog.Logger

	mu       sync.RWMutex
	projects []entity.Project
	models   []entity.ModelSpec
	loaded   bool
}

// New builds a Client from cfg. logger may be nil, in which case
// slog.Default() is used.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    circuitbreaker.New(circuitbreaker.ConfigClientConfig()),
		logger:     logger,
	}
}

// GetProjects returns the project catalog, fetching it from the central
// server on first call in a run and serving a deep-copied snapshot on
// subsequent calls. Falls back to the last disk snapshot if the network
// is unreachable; fails with ConfigError only if neither is available.
func (c *Client) GetProjects(ctx context.Context) ([]entity.Project, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]entity.Project, len(c.projects))
	copy(out, c.projects)
	return out, nil
}

// GetModels returns the model catalog with the same caching/fallback
// semantics as GetProjects.
func (c *Client) GetModels(ctx context.Context) ([]entity.ModelSpec, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]entity.ModelSpec, len(c.models))
	copy(out, c.models)
	return out, nil
}

// ensureLoaded populates the process-wide snapshot exactly once, trying
// the network first and falling back to disk.
func (c *Client) ensureLoaded(ctx context.Context) error {
	c.mu.RLock()
	if c.loaded {
		c.mu.RUnlock()
		return nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}

	projects, modelSpecs, err := c.fetchFromNetwork(ctx)
	if err != nil {
		c.logger.Warn("config client: network fetch failed, falling back to disk snapshot",
			slog.Any("error", err))
		projects, modelSpecs, err = c.loadFromDisk()
		if err != nil {
			return &entity.ConfigError{Op: "load config snapshot", Err: err}
		}
	}

	c.projects = projects
	c.models = modelSpecs
	c.loaded = true
	return nil
}

func (c *Client) fetchFromNetwork(ctx context.Context) ([]entity.Project, []entity.ModelSpec, error) {
	var projectDTOs []projectDTO
	if err := c.getJSON(ctx, "/api/story_processor/projects.json", &projectDTOs); err != nil {
		return nil, nil, fmt.Errorf("fetch projects: %w", err)
	}
	if len(projectDTOs) == 0 {
		return nil, nil, fmt.Errorf("fetch projects: empty project list")
	}

	var modelDTOs []modelSpecDTO
	if err := c.getJSON(ctx, "/api/story_processor/language_models.json", &modelDTOs); err != nil {
		return nil, nil, fmt.Errorf("fetch models: %w", err)
	}

	projects := make([]entity.Project, 0, len(projectDTOs))
	for _, d := range projectDTOs {
		projects = append(projects, d.toEntity())
	}
	models := make([]entity.ModelSpec, 0, len(modelDTOs))
	for _, d := range modelDTOs {
		models = append(models, d.toEntity())
	}
	return projects, models, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	url := fmt.Sprintf("%s%s?apikey=%s", c.cfg.BaseURL, path, c.cfg.APIKey)

	var body []byte
	err := retry.WithBackoff(ctx, retry.ConfigClientConfig(), func() error {
		result, err := c.breaker.Execute(func() (interface{}, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, err
			}
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return nil, err
			}
			defer func() { _ = resp.Body.Close() }()

			respBody, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Message: string(respBody)}
			}
			return respBody, nil
		})
		if err != nil {
			return err
		}
		body = result.([]byte)
		return nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

// RefreshToDisk fetches the current catalog from the network and writes
// both snapshots atomically (write-temp, then rename) under ConfigDir.
func (c *Client) RefreshToDisk(ctx context.Context) error {
	projects, models, err := c.fetchFromNetwork(ctx)
	if err != nil {
		return &entity.ConfigError{Op: "refresh to disk", Err: err}
	}

	projectDTOs := make([]projectDTO, 0, len(projects))
	for _, p := range projects {
		projectDTOs = append(projectDTOs, projectToDTO(p))
	}
	modelDTOs := make([]modelSpecDTO, 0, len(models))
	for _, m := range models {
		modelDTOs = append(modelDTOs, modelSpecToDTO(m))
	}

	if err := writeJSONAtomic(filepath.Join(c.cfg.ConfigDir, projectsFilename), projectDTOs); err != nil {
		return &entity.ConfigError{Op: "write projects snapshot", Err: err}
	}
	if err := writeJSONAtomic(filepath.Join(c.cfg.ConfigDir, modelsFilename), modelDTOs); err != nil {
		return &entity.ConfigError{Op: "write models snapshot", Err: err}
	}

	c.mu.Lock()
	c.projects = projects
	c.models = models
	c.loaded = true
	c.mu.Unlock()

	c.logger.Info("config client: refreshed disk snapshot",
		slog.Int("projects", len(projects)),
		slog.Int("models", len(models)))
	return nil
}

func (c *Client) loadFromDisk() ([]entity.Project, []entity.ModelSpec, error) {
	var projectDTOs []projectDTO
	if err := readJSON(filepath.Join(c.cfg.ConfigDir, projectsFilename), &projectDTOs); err != nil {
		return nil, nil, fmt.Errorf("read projects snapshot: %w", err)
	}
	var modelDTOs []modelSpecDTO
	if err := readJSON(filepath.Join(c.cfg.ConfigDir, modelsFilename), &modelDTOs); err != nil {
		return nil, nil, fmt.Errorf("read models snapshot: %w", err)
	}

	projects := make([]entity.Project, 0, len(projectDTOs))
	for _, d := range projectDTOs {
		projects = append(projects, d.toEntity())
	}
	models := make([]entity.ModelSpec, 0, len(modelDTOs))
	for _, d := range modelDTOs {
		models = append(models, d.toEntity())
	}
	return projects, models, nil
}

func writeJSONAtomic(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func readJSON(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
