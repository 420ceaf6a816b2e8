package poster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"story-processor/internal/domain/entity"
	"story-processor/internal/resilience/circuitbreaker"
	"story-processor/internal/resilience/retry"
	"story-processor/internal/usecase/classify"
)

// Client is the Result Publisher's HTTP transport, satisfying
// classify.Poster.
type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *slog.Logger
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
		breaker:    circuitbreaker.New(circuitbreaker.CentralServerPostConfig()),
		logger:     logger,
	}
}

// Post implements classify.Poster: it POSTs payload to url, retrying
// transient failures internally, and returns a typed
// *entity.TransientPostError or *entity.PermanentPostError describing any
// failure that survives retry so the caller can decide whether the
// enclosing queue job should be re-queued or dropped.
func (c *Client) Post(ctx context.Context, url string, payload classify.PostPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &entity.PermanentPostError{StatusCode: 0, Body: fmt.Sprintf("encode payload: %v", err)}
	}

	retryErr := retry.WithBackoff(ctx, retry.CentralServerPostConfig(), func() error {
		_, err := c.breaker.Execute(func() (interface{}, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/json")

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
			return nil, nil
		})
		return err
	})

	if retryErr == nil {
		return nil
	}

	var httpErr *retry.HTTPError
	if errors.As(retryErr, &httpErr) {
		if httpErr.StatusCode == http.StatusRequestTimeout || httpErr.StatusCode == http.StatusTooManyRequests ||
			(httpErr.StatusCode >= 500 && httpErr.StatusCode < 600) {
			return &entity.TransientPostError{StatusCode: httpErr.StatusCode, Err: retryErr}
		}
		return &entity.PermanentPostError{StatusCode: httpErr.StatusCode, Body: httpErr.Message}
	}

	// Connection errors, timeouts, and anything else that isn't a decoded
	// HTTP status are treated as transient
	c.logger.Warn("post to update_post_url failed without an HTTP status",
		slog.String("url", url), slog.Any("error", retryErr))
	return &entity.TransientPostError{StatusCode: 0, Err: retryErr}
}
