package entityextract

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"story-processor/internal/domain/entity"
	"story-processor/internal/resilience/circuitbreaker"
	"story-processor/internal/resilience/retry"
)

// acceptedTypes is the named-entity type allowlist, grounded
// covering people, places, facilities, and date/age expressions.
var acceptedTypes = map[string]bool{
	"PERSON": true, "PER": true, "GPE": true, "LOC": true, "FAC": true,
	"DATE": true, "TIME": true, "C_DATE": true, "C_AGE": true,
}

type entityResult struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type entityResponse struct {
	Results struct {
		Entities []entityResult `json:"entities"`
	} `json:"results"`
}

// Client is the Entity Extractor: it calls a configured HTTP service
// and returns the filtered, lowercased entity list for one article.
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
		breaker:    circuitbreaker.New(circuitbreaker.EntityExtractorConfig()),
		logger:     logger,
	}
}

// Entities implements the Entity Extractor contract: it returns the
// accepted-type, lowercased entity list for text, or nil if the service is
// unconfigured, unreachable, or returns a response that cannot be decoded.
// Per, a failure here never aborts processing of the article.
func (c *Client) Entities(ctx context.Context, text, language string) []entity.ExtractedEntity {
	if !c.cfg.Configured() {
		return nil
	}

	target := strings.TrimRight(c.cfg.ServerURL, "/") + "/entities/from-content"
	form := url.Values{"text": {text}, "language": {language}}

	var body []byte
	err := retry.WithBackoff(ctx, retry.EntityExtractorConfig(), func() error {
		result, err := c.breaker.Execute(func() (interface{}, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader([]byte(form.Encode())))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

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
		c.logger.Warn("entity extractor: request failed, proceeding without entities",
			slog.Any("error", err))
		return nil
	}

	var decoded entityResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		c.logger.Warn("entity extractor: decode failed, proceeding without entities",
			slog.Any("error", err))
		return nil
	}

	out := make([]entity.ExtractedEntity, 0, len(decoded.Results.Entities))
	for _, e := range decoded.Results.Entities {
		if !acceptedTypes[e.Type] {
			continue
		}
		out = append(out, entity.ExtractedEntity{Type: e.Type, Text: strings.ToLower(e.Text)})
	}
	return out
}
