// Package httpclient builds the two shared *http.Client configurations
// used across the pipeline's one-shot ingestion commands: a general
// outbound client for API calls, and a shorter-timeout client for
// fetching arbitrary web pages discovered by Source Adapters.
package httpclient

import (
	"crypto/tls"
	"net/http"
	"time"
)

// NewDefault builds the HTTP client used for calls to known APIs (config
// client, source adapters, entity extractor, central server posts).
// TLS 1.2+ is enforced for security.
func NewDefault() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}

// NewWebScraper builds the HTTP client used to fetch arbitrary article
// pages for content extraction. It has a shorter timeout than NewDefault;
// redirect/SSRF validation is handled by the extractor implementations
// themselves, not by this transport.
func NewWebScraper() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}
