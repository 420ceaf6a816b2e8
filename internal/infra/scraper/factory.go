package scraper

import (
	"log/slog"
	"net/http"

	"story-processor/internal/domain/entity"
	"story-processor/internal/usecase/ingest"
)

// AdapterFactory builds a Source Adapter instance for each source
// the system supports. It provides a centralized way to instantiate
// adapters with consistent configuration.
type AdapterFactory struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// NewAdapterFactory creates a new AdapterFactory with the given config
// and HTTP client. The HTTP client should be configured with appropriate
// timeouts and security settings.
func NewAdapterFactory(cfg Config, client *http.Client, logger *slog.Logger) *AdapterFactory {
	return &AdapterFactory{cfg: cfg, client: client, logger: logger}
}

// CreateAdapters returns every Source Adapter this build supports, keyed
// by entity.Source. This map is used by the Ingestion Scheduler to route
// a source name to the adapter that drives it.
func (f *AdapterFactory) CreateAdapters() map[entity.Source]ingest.Adapter {
	return map[entity.Source]ingest.Adapter{
		entity.SourceMediaCloud:  NewMediaCloudAdapter(f.cfg, f.client, f.logger),
		entity.SourceWayback:     NewWaybackAdapter(f.cfg, f.client, f.logger),
		entity.SourceRSSAlerts:   NewRSSAlertsAdapter(f.client, f.logger),
		entity.SourceNewsCatcher: NewNewsCatcherAdapter(f.cfg, f.client, f.logger),
	}
}

// ProjectFilterFor returns the ingest.ProjectFilter appropriate for a
// given source, narrowing the project catalog to those a source can
// actually drive.
func ProjectFilterFor(source entity.Source) ingest.ProjectFilter {
	switch source {
	case entity.SourceRSSAlerts:
		return ingest.RequiresRSS
	case entity.SourceWayback, entity.SourceNewsCatcher:
		return ingest.RequiresCountry
	default:
		return ingest.AcceptAll
	}
}
