package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"story-processor/internal/domain/entity"
	"story-processor/internal/usecase/ingest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Alerts</title>
<item><title>First</title><link>https://www.google.com/alerts/feed?url=https%3A%2F%2Fexample.com%2Ffirst&ct=1</link></item>
<item><title>Second</title><link>https://www.google.com/alerts/feed?url=https%3A%2F%2Fexample.com%2Fsecond&ct=2</link></item>
<item><title>Third</title><link>https://www.google.com/alerts/feed?url=https%3A%2F%2Fexample.com%2Fthird&ct=3</link></item>
</channel></rss>`

func TestRSSAlertsAdapter_StopsAtLastURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	a := NewRSSAlertsAdapter(srv.Client(), nil)
	assert.Equal(t, entity.SourceRSSAlerts, a.Name())

	project := entity.Project{ID: 1, Language: "en", LanguageModelID: 1, RSSURL: srv.URL}
	cursor := ingest.Cursor{LastURL: "https://example.com/second"}

	var got []entity.CandidateArticle
	for res := range a.Iterate(context.Background(), project, ingest.Window{}, cursor) {
		require.NoError(t, res.Err)
		got = append(got, res.Candidate)
	}

	require.Len(t, got, 1)
	assert.Equal(t, "https://example.com/first", got[0].URL)
}

func TestRSSAlertsAdapter_SkipsProjectsWithoutRSSURL(t *testing.T) {
	a := NewRSSAlertsAdapter(http.DefaultClient, nil)
	project := entity.Project{ID: 1, Language: "en"}

	var got []entity.CandidateArticle
	for res := range a.Iterate(context.Background(), project, ingest.Window{}, ingest.Cursor{}) {
		got = append(got, res.Candidate)
	}
	assert.Empty(t, got)
}

func TestNormalizeAlertLink_UnwrapsRedirector(t *testing.T) {
	real := normalizeAlertLink("https://www.google.com/alerts/feed?url=https%3A%2F%2Fexample.com%2Fpath&ct=1")
	assert.Equal(t, "https://example.com/path", real)
}

func TestNormalizeAlertLink_PassesThroughUnwrappedLinks(t *testing.T) {
	real := normalizeAlertLink("https://example.com/direct")
	assert.Equal(t, "https://example.com/direct", real)
}
