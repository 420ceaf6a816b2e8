package poster

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"story-processor/internal/domain/entity"
	"story-processor/internal/usecase/classify"
)

func testPayload() classify.PostPayload {
	return classify.PostPayload{
		Version: "1.0.0",
		APIKey:  "k",
		Project: classify.ProjectOut{ID: 1, Language: "en", MinConfidence: 0.5},
		Stories: []classify.StoryOut{
			{StoriesID: 100, Source: "mediacloud", URL: "https://news.example.org/a", Confidence: 0.9, ProjectID: 1},
		},
	}
}

func testClient() *Client {
	cfg := DefaultConfig()
	cfg.Timeout = 5 * time.Second
	return New(cfg, nil)
}

func TestClient_Post_Success(t *testing.T) {
	var received classify.PostPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := testClient().Post(context.Background(), server.URL, testPayload())
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", received.Version)
	assert.Equal(t, "k", received.APIKey)
	require.Len(t, received.Stories, 1)
	assert.InDelta(t, 0.9, received.Stories[0].Confidence, 1e-9)
}

func TestClient_Post_RetriesTransientThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := testClient().Post(context.Background(), server.URL, testPayload())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_Post_PermanentRejection(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer server.Close()

	err := testClient().Post(context.Background(), server.URL, testPayload())
	require.Error(t, err)

	var permanent *entity.PermanentPostError
	require.True(t, errors.As(err, &permanent))
	assert.Equal(t, http.StatusBadRequest, permanent.StatusCode)
	assert.False(t, entity.IsRetryable(err))

	// A 4xx must not be retried.
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Post_ConnectionErrorIsTransient(t *testing.T) {
	// Point at a server that has already been shut down.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := testClient().Post(ctx, url, testPayload())
	require.Error(t, err)

	var transient *entity.TransientPostError
	require.True(t, errors.As(err, &transient))
	assert.True(t, entity.IsRetryable(err))
}
