package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapeflow/scrapeflow-api/config"
)

func TestMapProviderStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want RunStatus
	}{
		{"READY", RunStatusRunning},
		{"RUNNING", RunStatusRunning},
		{"running", RunStatusRunning},
		{"SUCCEEDED", RunStatusSucceeded},
		{"succeeded", RunStatusSucceeded},
		{"ABORTED", RunStatusAborted},
		{"ABORTING", RunStatusAborted},
		{"FAILED", RunStatusFailed},
		{"TIMED-OUT", RunStatusFailed},
		{"", RunStatusFailed},
		{"SOMETHING_NEW", RunStatusFailed},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MapProviderStatus(tt.raw), "raw status %q", tt.raw)
	}
}

func newTestClient(baseURL string) ApifyClient {
	return NewApifyClient(config.ApifyConfig{
		BaseURL:  baseURL,
		ActorID:  "test~hashtag-scraper",
		APIToken: "test-token",
	})
}

func TestStartRun(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v2/acts/test~hashtag-scraper/runs", r.URL.Path)
			assert.Equal(t, "test-token", r.URL.Query().Get("token"))

			var input struct {
				Hashtags     []string `json:"hashtags"`
				ResultsLimit int      `json:"resultsLimit"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&input))
			assert.Equal(t, []string{"travel"}, input.Hashtags)
			assert.Equal(t, 50, input.ResultsLimit)

			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"data":{"id":"run_abc123"}}`))
		}))
		defer server.Close()

		runID, err := newTestClient(server.URL).StartRun(context.Background(), "travel", 50)
		require.NoError(t, err)
		assert.Equal(t, "run_abc123", runID)
	})

	t.Run("ProviderRejects", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
			_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).StartRun(context.Background(), "travel", 50)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrJobStartFailed)
	})

	t.Run("EmptyRunID", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":{}}`))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).StartRun(context.Background(), "travel", 50)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrJobStartFailed)
	})

	t.Run("ProviderUnreachable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		_, err := newTestClient(server.URL).StartRun(context.Background(), "travel", 50)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrJobStartFailed)
	})
}

func TestRunStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/actor-runs/run_abc123", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"status":"READY","defaultDatasetId":""}}`))
	}))
	defer server.Close()

	status, raw, err := newTestClient(server.URL).RunStatus(context.Background(), "run_abc123")
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, status)
	assert.Equal(t, "READY", raw)
}

func TestRunResults(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/v2/actor-runs/run_abc123":
				_, _ = w.Write([]byte(`{"data":{"status":"SUCCEEDED","defaultDatasetId":"ds_1"}}`))
			case "/v2/datasets/ds_1/items":
				_, _ = w.Write([]byte(`[{"id":"p1","ownerUsername":"alice","hashtags":["travel"],"likesCount":12},{"id":"p2","ownerUsername":"bob"}]`))
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		defer server.Close()

		results, err := newTestClient(server.URL).RunResults(context.Background(), "run_abc123")
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "p1", results[0].ID)
		assert.Equal(t, "alice", results[0].OwnerUsername)
		assert.Equal(t, int64(12), results[0].LikesCount)
	})

	t.Run("DatasetNotReady", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":{"status":"SUCCEEDED","defaultDatasetId":""}}`))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).RunResults(context.Background(), "run_abc123")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrResultsUnavailable)
	})
}
