package apify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("test-token", WithBaseURL(srv.URL))
	return srv, c
}

func TestStartRun(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantID     string
		wantErr    bool
		wantStatus int
	}{
		{
			name: "happy path",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/acts/curious_coder~linkedin-search/runs", r.URL.Path)
				assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var input map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&input))
				assert.Equal(t, "https://x/search", input["searchUrl"])

				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(`{"data":{"id":"run-1","actId":"act-9","status":"READY","defaultDatasetId":"ds-1"}}`)) //nolint:errcheck
			},
			wantID: "run-1",
		},
		{
			name: "auth error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":{"type":"token-not-valid"}}`)) //nolint:errcheck
			},
			wantErr:    true,
			wantStatus: 401,
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantErr:    true,
			wantStatus: 429,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newTestServer(t, tt.handler)
			run, err := c.StartRun(context.Background(), "curious_coder/linkedin-search", map[string]any{"searchUrl": "https://x/search"})

			if tt.wantErr {
				require.Error(t, err)
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, run.ID)
			assert.Equal(t, "ds-1", run.DefaultDatasetID)
			assert.False(t, run.Finished())
		})
	}
}

func TestStartRun_RequiresActor(t *testing.T) {
	c := NewClient("t")
	_, err := c.StartRun(context.Background(), "", nil)
	require.Error(t, err)
}

func TestGetRun(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/actor-runs/run-1", r.URL.Path)
		w.Write([]byte(`{"data":{"id":"run-1","status":"SUCCEEDED","defaultDatasetId":"ds-1"}}`)) //nolint:errcheck
	})

	run, err := c.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, run.Status)
	assert.True(t, run.Finished())
}

func TestDatasetItems(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/datasets/ds-1/items", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "true", r.URL.Query().Get("clean"))
		w.Write([]byte(`[{"profileUrl":"https://x/in/a"},{"profileUrl":"https://x/in/b"}]`)) //nolint:errcheck
	})

	var items []map[string]string
	require.NoError(t, c.DatasetItems(context.Background(), "ds-1", &items))
	require.Len(t, items, 2)
	assert.Equal(t, "https://x/in/b", items[1]["profileUrl"])
}

func TestMalformedJSON(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`)) //nolint:errcheck
	})

	_, err := c.GetRun(context.Background(), "run-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestContextCancellation(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should have been cancelled")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetRun(ctx, "run-1")
	require.Error(t, err)
}

func TestAPIError_Error(t *testing.T) {
	e := &APIError{StatusCode: 502, Body: "bad gateway"}
	assert.Equal(t, "apify: HTTP 502: bad gateway", e.Error())
}

func TestWithHTTPClient(t *testing.T) {
	custom := &http.Client{}
	c := NewClient("key", WithHTTPClient(custom))
	assert.Equal(t, custom, c.(*httpClient).http)
}
