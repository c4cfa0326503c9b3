//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"cardtrack/config"
	"cardtrack/internal/app"
	"cardtrack/internal/core"
)

// API endpoints
const (
	healthPath   = "/health"
	sessionsPath = "/v1/sessions"
	scrollPath   = "/v1/navigation/scroll"
	warmupPath   = "/admin/v1/warmup"
)

// setsState mirrors the loader state returned by the sets endpoints.
type setsState struct {
	Game         string           `json:"game"`
	Items        []core.SetRecord `json:"items"`
	Total        int              `json:"total"`
	Loading      bool             `json:"loading"`
	LoadingMore  *bool            `json:"loading_more"`
	HasMore      *bool            `json:"has_more"`
	Error        *string          `json:"error"`
	Source       string           `json:"source"`
	ContentReady bool             `json:"content_ready"`
}

// newService starts a private service against its own mock card API.
// Use it for tests that change upstream behavior or configuration.
func newService(t *testing.T, mutate func(*config.Config)) (string, *MockCardAPI) {
	t.Helper()
	api := NewMockCardAPI()
	t.Cleanup(api.Close)
	baseURL, _ := startService(t, api, mutate)
	return baseURL, api
}

// startService starts a service against api. stop shuts it down and may be
// called before the test ends, for example to reopen the same stores.
func startService(t *testing.T, api *MockCardAPI, mutate func(*config.Config)) (string, func()) {
	t.Helper()

	application, err := app.New(context.Background(), app.Config{
		AppConfig: testConfig(api.URL(), mutate),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(application.Handler())
	stop := func() {
		srv.Close()
		_ = application.Shutdown(context.Background())
	}
	t.Cleanup(stop)
	return srv.URL, stop
}

// sendRequest sends a request with an optional JSON body and extra headers.
func sendRequest(t *testing.T, method, url string, payload any, headers ...string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// createSession opens a session on baseURL and returns its id.
func createSession(t *testing.T, baseURL string) string {
	t.Helper()
	resp := sendRequest(t, http.MethodPost, baseURL+sessionsPath, nil)
	defer closeBody(resp)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.ID)
	return created.ID
}

// setsURL returns the sets endpoint of a session and game.
func setsURL(baseURL, session, game string) string {
	return baseURL + sessionsPath + "/" + session + "/sets/" + game
}

// loadSets waits for the first load of game in session and returns the state.
func loadSets(t *testing.T, baseURL, session, game string) setsState {
	t.Helper()
	resp := sendRequest(t, http.MethodGet, setsURL(baseURL, session, game)+"?wait=true", nil)
	defer closeBody(resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeBody[setsState](t, resp)
}

// getSets returns the current state without waiting.
func getSets(t *testing.T, baseURL, session, game string) setsState {
	t.Helper()
	resp := sendRequest(t, http.MethodGet, setsURL(baseURL, session, game), nil)
	defer closeBody(resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeBody[setsState](t, resp)
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// closeBody is a helper to close response body in defer statements.
func closeBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
}
