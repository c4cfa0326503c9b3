//go:build e2e

package e2e

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scrollPosition struct {
	Path     string `json:"path"`
	Offset   int    `json:"offset"`
	Restored bool   `json:"restored"`
}

func restoreScroll(t *testing.T, path string) scrollPosition {
	t.Helper()
	resp := sendRequest(t, http.MethodGet, serviceURL+scrollPath+"?path="+url.QueryEscape(path), nil)
	defer closeBody(resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeBody[scrollPosition](t, resp)
}

func TestNavigation_SaveAndRestore_E2E(t *testing.T) {
	resp := sendRequest(t, http.MethodPut, serviceURL+scrollPath, map[string]any{
		"path":   "/sets/pokemon?e2e=restore",
		"offset": 1840,
	})
	closeBody(resp)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	pos := restoreScroll(t, "/sets/pokemon?e2e=restore")
	assert.True(t, pos.Restored)
	assert.Equal(t, 1840, pos.Offset)
}

func TestNavigation_UnknownPathStartsAtTop_E2E(t *testing.T) {
	pos := restoreScroll(t, "/sets/never-visited")
	assert.False(t, pos.Restored)
	assert.Zero(t, pos.Offset)
}

func TestNavigation_PathsAreIndependent_E2E(t *testing.T) {
	for path, offset := range map[string]int{"/e2e/a": 100, "/e2e/b": 900} {
		resp := sendRequest(t, http.MethodPut, serviceURL+scrollPath, map[string]any{"path": path, "offset": offset})
		closeBody(resp)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
	}

	assert.Equal(t, 100, restoreScroll(t, "/e2e/a").Offset)
	assert.Equal(t, 900, restoreScroll(t, "/e2e/b").Offset)
}

func TestNavigation_MissingPath_E2E(t *testing.T) {
	resp := sendRequest(t, http.MethodPut, serviceURL+scrollPath, map[string]any{"offset": 10})
	closeBody(resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = sendRequest(t, http.MethodGet, serviceURL+scrollPath, nil)
	closeBody(resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
