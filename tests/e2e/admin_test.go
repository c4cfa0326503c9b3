//go:build e2e

package e2e

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardtrack/config"
)

const testMasterKey = "e2e-master-key"

func withMasterKey(cfg *config.Config) {
	cfg.Server.MasterKey = testMasterKey
}

func TestAdminAPI_RequiresAuth_E2E(t *testing.T) {
	baseURL, _ := newService(t, withMasterKey)

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"warmup", http.MethodPost, warmupPath},
		{"invalidate cache", http.MethodDelete, "/admin/v1/cache/pokemon"},
		{"delete set", http.MethodDelete, "/admin/v1/sets/pokemon/sv01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := sendRequest(t, tt.method, baseURL+tt.path, nil)
			closeBody(resp)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

			resp = sendRequest(t, tt.method, baseURL+tt.path, nil, "Authorization", "Bearer wrong-key")
			closeBody(resp)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestAdminAPI_PublicRoutesSkipAuth_E2E(t *testing.T) {
	baseURL, _ := newService(t, withMasterKey)

	resp := sendRequest(t, http.MethodGet, baseURL+healthPath, nil)
	closeBody(resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	state := loadSets(t, baseURL, createSession(t, baseURL), "mtg")
	assert.Len(t, state.Items, 2)
}

func TestAdminAPI_UpsertAndDelete_E2E(t *testing.T) {
	baseURL, api := newService(t, withMasterKey)
	auth := []string{"Authorization", "Bearer " + testMasterKey}
	api.Fail(http.StatusBadRequest)

	resp := sendRequest(t, http.MethodPut, baseURL+"/admin/v1/sets/lorcana", []map[string]any{
		{"id": "AZS", "name": "Azurite Sea", "release_date": "2024-11-15"},
		{"id": "SSK", "name": "Shimmering Skies", "release_date": "2024-08-09"},
	}, auth...)
	closeBody(resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	state := loadSets(t, baseURL, createSession(t, baseURL), "lorcana")
	assert.Equal(t, "database", state.Source)
	require.Len(t, state.Items, 2)
	assert.Equal(t, "AZS", state.Items[0].ID)

	resp = sendRequest(t, http.MethodDelete, baseURL+"/admin/v1/sets/lorcana/AZS", nil, auth...)
	closeBody(resp)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	state = loadSets(t, baseURL, createSession(t, baseURL), "lorcana")
	require.Len(t, state.Items, 1)
	assert.Equal(t, "SSK", state.Items[0].ID)

	resp = sendRequest(t, http.MethodDelete, baseURL+"/admin/v1/sets/lorcana/AZS", nil, auth...)
	closeBody(resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminAPI_UpsertRejectsInvalidRecords_E2E(t *testing.T) {
	baseURL, _ := newService(t, withMasterKey)
	auth := []string{"Authorization", "Bearer " + testMasterKey}

	resp := sendRequest(t, http.MethodPut, baseURL+"/admin/v1/sets/mtg", []map[string]any{{"name": "No ID"}}, auth...)
	closeBody(resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = sendRequest(t, http.MethodPut, baseURL+"/admin/v1/sets/mtg", []map[string]any{}, auth...)
	closeBody(resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetrics_Exposed_E2E(t *testing.T) {
	session := createSession(t, serviceURL)
	loadSets(t, serviceURL, session, "pokemon")

	resp := sendRequest(t, http.MethodGet, serviceURL+"/metrics", nil)
	defer closeBody(resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "cardtrack_loader_tier_total"))
}
