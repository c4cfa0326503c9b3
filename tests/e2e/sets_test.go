//go:build e2e

package e2e

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSets_EveryGame_E2E(t *testing.T) {
	tests := []struct {
		game      string
		total     int
		visible   int
		first     string
		paginated bool
	}{
		{game: "pokemon", total: pokemonSetCount, visible: 24, first: "Scarlet Violet 01", paginated: true},
		{game: "mtg", total: 2, visible: 2, first: "Murders at Karlov Manor"},
		{game: "yugioh", total: 2, visible: 2, first: "Rage of the Abyss"},
		{game: "lorcana", total: 2, visible: 2, first: "Azurite Sea"},
	}

	session := createSession(t, serviceURL)
	for _, tt := range tests {
		t.Run(tt.game, func(t *testing.T) {
			state := loadSets(t, serviceURL, session, tt.game)

			assert.Equal(t, tt.game, state.Game)
			assert.False(t, state.Loading)
			assert.Nil(t, state.Error)
			assert.True(t, state.ContentReady)
			assert.Equal(t, "api", state.Source)
			assert.Equal(t, tt.total, state.Total)
			require.Len(t, state.Items, tt.visible)
			assert.Equal(t, tt.first, state.Items[0].Name)

			if tt.paginated {
				require.NotNil(t, state.HasMore)
				assert.True(t, *state.HasMore)
				require.NotNil(t, state.LoadingMore)
				assert.False(t, *state.LoadingMore)
			} else {
				assert.Nil(t, state.HasMore, "has_more is omitted for unpaginated games")
				assert.Nil(t, state.LoadingMore)
			}
		})
	}
}

func TestSets_NewestFirst_E2E(t *testing.T) {
	session := createSession(t, serviceURL)
	state := loadSets(t, serviceURL, session, "pokemon")

	for i := 1; i < len(state.Items); i++ {
		assert.GreaterOrEqual(t, state.Items[i-1].ReleaseDate, state.Items[i].ReleaseDate)
	}
}

func TestSets_LoadMore_E2E(t *testing.T) {
	session := createSession(t, serviceURL)
	state := loadSets(t, serviceURL, session, "pokemon")
	require.Len(t, state.Items, 24)

	resp := sendRequest(t, http.MethodPost, setsURL(serviceURL, session, "pokemon")+"/more", nil)
	accepted := decodeBody[setsState](t, resp)
	closeBody(resp)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NotNil(t, accepted.LoadingMore)
	assert.True(t, *accepted.LoadingMore)

	require.Eventually(t, func() bool {
		st := getSets(t, serviceURL, session, "pokemon")
		return len(st.Items) == pokemonSetCount && st.LoadingMore != nil && !*st.LoadingMore
	}, 2*time.Second, 20*time.Millisecond)

	state = getSets(t, serviceURL, session, "pokemon")
	require.NotNil(t, state.HasMore)
	assert.False(t, *state.HasMore)

	// Nothing left to show: the request is ignored.
	resp = sendRequest(t, http.MethodPost, setsURL(serviceURL, session, "pokemon")+"/more", nil)
	closeBody(resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSets_LoadMoreUnpaginated_E2E(t *testing.T) {
	session := createSession(t, serviceURL)
	loadSets(t, serviceURL, session, "mtg")

	resp := sendRequest(t, http.MethodPost, setsURL(serviceURL, session, "mtg")+"/more", nil)
	defer closeBody(resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSets_SessionsShareFetchedCollection_E2E(t *testing.T) {
	first := createSession(t, serviceURL)
	loadSets(t, serviceURL, first, "lorcana")
	before := mockAPI.Requests(lorcanaSetsPath)

	second := createSession(t, serviceURL)
	state := loadSets(t, serviceURL, second, "lorcana")

	assert.Len(t, state.Items, 2)
	assert.Equal(t, before, mockAPI.Requests(lorcanaSetsPath), "second session must not call the card API again")
}

func TestSets_ETag_E2E(t *testing.T) {
	session := createSession(t, serviceURL)
	loadSets(t, serviceURL, session, "yugioh")

	resp := sendRequest(t, http.MethodGet, setsURL(serviceURL, session, "yugioh"), nil)
	closeBody(resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)

	resp = sendRequest(t, http.MethodGet, setsURL(serviceURL, session, "yugioh"), nil, "If-None-Match", etag)
	closeBody(resp)
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
}

func TestSets_Search_E2E(t *testing.T) {
	session := createSession(t, serviceURL)

	resp := sendRequest(t, http.MethodGet, setsURL(serviceURL, session, "mtg")+"/search?q=karlov", nil)
	defer closeBody(resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decodeBody[struct {
		Query   string `json:"query"`
		Matches []struct {
			Record struct {
				Name string `json:"name"`
			} `json:"record"`
		} `json:"matches"`
	}](t, resp)
	assert.Equal(t, "karlov", result.Query)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "Murders at Karlov Manor", result.Matches[0].Record.Name)
}

func TestSets_UnknownSessionAndGame_E2E(t *testing.T) {
	resp := sendRequest(t, http.MethodGet, setsURL(serviceURL, "no-such-session", "pokemon"), nil)
	closeBody(resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	session := createSession(t, serviceURL)
	resp = sendRequest(t, http.MethodGet, setsURL(serviceURL, session, "digimon"), nil)
	closeBody(resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessions_Delete_E2E(t *testing.T) {
	session := createSession(t, serviceURL)
	loadSets(t, serviceURL, session, "mtg")

	resp := sendRequest(t, http.MethodDelete, serviceURL+sessionsPath+"/"+session, nil)
	closeBody(resp)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = sendRequest(t, http.MethodGet, setsURL(serviceURL, session, "mtg"), nil)
	closeBody(resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
