//go:build e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// Card API paths served by MockCardAPI, one per game.
const (
	pokemonSetsPath  = "/v2/sets"
	scryfallSetsPath = "/sets"
	ygoSetsPath      = "/api/v7/cardsets.php"
	lorcanaSetsPath  = "/sets/all"
)

// pokemonSetCount is large enough to need more than one chunk.
const pokemonSetCount = 30

// MockCardAPI simulates the four card database APIs on one server.
type MockCardAPI struct {
	server *httptest.Server

	mu           sync.Mutex
	requests     map[string]int
	failWithCode int
}

// NewMockCardAPI creates and starts a new mock card API.
func NewMockCardAPI() *MockCardAPI {
	m := &MockCardAPI{requests: make(map[string]int)}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// URL returns the base URL every game's source is pointed at.
func (m *MockCardAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCardAPI) Close() {
	m.server.Close()
}

// Fail makes every following request answer with code. 0 restores normal answers.
func (m *MockCardAPI) Fail(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWithCode = code
}

// Requests returns how many requests reached path.
func (m *MockCardAPI) Requests(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[path]
}

func (m *MockCardAPI) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requests[r.URL.Path]++
	code := m.failWithCode
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if code != 0 {
		w.WriteHeader(code)
		_, _ = fmt.Fprintf(w, `{"error": {"message": "mock failure %d"}}`, code)
		return
	}

	var payload any
	switch r.URL.Path {
	case pokemonSetsPath:
		payload = pokemonSets()
	case scryfallSetsPath:
		payload = map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"code": "mkm", "name": "Murders at Karlov Manor", "set_type": "expansion", "released_at": "2024-02-09", "card_count": 286},
				{"code": "lci", "name": "The Lost Caverns of Ixalan", "set_type": "expansion", "released_at": "2023-11-17", "card_count": 291},
				{"code": "ymkm", "name": "Alchemy: Murders at Karlov Manor", "set_type": "alchemy", "released_at": "2024-02-13", "digital": true},
			},
		}
	case ygoSetsPath:
		payload = []map[string]any{
			{"set_name": "Phantom Nightmare", "set_code": "PHNI", "tcg_date": "2024-02-09", "num_of_cards": 100},
			{"set_name": "Rage of the Abyss", "set_code": "ROTA", "tcg_date": "2024-10-25", "num_of_cards": 100},
			{"set_name": "Rage of the Abyss: Special Edition", "set_code": "ROTA", "tcg_date": "2024-11-08"},
		}
	case lorcanaSetsPath:
		payload = []map[string]any{
			{"Name": "Shimmering Skies", "Set_ID": "SSK", "Set_Num": 5, "Release_Date": "2024-08-09", "Cards": 204},
			{"Name": "Azurite Sea", "Set_ID": "AZS", "Set_Num": 6, "Release_Date": "2024-11-15", "Cards": 204},
		}
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": {"message": "Not found"}}`))
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// pokemonSets returns one page holding every set, newest first.
// Set 01 is the newest.
func pokemonSets() map[string]any {
	newest := time.Date(2024, time.November, 8, 0, 0, 0, 0, time.UTC)
	data := make([]map[string]any, pokemonSetCount)
	for i := range data {
		data[i] = map[string]any{
			"id":          fmt.Sprintf("sv%02d", i+1),
			"name":        fmt.Sprintf("Scarlet Violet %02d", i+1),
			"series":      "Scarlet & Violet",
			"ptcgoCode":   fmt.Sprintf("SV%02d", i+1),
			"releaseDate": newest.AddDate(0, 0, -14*i).Format("2006/01/02"),
			"total":       200,
		}
	}
	return map[string]any{
		"data":       data,
		"page":       1,
		"pageSize":   250,
		"count":      len(data),
		"totalCount": len(data),
	}
}
