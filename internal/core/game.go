// Package core provides the games, set records and error types shared across cardtrack.
package core

import (
	"fmt"
	"strings"
)

// Game identifies a trading card game.
type Game string

const (
	GamePokemon Game = "pokemon"
	GameMTG     Game = "mtg"
	GameYugioh  Game = "yugioh"
	GameLorcana Game = "lorcana"
)

// Date columns used to order set collections.
const (
	DateFieldRelease = "release_date"
	DateFieldTCG     = "tcg_date"
)

// Games returns every supported game in display order.
func Games() []Game {
	return []Game{GamePokemon, GameMTG, GameYugioh, GameLorcana}
}

// ParseGame converts a path or config value into a Game.
// A few common aliases ("magic", "ygo", ...) are accepted.
func ParseGame(s string) (Game, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pokemon", "pokémon", "ptcg":
		return GamePokemon, nil
	case "mtg", "magic":
		return GameMTG, nil
	case "yugioh", "yu-gi-oh", "ygo":
		return GameYugioh, nil
	case "lorcana":
		return GameLorcana, nil
	default:
		return "", fmt.Errorf("unknown game: %q", s)
	}
}

// Valid reports whether g is one of the supported games.
func (g Game) Valid() bool {
	switch g {
	case GamePokemon, GameMTG, GameYugioh, GameLorcana:
		return true
	}
	return false
}

// CacheKey is the fixed cache name for the game's set collection.
func (g Game) CacheKey() string {
	return string(g) + "_sets"
}

// Table is the database table (or collection) holding the game's sets.
func (g Game) Table() string {
	return string(g) + "_sets"
}

// DateField is the canonical date column the game's sets are ordered by.
// Yu-Gi-Oh! orders by the TCG release date rather than the OCG one.
func (g Game) DateField() string {
	if g == GameYugioh {
		return DateFieldTCG
	}
	return DateFieldRelease
}

// DisplayName returns the human-readable game name.
func (g Game) DisplayName() string {
	switch g {
	case GamePokemon:
		return "Pokémon"
	case GameMTG:
		return "Magic: The Gathering"
	case GameYugioh:
		return "Yu-Gi-Oh!"
	case GameLorcana:
		return "Lorcana"
	default:
		return string(g)
	}
}
