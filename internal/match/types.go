package match

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ActionType names a kind of player decision the rules engine can offer.
type ActionType string

const (
	Pass      ActionType = "pass"
	InkCard   ActionType = "ink_card"
	PlayCard  ActionType = "play_card"
	Quest     ActionType = "quest"
	Challenge ActionType = "challenge"
)

// Categories is the fixed display order of action buckets.
var Categories = []ActionType{InkCard, PlayCard, Quest, Challenge, Pass}

// Log actions that are not player choices but matter to navigation.
const (
	TurnStart = "turn_start"
)

// Parameters holds the free-form arguments of a log entry or action.
type Parameters map[string]any

// String returns the parameter value in its textual form, or "" when absent.
// The backend sends some values as numbers and some as strings, so comparisons
// go through this form.
func (p Parameters) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// Int returns the parameter as an int, or 0 when absent or not numeric.
func (p Parameters) Int(key string) int {
	n, err := strconv.Atoi(p.String(key))
	if err != nil {
		return 0
	}
	return n
}

// Has reports whether the parameter is present and non-empty.
func (p Parameters) Has(key string) bool {
	return p.String(key) != ""
}

// Format renders parameters as "(k: v, ...)" sorted by key, or "" when empty.
func (p Parameters) Format() string {
	if len(p) == 0 {
		return ""
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, p.String(k)))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// LogEntry is one recorded line of a match log.
type LogEntry struct {
	Turn       int        `json:"turn"`
	Player     int        `json:"player"`
	Action     string     `json:"action"`
	Parameters Parameters `json:"parameters,omitempty"`
}

// Step is a log entry as classified by the navigation endpoint.
type Step struct {
	LogEntry
	// Index is the 0-based position in the raw log as reported by the server.
	Index          int    `json:"step"`
	Description    string `json:"description,omitempty"`
	IsPlayerChoice bool   `json:"isPlayerChoice"`
	// OriginalStepNumber is the 1-based raw log position used to query per-step state.
	OriginalStepNumber int `json:"-"`
}

// Action is a candidate move offered by the rules engine for a step.
type Action struct {
	Type        ActionType `json:"type"`
	Description string     `json:"description,omitempty"`
	Parameters  Parameters `json:"parameters"`
	Valid       bool       `json:"valid"`
	Reason      string     `json:"reason,omitempty"`
}

// CardRef identifies a card in a hidden or face-up zone.
type CardRef struct {
	CardID string `json:"card_id"`
}

// InPlayCard is a card on the battlefield.
type InPlayCard struct {
	CardID     string `json:"card_id"`
	InstanceID string `json:"instance_id"`
	Exhausted  bool   `json:"exhausted"`
	TurnPlayed int    `json:"turn_played"`
}

// PlayerZones is one player's zone contents at a step.
type PlayerZones struct {
	Deck        int          `json:"deck"`
	Discard     int          `json:"discard"`
	DiscardPile []CardRef    `json:"discardPile,omitempty"`
	Hand        []CardRef    `json:"hand"`
	InPlay      []InPlayCard `json:"in_play"`
	Ink         []CardRef    `json:"ink,omitempty"`
}

// InkwellCard is a card placed in the inkwell.
type InkwellCard struct {
	CardID string `json:"cardId"`
}

// PlayerStats is one player's counters at a step.
type PlayerStats struct {
	Lore         int           `json:"lore"`
	TotalInk     int           `json:"total_ink"`
	AvailableInk int           `json:"available_ink"`
	Inkwell      []InkwellCard `json:"inkwell,omitempty"`
}

// Zones groups the two players' zones.
type Zones struct {
	Player1 PlayerZones `json:"player1"`
	Player2 PlayerZones `json:"player2"`
}

// Stats groups the two players' counters.
type Stats struct {
	Player1 PlayerStats `json:"player1"`
	Player2 PlayerStats `json:"player2"`
}

// GameSnapshot is the board state after a given step.
type GameSnapshot struct {
	Zones       Zones `json:"zones"`
	PlayerStats Stats `json:"playerStats"`
}

// HistoryEntry is a human readable description of one raw log entry.
type HistoryEntry struct {
	Step        int    `json:"step"`
	Player      int    `json:"player"`
	Event       string `json:"event"`
	Description string `json:"description"`
}

// GameSummary describes a stored match.
type GameSummary struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Player1Deck string    `json:"player1Deck"`
	Player2Deck string    `json:"player2Deck"`
	Seed        *int      `json:"seed,omitempty"`
	Status      string    `json:"status,omitempty"`
	Winner      *int      `json:"winner,omitempty"`
	Turns       int       `json:"turns"`
	Type        string    `json:"type,omitempty"`
	Created     time.Time `json:"created"`
}

// NewGame is the payload for creating a match, either fresh or from an existing log.
type NewGame struct {
	Name        string `json:"name,omitempty"`
	Player1Deck string `json:"player1Deck"`
	Player2Deck string `json:"player2Deck"`
	Seed        *int   `json:"seed,omitempty"`
	LogContent  string `json:"logContent,omitempty"`
}

// Deck is a named card list.
type Deck struct {
	ID          int            `json:"id,omitempty"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Cards       map[string]int `json:"cards,omitempty"`
	CardCount   int            `json:"cardCount,omitempty"`
	Created     time.Time      `json:"created"`
	Modified    time.Time      `json:"modified"`
}

// Card is a catalog record.
type Card struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Image      string `json:"image"`
	Cost       int    `json:"cost"`
	Strength   int    `json:"strength"`
	Willpower  int    `json:"willpower"`
	Lore       int    `json:"lore"`
	Type       string `json:"type"`
	Color      string `json:"color"`
	Rarity     string `json:"rarity"`
	BodyText   string `json:"bodyText"`
	FlavorText string `json:"flavorText"`
}
