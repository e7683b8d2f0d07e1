// Package library builds the games screen: the filtered list of stored
// matches and the recently viewed list.
package library

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"quardsview/internal/match"
	"quardsview/internal/storage"
)

// Date ranges accepted by Filter.Date.
const (
	Today = "today"
	Week  = "week"
	Month = "month"
)

// Filter narrows the games list. Zero values disable a criterion.
type Filter struct {
	Deck   string `json:"deck,omitempty"`
	Player int    `json:"player,omitempty"`
	Date   string `json:"date,omitempty"`
}

// ParseFilter reads deck, player and date query parameters.
func ParseFilter(q url.Values) Filter {
	f := Filter{Deck: q.Get("deck"), Date: q.Get("date")}
	if p, err := strconv.Atoi(q.Get("player")); err == nil && (p == 1 || p == 2) {
		f.Player = p
	}
	switch f.Date {
	case Today, Week, Month:
	default:
		f.Date = ""
	}
	return f
}

// Active reports whether any criterion is set.
func (f Filter) Active() bool {
	return f.Deck != "" || f.Player != 0 || f.Date != ""
}

// Apply returns the games matching f, in input order.
//
// The player criterion keeps games whose selected player's deck equals the
// deck criterion, so selecting a player without a deck matches nothing.
func Apply(games []match.GameSummary, f Filter, now time.Time) []match.GameSummary {
	out := make([]match.GameSummary, 0, len(games))
	for _, g := range games {
		if f.Deck != "" && g.Player1Deck != f.Deck && g.Player2Deck != f.Deck {
			continue
		}
		if f.Player == 1 && g.Player1Deck != f.Deck {
			continue
		}
		if f.Player == 2 && g.Player2Deck != f.Deck {
			continue
		}
		if !inRange(g.Created, f.Date, now) {
			continue
		}
		out = append(out, g)
	}
	return out
}

func inRange(created time.Time, date string, now time.Time) bool {
	switch date {
	case Today:
		y1, m1, d1 := created.In(now.Location()).Date()
		y2, m2, d2 := now.Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	case Week:
		return !created.Before(now.Add(-7 * 24 * time.Hour))
	case Month:
		return !created.Before(now.Add(-30 * 24 * time.Hour))
	}
	return true
}

// Entry is one card on the games screen.
type Entry struct {
	ID                     string `json:"id"`
	Name                   string `json:"name"`
	Href                   string `json:"href"`
	Player1Deck            string `json:"player1Deck"`
	Player2Deck            string `json:"player2Deck"`
	Player1DeckDescription string `json:"player1DeckDescription"`
	Player2DeckDescription string `json:"player2DeckDescription"`
	Created                string `json:"created"`
	Turns                  int    `json:"turns"`
	Winner                 string `json:"winner"`
	Seed                   string `json:"seed"`
}

// Screen is the games screen model.
type Screen struct {
	Filter  Filter   `json:"filter"`
	Decks   []string `json:"decks"`
	Games   []Entry  `json:"games"`
	Message string   `json:"message,omitempty"`
}

// Build filters games and describes them using decks.
func Build(games []match.GameSummary, decks []match.Deck, f Filter, now time.Time) Screen {
	desc := make(map[string]string, len(decks))
	s := Screen{Filter: f, Decks: make([]string, 0, len(decks)), Games: []Entry{}}
	for _, d := range decks {
		s.Decks = append(s.Decks, d.Name)
		desc[d.Name] = d.Description
		if desc[d.Name] == "" {
			desc[d.Name] = "No description"
		}
	}
	describe := func(name string) string {
		if d, ok := desc[name]; ok {
			return d
		}
		return "Unknown deck"
	}

	for _, g := range Apply(games, f, now) {
		id := g.Name
		if id == "" {
			id = fmt.Sprintf("game-%d", g.ID)
		}
		e := Entry{
			ID:                     id,
			Name:                   g.Name,
			Href:                   "/open/" + url.PathEscape(id),
			Player1Deck:            g.Player1Deck,
			Player2Deck:            g.Player2Deck,
			Player1DeckDescription: describe(g.Player1Deck),
			Player2DeckDescription: describe(g.Player2Deck),
			Turns:                  g.Turns,
			Winner:                 "-",
			Seed:                   "No seed",
		}
		if !g.Created.IsZero() {
			e.Created = g.Created.Format("2006-01-02 15:04")
		}
		if g.Winner != nil {
			e.Winner = fmt.Sprintf("Player %d", *g.Winner)
		}
		if g.Seed != nil {
			e.Seed = fmt.Sprintf("Seed: %d", *g.Seed)
		}
		s.Games = append(s.Games, e)
	}

	if len(s.Games) == 0 {
		if f.Active() {
			s.Message = "No games match the current filters."
		} else {
			s.Message = "No games found. Create your first game to get started!"
		}
	}
	return s
}

// Recent is one row of the recently viewed list.
type Recent struct {
	MatchID string `json:"matchId"`
	Href    string `json:"href"`
	Views   string `json:"views"`
	Viewed  string `json:"viewed"`
}

// RecentList formats stored views relative to now.
func RecentList(views []storage.RecentView, now time.Time) []Recent {
	out := make([]Recent, 0, len(views))
	for _, v := range views {
		out = append(out, Recent{
			MatchID: v.MatchID,
			Href:    "/open/" + url.PathEscape(v.MatchID),
			Views:   humanize.Comma(v.Views) + " " + plural(v.Views, "view"),
			Viewed:  humanize.RelTime(v.LastViewed, now, "ago", "from now"),
		})
	}
	return out
}

func plural(n int64, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
