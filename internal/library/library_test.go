package library

import (
	"net/url"
	"testing"
	"time"

	"quardsview/internal/match"
	"quardsview/internal/storage"
)

var now = time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)

func games() []match.GameSummary {
	winner := 2
	seed := 42
	return []match.GameSummary{
		{ID: 1, Name: "a", Player1Deck: "amber", Player2Deck: "ruby", Created: now.Add(-time.Hour), Winner: &winner, Seed: &seed, Turns: 9},
		{ID: 2, Name: "b", Player1Deck: "ruby", Player2Deck: "steel", Created: now.Add(-3 * 24 * time.Hour)},
		{ID: 3, Player1Deck: "steel", Player2Deck: "amber", Created: now.Add(-20 * 24 * time.Hour)},
		{ID: 4, Name: "d", Player1Deck: "emerald", Player2Deck: "emerald", Created: now.Add(-90 * 24 * time.Hour)},
	}
}

func ids(gs []match.GameSummary) []int {
	out := make([]int, 0, len(gs))
	for _, g := range gs {
		out = append(out, g.ID)
	}
	return out
}

func equal(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestApplyFilters(t *testing.T) {
	cases := []struct {
		name string
		f    Filter
		want []int
	}{
		{"none", Filter{}, []int{1, 2, 3, 4}},
		{"deck either side", Filter{Deck: "amber"}, []int{1, 3}},
		{"today", Filter{Date: Today}, []int{1}},
		{"week", Filter{Date: Week}, []int{1, 2}},
		{"month", Filter{Date: Month}, []int{1, 2, 3}},
		{"deck and player 1", Filter{Deck: "amber", Player: 1}, []int{1}},
		{"deck and player 2", Filter{Deck: "amber", Player: 2}, []int{3}},
		// player is compared against the deck criterion, not a per-player deck
		{"player without deck", Filter{Player: 1}, []int{}},
	}
	for _, c := range cases {
		if got := ids(Apply(games(), c.f, now)); !equal(got, c.want) {
			t.Fatalf("%s: expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestParseFilter(t *testing.T) {
	f := ParseFilter(url.Values{"deck": {"amber"}, "player": {"2"}, "date": {"week"}})
	if f != (Filter{Deck: "amber", Player: 2, Date: Week}) {
		t.Fatalf("unexpected filter %+v", f)
	}
	f = ParseFilter(url.Values{"player": {"3"}, "date": {"decade"}})
	if f.Active() {
		t.Fatalf("invalid values should be dropped, got %+v", f)
	}
}

func TestBuildDescribesGames(t *testing.T) {
	decks := []match.Deck{{Name: "amber", Description: "Amber aggro"}, {Name: "ruby"}}
	s := Build(games(), decks, Filter{Deck: "amber"}, now)
	if len(s.Games) != 2 || len(s.Decks) != 2 {
		t.Fatalf("unexpected screen %+v", s)
	}
	first := s.Games[0]
	if first.Player1DeckDescription != "Amber aggro" || first.Player2DeckDescription != "No description" {
		t.Fatalf("unexpected descriptions %+v", first)
	}
	if first.Winner != "Player 2" || first.Seed != "Seed: 42" || first.Href != "/open/a" {
		t.Fatalf("unexpected entry %+v", first)
	}
	second := s.Games[1]
	if second.ID != "game-3" || second.Player1DeckDescription != "Unknown deck" || second.Seed != "No seed" {
		t.Fatalf("unexpected fallback entry %+v", second)
	}
}

func TestBuildEmptyMessages(t *testing.T) {
	if s := Build(nil, nil, Filter{}, now); s.Message != "No games found. Create your first game to get started!" {
		t.Fatalf("unexpected message %q", s.Message)
	}
	if s := Build(games(), nil, Filter{Deck: "nope"}, now); s.Message != "No games match the current filters." {
		t.Fatalf("unexpected message %q", s.Message)
	}
}

func TestRecentList(t *testing.T) {
	views := []storage.RecentView{
		{MatchID: "g 1", Views: 1, LastViewed: now.Add(-3 * time.Minute)},
		{MatchID: "g2", Views: 1200, LastViewed: now.Add(-2 * time.Hour)},
	}
	got := RecentList(views, now)
	if got[0].Viewed != "3 minutes ago" || got[0].Views != "1 view" || got[0].Href != "/open/g%201" {
		t.Fatalf("unexpected first row %+v", got[0])
	}
	if got[1].Viewed != "2 hours ago" || got[1].Views != "1,200 views" {
		t.Fatalf("unexpected second row %+v", got[1])
	}
}
