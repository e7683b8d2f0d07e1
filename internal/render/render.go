// Package render projects one step's snapshot and actions into the display
// model drawn by the viewer page. It performs no I/O.
package render

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"quardsview/internal/catalog"
	"quardsview/internal/match"
)

// Label tells the page how an action tile behaves.
type Label string

const (
	// Executable actions submit a new log entry when clicked.
	Executable Label = "executable"
	// Chosen marks the action that was historically taken; clicking advances.
	Chosen Label = "chosen"
	// Alternative actions were legal but not taken; they are inert.
	Alternative Label = "alternative"
)

const cardBack = "/back.png"

const chosenHint = "✓ CHOSEN - Click to advance"

// Input is everything needed to draw one step.
type Input struct {
	MatchID  string
	Cursor   int
	Length   int
	Live     bool
	Playing  bool
	Step     match.Step
	Steps    []match.Step
	Snapshot *match.GameSnapshot
	Actions  []match.Action
	// Matched must point into Actions, or be nil.
	Matched    *match.Action
	ActionsErr error
	History    []match.HistoryEntry
	HistoryErr error
	Catalog    *catalog.Catalog
}

// View is the display model for one step.
type View struct {
	MatchID       string       `json:"matchId"`
	Cursor        int          `json:"cursor"`
	Length        int          `json:"length"`
	Live          bool         `json:"live"`
	Playing       bool         `json:"playing"`
	Counter       string       `json:"counter"`
	Progress      float64      `json:"progress"`
	StepInfo      string       `json:"stepInfo"`
	CurrentPlayer int          `json:"currentPlayer"`
	Players       []PlayerView `json:"players"`
	Actions       ActionsPanel `json:"actions"`
	History       HistoryPanel `json:"history"`
	Notice        string       `json:"notice,omitempty"`
}

// PlayerView is one player's side of the board.
type PlayerView struct {
	Number      int        `json:"number"`
	Deck        int        `json:"deck"`
	Discard     int        `json:"discard"`
	Hand        []CardView `json:"hand"`
	InPlay      []CardView `json:"inPlay"`
	DiscardPile []CardView `json:"discardPile"`
	Inkwell     []CardView `json:"inkwell"`
	Lore        int        `json:"lore"`
	Ink         string     `json:"ink"`
}

// CardView is a drawable card.
type CardView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Image     string `json:"image"`
	Tooltip   string `json:"tooltip"`
	Known     bool   `json:"known"`
	Instance  string `json:"instance,omitempty"`
	Exhausted bool   `json:"exhausted,omitempty"`
}

// ActionsPanel holds either the category buckets or a placeholder.
type ActionsPanel struct {
	Categories  []Category   `json:"categories,omitempty"`
	Placeholder *Placeholder `json:"placeholder,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Placeholder is shown when no valid actions exist.
type Placeholder struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Category is one fixed bucket of actions. Empty buckets are kept.
type Category struct {
	Type    match.ActionType `json:"type"`
	Title   string           `json:"title"`
	Actions []ActionView     `json:"actions"`
}

// ActionView is one action tile.
type ActionView struct {
	// Index is the action's position in the backend's list.
	Index      int              `json:"index"`
	Type       match.ActionType `json:"type"`
	Label      Label            `json:"label"`
	Parameters match.Parameters `json:"parameters,omitempty"`
	Card       *CardView        `json:"card,omitempty"`
	Hint       string           `json:"hint,omitempty"`
}

// HistoryPanel lists descriptions up to the cursor.
type HistoryPanel struct {
	Entries []HistoryItem `json:"entries"`
	Error   string        `json:"error,omitempty"`
}

// HistoryItem is one history line.
type HistoryItem struct {
	Index       int    `json:"index"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Current     bool   `json:"current"`
}

var (
	upper   = cases.Upper(language.English)
	printer = message.NewPrinter(language.English)
)

// Render maps in to a View.
func Render(in Input) View {
	v := View{
		MatchID:       in.MatchID,
		Cursor:        in.Cursor,
		Length:        in.Length,
		Live:          in.Live,
		Playing:       in.Playing,
		Counter:       Counter(in.Cursor, in.Length),
		Progress:      Progress(in.Cursor, in.Length),
		StepInfo:      stepInfo(in.Cursor, in.Length, in.Step),
		CurrentPlayer: CurrentPlayer(in.Steps, in.Cursor),
		Actions:       renderActions(in),
		History:       renderHistory(in),
	}
	if in.Snapshot != nil {
		v.Players = []PlayerView{
			renderPlayer(1, in.Snapshot.Zones.Player1, in.Snapshot.PlayerStats.Player1, in.Catalog),
			renderPlayer(2, in.Snapshot.Zones.Player2, in.Snapshot.PlayerStats.Player2, in.Catalog),
		}
	}
	return v
}

// Counter formats the step counter.
func Counter(cursor, length int) string {
	if length == 0 {
		return "Step 0 / 0"
	}
	return printer.Sprintf("Step %d / %d", cursor+1, length)
}

// Progress is the timeline fill in percent.
func Progress(cursor, length int) float64 {
	if length == 0 {
		return 0
	}
	return float64(cursor+1) / float64(length) * 100
}

// LabelFor classifies one valid action.
func LabelFor(live bool, action, matched *match.Action) Label {
	switch {
	case live:
		return Executable
	case matched != nil && action == matched:
		return Chosen
	default:
		return Alternative
	}
}

// CurrentPlayer scans back from cursor for the latest turn_start or pass.
// It defaults to player 1.
func CurrentPlayer(steps []match.Step, cursor int) int {
	for i := min(cursor, len(steps)-1); i >= 0; i-- {
		st := steps[i]
		switch {
		case st.Action == match.TurnStart && st.Parameters.Int("player") > 0:
			return st.Parameters.Int("player")
		case st.Action == string(match.Pass):
			if st.Player == 1 {
				return 2
			}
			return 1
		}
	}
	return 1
}

func stepInfo(cursor, length int, st match.Step) string {
	if length == 0 {
		return ""
	}
	info := printer.Sprintf("Step %d: Player %d - %s", cursor+1, st.Player, st.Action)
	if p := st.Parameters.Format(); p != "" {
		info += " " + p
	}
	return info
}

func renderActions(in Input) ActionsPanel {
	var panel ActionsPanel
	if in.ActionsErr != nil {
		panel.Error = "Failed to load available actions"
	}

	buckets := make(map[match.ActionType][]ActionView, len(match.Categories))
	valid := 0
	for i := range in.Actions {
		a := &in.Actions[i]
		if !a.Valid {
			continue
		}
		valid++
		if a.Type == match.Pass && len(buckets[match.Pass]) > 0 {
			continue
		}
		label := LabelFor(in.Live, a, in.Matched)
		av := ActionView{Index: i, Type: a.Type, Label: label, Parameters: a.Parameters}
		if label == Chosen {
			av.Hint = chosenHint
		}
		if id := a.Parameters.String("card_id"); id != "" {
			cv := cardView(id, in.Catalog)
			cv.Tooltip += actionSuffix(a.Parameters)
			av.Card = &cv
		}
		buckets[a.Type] = append(buckets[a.Type], av)
	}

	if valid == 0 {
		if in.Live {
			panel.Placeholder = &Placeholder{Title: "No Actions", Text: "No actions available at this time"}
		} else {
			panel.Placeholder = &Placeholder{Title: "No Valid Actions", Text: "No valid actions were available at this step"}
		}
		return panel
	}

	for _, t := range match.Categories {
		panel.Categories = append(panel.Categories, Category{
			Type:    t,
			Title:   upper.String(strings.ReplaceAll(string(t), "_", " ")),
			Actions: append([]ActionView{}, buckets[t]...),
		})
	}
	return panel
}

func actionSuffix(p match.Parameters) string {
	var s string
	if cost := p.String("cost"); cost != "" && cost != "0" {
		s += fmt.Sprintf(" (%s ink)", cost)
	}
	if lore := p.String("lore"); lore != "" && lore != "0" {
		s += fmt.Sprintf(" (+%s lore)", lore)
	}
	return s
}

func renderHistory(in Input) HistoryPanel {
	panel := HistoryPanel{Entries: []HistoryItem{}}
	if len(in.Steps) == 0 {
		panel.Error = "No game history available"
		return panel
	}
	if in.HistoryErr != nil {
		panel.Error = "Error loading game history"
		return panel
	}
	byStep := make(map[int]string, len(in.History))
	for _, h := range in.History {
		byStep[h.Step] = h.Description
	}
	for i, st := range in.Steps {
		desc, ok := byStep[st.Index]
		if !ok {
			continue
		}
		panel.Entries = append(panel.Entries, HistoryItem{
			Index:       i,
			Title:       printer.Sprintf("Step %d", i+1),
			Description: desc,
			Current:     i == in.Cursor,
		})
	}
	return panel
}

func renderPlayer(n int, z match.PlayerZones, s match.PlayerStats, cat *catalog.Catalog) PlayerView {
	pv := PlayerView{
		Number:      n,
		Deck:        z.Deck,
		Discard:     z.Discard,
		Hand:        []CardView{},
		InPlay:      []CardView{},
		DiscardPile: []CardView{},
		Inkwell:     []CardView{},
		Lore:        s.Lore,
		Ink:         printer.Sprintf("%d / %d", s.AvailableInk, s.TotalInk),
	}
	for _, c := range z.Hand {
		pv.Hand = append(pv.Hand, cardView(c.CardID, cat))
	}
	for _, c := range z.InPlay {
		cv := cardView(c.CardID, cat)
		cv.Instance = c.InstanceID
		cv.Exhausted = c.Exhausted
		if c.Exhausted {
			cv.Tooltip += " (Exhausted)"
		}
		pv.InPlay = append(pv.InPlay, cv)
	}
	for _, c := range z.DiscardPile {
		pv.DiscardPile = append(pv.DiscardPile, cardView(c.CardID, cat))
	}
	for _, c := range s.Inkwell {
		pv.Inkwell = append(pv.Inkwell, cardView(c.CardID, cat))
	}
	return pv
}

func cardView(id string, cat *catalog.Catalog) CardView {
	card, ok := cat.Card(id)
	if !ok || card.Image == "" {
		return CardView{ID: id, Name: cat.Name(id), Image: cardBack, Tooltip: id + " (Card data not found)"}
	}
	return CardView{ID: id, Name: card.Name, Image: card.Image, Tooltip: card.Name, Known: true}
}
