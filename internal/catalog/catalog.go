// Package catalog holds the static card catalog, loaded once per process.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"quardsview/internal/backend"
	"quardsview/internal/match"
)

// Catalog maps card ids to card records. The zero value is an empty catalog.
type Catalog struct {
	cards map[string]match.Card
}

// Parse reads a JSON array of card records. Numeric fields may be numbers or
// strings in the source file.
func Parse(data []byte) (*Catalog, error) {
	if !gjson.ValidBytes(data) {
		return nil, backend.Wrap(backend.KindLoad, "parse catalog", errors.New("malformed catalog"))
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, backend.Wrap(backend.KindLoad, "parse catalog", errors.New("catalog is not an array"))
	}
	c := &Catalog{cards: make(map[string]match.Card)}
	root.ForEach(func(_, r gjson.Result) bool {
		id := r.Get("Unique_ID").String()
		if id == "" {
			return true
		}
		c.cards[id] = match.Card{
			ID:         id,
			Name:       r.Get("Name").String(),
			Image:      r.Get("Image").String(),
			Cost:       int(r.Get("Cost").Int()),
			Strength:   int(r.Get("Strength").Int()),
			Willpower:  int(r.Get("Willpower").Int()),
			Lore:       int(r.Get("Lore").Int()),
			Type:       r.Get("Type").String(),
			Color:      r.Get("Color").String(),
			Rarity:     r.Get("Rarity").String(),
			BodyText:   r.Get("Body_Text").String(),
			FlavorText: r.Get("Flavor_Text").String(),
		}
		return true
	})
	return c, nil
}

// Fetch downloads and parses the catalog at url.
func Fetch(ctx context.Context, client *http.Client, url string) (*Catalog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backend.Wrap(backend.KindLoad, "fetch catalog", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, backend.Wrap(backend.KindLoad, "fetch catalog", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, backend.Wrap(backend.KindLoad, "fetch catalog", fmt.Errorf("HTTP %d", resp.StatusCode))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, backend.Wrap(backend.KindLoad, "fetch catalog", err)
	}
	return Parse(data)
}

// Card looks up a card by id.
func (c *Catalog) Card(id string) (match.Card, bool) {
	if c == nil || c.cards == nil {
		return match.Card{}, false
	}
	card, ok := c.cards[id]
	return card, ok
}

// Name returns the card name, or the id when the card is unknown.
func (c *Catalog) Name(id string) string {
	if card, ok := c.Card(id); ok && card.Name != "" {
		return card.Name
	}
	return id
}

// Len returns the number of cards.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.cards)
}
