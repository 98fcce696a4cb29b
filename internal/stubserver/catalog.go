package stubserver

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

//go:embed schemes.json
var schemesJSON []byte

// Scheme is the wire shape of one catalog entry.
type Scheme struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Eligibility string   `json:"eligibility"`
	Documents   []string `json:"documents"`
	Steps       []string `json:"steps"`
	Benefits    string   `json:"benefits"`
}

type catalogEntry struct {
	Scheme
	Keywords []string `json:"keywords"`
}

type catalog struct {
	entries []catalogEntry
	byID    map[string]Scheme
}

func loadCatalog(raw []byte) (*catalog, error) {
	var entries []catalogEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode scheme catalog: %w", err)
	}
	if dups := lo.FindDuplicatesBy(entries, func(e catalogEntry) string { return e.ID }); len(dups) > 0 {
		return nil, fmt.Errorf("duplicate scheme id %q in catalog", dups[0].ID)
	}
	return &catalog{
		entries: entries,
		byID: lo.SliceToMap(entries, func(e catalogEntry) (string, Scheme) {
			return e.ID, e.Scheme
		}),
	}, nil
}

func (c *catalog) all() []Scheme {
	return lo.Map(c.entries, func(e catalogEntry, _ int) Scheme { return e.Scheme })
}

func (c *catalog) get(id string) (Scheme, bool) {
	scheme, ok := c.byID[strings.TrimSpace(id)]
	return scheme, ok
}

// match returns the schemes whose keywords appear in the transcript, in catalog order.
func (c *catalog) match(transcript string) []Scheme {
	words := lo.Words(strings.ToLower(transcript))
	matched := lo.Filter(c.entries, func(e catalogEntry, _ int) bool {
		return lo.Some(e.Keywords, words)
	})
	return lo.Map(matched, func(e catalogEntry, _ int) Scheme { return e.Scheme })
}

func replyText(matched []Scheme) string {
	if len(matched) == 0 {
		return "I could not find a matching scheme yet. Could you tell me a little more about yourself and your family?"
	}
	titles := lo.Map(matched, func(s Scheme, _ int) string { return s.Title })
	return fmt.Sprintf("Based on what you shared, you may be eligible for %s. Tap a scheme to see the documents and steps.", strings.Join(titles, ", "))
}
