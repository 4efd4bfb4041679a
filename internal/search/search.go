package search

import (
	"strings"

	"sitecopy/api/internal/content"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Path    string `json:"path"`
	Section string `json:"section"`
	Text    string `json:"text"`
	Snippet string `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text    string
	Section string // empty = all sections
	Limit   int
	Offset  int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Backend string   `json:"backend"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer replaces the indexed copy with a new set of fragments.
type Indexer interface {
	ReplaceFragments(records []FragmentRecord) error
}

type Backend interface {
	Searcher
	Indexer
}

// FragmentRecord is the data we index for one text leaf of the document.
type FragmentRecord struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Section string `json:"section"`
	Text    string `json:"text"`
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Records flattens doc into index records.
func Records(doc content.Document) []FragmentRecord {
	fragments := content.Fragments(doc)
	records := make([]FragmentRecord, 0, len(fragments))
	for _, f := range fragments {
		records = append(records, FragmentRecord{
			ID:      fragmentID(f.Path),
			Path:    f.Path,
			Section: f.Section,
			Text:    f.Text,
		})
	}
	return records
}

// fragmentID maps a path such as services.cards[1].title onto the character
// set index ids allow.
func fragmentID(path string) string {
	replacer := strings.NewReplacer(".", "-", "[", "_", "]", "")
	return replacer.Replace(path)
}

func normalizeQuery(q Query) Query {
	q.Text = strings.TrimSpace(q.Text)
	q.Section = strings.TrimSpace(q.Section)
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}
