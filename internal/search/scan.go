package search

import (
	"strings"
	"sync"

	"sitecopy/api/internal/content"
)

// Scan searches the latest committed document in process. It is the fallback
// when no search server is configured or reachable.
type Scan struct {
	mu        sync.RWMutex
	fragments []content.Fragment
}

func NewScan() *Scan {
	return &Scan{}
}

// Update replaces the searched document.
func (s *Scan) Update(doc content.Document) {
	fragments := content.Fragments(doc)
	s.mu.Lock()
	s.fragments = fragments
	s.mu.Unlock()
}

// Healthy always returns true; the scan has no external dependency.
func (s *Scan) Healthy() bool {
	return true
}

// Search returns fragments containing every query term, case-insensitively,
// in document order.
func (s *Scan) Search(q Query) ([]Result, int, error) {
	q = normalizeQuery(q)
	terms := strings.Fields(strings.ToLower(q.Text))
	if len(terms) == 0 {
		return nil, 0, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []Result
	for _, f := range s.fragments {
		if q.Section != "" && f.Section != q.Section {
			continue
		}
		lower := strings.ToLower(f.Text)
		if !containsAll(lower, terms) {
			continue
		}
		matches = append(matches, Result{
			Path:    f.Path,
			Section: f.Section,
			Text:    f.Text,
			Snippet: highlight(f.Text, terms),
		})
	}

	total := len(matches)
	if q.Offset >= total {
		return nil, total, nil
	}
	end := total
	if q.Limit < total-q.Offset {
		end = q.Offset + q.Limit
	}
	return matches[q.Offset:end], total, nil
}

func containsAll(text string, terms []string) bool {
	for _, term := range terms {
		if !strings.Contains(text, term) {
			return false
		}
	}
	return true
}

// highlight wraps every occurrence of a term in <mark> tags. Overlapping
// terms are merged into one span.
func highlight(text string, terms []string) string {
	lower := strings.ToLower(text)
	if len(lower) != len(text) {
		// Case folding changed byte offsets; return the text unmarked.
		return text
	}
	marked := make([]bool, len(text))
	for _, term := range terms {
		for start := 0; ; {
			idx := strings.Index(lower[start:], term)
			if idx < 0 {
				break
			}
			for i := start + idx; i < start+idx+len(term); i++ {
				marked[i] = true
			}
			start += idx + len(term)
		}
	}

	var b strings.Builder
	open := false
	for i := 0; i < len(text); i++ {
		if marked[i] && !open {
			b.WriteString("<mark>")
			open = true
		}
		if !marked[i] && open {
			b.WriteString("</mark>")
			open = false
		}
		b.WriteByte(text[i])
	}
	if open {
		b.WriteString("</mark>")
	}
	return b.String()
}
