package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const idxFragments = "sitecopy_fragments"

// Meili implements Backend via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	logger  *zap.Logger
	healthy atomic.Bool
	done    chan struct{}
	once    sync.Once

	mu        sync.Mutex
	indexed   map[string]struct{}
	onRecover func()
}

// NewMeili creates a Meilisearch client and configures the fragment index.
// An unreachable server is not an error; the health loop keeps retrying.
func NewMeili(url, apiKey string, logger *zap.Logger) *Meili {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Meili{
		client:  meili.New(url, meili.WithAPIKey(apiKey)),
		logger:  logger,
		done:    make(chan struct{}),
		indexed: map[string]struct{}{},
	}

	if _, err := m.client.Health(); err != nil {
		logger.Warn("meilisearch unavailable", zap.String("url", url), zap.Error(err))
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop(10 * time.Second)
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxFragments,
		PrimaryKey: "id",
	}); err != nil {
		m.logger.Debug("create index (may already exist)", zap.String("index", idxFragments), zap.Error(err))
	}

	index := m.client.Index(idxFragments)
	filterable := []interface{}{"section"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.Warn("update filterable attributes", zap.String("index", idxFragments), zap.Error(err))
	}
	searchable := []string{"text"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.Warn("update searchable attributes", zap.String("index", idxFragments), zap.Error(err))
	}
}

func (m *Meili) healthLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("meilisearch recovered, reconfiguring index")
				m.configureIndex()
				m.mu.Lock()
				hook := m.onRecover
				m.mu.Unlock()
				if hook != nil {
					hook()
				}
			}
		}
	}
}

// OnRecover registers fn to run after the server comes back and the index is
// reconfigured.
func (m *Meili) OnRecover(fn func()) {
	m.mu.Lock()
	m.onRecover = fn
	m.mu.Unlock()
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	m.once.Do(func() { close(m.done) })
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}
	q = normalizeQuery(q)

	sr := &meili.SearchRequest{
		IndexUID:              idxFragments,
		Query:                 q.Text,
		Limit:                 int64(q.Limit),
		Offset:                int64(q.Offset),
		AttributesToHighlight: []string{"text"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
		ShowRankingScore:      true,
	}
	if q.Section != "" {
		sr.Filter = []string{fmt.Sprintf("section = %q", q.Section)}
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{sr},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, r := range resp.Results {
		total += int(r.EstimatedTotalHits)
		for _, hit := range r.Hits {
			results = append(results, hitToResult(hit))
		}
	}
	return results, total, nil
}

// ReplaceFragments upserts records and deletes fragments indexed earlier that
// are no longer part of the document.
func (m *Meili) ReplaceFragments(records []FragmentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := make(map[string]struct{}, len(records))
	for _, record := range records {
		next[record.ID] = struct{}{}
	}
	if len(records) > 0 {
		if _, err := m.client.Index(idxFragments).AddDocuments(records, nil); err != nil {
			return fmt.Errorf("index fragments: %w", err)
		}
	}
	for id := range m.indexed {
		if _, ok := next[id]; ok {
			continue
		}
		if _, err := m.client.Index(idxFragments).DeleteDocument(id, nil); err != nil {
			return fmt.Errorf("delete fragment %s: %w", id, err)
		}
	}
	m.indexed = next
	return nil
}

func hitToResult(hit meili.Hit) Result {
	text := decodeString(hit, "text")
	return Result{
		Path:    decodeString(hit, "path"),
		Section: decodeString(hit, "section"),
		Text:    text,
		Snippet: firstNonBlank(decodeFormattedString(hit, "text"), text),
	}
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]any
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	value, _ := formatted[key].(string)
	return strings.TrimSpace(value)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
