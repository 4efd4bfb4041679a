package search

import (
	"sync"

	"go.uber.org/zap"

	"sitecopy/api/internal/content"
)

// Service is the facade that tries the search server first and falls back to
// scanning the committed document. Pushes to the server are serialized and
// always carry the newest document.
type Service struct {
	primary Backend
	scan    *Scan
	logger  *zap.Logger

	mu       sync.Mutex
	latest   *content.Document
	wanted   uint64
	pushed   uint64
	draining bool
}

// recoveryNotifier is implemented by backends that report coming back online.
type recoveryNotifier interface {
	OnRecover(fn func())
}

// NewService creates a search service. primary may be nil if no search server
// is configured.
func NewService(primary Backend, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{primary: primary, scan: NewScan(), logger: logger}
	if n, ok := primary.(recoveryNotifier); ok {
		n.OnRecover(s.resync)
	}
	return s
}

// Search tries the primary backend if healthy, otherwise scans.
func (s *Service) Search(q Query) Response {
	q = normalizeQuery(q)
	if q.Text == "" {
		return Response{Results: []Result{}, Total: 0, Query: q.Text, Backend: "none"}
	}
	if s.primary != nil && s.primary.Healthy() {
		results, total, err := s.primary.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: "meilisearch"}
		}
		s.logger.Warn("search backend error, falling back to scan", zap.Error(err))
	}

	results, total, err := s.scan.Search(q)
	if err != nil {
		s.logger.Error("scan search failed", zap.Error(err))
		return Response{Results: []Result{}, Total: 0, Query: q.Text, Backend: "scan"}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: "scan"}
}

// Reindex refreshes the scan copy and pushes doc to the primary backend,
// waiting for the push unless another one is already running.
func (s *Service) Reindex(doc content.Document) error {
	if s.enqueue(doc) {
		return s.drain()
	}
	return nil
}

// Index is Reindex with the backend push done in the background.
func (s *Service) Index(doc content.Document) {
	if s.enqueue(doc) {
		go func() { _ = s.drain() }()
	}
}

// enqueue records doc as the newest document and reports whether the caller
// must start draining.
func (s *Service) enqueue(doc content.Document) bool {
	s.scan.Update(doc)
	if s.primary == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := doc.Clone()
	s.latest = &clone
	s.wanted++
	return s.claimLocked()
}

// resync pushes the newest document again after the backend recovers.
func (s *Service) resync() {
	s.mu.Lock()
	if s.latest == nil {
		s.mu.Unlock()
		return
	}
	s.wanted++
	start := s.claimLocked()
	s.mu.Unlock()
	if start {
		go func() { _ = s.drain() }()
	}
}

func (s *Service) claimLocked() bool {
	if s.draining {
		return false
	}
	s.draining = true
	return true
}

// drain pushes until the backend holds the newest document. Only one drain
// runs at a time. It stops on an unhealthy backend or a failed push; resync
// picks up from there.
func (s *Service) drain() error {
	for {
		s.mu.Lock()
		if s.pushed == s.wanted || !s.primary.Healthy() {
			s.draining = false
			s.mu.Unlock()
			return nil
		}
		generation := s.wanted
		doc := *s.latest
		s.mu.Unlock()

		records := Records(doc)
		if err := s.primary.ReplaceFragments(records); err != nil {
			s.logger.Warn("index content fragments", zap.Int("fragments", len(records)), zap.Error(err))
			s.mu.Lock()
			s.draining = false
			s.mu.Unlock()
			return err
		}

		s.mu.Lock()
		s.pushed = generation
		s.mu.Unlock()
	}
}

// Healthy reports whether the primary backend is in use.
func (s *Service) Healthy() bool {
	return s.primary != nil && s.primary.Healthy()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
