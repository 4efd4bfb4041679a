package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process. Sessions do not survive a restart.
type MemoryStore struct {
	mu         sync.Mutex
	sessions   map[string]Record
	lastEdited time.Time
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]Record{}, now: time.Now}
}

func (s *MemoryStore) SaveSession(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now.UTC()
	}
	if record.ExpiresAt.IsZero() || !record.ExpiresAt.After(now) {
		record.ExpiresAt = now.Add(ttlUntil(record.ExpiresAt, now))
	}
	s.sessions[record.ID] = record
	return nil
}

func (s *MemoryStore) LookupSession(_ context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.sessions[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	if !s.now().Before(record.ExpiresAt) {
		delete(s.sessions, id)
		return Record{}, ErrNotFound
	}
	return record, nil
}

func (s *MemoryStore) RevokeSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *MemoryStore) RecordLastEdited(_ context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastEdited = at.UTC()
	return nil
}

func (s *MemoryStore) LastEdited(context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEdited, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
