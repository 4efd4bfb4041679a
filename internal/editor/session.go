// Package editor tracks the committed and draft copies of the content
// document for one operator session.
package editor

import (
	"context"
	"errors"
	"sync"
	"time"

	"sitecopy/api/internal/content"
)

type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateViewing         State = "viewing"
	StateEditing         State = "editing"
	StateSaving          State = "saving"
	StateSaveFailed      State = "save_failed"
	StateSaveSucceeded   State = "save_succeeded"
)

const (
	DefaultSuccessBanner = 3 * time.Second
	DefaultFailureBanner = 5 * time.Second
)

var (
	ErrNotOpen      = errors.New("editor session is not open")
	ErrSaveInFlight = errors.New("a save is already in progress")
)

// Saver persists a whole document and returns the time it was stored.
type Saver interface {
	Save(ctx context.Context, doc content.Document) (time.Time, error)
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, doc content.Document) (time.Time, error)

func (f SaverFunc) Save(ctx context.Context, doc content.Document) (time.Time, error) {
	return f(ctx, doc)
}

type BannerKind string

const (
	BannerSaved  BannerKind = "saved"
	BannerFailed BannerKind = "failed"
)

type Banner struct {
	Kind    BannerKind `json:"kind"`
	Message string     `json:"message"`
	Until   time.Time  `json:"until"`
}

type Options struct {
	SuccessBanner time.Duration
	FailureBanner time.Duration
	Now           func() time.Time
}

// Snapshot is a consistent copy of the session taken under its lock.
type Snapshot struct {
	State       State            `json:"state"`
	Draft       content.Document `json:"draft"`
	Committed   content.Document `json:"-"`
	Dirty       bool             `json:"dirty"`
	Banner      *Banner          `json:"banner,omitempty"`
	LastSavedAt *time.Time       `json:"lastSavedAt,omitempty"`
}

// Session holds Committed and Draft for one operator. Draft always belongs to
// the session; callers only ever receive clones.
type Session struct {
	mu            sync.Mutex
	open          bool
	saving        bool
	committed     content.Document
	draft         content.Document
	banner        *Banner
	lastSavedAt   time.Time
	successBanner time.Duration
	failureBanner time.Duration
	now           func() time.Time
}

func NewSession(opts Options) *Session {
	s := &Session{
		successBanner: opts.SuccessBanner,
		failureBanner: opts.FailureBanner,
		now:           opts.Now,
	}
	if s.successBanner <= 0 {
		s.successBanner = DefaultSuccessBanner
	}
	if s.failureBanner <= 0 {
		s.failureBanner = DefaultFailureBanner
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Open starts editing from committed. An already open session is reset.
func (s *Session) Open(committed content.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	s.committed = committed.Clone()
	s.draft = committed.Clone()
	s.banner = nil
}

// Apply runs mutate against the draft. On error the draft is left as it was.
func (s *Session) Apply(mutate content.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	next, err := mutate(s.draft.Clone())
	if err != nil {
		return err
	}
	s.draft = next
	if s.banner != nil && s.banner.Kind == BannerSaved {
		s.banner = nil
	}
	return nil
}

// Reload replaces Committed with a freshly loaded copy. Pending edits are kept;
// without pending edits the draft follows the new committed copy.
func (s *Session) Reload(committed content.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	if content.Equal(s.draft, s.committed) {
		s.draft = committed.Clone()
	}
	s.committed = committed.Clone()
	return nil
}

// Save writes the current draft through saver. The store call runs without
// holding the session lock; a second Save while one is running fails with
// ErrSaveInFlight. Saving without pending edits does nothing and reports
// saved=false.
func (s *Session) Save(ctx context.Context, saver Saver) (bool, error) {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return false, ErrNotOpen
	}
	if s.saving {
		s.mu.Unlock()
		return false, ErrSaveInFlight
	}
	if content.Equal(s.draft, s.committed) {
		s.mu.Unlock()
		return false, nil
	}
	snapshot := s.draft.Clone()
	s.saving = true
	s.banner = nil
	s.mu.Unlock()

	savedAt, err := saver.Save(ctx, snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false
	now := s.now()
	if err != nil {
		s.banner = &Banner{Kind: BannerFailed, Message: "Save failed. Your changes are kept; try again.", Until: now.Add(s.failureBanner)}
		return false, err
	}
	// Edits made while the save was running stay in the draft and keep it dirty.
	s.committed = snapshot
	if savedAt.IsZero() {
		savedAt = now
	}
	s.lastSavedAt = savedAt
	s.banner = &Banner{Kind: BannerSaved, Message: "Changes saved.", Until: now.Add(s.successBanner)}
	return true, nil
}

// Logout discards the draft and closes the session.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = s.committed.Clone()
	s.open = false
	s.saving = false
	s.banner = nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked(s.now())
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	snap := Snapshot{
		State:     s.stateLocked(now),
		Draft:     s.draft.Clone(),
		Committed: s.committed.Clone(),
		Dirty:     s.open && !content.Equal(s.draft, s.committed),
	}
	if banner := s.activeBanner(now); banner != nil {
		b := *banner
		snap.Banner = &b
	}
	if !s.lastSavedAt.IsZero() {
		at := s.lastSavedAt
		snap.LastSavedAt = &at
	}
	return snap
}

func (s *Session) stateLocked(now time.Time) State {
	if !s.open {
		return StateUnauthenticated
	}
	if s.saving {
		return StateSaving
	}
	banner := s.activeBanner(now)
	if banner != nil && banner.Kind == BannerFailed {
		return StateSaveFailed
	}
	if !content.Equal(s.draft, s.committed) {
		return StateEditing
	}
	if banner != nil {
		return StateSaveSucceeded
	}
	return StateViewing
}

func (s *Session) activeBanner(now time.Time) *Banner {
	if s.banner == nil || !now.Before(s.banner.Until) {
		return nil
	}
	return s.banner
}
