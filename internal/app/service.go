package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sitecopy/api/internal/auth"
	"sitecopy/api/internal/authpw"
	"sitecopy/api/internal/config"
	"sitecopy/api/internal/content"
	"sitecopy/api/internal/editor"
	"sitecopy/api/internal/gitrepo"
	"sitecopy/api/internal/metrics"
	"sitecopy/api/internal/rbac"
	"sitecopy/api/internal/search"
	"sitecopy/api/internal/session"
	"sitecopy/api/internal/store"
	"sitecopy/api/internal/util"
)

// Session is an authenticated operator as seen by the HTTP layer.
type Session struct {
	Token     string
	ID        string
	Role      rbac.Role
	ExpiresAt time.Time
}

// ContentStore is the persistence adapter for the committed document.
type ContentStore interface {
	Load(ctx context.Context) (store.Record, error)
	Save(ctx context.Context, doc content.Document) (time.Time, error)
	Ping(ctx context.Context) error
}

// Deps are the collaborators of a Service. Store and Sessions are required;
// History, Search and Metrics may be nil.
type Deps struct {
	Store    ContentStore
	Sessions session.Store
	History  *gitrepo.Service
	Search   *search.Service
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

var revisionPattern = regexp.MustCompile(`^[0-9a-f]{4,40}$`)

type editorEntry struct {
	session   *editor.Session
	expiresAt time.Time
}

type Service struct {
	cfg      config.Config
	store    ContentStore
	gate     *authpw.Gate
	sessions session.Store
	history  *gitrepo.Service
	search   *search.Service
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	editors map[string]*editorEntry
}

func New(cfg config.Config, deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	searchService := deps.Search
	if searchService == nil {
		searchService = search.NewService(nil, logger)
	}
	return &Service{
		cfg:      cfg,
		store:    deps.Store,
		gate:     authpw.NewGate(cfg.EditorPassword, cfg.EditorPasswordHash),
		sessions: deps.Sessions,
		history:  deps.History,
		search:   searchService,
		metrics:  deps.Metrics,
		logger:   logger,
		now:      time.Now,
		editors:  make(map[string]*editorEntry),
	}
}

// Bootstrap loads (or seeds) the committed document and builds the search
// index from it. A failing store is logged, not fatal: visitors get 503s until
// it recovers.
func (s *Service) Bootstrap(ctx context.Context) error {
	record, err := s.Content(ctx)
	if err != nil {
		s.logger.Warn("content unavailable at startup", zap.Error(err))
		return nil
	}
	if err := s.search.Reindex(record.Document); err != nil {
		s.logger.Warn("initial search index failed", zap.Error(err))
	}
	return nil
}

// Content returns the committed document. When nothing was ever saved the
// default document is persisted and returned; if that write fails the default
// is still served.
func (s *Service) Content(ctx context.Context) (store.Record, error) {
	record, err := s.store.Load(ctx)
	if err == nil {
		s.metrics.ContentLoad("ok")
		return record, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		s.metrics.ContentLoad("error")
		return store.Record{}, err
	}

	s.metrics.ContentLoad("seeded")
	doc := content.Default()
	savedAt, saveErr := s.store.Save(ctx, doc)
	if saveErr != nil {
		s.logger.Warn("persist default content", zap.Error(saveErr))
		return store.Record{Document: doc}, nil
	}
	s.logger.Info("seeded default content")
	s.search.Index(doc)
	return store.Record{Document: doc, UpdatedAt: savedAt}, nil
}

// Login checks password against the editor gate and opens an editor session
// whose draft starts as the committed document.
func (s *Service) Login(ctx context.Context, password string) (Session, editor.Snapshot, error) {
	if err := s.gate.Authenticate(password); err != nil {
		switch {
		case errors.Is(err, authpw.ErrNotConfigured):
			s.metrics.Login("not_configured")
			s.logger.Error("login attempted without an editor password configured", zap.Error(err))
		default:
			s.metrics.Login("rejected")
		}
		return Session{}, editor.Snapshot{}, err
	}

	record, err := s.Content(ctx)
	if err != nil {
		s.metrics.Login("error")
		return Session{}, editor.Snapshot{}, err
	}

	now := s.now()
	claims := auth.NewClaims(util.NewID("ses"), string(rbac.RoleOperator), now, s.cfg.SessionTTL)
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), claims)
	if err != nil {
		s.metrics.Login("error")
		return Session{}, editor.Snapshot{}, err
	}
	expiresAt := claims.ExpiresAt.Time
	if err := s.sessions.SaveSession(ctx, session.Record{
		ID:        claims.SessionID(),
		TokenHash: auth.HashToken(token),
		CreatedAt: now.UTC(),
		ExpiresAt: expiresAt,
	}); err != nil {
		s.metrics.Login("error")
		return Session{}, editor.Snapshot{}, fmt.Errorf("store session: %w", err)
	}

	ed := s.newEditor()
	ed.Open(record.Document)
	s.putEditor(claims.SessionID(), ed, expiresAt)
	s.metrics.Login("ok")
	s.logger.Info("operator logged in", zap.String("session_id", claims.SessionID()))

	return Session{
		Token:     token,
		ID:        claims.SessionID(),
		Role:      rbac.RoleOperator,
		ExpiresAt: expiresAt,
	}, ed.Snapshot(), nil
}

// SessionFromToken validates a bearer token against the session store.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	record, err := s.sessions.LookupSession(ctx, claims.SessionID())
	if errors.Is(err, session.ErrNotFound) {
		return Session{}, auth.ErrInvalidToken
	}
	if err != nil {
		return Session{}, err
	}
	if record.TokenHash != auth.HashToken(token) {
		return Session{}, auth.ErrInvalidToken
	}
	return Session{
		Token:     token,
		ID:        claims.SessionID(),
		Role:      rbac.Normalize(claims.Role),
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Logout discards the draft and revokes the token.
func (s *Service) Logout(ctx context.Context, sess Session) error {
	s.mu.Lock()
	entry, ok := s.editors[sess.ID]
	delete(s.editors, sess.ID)
	count := len(s.editors)
	s.mu.Unlock()
	s.metrics.SetSessions(count)

	if ok {
		entry.session.Logout()
	}
	if err := s.sessions.RevokeSession(ctx, sess.ID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	s.logger.Info("operator logged out", zap.String("session_id", sess.ID))
	return nil
}

// LastEdited returns the time of the latest successful save, or the zero time.
func (s *Service) LastEdited(ctx context.Context) time.Time {
	at, err := s.sessions.LastEdited(ctx)
	if err != nil {
		s.logger.Warn("read last edited", zap.Error(err))
		return time.Time{}
	}
	return at
}

func (s *Service) Can(role rbac.Role, action rbac.Action) bool {
	return rbac.Can(role, action)
}

func (s *Service) Search(q search.Query) search.Response {
	response := s.search.Search(q)
	s.metrics.Search(response.Backend)
	return response
}

// History lists publish commits newest first. Without a history directory the
// list is empty.
func (s *Service) History(limit int) ([]gitrepo.Commit, error) {
	if s.history == nil {
		return []gitrepo.Commit{}, nil
	}
	return s.history.History(limit)
}

// HistoryAt returns the document as published at hash, which may be
// abbreviated to at least four hex digits.
func (s *Service) HistoryAt(hash string) (content.Document, gitrepo.Commit, error) {
	if !revisionPattern.MatchString(hash) {
		return content.Document{}, gitrepo.Commit{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "Revision must be a hex commit hash", map[string]any{"revision": hash})
	}
	if s.history == nil {
		return content.Document{}, gitrepo.Commit{}, gitrepo.ErrNoHistory
	}
	return s.history.ContentAt(hash)
}

// Ping checks the content store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Ready runs every dependency check concurrently. A nil entry means healthy.
func (s *Service) Ready(ctx context.Context) map[string]error {
	checks := map[string]func(context.Context) error{
		"database": s.store.Ping,
		"sessions": s.sessions.Ping,
	}

	var (
		mu      sync.Mutex
		results = make(map[string]error, len(checks))
		group   errgroup.Group
	)
	for name, check := range checks {
		group.Go(func() error {
			err := check(ctx)
			mu.Lock()
			results[name] = err
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()
	return results
}

func (s *Service) newEditor() *editor.Session {
	return editor.NewSession(editor.Options{
		SuccessBanner: s.cfg.SuccessBanner,
		FailureBanner: s.cfg.FailureBanner,
		Now:           s.now,
	})
}

func (s *Service) putEditor(id string, ed *editor.Session, expiresAt time.Time) {
	s.mu.Lock()
	s.sweepLocked(s.now())
	s.editors[id] = &editorEntry{session: ed, expiresAt: expiresAt}
	count := len(s.editors)
	s.mu.Unlock()
	s.metrics.SetSessions(count)
}

// editorFor returns the editor session bound to sess. A valid token whose
// editor is gone (process restart, expiry sweep) gets a fresh session opened
// from the committed document.
func (s *Service) editorFor(ctx context.Context, sess Session) (*editor.Session, error) {
	s.mu.Lock()
	entry, ok := s.editors[sess.ID]
	s.mu.Unlock()
	if ok {
		return entry.session, nil
	}

	record, err := s.Content(ctx)
	if err != nil {
		return nil, err
	}
	ed := s.newEditor()
	ed.Open(record.Document)

	s.mu.Lock()
	if existing, ok := s.editors[sess.ID]; ok {
		s.mu.Unlock()
		return existing.session, nil
	}
	s.mu.Unlock()
	s.putEditor(sess.ID, ed, sess.ExpiresAt)
	return ed, nil
}

func (s *Service) sweepLocked(now time.Time) {
	for id, entry := range s.editors {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(s.editors, id)
		}
	}
}
