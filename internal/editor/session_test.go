package editor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"sitecopy/api/internal/content"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSaver struct {
	mu    sync.Mutex
	saved []content.Document
	err   error
	at    time.Time
}

func (r *recordingSaver) Save(_ context.Context, doc content.Document) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return time.Time{}, r.err
	}
	r.saved = append(r.saved, doc)
	return r.at, nil
}

func heroDoc(title string) content.Document {
	doc := content.Default()
	doc.Hero.Title = title
	return doc
}

func setHeroTitle(value string) content.Mutation {
	return content.Set(content.FieldPath{Section: "hero", Field: "title"}, value)
}

func TestSessionEditSaveLogoutScenario(t *testing.T) {
	clock := newFakeClock()
	session := NewSession(Options{Now: clock.Now})
	saver := &recordingSaver{at: clock.Now()}

	if session.State() != StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", session.State())
	}
	session.Open(heroDoc("A"))
	if session.State() != StateViewing {
		t.Fatalf("expected viewing, got %s", session.State())
	}

	if err := session.Apply(setHeroTitle("B")); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if session.State() != StateEditing {
		t.Fatalf("expected editing, got %s", session.State())
	}
	saved, err := session.Save(context.Background(), saver)
	if err != nil || !saved {
		t.Fatalf("Save() = %v, %v", saved, err)
	}
	if len(saver.saved) != 1 || saver.saved[0].Hero.Title != "B" {
		t.Fatalf("unexpected saved documents: %+v", saver.saved)
	}
	if session.State() != StateSaveSucceeded {
		t.Fatalf("expected save_succeeded, got %s", session.State())
	}

	if err := session.Apply(setHeroTitle("C")); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	session.Logout()

	snap := session.Snapshot()
	if snap.State != StateUnauthenticated {
		t.Fatalf("expected unauthenticated after logout, got %s", snap.State)
	}
	if snap.Committed.Hero.Title != "B" || snap.Draft.Hero.Title != "B" {
		t.Fatalf("expected committed and draft B, got %q / %q", snap.Committed.Hero.Title, snap.Draft.Hero.Title)
	}
	if snap.Dirty {
		t.Fatal("logged out session should not be dirty")
	}
}

func TestSessionLogoutRestoresCommitted(t *testing.T) {
	committed := content.Default()
	session := NewSession(Options{})
	session.Open(committed)

	mutations := []content.Mutation{
		setHeroTitle("draft"),
		content.Set(content.ElementPath{Section: "services", Sequence: "cards", Index: 0, Field: "description"}, "changed"),
		content.ReplaceList(content.ArrayPath{Section: "projects", Sequence: "items", Element: intPtr(0), Field: "technologies"}, "Go"),
	}
	for _, mutate := range mutations {
		if err := session.Apply(mutate); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
	}
	session.Logout()

	if diff := cmp.Diff(committed, session.Snapshot().Draft); diff != "" {
		t.Fatalf("draft after logout differs from committed (-want +got):\n%s", diff)
	}
}

func TestSessionRejectedMutationLeavesDraft(t *testing.T) {
	session := NewSession(Options{})
	session.Open(content.Default())
	if err := session.Apply(setHeroTitle("kept")); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	before := session.Snapshot().Draft

	err := session.Apply(content.Set(content.FieldPath{Section: "projects", Field: "items"}, "oops"))
	var mismatch *content.TypeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected TypeMismatchError, got %v", err)
	}
	if diff := cmp.Diff(before, session.Snapshot().Draft); diff != "" {
		t.Fatalf("draft changed after rejected mutation (-want +got):\n%s", diff)
	}
}

func TestSessionSaveFailureRetainsDraft(t *testing.T) {
	clock := newFakeClock()
	session := NewSession(Options{Now: clock.Now})
	session.Open(heroDoc("A"))
	if err := session.Apply(setHeroTitle("B")); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	failing := &recordingSaver{err: errors.New("connection refused")}
	saved, err := session.Save(context.Background(), failing)
	if err == nil || saved {
		t.Fatalf("expected save failure, got saved=%v err=%v", saved, err)
	}
	snap := session.Snapshot()
	if snap.State != StateSaveFailed {
		t.Fatalf("expected save_failed, got %s", snap.State)
	}
	if snap.Draft.Hero.Title != "B" || snap.Committed.Hero.Title != "A" {
		t.Fatalf("unexpected draft/committed %q / %q", snap.Draft.Hero.Title, snap.Committed.Hero.Title)
	}
	if snap.Banner == nil || snap.Banner.Kind != BannerFailed {
		t.Fatalf("expected failure banner, got %+v", snap.Banner)
	}

	clock.Advance(DefaultFailureBanner)
	if session.State() != StateEditing {
		t.Fatalf("expected editing after failure banner expires, got %s", session.State())
	}

	recovered := &recordingSaver{at: clock.Now()}
	if saved, err := session.Save(context.Background(), recovered); err != nil || !saved {
		t.Fatalf("retry Save() = %v, %v", saved, err)
	}
	if session.Snapshot().Committed.Hero.Title != "B" {
		t.Fatal("retry did not commit the retained draft")
	}
}

func TestSessionBannerDecay(t *testing.T) {
	clock := newFakeClock()
	session := NewSession(Options{Now: clock.Now})
	session.Open(heroDoc("A"))
	_ = session.Apply(setHeroTitle("B"))
	if _, err := session.Save(context.Background(), &recordingSaver{at: clock.Now()}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	clock.Advance(DefaultSuccessBanner - time.Millisecond)
	if session.State() != StateSaveSucceeded {
		t.Fatalf("expected save_succeeded before banner expiry, got %s", session.State())
	}
	clock.Advance(time.Millisecond)
	if session.State() != StateViewing {
		t.Fatalf("expected viewing after banner expiry, got %s", session.State())
	}
	if session.Snapshot().Banner != nil {
		t.Fatal("expired banner still reported")
	}
}

func TestSessionEditAfterSaveClearsSuccessBanner(t *testing.T) {
	clock := newFakeClock()
	session := NewSession(Options{Now: clock.Now})
	session.Open(heroDoc("A"))
	_ = session.Apply(setHeroTitle("B"))
	if _, err := session.Save(context.Background(), &recordingSaver{at: clock.Now()}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	clock.Advance(time.Second)
	if err := session.Apply(setHeroTitle("C")); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	snap := session.Snapshot()
	if snap.State != StateEditing || !snap.Dirty {
		t.Fatalf("expected editing with pending edits, got state=%s dirty=%v", snap.State, snap.Dirty)
	}
	if snap.Banner != nil {
		t.Fatalf("success banner outlived a new edit: %+v", snap.Banner)
	}
}

func TestSessionCustomBannerDurations(t *testing.T) {
	clock := newFakeClock()
	session := NewSession(Options{Now: clock.Now, SuccessBanner: time.Second})
	session.Open(heroDoc("A"))
	_ = session.Apply(setHeroTitle("B"))
	if _, err := session.Save(context.Background(), &recordingSaver{}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	clock.Advance(time.Second)
	if session.State() != StateViewing {
		t.Fatalf("expected viewing, got %s", session.State())
	}
	if snap := session.Snapshot(); snap.LastSavedAt == nil {
		t.Fatal("expected last saved time when saver returns zero time")
	}
}

func TestSessionSaveWithoutChangesIsNoop(t *testing.T) {
	session := NewSession(Options{})
	session.Open(content.Default())
	saver := &recordingSaver{}

	saved, err := session.Save(context.Background(), saver)
	if err != nil || saved {
		t.Fatalf("Save() = %v, %v", saved, err)
	}
	if len(saver.saved) != 0 {
		t.Fatalf("store called for a clean draft: %d", len(saver.saved))
	}
	if session.State() != StateViewing {
		t.Fatalf("expected viewing, got %s", session.State())
	}
}

func TestSessionRejectsOverlappingSave(t *testing.T) {
	session := NewSession(Options{})
	session.Open(heroDoc("A"))
	_ = session.Apply(setHeroTitle("B"))

	entered := make(chan struct{})
	release := make(chan struct{})
	blocking := SaverFunc(func(context.Context, content.Document) (time.Time, error) {
		close(entered)
		<-release
		return time.Now(), nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := session.Save(context.Background(), blocking)
		done <- err
	}()
	<-entered

	if session.State() != StateSaving {
		t.Fatalf("expected saving, got %s", session.State())
	}
	if _, err := session.Save(context.Background(), &recordingSaver{}); !errors.Is(err, ErrSaveInFlight) {
		t.Fatalf("expected ErrSaveInFlight, got %v", err)
	}
	if err := session.Apply(setHeroTitle("C")); err != nil {
		t.Fatalf("Apply() during save error = %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Save() error = %v", err)
	}
	snap := session.Snapshot()
	if snap.Committed.Hero.Title != "B" {
		t.Fatalf("expected committed snapshot B, got %q", snap.Committed.Hero.Title)
	}
	if snap.Draft.Hero.Title != "C" || !snap.Dirty {
		t.Fatalf("expected dirty draft C, got %q dirty=%v", snap.Draft.Hero.Title, snap.Dirty)
	}
}

func TestSessionReload(t *testing.T) {
	session := NewSession(Options{})
	session.Open(heroDoc("A"))

	if err := session.Reload(heroDoc("remote")); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if snap := session.Snapshot(); snap.Draft.Hero.Title != "remote" || snap.Dirty {
		t.Fatalf("clean draft should follow reload, got %q dirty=%v", snap.Draft.Hero.Title, snap.Dirty)
	}

	_ = session.Apply(setHeroTitle("mine"))
	if err := session.Reload(heroDoc("newer")); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	snap := session.Snapshot()
	if snap.Draft.Hero.Title != "mine" || snap.Committed.Hero.Title != "newer" {
		t.Fatalf("pending edits lost on reload: draft %q committed %q", snap.Draft.Hero.Title, snap.Committed.Hero.Title)
	}
}

func TestSessionRequiresOpen(t *testing.T) {
	session := NewSession(Options{})
	if err := session.Apply(setHeroTitle("x")); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Apply() expected ErrNotOpen, got %v", err)
	}
	if _, err := session.Save(context.Background(), &recordingSaver{}); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Save() expected ErrNotOpen, got %v", err)
	}
	if err := session.Reload(content.Default()); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Reload() expected ErrNotOpen, got %v", err)
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	session := NewSession(Options{})
	session.Open(content.Default())
	snap := session.Snapshot()
	snap.Draft.Services.Cards[0].Title = "mutated outside"
	if session.Snapshot().Draft.Services.Cards[0].Title == "mutated outside" {
		t.Fatal("snapshot shares draft storage with the session")
	}
}

func intPtr(v int) *int { return &v }
