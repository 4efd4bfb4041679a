package gitrepo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"sitecopy/api/internal/content"
)

func TestRecordAndReadBack(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(filepath.Join(tempDir, "history"))

	first := content.Default()
	commit, created, err := svc.Record(first, "Site operator", "Initial publish")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if !created || commit.Hash == "" || len(commit.ShortHash) != 7 {
		t.Fatalf("unexpected first commit: %+v created=%v", commit, created)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "history", contentFile)); err != nil {
		t.Fatalf("content file missing: %v", err)
	}

	second := first.Clone()
	second.Hero.Title = "New headline"
	next, created, err := svc.Record(second, "Site operator", "Update hero")
	if err != nil || !created {
		t.Fatalf("Record() second = %v, %v", created, err)
	}
	if !strings.Contains(next.Message, "sections: hero") {
		t.Fatalf("expected changed sections in message, got %q", next.Message)
	}

	history, err := svc.History(10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].Hash != next.Hash || history[1].Hash != commit.Hash {
		t.Fatalf("unexpected history: %+v", history)
	}

	doc, at, err := svc.ContentAt(commit.ShortHash)
	if err != nil {
		t.Fatalf("ContentAt() error = %v", err)
	}
	if at.Hash != commit.Hash {
		t.Fatalf("expected commit %s, got %s", commit.Hash, at.Hash)
	}
	if diff := cmp.Diff(first, doc); diff != "" {
		t.Fatalf("unexpected document at first commit (-want +got):\n%s", diff)
	}

	latest, _, err := svc.ContentAt(next.Hash)
	if err != nil {
		t.Fatalf("ContentAt(full hash) error = %v", err)
	}
	if latest.Hero.Title != "New headline" {
		t.Fatalf("unexpected head title %q", latest.Hero.Title)
	}
}

func TestRecordSkipsUnchangedDocument(t *testing.T) {
	svc := New(t.TempDir())
	doc := content.Default()

	first, _, err := svc.Record(doc, "", "")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	again, created, err := svc.Record(doc.Clone(), "", "")
	if err != nil {
		t.Fatalf("Record() repeat error = %v", err)
	}
	if created || again.Hash != first.Hash {
		t.Fatalf("expected no new commit, got %+v created=%v", again, created)
	}
	if first.Author != "Site operator" || first.Message != "Publish site content" {
		t.Fatalf("unexpected defaults: %+v", first)
	}
}

func TestHistoryWithoutRepository(t *testing.T) {
	svc := New(filepath.Join(t.TempDir(), "missing"))
	history, err := svc.History(5)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d", len(history))
	}
	if _, _, err := svc.ContentAt("abc1234"); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("expected ErrNoHistory, got %v", err)
	}
}

func TestHistoryLimit(t *testing.T) {
	svc := New(t.TempDir())
	doc := content.Default()
	for i := 0; i < 4; i++ {
		doc.Contact.Text = fmt.Sprintf("revision %d", i)
		if _, _, err := svc.Record(doc, "Avery", fmt.Sprintf("Commit %d", i)); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	history, err := svc.History(2)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].Message != "Commit 3\n\nsections: contact" {
		t.Fatalf("unexpected limited history: %+v", history)
	}
}

func TestContentAtUnknownHash(t *testing.T) {
	svc := New(t.TempDir())
	if _, _, err := svc.Record(content.Default(), "", ""); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if _, _, err := svc.ContentAt("zzzzzzz"); !errors.Is(err, ErrUnknownRevision) {
		t.Fatalf("expected ErrUnknownRevision, got %v", err)
	}
	if _, _, err := svc.ContentAt(" "); !errors.Is(err, ErrUnknownRevision) {
		t.Fatalf("expected ErrUnknownRevision for empty revision, got %v", err)
	}
	if _, _, err := svc.ContentAt(strings.Repeat("a", 40)); !errors.Is(err, ErrUnknownRevision) {
		t.Fatalf("expected ErrUnknownRevision for missing full hash, got %v", err)
	}
}

func TestConcurrentRecord(t *testing.T) {
	svc := New(t.TempDir())
	base := content.Default()

	const writers = 8
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			next := base.Clone()
			next.Hero.Subtitle = fmt.Sprintf("subtitle-%02d", idx)
			if _, _, err := svc.Record(next, "Avery", fmt.Sprintf("Commit %02d", idx)); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Fatalf("Record() concurrent error = %v", err)
	}
	history, err := svc.History(0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != writers {
		t.Fatalf("expected %d commits, got %d", writers, len(history))
	}
}

func TestChangedSections(t *testing.T) {
	from := content.Default()
	to := from.Clone()
	to.Services.Cards[1].Title = "changed"
	to.Contact.Title = "changed"

	want := []string{"services", "contact"}
	if diff := cmp.Diff(want, ChangedSections(from, to)); diff != "" {
		t.Fatalf("ChangedSections() mismatch (-want +got):\n%s", diff)
	}
	if got := ChangedSections(from, from.Clone()); len(got) != 0 {
		t.Fatalf("expected no changes, got %v", got)
	}
}

func TestSanitizeEmail(t *testing.T) {
	cases := map[string]string{
		"Jordan Lee": "Jordan.Lee",
		"a_b-c":      "a.b.c",
		"!!!":        "operator",
	}
	for in, want := range cases {
		if got := sanitizeEmail(in); got != want {
			t.Fatalf("sanitizeEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
