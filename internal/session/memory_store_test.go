package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreSessionLifecycle(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.SaveSession(ctx, Record{ID: "a", ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	got, err := store.LookupSession(ctx, "a")
	if err != nil {
		t.Fatalf("LookupSession failed: %v", err)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("expected created_at %v, got %v", now, got.CreatedAt)
	}

	now = now.Add(time.Hour)
	if _, err := store.LookupSession(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestMemoryStoreRevoke(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.SaveSession(ctx, Record{ID: "a", ExpiresAt: time.Now().Add(time.Hour)})

	if err := store.RevokeSession(ctx, "a"); err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if _, err := store.LookupSession(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreDefaultsExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.SaveSession(ctx, Record{ID: "a"}); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	got, err := store.LookupSession(ctx, "a")
	if err != nil {
		t.Fatalf("LookupSession failed: %v", err)
	}
	if got.ExpiresAt.Sub(got.CreatedAt) < defaultSessionTTL-time.Second {
		t.Fatalf("expected default ttl, got %v", got.ExpiresAt.Sub(got.CreatedAt))
	}
}

func TestMemoryStoreLastEdited(t *testing.T) {
	var store Store = NewMemoryStore()
	ctx := context.Background()
	at, _ := store.LastEdited(ctx)
	if !at.IsZero() {
		t.Fatalf("expected zero time, got %v", at)
	}
	edited := time.Now()
	_ = store.RecordLastEdited(ctx, edited)
	at, _ = store.LastEdited(ctx)
	if !at.Equal(edited) {
		t.Fatalf("expected %v, got %v", edited, at)
	}
}
