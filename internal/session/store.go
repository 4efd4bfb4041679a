// Package session keeps operator sessions and the last-edited marker outside
// the process, with an in-memory fallback for single-node setups.
package session

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found or expired")

// Record is one issued operator session. TokenHash binds the session to the
// token handed out at login.
type Record struct {
	ID        string    `json:"id"`
	TokenHash string    `json:"token_hash"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Store interface {
	SaveSession(ctx context.Context, record Record) error
	LookupSession(ctx context.Context, id string) (Record, error)
	RevokeSession(ctx context.Context, id string) error
	// RecordLastEdited stores the time of the latest successful save. It is
	// informational and never gates editing.
	RecordLastEdited(ctx context.Context, at time.Time) error
	// LastEdited returns the zero time when nothing was recorded yet.
	LastEdited(ctx context.Context) (time.Time, error)
	Ping(ctx context.Context) error
	Close() error
}

const defaultSessionTTL = 12 * time.Hour

func ttlUntil(expiresAt time.Time, now time.Time) time.Duration {
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return ttl
}
