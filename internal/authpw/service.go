// Package authpw checks the shared editor password.
package authpw

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrNotConfigured means no editor secret is set. Logins fail closed.
	ErrNotConfigured      = errors.New("editor password is not configured")
	ErrInvalidCredentials = errors.New("invalid password")
)

// Gate compares candidate passwords against one configured secret, either a
// plain value or a bcrypt hash.
type Gate struct {
	secret []byte
	hash   []byte
}

func NewGate(secret, bcryptHash string) *Gate {
	g := &Gate{}
	if secret != "" {
		g.secret = []byte(secret)
	}
	if hash := strings.TrimSpace(bcryptHash); hash != "" {
		g.hash = []byte(hash)
	}
	return g
}

func (g *Gate) Configured() bool {
	return g != nil && (len(g.hash) > 0 || len(g.secret) > 0)
}

// Authenticate returns nil when candidate matches the configured secret. The
// bcrypt hash wins when both are set.
func (g *Gate) Authenticate(candidate string) error {
	if !g.Configured() {
		return ErrNotConfigured
	}
	if len(g.hash) > 0 {
		err := bcrypt.CompareHashAndPassword(g.hash, []byte(candidate))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNotConfigured, err)
		}
		return nil
	}
	// Compare digests so the comparison time does not depend on length.
	want := sha256.Sum256(g.secret)
	got := sha256.Sum256([]byte(candidate))
	if subtle.ConstantTimeCompare(want[:], got[:]) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword returns a bcrypt hash suitable for EDITOR_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
