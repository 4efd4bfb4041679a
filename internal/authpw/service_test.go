package authpw

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestGatePlainSecret(t *testing.T) {
	gate := NewGate("letmein", "")
	if err := gate.Authenticate("letmein"); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	for _, candidate := range []string{"", "letmein ", "LETMEIN", "letme"} {
		if err := gate.Authenticate(candidate); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("candidate %q: expected ErrInvalidCredentials, got %v", candidate, err)
		}
	}
}

func TestGateFailsClosedWhenUnconfigured(t *testing.T) {
	for _, gate := range []*Gate{nil, NewGate("", ""), NewGate("", "   ")} {
		if gate.Configured() {
			t.Fatal("expected unconfigured gate")
		}
		if err := gate.Authenticate(""); !errors.Is(err, ErrNotConfigured) {
			t.Fatalf("expected ErrNotConfigured, got %v", err)
		}
		if err := gate.Authenticate("anything"); !errors.Is(err, ErrNotConfigured) {
			t.Fatalf("expected ErrNotConfigured, got %v", err)
		}
	}
}

func TestGateBcryptHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	gate := NewGate("ignored-when-hash-set", string(hash))
	if err := gate.Authenticate("s3cret"); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if err := gate.Authenticate("ignored-when-hash-set"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestGateMalformedHashIsConfigurationError(t *testing.T) {
	gate := NewGate("", "not-a-bcrypt-hash")
	if err := gate.Authenticate("whatever"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("pw")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if err := NewGate("", hash).Authenticate("pw"); err != nil {
		t.Fatalf("hashed password rejected: %v", err)
	}
	if _, err := HashPassword(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}
