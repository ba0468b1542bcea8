package auth

import (
	"errors"
	"testing"
	"time"

	"matrix-quest-service/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("followthewhiterabbit", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !IsHash(hash) {
		t.Fatalf("expected %q to be recognised as a hash", hash)
	}
	if IsHash("followthewhiterabbit") {
		t.Fatalf("plain password recognised as hash")
	}
	if !CheckPassword(hash, "followthewhiterabbit") {
		t.Fatalf("expected password to match")
	}
	if CheckPassword(hash, "bluepill") {
		t.Fatalf("expected mismatch")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuerWithClock("secret", time.Hour, func() time.Time { return now })

	token, session, err := issuer.Issue(domain.Session{UserKey: "u-1", Username: "neo_01"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !session.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", session.ExpiresAt)
	}

	parsed, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.UserKey != "u-1" || parsed.Username != "neo_01" {
		t.Fatalf("unexpected session %+v", parsed)
	}
}

func TestTokenRejectsExpiredAndForeign(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	issuer := NewTokenIssuerWithClock("secret", time.Minute, func() time.Time { return clock })

	token, _, err := issuer.Issue(domain.Session{UserKey: "u-1", Username: "neo_01"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other := NewTokenIssuerWithClock("other-secret", time.Minute, func() time.Time { return now })
	if _, err := other.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected foreign token to be rejected, got %v", err)
	}

	clock = now.Add(2 * time.Minute)
	if _, err := issuer.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}

	if _, err := issuer.Parse("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected garbage to be rejected, got %v", err)
	}
}
