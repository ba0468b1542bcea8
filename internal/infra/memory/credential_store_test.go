package memory

import (
	"context"
	"errors"
	"testing"

	"matrix-quest-service/internal/auth"
	"matrix-quest-service/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

func TestCredentialStoreAuthenticate(t *testing.T) {
	store, err := NewCredentialStoreWithCost(DefaultCredentials(), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	user, err := store.Authenticate(ctx, "neo_01", "followthewhiterabbit")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.Key != "neo_01" || user.Username != "neo_01" {
		t.Fatalf("unexpected user %+v", user)
	}

	// Unknown user and wrong password must be indistinguishable.
	_, errUnknown := store.Authenticate(ctx, "cypher", "steak")
	_, errWrong := store.Authenticate(ctx, "neo_01", "bluepill")
	if !errors.Is(errUnknown, domain.ErrInvalidCredentials) || !errors.Is(errWrong, domain.ErrInvalidCredentials) {
		t.Fatalf("expected generic denial, got %v / %v", errUnknown, errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Fatalf("denials differ: %q vs %q", errUnknown, errWrong)
	}
}

func TestCredentialStoreAcceptsHashes(t *testing.T) {
	hash, err := auth.HashPassword("virus", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	store, err := NewCredentialStoreWithCost([]domain.Credential{{Username: "agent_smith", Password: hash}}, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.Authenticate(context.Background(), "agent_smith", "virus"); err != nil {
		t.Fatalf("authenticate with hashed config: %v", err)
	}
}

func TestCredentialStoreRejectsDuplicates(t *testing.T) {
	_, err := NewCredentialStoreWithCost([]domain.Credential{
		{Username: "neo_01", Password: "a"},
		{Username: "neo_01", Password: "b"},
	}, bcrypt.MinCost)
	if err == nil {
		t.Fatalf("expected duplicate usernames to be rejected")
	}
}
