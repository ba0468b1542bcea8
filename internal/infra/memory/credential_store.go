package memory

import (
	"context"
	"fmt"

	"matrix-quest-service/internal/auth"
	"matrix-quest-service/internal/domain"
)

// DefaultCredentials are the staff-generated accounts shipped with the game.
func DefaultCredentials() []domain.Credential {
	return []domain.Credential{
		{Username: "neo_01", Password: "followthewhiterabbit"},
		{Username: "trinity_07", Password: "knwoledgeispower"},
		{Username: "morpheus_66", Password: "redorblue"},
		{Username: "agent_smith", Password: "virus"},
		{Username: "oracle_42", Password: "knowthyself"},
	}
}

// CredentialStore validates logins against a fixed list. Plain passwords are
// hashed once at construction; the user key is the username.
type CredentialStore struct {
	hashes map[string]string
}

func NewCredentialStore(credentials []domain.Credential) (*CredentialStore, error) {
	return NewCredentialStoreWithCost(credentials, 0)
}

// NewCredentialStoreWithCost lets tests use a cheap bcrypt cost.
func NewCredentialStoreWithCost(credentials []domain.Credential, cost int) (*CredentialStore, error) {
	hashes := make(map[string]string, len(credentials))
	for _, c := range credentials {
		if c.Username == "" {
			return nil, fmt.Errorf("credential with empty username")
		}
		if _, dup := hashes[c.Username]; dup {
			return nil, fmt.Errorf("duplicate username %q", c.Username)
		}
		hash := c.Password
		if !auth.IsHash(hash) {
			var err error
			hash, err = auth.HashPassword(c.Password, cost)
			if err != nil {
				return nil, fmt.Errorf("hash password for %q: %w", c.Username, err)
			}
		}
		hashes[c.Username] = hash
	}
	return &CredentialStore{hashes: hashes}, nil
}

func (s *CredentialStore) Authenticate(_ context.Context, username, password string) (domain.User, error) {
	hash, ok := s.hashes[username]
	if !ok {
		auth.BurnCompare(password)
		return domain.User{}, domain.ErrInvalidCredentials
	}
	if !auth.CheckPassword(hash, password) {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return domain.User{Key: username, Username: username}, nil
}
