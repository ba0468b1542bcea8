package postgres

import (
	"context"
	"errors"
	"fmt"

	"matrix-quest-service/internal/auth"
	"matrix-quest-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// CredentialStore authenticates against the profiles table. The user key is the profile id.
type CredentialStore struct {
	pool *pgxpool.Pool
}

func NewCredentialStore(pool *pgxpool.Pool) *CredentialStore {
	return &CredentialStore{pool: pool}
}

func (s *CredentialStore) Authenticate(ctx context.Context, username, password string) (domain.User, error) {
	var id, hash string
	err := s.pool.QueryRow(ctx, `SELECT id, password_hash FROM profiles WHERE username = $1`, username).Scan(&id, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		auth.BurnCompare(password)
		return domain.User{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup profile: %w", err)
	}
	if !auth.CheckPassword(hash, password) {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return domain.User{Key: id, Username: username}, nil
}

// UpsertProfile creates a profile or resets an existing profile's password.
// Existing profiles keep their id so their progress stays attached.
func (s *CredentialStore) UpsertProfile(ctx context.Context, cred domain.Credential, cost int) (domain.User, error) {
	hash := cred.Password
	if !auth.IsHash(hash) {
		var err error
		if hash, err = auth.HashPassword(cred.Password, cost); err != nil {
			return domain.User{}, fmt.Errorf("hash password: %w", err)
		}
	}

	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO profiles (id, username, password_hash) VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE SET password_hash = EXCLUDED.password_hash
		RETURNING id
	`, uuid.NewString(), cred.Username, hash).Scan(&id)
	if err != nil {
		return domain.User{}, fmt.Errorf("upsert profile: %w", err)
	}
	return domain.User{Key: id, Username: cred.Username}, nil
}
