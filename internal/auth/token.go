package auth

import (
	"errors"
	"time"

	"matrix-quest-service/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every malformed, expired or wrongly signed token.
var ErrInvalidToken = errors.New("invalid session token")

// Claims carries the session identity inside a signed token.
type Claims struct {
	UserKey  string `json:"uid"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenIssuer turns explicit sessions into bearer tokens and back.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return NewTokenIssuerWithClock(secret, ttl, time.Now)
}

// NewTokenIssuerWithClock is test-only for deterministic expiry.
func NewTokenIssuerWithClock(secret string, ttl time.Duration, now func() time.Time) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: now}
}

// Issue signs a token for the session and returns the session with its expiry filled in.
func (i *TokenIssuer) Issue(session domain.Session) (string, domain.Session, error) {
	issued := i.now()
	session.IssuedAt = issued
	session.ExpiresAt = issued.Add(i.ttl)

	claims := &Claims{
		UserKey:  session.UserKey,
		Username: session.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.UserKey,
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", domain.Session{}, err
	}
	return signed, session, nil
}

// Parse validates a token and returns the session it names.
func (i *TokenIssuer) Parse(tokenString string) (domain.Session, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return domain.Session{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserKey == "" {
		return domain.Session{}, ErrInvalidToken
	}

	session := domain.Session{UserKey: claims.UserKey, Username: claims.Username}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}
