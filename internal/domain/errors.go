package domain

import "errors"

var (
	// ErrInvalidCredentials is the single answer to every failed login, whatever the cause.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrProgressNotFound is returned when no record exists for a user key.
	ErrProgressNotFound = errors.New("progress not found")
	// ErrNotLoggedIn is returned when the record exists but its session was closed.
	ErrNotLoggedIn = errors.New("user not logged in")
	// ErrQuestionNotFound indicates a question id outside the catalog.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidCatalog indicates the catalog is empty or its ids are not a dense 1-based sequence.
	ErrInvalidCatalog = errors.New("invalid question catalog")
	// ErrNotifierNotConfigured is returned by a notifier with no destination.
	ErrNotifierNotConfigured = errors.New("notifier not configured")
)
