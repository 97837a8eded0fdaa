package session

import "errors"

var (
	// ErrEmptyToken is returned when a successful login response carries no token.
	ErrEmptyToken = errors.New("session: login response carries no access token")

	// ErrPersist wraps storage failures while saving or clearing the token.
	ErrPersist = errors.New("session: persist token")
)
