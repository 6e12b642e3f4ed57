package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Credential lifecycle outcomes.
	ErrInvalidCode           = errors.New("invalid code")
	ErrExpired               = errors.New("expired")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
)
