package auth

import "errors"

var (
	// ErrNoKeySource is returned when neither a secret nor a JWKS URL
	// is configured.
	ErrNoKeySource = errors.New("auth: no key source configured")

	// ErrEmptyToken is returned for an empty token string.
	ErrEmptyToken = errors.New("auth: empty token")

	// ErrInvalidToken is returned when a token fails parsing or
	// validation.
	ErrInvalidToken = errors.New("auth: invalid token")
)
