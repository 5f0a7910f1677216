package auth

import "errors"

var (
	// ErrUnauthorized means no credentials were presented.
	ErrUnauthorized = errors.New("access token required")
	// ErrInvalidToken means the presented token is malformed, forged or expired.
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("insufficient role")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidUser        = errors.New("invalid user")
	ErrUserNotFound       = errors.New("user not found")
)
