package auth

import "errors"

var (
	// ErrUnauthenticated is returned when a request carries no token at all.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrInvalidToken is returned when a token fails signature or expiry checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrSessionExpired is returned for a well-formed token whose session is gone.
	ErrSessionExpired = errors.New("session expired or revoked")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateAccount   = errors.New("username or email already exists")
	ErrAccountNotFound    = errors.New("account not found")
)

// RejectionReason classifies an Authenticate failure for logs and metrics.
// It returns "" for errors that are not authentication rejections.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "missing_token"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrSessionExpired):
		return "session_expired"
	default:
		return ""
	}
}
