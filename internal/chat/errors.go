package chat

import "errors"

// Turn failure taxonomy. The HTTP layer maps these onto status codes;
// anything else is treated as an internal fault.
var (
	ErrUnauthenticated = errors.New("missing user identity")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrNotFound        = errors.New("conversation not found")
	ErrConfiguration   = errors.New("completion engine is not configured")
	ErrUpstream        = errors.New("completion engine request failed")
)
