package types

import "errors"

// ARCHITECTURAL DISCOVERY: Validation errors live next to the types they guard
var (
	ErrInvalidUserID     = errors.New("user ID must be 1-64 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidSessionID  = errors.New("session ID must be 1-64 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidVisibility = errors.New("visibility must be empty or \"public\"")
	ErrInvalidEvent      = errors.New("invalid realtime event")
	ErrEmptyPayload      = errors.New("event payload is required")
)
