package access

import "errors"

// Access gate errors
var (
	ErrGrantStoreUnavailable = errors.New("grant store unavailable")
	ErrInvalidGrant          = errors.New("invalid access grant")
	ErrInvalidRequest        = errors.New("invalid access request")
)
