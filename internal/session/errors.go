package session

import "errors"

// Session lifecycle error types
// ARCHITECTURAL DISCOVERY: The shared taxonomy (NotLive, Unauthorized,
// NotFound) lives in pkg/interfaces; these cover input validation only
var (
	ErrInvalidCaller    = errors.New("caller ID must be a valid user ID")
	ErrIDSpaceExhausted = errors.New("could not generate an unused session ID")
)
