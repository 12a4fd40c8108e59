package hub

import "errors"

// Hub-specific error types
var (
	ErrHubAlreadyRunning = errors.New("hub is already running")
	ErrHubNotRunning     = errors.New("hub is not running")
	ErrNilConnection     = errors.New("connection cannot be nil")
	ErrNotRegistered     = errors.New("connection is not registered")
	ErrNotInRoom         = errors.New("connection is not in a session room")
)
