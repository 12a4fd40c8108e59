package websocket

import "errors"

// Connection-related errors
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendBufferFull   = errors.New("send buffer full")
	ErrInvalidJSON      = errors.New("invalid JSON data")
)

// Handler-related errors
var (
	ErrIdentityMismatch = errors.New("userId does not match the authenticated user")
	ErrUnknownEvent     = errors.New("unknown event")
)
