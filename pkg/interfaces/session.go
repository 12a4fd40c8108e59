package interfaces

import (
	"context"

	"liveclass/pkg/types"
)

// SessionNotifier receives lifecycle transitions from the controller
// ARCHITECTURAL DISCOVERY: The controller never imports the hub; the hub
// satisfies this interface and is injected at startup
type SessionNotifier interface {
	// SessionStarted announces classStarted to lobby subscribers
	SessionStarted(sessionID string)

	// SessionEnded broadcasts classEnded and evicts the room
	SessionEnded(sessionID string)
}

// SessionController is the lifecycle surface used by the API and realtime layers
type SessionController interface {
	// End terminates a live session on behalf of a caller
	End(ctx context.Context, sessionID, callerID string, isAdmin bool) (*types.SessionRecord, error)

	// Get returns a snapshot of a live session
	Get(sessionID string) (*types.SessionState, bool)
}

// AccessAuthorizer decides whether a caller may enter a live session room
type AccessAuthorizer interface {
	Authorize(ctx context.Context, sessionID, callerID string, isAdmin bool) error
}
