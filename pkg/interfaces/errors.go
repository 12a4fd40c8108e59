package interfaces

import "errors"

// Common errors shared by the registry, hub, controller and access gate
// ARCHITECTURAL DISCOVERY: One taxonomy for every component so the API and
// realtime layers can map failures with errors.Is
var (
	ErrNotLive          = errors.New("session is not live")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrNotFound         = errors.New("session not found")
	ErrInvalidMeetingID = errors.New("invalid meeting ID for this session")
	ErrStore            = errors.New("session store write failed")
	ErrRateLimited      = errors.New("too many access attempts")
)
