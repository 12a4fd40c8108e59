package types

import (
	"encoding/json"
	"regexp"
	"strings"
)

// FUNCTIONAL DISCOVERY: Regex compiled once at package initialization
var identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidUserID checks if a user ID meets format requirements
func IsValidUserID(userID string) bool {
	return isValidIdentifier(userID)
}

// IsValidSessionID checks if a session ID meets format requirements.
// Course ids (24 hex chars) and ad-hoc tokens (9 base36 chars) both pass.
func IsValidSessionID(sessionID string) bool {
	return isValidIdentifier(sessionID)
}

func isValidIdentifier(id string) bool {
	if len(id) < 1 || len(id) > 64 {
		return false
	}
	return identifierRegex.MatchString(id)
}

// ValidateVisibility accepts the empty (private) value and "public"
func ValidateVisibility(visibility string) error {
	switch visibility {
	case VisibilityPrivate, VisibilityPublic:
		return nil
	default:
		return ErrInvalidVisibility
	}
}

// MeetingIDMatches compares a caller supplied meeting id with a session id.
// The comparison trims whitespace and ignores case.
func MeetingIDMatches(meetingID, sessionID string) bool {
	trimmed := strings.TrimSpace(meetingID)
	if trimmed == "" {
		return false
	}
	return strings.EqualFold(trimmed, sessionID)
}

// IsClientEvent reports whether the event name may be sent by a client
func IsClientEvent(event string) bool {
	switch event {
	case EventJoinClass, EventLeaveClass, EventChatMessage, EventEndClass:
		return true
	default:
		return false
	}
}

// DecodePayload unmarshals the envelope data into target
func (e *Envelope) DecodePayload(target interface{}) error {
	if len(e.Data) == 0 {
		return ErrEmptyPayload
	}
	if err := json.Unmarshal(e.Data, target); err != nil {
		return ErrInvalidEvent
	}
	return nil
}
