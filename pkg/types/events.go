package types

import (
	"encoding/json"
	"time"
)

// ARCHITECTURAL DISCOVERY: Event names are shared by the hub, the websocket
// handler and browser clients, so they are defined once here
const (
	// client -> server
	EventJoinClass  = "joinClass"
	EventLeaveClass = "leaveClass"
	EventEndClass   = "endClass"

	// both directions
	EventChatMessage = "chatMessage"

	// server -> client
	EventClassStarted     = "classStarted"
	EventClassEnded       = "classEnded"
	EventAttendanceUpdate = "attendanceUpdate"
	EventError            = "error"
)

// ErrClassNotLive is the error event text sent when joining a session that is not live
const ErrClassNotLive = "Class not live"

// Envelope is the frame exchanged over the realtime channel
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is the server side frame; Data is marshalled lazily by the writer
type Outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// JoinClassPayload is sent by a client entering a session room
type JoinClassPayload struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

// LeaveClassPayload is sent by a client leaving a session room
type LeaveClassPayload struct {
	SessionID string `json:"sessionId"`
}

// ChatMessagePayload is the inbound chat frame
type ChatMessagePayload struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Text      string `json:"text"`
}

// EndClassPayload asks the server to end a session
type EndClassPayload struct {
	SessionID string `json:"sessionId"`
}

// SessionEventPayload carries classStarted and classEnded notifications
type SessionEventPayload struct {
	SessionID string `json:"sessionId"`
}

// AttendancePayload carries the current attendee count of a room
type AttendancePayload struct {
	SessionID string `json:"sessionId"`
	Count     int    `json:"count"`
}

// ErrorPayload is returned to a single connection when a request fails
type ErrorPayload struct {
	Message string `json:"message"`
}

// NewAttendanceUpdate builds an attendanceUpdate frame
func NewAttendanceUpdate(sessionID string, count int) Outbound {
	return Outbound{Event: EventAttendanceUpdate, Data: AttendancePayload{SessionID: sessionID, Count: count}}
}

// NewClassStarted builds a classStarted frame
func NewClassStarted(sessionID string) Outbound {
	return Outbound{Event: EventClassStarted, Data: SessionEventPayload{SessionID: sessionID}}
}

// NewClassEnded builds a classEnded frame
func NewClassEnded(sessionID string) Outbound {
	return Outbound{Event: EventClassEnded, Data: SessionEventPayload{SessionID: sessionID}}
}

// NewChatFrame builds an outbound chatMessage frame
// FUNCTIONAL DISCOVERY: Missing sender names are shown as "Unknown"
func NewChatFrame(userID, name, text string, now time.Time) Outbound {
	if name == "" {
		name = "Unknown"
	}
	return Outbound{Event: EventChatMessage, Data: ChatMessage{
		UserID: userID,
		Name:   name,
		Text:   text,
		Time:   now,
	}}
}

// NewErrorFrame builds an error frame for a single connection
func NewErrorFrame(message string) Outbound {
	return Outbound{Event: EventError, Data: ErrorPayload{Message: message}}
}
