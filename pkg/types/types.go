package types

import (
	"sort"
	"time"
)

// Visibility values for a live session
const (
	VisibilityPrivate = ""
	VisibilityPublic  = "public"
)

// SessionState is the in-memory state of a live session
// ARCHITECTURAL DISCOVERY: Only the session registry mutates SessionState.
// Every other component works on snapshots returned by Clone.
type SessionState struct {
	SessionID    string              `json:"sessionId"`
	InstructorID string              `json:"instructorId"`
	Title        string              `json:"title,omitempty"`
	StartTime    time.Time           `json:"startTime"`
	Visibility   string              `json:"visibility,omitempty"`
	Attendees    map[string]struct{} `json:"-"`
}

// NewSessionState creates a live state with an empty attendee set
func NewSessionState(sessionID, instructorID string, startTime time.Time) *SessionState {
	return &SessionState{
		SessionID:    sessionID,
		InstructorID: instructorID,
		StartTime:    startTime,
		Attendees:    make(map[string]struct{}),
	}
}

// IsPublic reports whether any authenticated user may enter without a grant
func (s *SessionState) IsPublic() bool {
	return s.Visibility == VisibilityPublic
}

// AttendeeCount returns the cardinality of the attendee set
func (s *SessionState) AttendeeCount() int {
	return len(s.Attendees)
}

// AttendeeList returns the attendee ids in sorted order
func (s *SessionState) AttendeeList() []string {
	out := make([]string, 0, len(s.Attendees))
	for userID := range s.Attendees {
		out = append(out, userID)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy safe to hand outside the registry
func (s *SessionState) Clone() *SessionState {
	cp := *s
	cp.Attendees = make(map[string]struct{}, len(s.Attendees))
	for userID := range s.Attendees {
		cp.Attendees[userID] = struct{}{}
	}
	return &cp
}

// SessionRecord is the durable history entry written once at end of session
// FUNCTIONAL DISCOVERY: Records are never updated after creation
type SessionRecord struct {
	SessionID    string    `json:"sessionId" db:"session_id"`
	InstructorID string    `json:"instructorId" db:"instructor_id"`
	StartTime    time.Time `json:"startTime" db:"start_time"`
	EndTime      time.Time `json:"endTime" db:"end_time"`
	Attendees    []string  `json:"attendees" db:"attendees"`
}

// NewSessionRecord snapshots a live state into a history record
func NewSessionRecord(state *SessionState, endTime time.Time) *SessionRecord {
	return &SessionRecord{
		SessionID:    state.SessionID,
		InstructorID: state.InstructorID,
		StartTime:    state.StartTime,
		EndTime:      endTime,
		Attendees:    state.AttendeeList(),
	}
}

// AccessGrant proves a caller passed the access gate for one session
type AccessGrant struct {
	UserID    string    `json:"userId"`
	SessionID string    `json:"sessionId"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Valid reports whether the grant is still usable at the given instant
func (g *AccessGrant) Valid(now time.Time) bool {
	return g != nil && now.Before(g.ExpiresAt)
}

// ChatMessage is relayed once to a room and never stored
type ChatMessage struct {
	UserID string    `json:"userId"`
	Name   string    `json:"name"`
	Text   string    `json:"text"`
	Time   time.Time `json:"time"`
}

// Course is the read-only view of a catalogued course record
type Course struct {
	ID           string `json:"id" db:"id"`
	Title        string `json:"title" db:"title"`
	InstructorID string `json:"instructorId" db:"instructor_id"`
}

// LiveSessionSummary is the listing row for live sessions
type LiveSessionSummary struct {
	SessionID     string    `json:"sessionId"`
	Title         string    `json:"title,omitempty"`
	InstructorID  string    `json:"instructorId"`
	AttendeeCount int       `json:"attendeeCount"`
	Attendees     []string  `json:"attendees"`
	StartTime     time.Time `json:"startTime"`
	Visibility    string    `json:"visibility,omitempty"`
}

// Summarize converts a state snapshot into a listing row
func (s *SessionState) Summarize() LiveSessionSummary {
	return LiveSessionSummary{
		SessionID:     s.SessionID,
		Title:         s.Title,
		InstructorID:  s.InstructorID,
		AttendeeCount: s.AttendeeCount(),
		Attendees:     s.AttendeeList(),
		StartTime:     s.StartTime,
		Visibility:    s.Visibility,
	}
}
