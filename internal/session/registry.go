package session

import (
	"sort"
	"sync"
	"time"

	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// Registry is the process-local store of live sessions
// ARCHITECTURAL DISCOVERY: Every operation completes under one lock without
// I/O, so mutations never interleave. Callers only ever see snapshots.
type Registry struct {
	sessions map[string]*types.SessionState
	mu       sync.RWMutex
	now      func() time.Time
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*types.SessionState),
		now:      time.Now,
	}
}

// Start creates a live session or returns the existing one unchanged
// FUNCTIONAL DISCOVERY: created is false when the session was already live;
// visibility and title of the existing entry are not overwritten
func (r *Registry) Start(sessionID, instructorID, visibility, title string) (*types.SessionState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[sessionID]; ok {
		return existing.Clone(), false
	}

	state := types.NewSessionState(sessionID, instructorID, r.now())
	state.Visibility = visibility
	state.Title = title
	r.sessions[sessionID] = state

	return state.Clone(), true
}

// Get returns a snapshot of a live session
func (r *Registry) Get(sessionID string) (*types.SessionState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return state.Clone(), true
}

// Exists reports whether a session is live
func (r *Registry) Exists(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.sessions[sessionID]
	return ok
}

// Remove deletes a session and returns its final state
func (r *Registry) Remove(sessionID string) (*types.SessionState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	delete(r.sessions, sessionID)
	return state, true
}

// RemoveIf deletes a session only when check accepts its current state
// TECHNICAL DISCOVERY: check runs under the write lock, so authorization and
// removal are one step even when two callers end the same session
func (r *Registry) RemoveIf(sessionID string, check func(*types.SessionState) error) (*types.SessionState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.sessions[sessionID]
	if !ok {
		return nil, interfaces.ErrNotLive
	}
	if check != nil {
		if err := check(state.Clone()); err != nil {
			return nil, err
		}
	}
	delete(r.sessions, sessionID)
	return state, nil
}

// AddAttendee adds a user to a live session and returns the new count
// FUNCTIONAL DISCOVERY: The attendee set makes a repeated join idempotent
func (r *Registry) AddAttendee(sessionID, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.sessions[sessionID]
	if !ok {
		return 0, interfaces.ErrNotLive
	}
	state.Attendees[userID] = struct{}{}
	return len(state.Attendees), nil
}

// RemoveAttendee removes a user and returns the new count
func (r *Registry) RemoveAttendee(sessionID, userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.sessions[sessionID]
	if !ok {
		return 0
	}
	delete(state.Attendees, userID)
	return len(state.Attendees)
}

// ListAll returns snapshots of every live session ordered by start time
func (r *Registry) ListAll() []*types.SessionState {
	r.mu.RLock()
	out := make([]*types.SessionState, 0, len(r.sessions))
	for _, state := range r.sessions {
		out = append(out, state.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// Count returns the number of live sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
