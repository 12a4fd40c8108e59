package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// RecordCommitter hands a final session snapshot to durable storage
// ARCHITECTURAL DISCOVERY: Implemented by persistence.Gateway; Commit must
// return without waiting on the store
type RecordCommitter interface {
	Commit(state *types.SessionState, endTime time.Time) *types.SessionRecord
}

// StartRequest describes a start call; an empty SessionID starts an ad-hoc session
type StartRequest struct {
	SessionID  string
	CallerID   string
	IsAdmin    bool
	Visibility string
}

// StartResult is returned by Start
type StartResult struct {
	SessionID string    `json:"sessionId"`
	Title     string    `json:"title,omitempty"`
	StartTime time.Time `json:"startTime"`
	Created   bool      `json:"created"`
}

// Controller orchestrates the ABSENT -> LIVE -> ABSENT lifecycle of sessions
type Controller struct {
	registry  *Registry
	courses   interfaces.CourseLookup
	committer RecordCommitter
	notifier  interfaces.SessionNotifier
	now       func() time.Time
	newID     func() (string, error)
}

// NewController wires the controller to the single registry instance
func NewController(registry *Registry, courses interfaces.CourseLookup, committer RecordCommitter, notifier interfaces.SessionNotifier) *Controller {
	return &Controller{
		registry:  registry,
		courses:   courses,
		committer: committer,
		notifier:  notifier,
		now:       time.Now,
		newID:     newAdHocID,
	}
}

// Start makes a session live
// FUNCTIONAL DISCOVERY: A catalogued session may only be started by the
// course instructor or an admin; the course instructor, not the caller,
// becomes the session owner so that ownership survives an admin start
func (c *Controller) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	if !types.IsValidUserID(req.CallerID) {
		return nil, ErrInvalidCaller
	}
	if err := types.ValidateVisibility(req.Visibility); err != nil {
		return nil, err
	}

	sessionID := req.SessionID
	instructorID := req.CallerID
	title := ""

	if sessionID == "" {
		id, err := c.unusedID(ctx)
		if err != nil {
			return nil, err
		}
		sessionID = id
	} else {
		if !types.IsValidSessionID(sessionID) {
			return nil, types.ErrInvalidSessionID
		}
		course, err := c.courses.FindCourseByID(ctx, sessionID)
		if err != nil {
			if errors.Is(err, interfaces.ErrNotFound) {
				return nil, fmt.Errorf("course %s: %w", sessionID, interfaces.ErrNotFound)
			}
			return nil, fmt.Errorf("failed to resolve course %s: %w", sessionID, err)
		}
		if course.InstructorID != req.CallerID && !req.IsAdmin {
			return nil, fmt.Errorf("start %s: %w", sessionID, interfaces.ErrUnauthorized)
		}
		instructorID = course.InstructorID
		title = course.Title
	}

	state, created := c.registry.Start(sessionID, instructorID, req.Visibility, title)
	if created {
		log.Printf("Session started: id=%s instructor=%s visibility=%q", state.SessionID, state.InstructorID, state.Visibility)
		c.notifier.SessionStarted(state.SessionID)
	}

	return &StartResult{
		SessionID: state.SessionID,
		Title:     state.Title,
		StartTime: state.StartTime,
		Created:   created,
	}, nil
}

// unusedID draws ad-hoc ids until one is neither live nor a catalogued course id
func (c *Controller) unusedID(ctx context.Context) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id, err := c.newID()
		if err != nil {
			return "", fmt.Errorf("failed to generate session ID: %w", err)
		}
		if c.registry.Exists(id) {
			continue
		}

		_, err = c.courses.FindCourseByID(ctx, id)
		switch {
		case errors.Is(err, interfaces.ErrNotFound):
			return id, nil
		case err != nil:
			return "", fmt.Errorf("failed to check session ID %s against courses: %w", id, err)
		}
	}
	return "", ErrIDSpaceExhausted
}

// End terminates a live session on behalf of callerID
// ARCHITECTURAL DISCOVERY: Registry removal, persistence hand-off and the
// classEnded broadcast happen in that order; only the first can fail
func (c *Controller) End(ctx context.Context, sessionID, callerID string, isAdmin bool) (*types.SessionRecord, error) {
	state, err := c.registry.RemoveIf(sessionID, func(s *types.SessionState) error {
		if s.InstructorID != callerID && !isAdmin {
			return interfaces.ErrUnauthorized
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("end %s: %w", sessionID, err)
	}

	record := c.committer.Commit(state, c.now())
	log.Printf("Session ended: id=%s by=%s attendees=%d", sessionID, callerID, len(record.Attendees))

	c.notifier.SessionEnded(sessionID)
	return record, nil
}

// List returns listing rows for every live session
func (c *Controller) List() []types.LiveSessionSummary {
	states := c.registry.ListAll()
	out := make([]types.LiveSessionSummary, 0, len(states))
	for _, state := range states {
		out = append(out, state.Summarize())
	}
	return out
}

// Get returns a snapshot of a live session
func (c *Controller) Get(sessionID string) (*types.SessionState, bool) {
	return c.registry.Get(sessionID)
}
