package access

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// DefaultGrantTTL is how long a validated caller may re-enter without the meeting id
const DefaultGrantTTL = 24 * time.Hour

// How a Validate call succeeded
const (
	ViaOwner     = "owner"
	ViaAdmin     = "admin"
	ViaPublic    = "public"
	ViaGrant     = "grant"
	ViaMeetingID = "meetingId"
)

// LiveSessions is the registry view the gate needs
type LiveSessions interface {
	Get(sessionID string) (*types.SessionState, bool)
}

// ValidateRequest carries one access validation attempt
type ValidateRequest struct {
	MeetingID string `json:"meetingId"`
	SessionID string `json:"sessionId"`
	CallerID  string `json:"-"`
	IsAdmin   bool   `json:"-"`
}

// ValidateResult reports how access was granted and any grant issued for it
type ValidateResult struct {
	SessionID string             `json:"sessionId"`
	Via       string             `json:"via"`
	Grant     *types.AccessGrant `json:"grant,omitempty"`
}

// Gate decides whether a caller may enter a session
// ARCHITECTURAL DISCOVERY: The gate reads the registry and the course store
// but never mutates either; its only side effect is writing grants
type Gate struct {
	sessions LiveSessions
	courses  interfaces.CourseLookup
	grants   interfaces.GrantStore
	limiter  *RateLimiter
	ttl      time.Duration
	now      func() time.Time
}

// NewGate creates an access gate; a nil limiter disables attempt limiting
func NewGate(sessions LiveSessions, courses interfaces.CourseLookup, grants interfaces.GrantStore, limiter *RateLimiter, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = DefaultGrantTTL
	}
	return &Gate{
		sessions: sessions,
		courses:  courses,
		grants:   grants,
		limiter:  limiter,
		ttl:      ttl,
		now:      time.Now,
	}
}

// target is what the gate knows about a session id
type target struct {
	instructorID string
	public       bool
}

// resolve looks the session up in the registry first, then the course store
func (g *Gate) resolve(ctx context.Context, sessionID string) (*target, error) {
	if state, ok := g.sessions.Get(sessionID); ok {
		return &target{instructorID: state.InstructorID, public: state.IsPublic()}, nil
	}

	course, err := g.courses.FindCourseByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("resolve %s: %w", sessionID, err)
	}
	return &target{instructorID: course.InstructorID}, nil
}

// privileged returns the Via value for callers that skip the meeting id check
func privileged(t *target, callerID string, isAdmin bool) string {
	switch {
	case callerID == t.instructorID:
		return ViaOwner
	case isAdmin:
		return ViaAdmin
	case t.public:
		return ViaPublic
	}
	return ""
}

// Validate runs the meeting id friction check and issues a grant on success
func (g *Gate) Validate(ctx context.Context, req ValidateRequest) (*ValidateResult, error) {
	if !types.IsValidUserID(req.CallerID) || req.SessionID == "" {
		return nil, ErrInvalidRequest
	}

	if g.limiter != nil && !g.limiter.Allow(req.CallerID) {
		log.Printf("Access attempts limited: user=%s session=%s", req.CallerID, req.SessionID)
		return nil, interfaces.ErrRateLimited
	}

	t, err := g.resolve(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	existing, err := g.grants.Get(ctx, req.CallerID, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("grant lookup: %w", err)
	}
	if existing.Valid(g.now()) {
		return &ValidateResult{SessionID: req.SessionID, Via: ViaGrant}, nil
	}

	via := privileged(t, req.CallerID, req.IsAdmin)
	if via == "" {
		if !types.MeetingIDMatches(req.MeetingID, req.SessionID) {
			return nil, interfaces.ErrInvalidMeetingID
		}
		via = ViaMeetingID
	}

	now := g.now()
	grant := &types.AccessGrant{
		UserID:    req.CallerID,
		SessionID: req.SessionID,
		IssuedAt:  now,
		ExpiresAt: now.Add(g.ttl),
	}
	if err := g.grants.Put(ctx, grant); err != nil {
		return nil, fmt.Errorf("grant issue: %w", err)
	}

	log.Printf("Access granted: user=%s session=%s via=%s", req.CallerID, req.SessionID, via)
	return &ValidateResult{SessionID: req.SessionID, Via: via, Grant: grant}, nil
}

// Authorize checks room entry for a live session without issuing grants.
// Sessions that are not live return ErrNotLive; refused callers get ErrNotFound.
func (g *Gate) Authorize(ctx context.Context, sessionID, callerID string, isAdmin bool) error {
	state, ok := g.sessions.Get(sessionID)
	if !ok {
		return interfaces.ErrNotLive
	}

	t := &target{instructorID: state.InstructorID, public: state.IsPublic()}
	if privileged(t, callerID, isAdmin) != "" {
		return nil
	}

	grant, err := g.grants.Get(ctx, callerID, sessionID)
	if err != nil {
		return fmt.Errorf("grant lookup: %w", err)
	}
	if grant.Valid(g.now()) {
		return nil
	}

	// FUNCTIONAL DISCOVERY: Refusals are reported as NotFound so the gate
	// does not reveal whether the session exists
	return interfaces.ErrNotFound
}

// sweeper is implemented by grant stores that expire entries themselves
type sweeper interface {
	Sweep() int
}

// RunJanitor periodically drops stale limiter entries and expired memory
// grants until ctx is cancelled
func (g *Gate) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if g.limiter != nil {
				g.limiter.Cleanup()
			}
			if s, ok := g.grants.(sweeper); ok {
				if removed := s.Sweep(); removed > 0 {
					log.Printf("Expired access grants removed: count=%d", removed)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
