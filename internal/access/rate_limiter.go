package access

import (
	"sync"
	"time"
)

// Default attempt budget for meeting id validation
const (
	DefaultAttemptLimit  = 20
	DefaultAttemptWindow = time.Minute
)

// RateLimiter implements per-caller attempt limiting
// ARCHITECTURAL DISCOVERY: Per-caller state tracking with periodic cleanup
// keeps the table bounded by the number of recently active callers
type RateLimiter struct {
	mu      sync.Mutex
	callers map[string]*callerWindow
	limit   int
	window  time.Duration
	now     func() time.Time
}

// callerWindow tracks attempts for a single caller
type callerWindow struct {
	attempts    int
	windowStart time.Time
}

// NewRateLimiter creates a limiter allowing limit attempts per window
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultAttemptLimit
	}
	if window <= 0 {
		window = DefaultAttemptWindow
	}
	return &RateLimiter{
		callers: make(map[string]*callerWindow),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow records an attempt and reports whether it fits in the caller's window
func (rl *RateLimiter) Allow(callerID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	w, exists := rl.callers[callerID]
	if !exists {
		rl.callers[callerID] = &callerWindow{attempts: 1, windowStart: now}
		return true
	}

	// FUNCTIONAL DISCOVERY: Fixed window resets once the window has fully elapsed
	if now.Sub(w.windowStart) >= rl.window {
		w.attempts = 1
		w.windowStart = now
		return true
	}

	if w.attempts >= rl.limit {
		return false
	}

	w.attempts++
	return true
}

// Cleanup removes callers idle for more than five windows
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for callerID, w := range rl.callers {
		if now.Sub(w.windowStart) > 5*rl.window {
			delete(rl.callers, callerID)
		}
	}
}

// Tracked returns the number of callers currently held
func (rl *RateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.callers)
}
