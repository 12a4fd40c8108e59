package access

import (
	"context"
	"sync"
	"time"

	"liveclass/pkg/types"
)

type grantKey struct {
	userID    string
	sessionID string
}

// MemoryGrantStore keeps grants in process memory
type MemoryGrantStore struct {
	mu     sync.RWMutex
	grants map[grantKey]types.AccessGrant
	now    func() time.Time
}

// NewMemoryGrantStore creates an empty in-memory grant store
func NewMemoryGrantStore() *MemoryGrantStore {
	return &MemoryGrantStore{
		grants: make(map[grantKey]types.AccessGrant),
		now:    time.Now,
	}
}

// Put stores or replaces the grant for (UserID, SessionID)
func (s *MemoryGrantStore) Put(ctx context.Context, grant *types.AccessGrant) error {
	if grant == nil || grant.UserID == "" || grant.SessionID == "" {
		return ErrInvalidGrant
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[grantKey{grant.UserID, grant.SessionID}] = *grant
	return nil
}

// Get returns a copy of the grant, or nil when absent or expired
func (s *MemoryGrantStore) Get(ctx context.Context, userID, sessionID string) (*types.AccessGrant, error) {
	s.mu.RLock()
	grant, ok := s.grants[grantKey{userID, sessionID}]
	s.mu.RUnlock()

	if !ok || !grant.Valid(s.now()) {
		return nil, nil
	}
	return &grant, nil
}

// Sweep drops expired grants and returns how many were removed
func (s *MemoryGrantStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, grant := range s.grants {
		if !grant.Valid(now) {
			delete(s.grants, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored grants, expired ones included
func (s *MemoryGrantStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.grants)
}
