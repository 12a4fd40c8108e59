package interfaces

import (
	"context"

	"liveclass/pkg/types"
)

// GrantStore keeps access grants until they expire
// ARCHITECTURAL DISCOVERY: Grants are written once and only read afterwards;
// expiry is the store's job (map sweep in memory, key TTL in Redis)
type GrantStore interface {
	// Put stores a grant scoped to (grant.UserID, grant.SessionID)
	Put(ctx context.Context, grant *types.AccessGrant) error

	// Get returns the grant for the pair, or (nil, nil) when absent or expired
	Get(ctx context.Context, userID, sessionID string) (*types.AccessGrant, error)
}
