package persistence_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liveclass/internal/hub"
	"liveclass/internal/persistence"
	"liveclass/internal/session"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

type brokenStore struct{}

func (brokenStore) CreateSessionRecord(ctx context.Context, record *types.SessionRecord) error {
	return errors.New("disk full")
}

type noCourses struct{}

func (noCourses) FindCourseByID(ctx context.Context, id string) (*types.Course, error) {
	return nil, interfaces.ErrNotFound
}

type memberConn struct {
	id, userID string

	mu     sync.Mutex
	events []string
}

func (c *memberConn) ID() string     { return c.id }
func (c *memberConn) UserID() string { return c.userID }
func (c *memberConn) IsAdmin() bool  { return false }
func (c *memberConn) Close() error   { return nil }

func (c *memberConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, v.(types.Outbound).Event)
	return nil
}

func (c *memberConn) received(event string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.events {
		if e == event {
			return true
		}
	}
	return false
}

// Ending a session succeeds and notifies the room even when its record cannot be written
func TestEnd_SucceedsWhenRecordWriteFails(t *testing.T) {
	ctx := context.Background()

	registry := session.NewRegistry()
	h := hub.NewHub(registry)
	require.NoError(t, h.Start(ctx))
	t.Cleanup(func() { _ = h.Stop() })

	writes := make(chan error, 1)
	gateway := persistence.NewGateway(brokenStore{}, time.Second)
	gateway.OnResult = func(record *types.SessionRecord, err error) { writes <- err }

	ctrl := session.NewController(registry, noCourses{}, gateway, h)
	started, err := ctrl.Start(ctx, session.StartRequest{CallerID: "prof", Visibility: types.VisibilityPublic})
	require.NoError(t, err)

	member := &memberConn{id: "conn-1", userID: "alice"}
	require.NoError(t, h.Register(member))
	require.NoError(t, h.Join(member, started.SessionID, "alice"))

	record, err := ctrl.End(ctx, started.SessionID, "prof", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, record.Attendees)

	assert.False(t, registry.Exists(started.SessionID))
	assert.True(t, member.received(types.EventClassEnded))

	select {
	case err := <-writes:
		assert.ErrorIs(t, err, interfaces.ErrStore)
	case <-time.After(2 * time.Second):
		t.Fatal("record write never finished")
	}
	require.NoError(t, gateway.Wait(ctx))
}
