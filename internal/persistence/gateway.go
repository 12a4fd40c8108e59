package persistence

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// Gateway writes end-of-session history records in the background
// ARCHITECTURAL DISCOVERY: Commit never blocks the caller, so a slow or
// failing store cannot delay classEnded for connected users
type Gateway struct {
	writer  interfaces.SessionRecordWriter
	timeout time.Duration
	wg      sync.WaitGroup

	// OnResult observes every finished write; nil err means success
	OnResult func(record *types.SessionRecord, err error)
}

// NewGateway creates a gateway writing through writer with a per-write timeout
func NewGateway(writer interfaces.SessionRecordWriter, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{writer: writer, timeout: timeout}
}

// Commit snapshots state into a SessionRecord and writes it asynchronously
func (g *Gateway) Commit(state *types.SessionState, endTime time.Time) *types.SessionRecord {
	record := types.NewSessionRecord(state, endTime)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		err := g.write(record)
		if g.OnResult != nil {
			g.OnResult(record, err)
		}
	}()

	return record
}

func (g *Gateway) write(record *types.SessionRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	if err := g.writer.CreateSessionRecord(ctx, record); err != nil {
		err = fmt.Errorf("%w: session=%s: %v", interfaces.ErrStore, record.SessionID, err)
		log.Printf("Session record write failed: %v", err)
		return err
	}

	log.Printf("Session record written: session=%s attendees=%d", record.SessionID, len(record.Attendees))
	return nil
}

// Wait blocks until every in-flight write has finished or ctx is done
func (g *Gateway) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
