package hub

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// Attendance is the registry surface the hub mutates on join and leave
type Attendance interface {
	AddAttendee(sessionID, userID string) (int, error)
	RemoveAttendee(sessionID, userID string) int
	Get(sessionID string) (*types.SessionState, bool)
}

// Stats is a point-in-time view of hub state for health reporting
type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
	Members     int `json:"members"`
}

type commandKind int

const (
	cmdRegister commandKind = iota
	cmdUnregister
	cmdJoin
	cmdLeave
	cmdChat
	cmdSessionStarted
	cmdSessionEnded
	cmdStats
)

// command is one unit of work for the hub goroutine
type command struct {
	kind      commandKind
	conn      interfaces.Connection
	sessionID string
	userID    string
	name      string
	text      string
	stats     *Stats
	done      chan error
}

// Hub multiplexes realtime connections into per-session rooms
// ARCHITECTURAL DISCOVERY: One goroutine owns every room and performs every
// broadcast, which gives a total order of events within a room. Callers
// block until their command has been applied.
type Hub struct {
	commands   chan *command
	attendance Attendance
	rooms      *rooms
	now        func() time.Time

	running  bool
	shutdown chan struct{}
	stopped  chan struct{}
	mu       sync.RWMutex
}

// NewHub creates a hub bound to the session registry
func NewHub(attendance Attendance) *Hub {
	return &Hub{
		attendance: attendance,
		rooms:      newRooms(),
		now:        time.Now,
	}
}

// Start begins hub processing
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return ErrHubAlreadyRunning
	}
	h.running = true
	// TECHNICAL DISCOVERY: Each run gets its own queue, so a command left
	// behind by a submitter of an earlier run can never be applied later.
	// The buffer absorbs join bursts at class start.
	h.commands = make(chan *command, 256)
	h.shutdown = make(chan struct{})
	h.stopped = make(chan struct{})

	log.Println("Starting realtime hub...")
	go h.run(ctx, h.commands, h.shutdown, h.stopped)

	return nil
}

// Stop shuts the hub goroutine down and waits for it to exit
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrHubNotRunning
	}
	shutdown, stopped := h.shutdown, h.stopped
	select {
	case <-shutdown:
	default:
		close(shutdown)
	}
	h.mu.Unlock()

	log.Println("Stopping realtime hub...")
	<-stopped
	return nil
}

// IsRunning reports whether the hub goroutine is processing commands
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Register adds a connection to the lobby audience without room membership
func (h *Hub) Register(conn interfaces.Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	return h.submit(&command{kind: cmdRegister, conn: conn})
}

// Unregister performs disconnect cleanup for a connection
// FUNCTIONAL DISCOVERY: Identical to an explicit leave, so a dropped
// connection can never leave a stale attendee behind
func (h *Hub) Unregister(conn interfaces.Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	return h.submit(&command{kind: cmdUnregister, conn: conn})
}

// Join adds a connection to a live session room and broadcasts attendance.
// A non-live session gets an error event to this connection only.
func (h *Hub) Join(conn interfaces.Connection, sessionID, userID string) error {
	if conn == nil {
		return ErrNilConnection
	}
	return h.submit(&command{kind: cmdJoin, conn: conn, sessionID: sessionID, userID: userID})
}

// Leave removes a connection from its room; an empty sessionID means
// whichever room the connection is in
func (h *Hub) Leave(conn interfaces.Connection, sessionID string) error {
	if conn == nil {
		return ErrNilConnection
	}
	return h.submit(&command{kind: cmdLeave, conn: conn, sessionID: sessionID})
}

// Chat relays a chat message to every member of a room
func (h *Hub) Chat(sessionID, userID, name, text string) error {
	return h.submit(&command{kind: cmdChat, sessionID: sessionID, userID: userID, name: name, text: text})
}

// SessionStarted announces classStarted to every registered connection
func (h *Hub) SessionStarted(sessionID string) {
	if err := h.submit(&command{kind: cmdSessionStarted, sessionID: sessionID}); err != nil {
		log.Printf("classStarted not announced: session=%s: %v", sessionID, err)
	}
}

// SessionEnded broadcasts classEnded and evicts every member of the room
func (h *Hub) SessionEnded(sessionID string) {
	if err := h.submit(&command{kind: cmdSessionEnded, sessionID: sessionID}); err != nil {
		log.Printf("classEnded not broadcast: session=%s: %v", sessionID, err)
	}
}

// Stats returns connection and room counts
func (h *Hub) Stats() (Stats, error) {
	var stats Stats
	err := h.submit(&command{kind: cmdStats, stats: &stats})
	return stats, err
}

// submit hands a command to the hub goroutine and waits for it to be applied
func (h *Hub) submit(cmd *command) error {
	h.mu.RLock()
	running, commands, stopped := h.running, h.commands, h.stopped
	h.mu.RUnlock()
	if !running {
		return ErrHubNotRunning
	}

	cmd.done = make(chan error, 1)
	select {
	case commands <- cmd:
	case <-stopped:
		return ErrHubNotRunning
	}

	select {
	case err := <-cmd.done:
		return err
	case <-stopped:
		return ErrHubNotRunning
	}
}

// run is the main hub processing loop
func (h *Hub) run(ctx context.Context, commands chan *command, shutdown, stopped chan struct{}) {
	defer func() {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
		close(stopped)
		if n := drain(commands); n > 0 {
			log.Printf("Hub dropped queued commands: count=%d", n)
		}
		log.Println("Hub processing stopped")
	}()

	for {
		// shutdown wins over queued work
		select {
		case <-shutdown:
			log.Println("Hub shutdown requested")
			return
		default:
		}

		select {
		case cmd := <-commands:
			cmd.done <- h.apply(cmd)

		case <-shutdown:
			log.Println("Hub shutdown requested")
			return

		case <-ctx.Done():
			log.Println("Hub context cancelled")
			return
		}
	}
}

// drain rejects every command still queued on a finished run
func drain(commands chan *command) int {
	n := 0
	for {
		select {
		case cmd := <-commands:
			cmd.done <- ErrHubNotRunning
			n++
		default:
			return n
		}
	}
}

func (h *Hub) apply(cmd *command) error {
	switch cmd.kind {
	case cmdRegister:
		h.rooms.register(cmd.conn)
		log.Printf("Connection registered: conn=%s user=%s", cmd.conn.ID(), cmd.conn.UserID())
		return nil

	case cmdUnregister:
		if m, ok := h.rooms.unregister(cmd.conn.ID()); ok {
			h.afterLeave(m)
		}
		log.Printf("Connection unregistered: conn=%s user=%s", cmd.conn.ID(), cmd.conn.UserID())
		return nil

	case cmdJoin:
		return h.handleJoin(cmd)

	case cmdLeave:
		return h.handleLeave(cmd)

	case cmdChat:
		frame := types.NewChatFrame(cmd.userID, cmd.name, cmd.text, h.now())
		h.broadcast(h.rooms.room(cmd.sessionID), frame)
		return nil

	case cmdSessionStarted:
		h.broadcast(h.rooms.lobby(), types.NewClassStarted(cmd.sessionID))
		return nil

	case cmdSessionEnded:
		h.handleSessionEnded(cmd.sessionID)
		return nil

	case cmdStats:
		*cmd.stats = Stats{
			Connections: len(h.rooms.connections),
			Rooms:       len(h.rooms.byRoom),
			Members:     len(h.rooms.members),
		}
		return nil
	}
	return errors.New("unknown hub command")
}

// handleJoin validates liveness before touching any room state
func (h *Hub) handleJoin(cmd *command) error {
	conn := cmd.conn
	if !h.rooms.registered(conn.ID()) {
		return ErrNotRegistered
	}

	count, err := h.attendance.AddAttendee(cmd.sessionID, cmd.userID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotLive) {
			h.send(conn, types.NewErrorFrame(types.ErrClassNotLive))
		}
		return err
	}

	// FUNCTIONAL DISCOVERY: A connection sits in at most one room; joining
	// another one is an implicit leave of the first
	if current, ok := h.rooms.membershipOf(conn.ID()); ok && current != (membership{cmd.sessionID, cmd.userID}) {
		h.rooms.leave(conn.ID())
		h.afterLeave(current)
		if current.sessionID == cmd.sessionID {
			// recount after the previous identity left the same room
			count, _ = h.attendance.AddAttendee(cmd.sessionID, cmd.userID)
		}
	}

	h.rooms.join(conn, cmd.sessionID, cmd.userID)
	log.Printf("Joined room: session=%s user=%s conn=%s count=%d", cmd.sessionID, cmd.userID, conn.ID(), count)
	h.broadcast(h.rooms.room(cmd.sessionID), types.NewAttendanceUpdate(cmd.sessionID, count))
	return nil
}

func (h *Hub) handleLeave(cmd *command) error {
	current, ok := h.rooms.membershipOf(cmd.conn.ID())
	if !ok || (cmd.sessionID != "" && cmd.sessionID != current.sessionID) {
		return ErrNotInRoom
	}
	h.rooms.leave(cmd.conn.ID())
	h.afterLeave(current)
	return nil
}

// afterLeave updates attendance once a membership has been dropped
// FUNCTIONAL DISCOVERY: A user with another connection still in the room
// remains an attendee
func (h *Hub) afterLeave(m membership) {
	state, live := h.attendance.Get(m.sessionID)
	if !live {
		return
	}

	count := state.AttendeeCount()
	if h.rooms.userConnections(m.sessionID, m.userID) == 0 {
		count = h.attendance.RemoveAttendee(m.sessionID, m.userID)
	}
	log.Printf("Left room: session=%s user=%s count=%d", m.sessionID, m.userID, count)
	h.broadcast(h.rooms.room(m.sessionID), types.NewAttendanceUpdate(m.sessionID, count))
}

// handleSessionEnded notifies room members first, then the rest of the lobby
func (h *Hub) handleSessionEnded(sessionID string) {
	frame := types.NewClassEnded(sessionID)
	notified := make(map[string]bool)

	members := h.rooms.evict(sessionID)
	for _, conn := range members {
		notified[conn.ID()] = true
		h.send(conn, frame)
	}
	for _, conn := range h.rooms.lobby() {
		if !notified[conn.ID()] {
			h.send(conn, frame)
		}
	}
	log.Printf("Room closed: session=%s evicted=%d", sessionID, len(members))
}

func (h *Hub) broadcast(conns []interfaces.Connection, frame types.Outbound) {
	for _, conn := range conns {
		h.send(conn, frame)
	}
}

// send never blocks the hub; delivery failures are logged and dropped
func (h *Hub) send(conn interfaces.Connection, frame types.Outbound) {
	if err := conn.WriteJSON(frame); err != nil {
		log.Printf("Failed to deliver %s to conn=%s: %v", frame.Event, conn.ID(), err)
	}
}
