package hub

import "liveclass/pkg/interfaces"

// membership is the per-connection room record kept by the hub
// ARCHITECTURAL DISCOVERY: Room state lives here instead of on the transport
// object, so disconnect cleanup only needs the connection ID
type membership struct {
	sessionID string
	userID    string
}

// rooms tracks registered connections and their room membership
// TECHNICAL DISCOVERY: Owned by the hub goroutine, so it needs no locking
type rooms struct {
	connections map[string]interfaces.Connection            // connID -> Connection (lobby audience)
	members     map[string]membership                       // connID -> room membership
	byRoom      map[string]map[string]interfaces.Connection // sessionID -> connID -> Connection
}

func newRooms() *rooms {
	return &rooms{
		connections: make(map[string]interfaces.Connection),
		members:     make(map[string]membership),
		byRoom:      make(map[string]map[string]interfaces.Connection),
	}
}

func (r *rooms) register(conn interfaces.Connection) {
	r.connections[conn.ID()] = conn
}

func (r *rooms) registered(connID string) bool {
	_, ok := r.connections[connID]
	return ok
}

// unregister forgets a connection and returns the membership it still held
func (r *rooms) unregister(connID string) (membership, bool) {
	m, ok := r.leave(connID)
	delete(r.connections, connID)
	return m, ok
}

func (r *rooms) join(conn interfaces.Connection, sessionID, userID string) {
	r.members[conn.ID()] = membership{sessionID: sessionID, userID: userID}
	if r.byRoom[sessionID] == nil {
		r.byRoom[sessionID] = make(map[string]interfaces.Connection)
	}
	r.byRoom[sessionID][conn.ID()] = conn
}

func (r *rooms) membershipOf(connID string) (membership, bool) {
	m, ok := r.members[connID]
	return m, ok
}

// leave removes a connection from its room and cleans up empty rooms
func (r *rooms) leave(connID string) (membership, bool) {
	m, ok := r.members[connID]
	if !ok {
		return membership{}, false
	}
	delete(r.members, connID)
	if room, exists := r.byRoom[m.sessionID]; exists {
		delete(room, connID)
		if len(room) == 0 {
			delete(r.byRoom, m.sessionID)
		}
	}
	return m, true
}

// userConnections counts connections of userID still in the room
func (r *rooms) userConnections(sessionID, userID string) int {
	n := 0
	for connID := range r.byRoom[sessionID] {
		if r.members[connID].userID == userID {
			n++
		}
	}
	return n
}

func (r *rooms) room(sessionID string) []interfaces.Connection {
	room := r.byRoom[sessionID]
	out := make([]interfaces.Connection, 0, len(room))
	for _, conn := range room {
		out = append(out, conn)
	}
	return out
}

// evict drops every member of a room; connections stay registered
func (r *rooms) evict(sessionID string) []interfaces.Connection {
	evicted := r.room(sessionID)
	for _, conn := range evicted {
		delete(r.members, conn.ID())
	}
	delete(r.byRoom, sessionID)
	return evicted
}

func (r *rooms) lobby() []interfaces.Connection {
	out := make([]interfaces.Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		out = append(out, conn)
	}
	return out
}
