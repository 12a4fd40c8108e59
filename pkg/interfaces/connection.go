package interfaces

// Connection represents a realtime client connection
// ARCHITECTURAL DISCOVERY: The hub only sees this interface, so tests can
// drive it with in-memory connections and production uses websocket.Connection
type Connection interface {
	// ID returns a process unique identifier for the connection
	// FUNCTIONAL DISCOVERY: Room membership is keyed by connection ID,
	// never by user ID, because one user may hold several connections
	ID() string

	// WriteJSON sends a JSON frame to the client (thread-safe)
	WriteJSON(v interface{}) error

	// Close closes the connection and cleans up resources
	Close() error

	// UserID returns the authenticated user behind the connection
	UserID() string

	// IsAdmin reports whether the authenticated user is an administrator
	IsAdmin() bool
}
