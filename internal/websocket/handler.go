package websocket

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"liveclass/internal/auth"
	"liveclass/internal/hub"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// Error texts sent to a single connection
const (
	msgNotAuthorized  = "Not authorized"
	msgNotFound       = "Class not found"
	msgNotInClass     = "Not in class"
	msgInvalidPayload = "Invalid payload"
	msgUnknownEvent   = "Unknown event"
	msgRequestFailed  = "Request failed"
)

// RoomHub is the realtime hub surface the handler drives
type RoomHub interface {
	Register(conn interfaces.Connection) error
	Unregister(conn interfaces.Connection) error
	Join(conn interfaces.Connection, sessionID, userID string) error
	Leave(conn interfaces.Connection, sessionID string) error
	Chat(sessionID, userID, name, text string) error
}

// Settings holds heartbeat and inbound limits
type Settings struct {
	PingInterval   time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64
}

// DefaultSettings returns the heartbeat and limit defaults
// TECHNICAL DISCOVERY: 60-second read deadline with 30-second ping interval
// provides reliable connection health monitoring for classroom environments
func DefaultSettings() Settings {
	return Settings{
		PingInterval:   30 * time.Second,
		ReadTimeout:    60 * time.Second,
		MaxMessageSize: 64 * 1024,
	}
}

// Handler upgrades authenticated requests and routes realtime events
// ARCHITECTURAL DISCOVERY: The handler owns no room state; every membership
// change goes through the hub and every lifecycle change through the controller
type Handler struct {
	hub      RoomHub
	sessions interfaces.SessionController
	gate     interfaces.AccessAuthorizer
	secret   string
	settings Settings
	upgrader websocket.Upgrader
}

// NewHandler creates a WebSocket handler with dependency injection
func NewHandler(roomHub RoomHub, sessions interfaces.SessionController, gate interfaces.AccessAuthorizer, secret string, settings Settings) *Handler {
	return &Handler{
		hub:      roomHub,
		sessions: sessions,
		gate:     gate,
		secret:   secret,
		settings: settings,
		upgrader: websocket.Upgrader{
			// FUNCTIONAL DISCOVERY: Browser clients are served from other origins
			CheckOrigin:      func(r *http.Request) bool { return true },
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// HandleWebSocket verifies the bearer token, upgrades and registers the connection
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// FUNCTIONAL DISCOVERY: Authentication before upgrade keeps unauthenticated
	// clients from holding a socket
	identity, err := auth.Authenticate(h.secret, r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(h.settings.MaxMessageSize)

	wsConn := NewConnection(conn, identity)
	if err := h.hub.Register(wsConn); err != nil {
		log.Printf("Failed to register connection: user=%s: %v", identity.UserID, err)
		_ = wsConn.Close()
		return
	}
	log.Printf("Connection opened: conn=%s user=%s", wsConn.ID(), identity.UserID)

	go h.handleConnection(wsConn)
}

// handleConnection runs the read pump and heartbeat for one connection
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		// FUNCTIONAL DISCOVERY: Disconnect cleanup is the same path as leaveClass
		if err := h.hub.Unregister(conn); err != nil {
			log.Printf("Failed to unregister connection: conn=%s: %v", conn.ID(), err)
		}
		_ = conn.Close()
		log.Printf("Connection closed: conn=%s user=%s", conn.ID(), conn.UserID())
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.settings.ReadTimeout)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.settings.ReadTimeout))
	})

	go h.pingLoop(conn)

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: conn=%s: %v", conn.ID(), err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var env types.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.reply(conn, msgInvalidPayload)
			continue
		}
		if err := h.dispatch(conn, &env); err != nil {
			h.reply(conn, errorMessage(err))
		}
	}
}

// pingLoop keeps the read deadline alive on idle connections
// TECHNICAL DISCOVERY: WriteControl may run concurrently with the writer goroutine
func (h *Handler) pingLoop(conn *Connection) {
	ticker := time.NewTicker(h.settings.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		case <-conn.Done():
			return
		}
	}
}

// dispatch routes one client event
func (h *Handler) dispatch(conn *Connection, env *types.Envelope) error {
	if !types.IsClientEvent(env.Event) {
		return ErrUnknownEvent
	}

	switch env.Event {
	case types.EventJoinClass:
		var p types.JoinClassPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		return h.joinClass(conn, p)

	case types.EventLeaveClass:
		var p types.LeaveClassPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		if err := h.hub.Leave(conn, p.SessionID); err != nil && !errors.Is(err, hub.ErrNotInRoom) {
			return err
		}
		return nil

	case types.EventChatMessage:
		var p types.ChatMessagePayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		return h.chat(conn, p)

	case types.EventEndClass:
		var p types.EndClassPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		if p.SessionID == "" {
			return types.ErrInvalidSessionID
		}
		// classEnded reaches this connection through the hub
		_, err := h.sessions.End(conn.ctx, p.SessionID, conn.UserID(), conn.IsAdmin())
		return err

	default:
		return ErrUnknownEvent
	}
}

func (h *Handler) joinClass(conn *Connection, p types.JoinClassPayload) error {
	if p.SessionID == "" {
		return types.ErrInvalidSessionID
	}
	if p.UserID != "" && p.UserID != conn.UserID() {
		return ErrIdentityMismatch
	}

	if err := h.gate.Authorize(conn.ctx, p.SessionID, conn.UserID(), conn.IsAdmin()); err != nil {
		return err
	}

	err := h.hub.Join(conn, p.SessionID, conn.UserID())
	if errors.Is(err, interfaces.ErrNotLive) {
		// the hub already told this connection
		return nil
	}
	return err
}

func (h *Handler) chat(conn *Connection, p types.ChatMessagePayload) error {
	if p.SessionID == "" {
		return types.ErrInvalidSessionID
	}
	if p.UserID != "" && p.UserID != conn.UserID() {
		return ErrIdentityMismatch
	}
	return h.hub.Chat(p.SessionID, conn.UserID(), p.Name, p.Text)
}

func (h *Handler) reply(conn *Connection, message string) {
	if err := conn.WriteJSON(types.NewErrorFrame(message)); err != nil {
		log.Printf("Failed to send error frame: conn=%s: %v", conn.ID(), err)
	}
}

// errorMessage maps a failure to the text shown to the requesting client
func errorMessage(err error) string {
	switch {
	case errors.Is(err, interfaces.ErrNotLive):
		return types.ErrClassNotLive
	case errors.Is(err, interfaces.ErrUnauthorized):
		return msgNotAuthorized
	case errors.Is(err, interfaces.ErrNotFound):
		return msgNotFound
	case errors.Is(err, hub.ErrNotInRoom):
		return msgNotInClass
	case errors.Is(err, ErrIdentityMismatch):
		return err.Error()
	case errors.Is(err, ErrUnknownEvent):
		return msgUnknownEvent
	case errors.Is(err, types.ErrInvalidEvent), errors.Is(err, types.ErrEmptyPayload), errors.Is(err, types.ErrInvalidSessionID):
		return msgInvalidPayload
	default:
		log.Printf("Realtime request failed: %v", err)
		return msgRequestFailed
	}
}
