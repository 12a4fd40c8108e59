package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"liveclass/internal/access"
	"liveclass/internal/auth"
	"liveclass/internal/hub"
	"liveclass/internal/session"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// Lifecycle is the session controller surface used by the HTTP layer
type Lifecycle interface {
	Start(ctx context.Context, req session.StartRequest) (*session.StartResult, error)
	End(ctx context.Context, sessionID, callerID string, isAdmin bool) (*types.SessionRecord, error)
	List() []types.LiveSessionSummary
	Get(sessionID string) (*types.SessionState, bool)
}

// AccessValidator runs the meeting id check
type AccessValidator interface {
	Validate(ctx context.Context, req access.ValidateRequest) (*access.ValidateResult, error)
}

// HistoryStore reads persisted session records and reports store health
type HistoryStore interface {
	ListSessionRecords(ctx context.Context, sessionID string) ([]*types.SessionRecord, error)
	HealthCheck(ctx context.Context) error
}

// HubStats reports realtime hub counters
type HubStats interface {
	Stats() (hub.Stats, error)
}

// Server is the HTTP surface of the live class service
// ARCHITECTURAL DISCOVERY: HTTP API layer serves as pure interface between external clients and internal components
// Clean separation - no business logic, only HTTP handling and JSON serialization
type Server struct {
	lifecycle Lifecycle
	gate      AccessValidator
	store     HistoryStore
	hub       HubStats
	ws        http.Handler
	secret    string
	router    chi.Router
	started   time.Time
}

// NewServer wires the routes; ws may be nil when realtime is served elsewhere
func NewServer(lifecycle Lifecycle, gate AccessValidator, store HistoryStore, hubStats HubStats, ws http.Handler, jwtSecret string) *Server {
	s := &Server{
		lifecycle: lifecycle,
		gate:      gate,
		store:     store,
		hub:       hubStats,
		ws:        ws,
		secret:    jwtSecret,
		router:    chi.NewRouter(),
		started:   time.Now(),
	}

	s.setupRoutes()
	return s
}

// ARCHITECTURAL DISCOVERY: CORS runs ahead of authentication so preflight
// requests never need a token
func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)

	r.With(s.jsonMiddleware).Get("/health", s.healthCheck)
	if s.ws != nil {
		r.Handle("/ws", s.ws)
	}

	r.Route("/api/live", func(live chi.Router) {
		live.Use(s.jsonMiddleware)
		live.Use(auth.Middleware(s.secret))

		live.Post("/start", s.startSession)
		live.Post("/end", s.endSession)
		live.Post("/validate-access", s.validateAccess)
		live.Get("/status", s.listSessions)
		live.Get("/sessions/{id}", s.getSession)
		live.Get("/history/{id}", s.sessionHistory)
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Request/Response types for JSON serialization
type StartSessionRequest struct {
	SessionID  string `json:"sessionId"`
	CourseID   string `json:"courseId"`
	Type       string `json:"type"`
	Visibility string `json:"visibility"`
}

type StartSessionResponse struct {
	Success   bool      `json:"success"`
	SessionID string    `json:"sessionId"`
	Title     string    `json:"title,omitempty"`
	StartedAt time.Time `json:"startedAt"`
	Created   bool      `json:"created"`
}

type EndSessionRequest struct {
	SessionID string `json:"sessionId"`
	CourseID  string `json:"courseId"`
}

type EndSessionResponse struct {
	Success bool                 `json:"success"`
	Record  *types.SessionRecord `json:"record"`
}

type ValidateAccessRequest struct {
	MeetingID string `json:"meetingId"`
	SessionID string `json:"sessionId"`
	CourseID  string `json:"courseId"`
}

type ValidateAccessResponse struct {
	Success bool `json:"success"`
	*access.ValidateResult
}

type ListSessionsResponse struct {
	Sessions []types.LiveSessionSummary `json:"sessions"`
}

type SessionResponse struct {
	Session       *types.SessionState `json:"session"`
	AttendeeCount int                 `json:"attendeeCount"`
	Attendees     []string            `json:"attendees"`
}

type HistoryResponse struct {
	SessionID string                 `json:"sessionId"`
	Records   []*types.SessionRecord `json:"records"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
	Hub       hub.Stats `json:"hub"`
	Live      int       `json:"liveSessions"`
	Uptime    string    `json:"uptime"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// firstNonEmpty accepts the courseId alias used by older clients
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// FUNCTIONAL DISCOVERY: POST /api/live/start - no id (or type=instant) starts an ad-hoc session
func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		s.sendError(w, "Missing user identity", http.StatusUnauthorized)
		return
	}

	var req StartSessionRequest
	if err := decodeBody(r, &req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	sessionID := firstNonEmpty(req.SessionID, req.CourseID)
	if req.Type == "instant" {
		sessionID = ""
	}

	res, err := s.lifecycle.Start(r.Context(), session.StartRequest{
		SessionID:  sessionID,
		CallerID:   identity.UserID,
		IsAdmin:    identity.IsAdmin,
		Visibility: req.Visibility,
	})
	if err != nil {
		s.sendMappedError(w, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, StartSessionResponse{
		Success:   true,
		SessionID: res.SessionID,
		Title:     res.Title,
		StartedAt: res.StartTime,
		Created:   res.Created,
	})
}

// FUNCTIONAL DISCOVERY: POST /api/live/end - only the instructor or an admin may end
func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		s.sendError(w, "Missing user identity", http.StatusUnauthorized)
		return
	}

	var req EndSessionRequest
	if err := decodeBody(r, &req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	sessionID := firstNonEmpty(req.SessionID, req.CourseID)
	if sessionID == "" {
		s.sendError(w, "Session ID is required", http.StatusBadRequest)
		return
	}

	record, err := s.lifecycle.End(r.Context(), sessionID, identity.UserID, identity.IsAdmin)
	if err != nil {
		s.sendMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, EndSessionResponse{Success: true, Record: record})
}

// FUNCTIONAL DISCOVERY: POST /api/live/validate-access - meeting id friction check
func (s *Server) validateAccess(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		s.sendError(w, "Missing user identity", http.StatusUnauthorized)
		return
	}

	var req ValidateAccessRequest
	if err := decodeBody(r, &req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	sessionID := firstNonEmpty(req.SessionID, req.CourseID)
	if sessionID == "" {
		s.sendError(w, "Session ID is required", http.StatusBadRequest)
		return
	}

	res, err := s.gate.Validate(r.Context(), access.ValidateRequest{
		MeetingID: req.MeetingID,
		SessionID: sessionID,
		CallerID:  identity.UserID,
		IsAdmin:   identity.IsAdmin,
	})
	if err != nil {
		s.sendMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ValidateAccessResponse{Success: true, ValidateResult: res})
}

// FUNCTIONAL DISCOVERY: GET /api/live/status - snapshot of every live session
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ListSessionsResponse{Sessions: s.lifecycle.List()})
}

// FUNCTIONAL DISCOVERY: GET /api/live/sessions/{id} - one live session with attendees
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	state, ok := s.lifecycle.Get(sessionID)
	if !ok {
		s.sendMappedError(w, fmt.Errorf("get %s: %w", sessionID, interfaces.ErrNotLive))
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		Session:       state,
		AttendeeCount: state.AttendeeCount(),
		Attendees:     state.AttendeeList(),
	})
}

// FUNCTIONAL DISCOVERY: GET /api/live/history/{id} - persisted records, newest first
func (s *Server) sessionHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	records, err := s.store.ListSessionRecords(r.Context(), sessionID)
	if err != nil {
		log.Printf("History lookup failed: session=%s: %v", sessionID, err)
		s.sendError(w, "Failed to load session history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, HistoryResponse{SessionID: sessionID, Records: records})
}

// FUNCTIONAL DISCOVERY: GET /health - database and hub health, 503 when degraded
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "healthy"
	if err := s.store.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	stats, err := s.hub.Stats()
	if err != nil {
		status = "unhealthy"
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Database:  dbStatus,
		Hub:       stats,
		Live:      len(s.lifecycle.List()),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
	})
}

// statusFor maps the shared error taxonomy onto HTTP status codes
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, interfaces.ErrNotFound):
		return http.StatusNotFound, "Session not found"
	case errors.Is(err, interfaces.ErrUnauthorized):
		return http.StatusForbidden, "Not authorized for this session"
	case errors.Is(err, interfaces.ErrNotLive):
		return http.StatusConflict, "No active live session"
	case errors.Is(err, interfaces.ErrInvalidMeetingID):
		return http.StatusBadRequest, "Invalid Meeting ID for this session"
	case errors.Is(err, interfaces.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many attempts, try again later"
	case errors.Is(err, types.ErrInvalidVisibility),
		errors.Is(err, types.ErrInvalidSessionID),
		errors.Is(err, access.ErrInvalidRequest),
		errors.Is(err, session.ErrInvalidCaller):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func (s *Server) sendMappedError(w http.ResponseWriter, err error) {
	code, message := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Printf("Request failed: %v", err)
	}
	s.sendError(w, message, code)
}

// FUNCTIONAL DISCOVERY: Consistent error response format
func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody tolerates an empty body so a bare POST starts an ad-hoc session
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}

// ARCHITECTURAL DISCOVERY: CORS middleware enables web client access
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
