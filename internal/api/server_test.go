package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liveclass/internal/access"
	"liveclass/internal/auth"
	"liveclass/internal/hub"
	"liveclass/internal/session"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

const testSecret = "api-test-secret"

const courseID = "65f0c0ffee0000000000beef"

type fakeStore struct {
	courses   map[string]*types.Course
	records   []*types.SessionRecord
	healthErr error
	listErr   error
}

func (f *fakeStore) FindCourseByID(ctx context.Context, id string) (*types.Course, error) {
	if c, ok := f.courses[id]; ok {
		return c, nil
	}
	return nil, interfaces.ErrNotFound
}

func (f *fakeStore) ListSessionRecords(ctx context.Context, sessionID string) ([]*types.SessionRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []*types.SessionRecord{}
	for _, r := range f.records {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) HealthCheck(ctx context.Context) error { return f.healthErr }

type fakeCommitter struct {
	store *fakeStore
}

func (c *fakeCommitter) Commit(state *types.SessionState, endTime time.Time) *types.SessionRecord {
	record := types.NewSessionRecord(state, endTime)
	c.store.records = append(c.store.records, record)
	return record
}

type fakeNotifier struct{}

func (fakeNotifier) SessionStarted(string) {}
func (fakeNotifier) SessionEnded(string)   {}

type fakeHub struct {
	stats hub.Stats
	err   error
}

func (f *fakeHub) Stats() (hub.Stats, error) { return f.stats, f.err }

type apiFixture struct {
	server   *Server
	registry *session.Registry
	store    *fakeStore
	hub      *fakeHub
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	store := &fakeStore{courses: map[string]*types.Course{
		courseID: {ID: courseID, Title: "Algorithms", InstructorID: "prof"},
	}}
	registry := session.NewRegistry()
	controller := session.NewController(registry, store, &fakeCommitter{store: store}, fakeNotifier{})
	gate := access.NewGate(registry, store, access.NewMemoryGrantStore(), access.NewRateLimiter(3, time.Minute), 0)
	hubStats := &fakeHub{stats: hub.Stats{Connections: 2, Rooms: 1, Members: 1}}

	ws := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	return &apiFixture{
		server:   NewServer(controller, gate, store, hubStats, ws, testSecret),
		registry: registry,
		store:    store,
		hub:      hubStats,
	}
}

func (f *apiFixture) do(t *testing.T, method, path, userID string, isAdmin bool, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := auth.IssueToken(testSecret, userID, isAdmin, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestServer_RequiresToken(t *testing.T) {
	f := newAPIFixture(t)

	for _, path := range []string{"/api/live/status", "/api/live/sessions/abc", "/api/live/history/abc"} {
		w := f.do(t, http.MethodGet, path, "", false, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	w := f.do(t, http.MethodPost, "/api/live/start", "", false, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, f.registry.Count())
}

func TestServer_CORSPreflight(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodOptions, "/api/live/start", "", false, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_StartAdHoc(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/live/start", "prof", false, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp StartSessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Len(t, resp.SessionID, 9)
	assert.NotEqual(t, courseID, resp.SessionID)
	assert.False(t, resp.StartedAt.IsZero())
	assert.True(t, f.registry.Exists(resp.SessionID))
}

func TestServer_StartCatalogued(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/live/start", "prof", false, StartSessionRequest{CourseID: courseID})
	require.Equal(t, http.StatusCreated, w.Code)
	var first StartSessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.Equal(t, courseID, first.SessionID)
	assert.Equal(t, "Algorithms", first.Title)

	w = f.do(t, http.MethodPost, "/api/live/start", "prof", false, StartSessionRequest{SessionID: courseID})
	require.Equal(t, http.StatusOK, w.Code)
	var second StartSessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.False(t, second.Created)
	assert.True(t, first.StartedAt.Equal(second.StartedAt), "start must be idempotent")
}

func TestServer_StartErrors(t *testing.T) {
	tests := []struct {
		name   string
		caller string
		body   StartSessionRequest
		status int
	}{
		{"unknown course", "prof", StartSessionRequest{CourseID: "ffffffffffffffffffffffff"}, http.StatusNotFound},
		{"not the instructor", "student1", StartSessionRequest{CourseID: courseID}, http.StatusForbidden},
		{"bad visibility", "prof", StartSessionRequest{Visibility: "secret"}, http.StatusBadRequest},
		{"bad id", "prof", StartSessionRequest{SessionID: "has space"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			w := f.do(t, http.MethodPost, "/api/live/start", tt.caller, false, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.status, decodeError(t, w).Code)
			assert.Equal(t, 0, f.registry.Count())
		})
	}
}

func TestServer_StartInvalidJSON(t *testing.T) {
	f := newAPIFixture(t)
	token, _ := auth.IssueToken(testSecret, "prof", false, time.Hour)

	req := httptest.NewRequest(http.MethodPost, "/api/live/start", bytes.NewReader([]byte("{oops")))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Bad Request", decodeError(t, w).Error)
}

func TestServer_EndAuthorization(t *testing.T) {
	f := newAPIFixture(t)
	f.registry.Start("abc123xyz", "prof", "", "")

	w := f.do(t, http.MethodPost, "/api/live/end", "student1", false, EndSessionRequest{SessionID: "abc123xyz"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.True(t, f.registry.Exists("abc123xyz"))

	w = f.do(t, http.MethodPost, "/api/live/end", "dean", true, EndSessionRequest{CourseID: "abc123xyz"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp EndSessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "abc123xyz", resp.Record.SessionID)
	assert.False(t, f.registry.Exists("abc123xyz"))

	w = f.do(t, http.MethodPost, "/api/live/end", "prof", false, EndSessionRequest{SessionID: "abc123xyz"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPost, "/api/live/end", "prof", false, EndSessionRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_ValidateAccess(t *testing.T) {
	f := newAPIFixture(t)
	f.registry.Start("abc123xyz", "prof", "", "")

	w := f.do(t, http.MethodPost, "/api/live/validate-access", "student1", false,
		ValidateAccessRequest{MeetingID: "wrong", CourseID: "abc123xyz"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid Meeting ID for this session", decodeError(t, w).Message)

	w = f.do(t, http.MethodPost, "/api/live/validate-access", "student1", false,
		ValidateAccessRequest{MeetingID: " ABC123XYZ", SessionID: "abc123xyz"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp ValidateAccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, access.ViaMeetingID, resp.Via)
	require.NotNil(t, resp.Grant)

	w = f.do(t, http.MethodPost, "/api/live/validate-access", "student1", false,
		ValidateAccessRequest{SessionID: "abc123xyz"})
	require.Equal(t, http.StatusOK, w.Code)
	resp = ValidateAccessResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, access.ViaGrant, resp.Via)

	w = f.do(t, http.MethodPost, "/api/live/validate-access", "student2", false,
		ValidateAccessRequest{MeetingID: "nothere", SessionID: "nothere"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_ValidateAccessRateLimited(t *testing.T) {
	f := newAPIFixture(t)
	f.registry.Start("abc123xyz", "prof", "", "")

	for i := 0; i < 3; i++ {
		f.do(t, http.MethodPost, "/api/live/validate-access", "student1", false,
			ValidateAccessRequest{MeetingID: "guess", SessionID: "abc123xyz"})
	}
	w := f.do(t, http.MethodPost, "/api/live/validate-access", "student1", false,
		ValidateAccessRequest{MeetingID: "abc123xyz", SessionID: "abc123xyz"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestServer_StatusAndSession(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodPost, "/api/live/start", "prof", false, StartSessionRequest{CourseID: courseID, Visibility: "public"})
	_, err := f.registry.AddAttendee(courseID, "student1")
	require.NoError(t, err)

	w := f.do(t, http.MethodGet, "/api/live/status", "student1", false, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list ListSessionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, "Algorithms", list.Sessions[0].Title)
	assert.Equal(t, 1, list.Sessions[0].AttendeeCount)

	w = f.do(t, http.MethodGet, "/api/live/sessions/"+courseID, "student1", false, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var one SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &one))
	assert.Equal(t, []string{"student1"}, one.Attendees)
	assert.Equal(t, 1, one.AttendeeCount)

	w = f.do(t, http.MethodGet, "/api/live/sessions/nothere", "student1", false, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestServer_History(t *testing.T) {
	f := newAPIFixture(t)
	f.registry.Start("abc123xyz", "prof", "", "")
	f.do(t, http.MethodPost, "/api/live/end", "prof", false, EndSessionRequest{SessionID: "abc123xyz"})

	w := f.do(t, http.MethodGet, "/api/live/history/abc123xyz", "prof", false, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "prof", resp.Records[0].InstructorID)

	f.store.listErr = errors.New("disk gone")
	w = f.do(t, http.MethodGet, "/api/live/history/abc123xyz", "prof", false, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestServer_Health(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/health", "", false, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 2, resp.Hub.Connections)

	f.store.healthErr = errors.New("locked")
	w = f.do(t, http.MethodGet, "/health", "", false, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	f.store.healthErr = nil
	f.hub.err = hub.ErrHubNotRunning
	w = f.do(t, http.MethodGet, "/health", "", false, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestServer_WebSocketRoute(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodGet, "/ws", "", false, nil)
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{interfaces.ErrNotFound, http.StatusNotFound},
		{interfaces.ErrUnauthorized, http.StatusForbidden},
		{interfaces.ErrNotLive, http.StatusConflict},
		{interfaces.ErrInvalidMeetingID, http.StatusBadRequest},
		{interfaces.ErrRateLimited, http.StatusTooManyRequests},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		code, _ := statusFor(errors.Join(errors.New("ctx"), tt.err))
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}
