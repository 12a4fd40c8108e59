package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"liveclass/internal/app"
	"liveclass/internal/auth"
	"liveclass/internal/config"
)

const testSecret = "integration-secret"

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// startApplication runs the full service on an ephemeral port over a temp SQLite file
func startApplication(t *testing.T) *app.Application {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "liveclass.db")
	cfg.HTTP.Host = "127.0.0.1"
	cfg.HTTP.Port = 0
	cfg.Auth.JWTSecret = testSecret

	application, err := app.NewApplication(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, application.Start(context.Background()))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = application.Stop(ctx)
	})
	return application
}

func token(t *testing.T, userID string, isAdmin bool) string {
	t.Helper()
	tok, err := auth.IssueToken(testSecret, userID, isAdmin, time.Hour)
	require.NoError(t, err)
	return tok
}

// call performs an authenticated JSON request and decodes the response into out
func call(t *testing.T, application *app.Application, method, path, userID string, body, out any) int {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req, err := http.NewRequest(method, "http://"+application.GetAddr()+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, userID, false))
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func dial(t *testing.T, application *app.Application, userID string) *websocket.Conn {
	t.Helper()

	url := "ws://" + application.GetAddr() + "/ws?token=" + token(t, userID, false)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

// awaitFrame reads until match accepts a frame
func awaitFrame(t *testing.T, conn *websocket.Conn, match func(frame) bool) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		if match(f) {
			return f
		}
	}
}

func isEvent(event string) func(frame) bool {
	return func(f frame) bool { return f.Event == event }
}

func isCount(sessionID string, count int) func(frame) bool {
	return func(f frame) bool {
		if f.Event != "attendanceUpdate" {
			return false
		}
		var p struct {
			SessionID string `json:"sessionId"`
			Count     int    `json:"count"`
		}
		_ = json.Unmarshal(f.Data, &p)
		return p.SessionID == sessionID && p.Count == count
	}
}

func isError(message string) func(frame) bool {
	return func(f frame) bool {
		return f.Event == "error" && strings.Contains(string(f.Data), message)
	}
}
