package chatctl

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotobachat/kotoba/internal/protocol"
)

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	old := readPassword
	t.Cleanup(func() { readPassword = old })
	readPassword = func(int) ([]byte, error) {
		return []byte(pw), nil
	}
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "UP", "timestamp": time.Now()})
	}))
	defer srv.Close()

	var out bytes.Buffer
	app := NewApp(srv.URL, &out)

	require.NoError(t, app.Status(context.Background()))
	assert.Contains(t, out.String(), "UP")
}

// clearServer accepts one websocket connection, checks the credential, and
// answers with cleared or admin_clear_rejected.
func clearServer(t *testing.T, adminSecret string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ws", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var ev protocol.ClientEvent
		require.NoError(t, conn.ReadJSON(&ev))
		require.Equal(t, protocol.TypeAdminClear, ev.Type)

		if ev.Credential == adminSecret {
			conn.WriteJSON(protocol.NewCleared())
		} else {
			conn.WriteJSON(protocol.NewAdminClearRejected(protocol.ReasonBadCredential))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClear(t *testing.T) {
	srv := clearServer(t, "hunter2")

	t.Run("accepted", func(t *testing.T) {
		stubPassword(t, "hunter2")
		var out bytes.Buffer
		app := NewApp(srv.URL, &out)

		require.NoError(t, app.Clear(context.Background()))
		assert.Contains(t, out.String(), "room cleared")
	})

	t.Run("rejected", func(t *testing.T) {
		stubPassword(t, "wrong")
		var out bytes.Buffer
		app := NewApp(srv.URL, &out)

		err := app.Clear(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), protocol.ReasonBadCredential)
	})
}

func TestRun_UnknownCommand(t *testing.T) {
	var out bytes.Buffer
	app := NewApp("http://localhost:8080", &out)

	assert.Error(t, app.Run(context.Background(), []string{"frobnicate"}))
	assert.Error(t, app.Run(context.Background(), nil))
}

func TestWsURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws"},
		{"https://chat.example.com", "wss://chat.example.com/ws"},
		{"http://localhost:8080/", "ws://localhost:8080/ws"},
	}
	for _, tt := range tests {
		app := NewApp(tt.in, &bytes.Buffer{})
		assert.Equal(t, tt.want, app.wsURL())
	}
}
