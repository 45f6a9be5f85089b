package httpapi_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/roomchat/internal/chat"
	"github.com/omochice/roomchat/internal/httpapi"
	"github.com/omochice/roomchat/pkg/protocol"
)

func newAPI(t *testing.T) (*httpapi.API, *chat.Server) {
	t.Helper()
	api, srv, _ := newAPIWithHub(t)
	return api, srv
}

func newAPIWithHub(t *testing.T) (*httpapi.API, *chat.Server, *chat.Hub) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var n int
	srv := chat.NewServer(chat.WithClock(func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := chat.NewHub(srv, logger)
	return httpapi.New(srv, hub, logger), srv, hub
}

func get(t *testing.T, api *httpapi.API, target string, out any) int {
	t.Helper()
	resp, err := api.App().Test(httptest.NewRequest(http.MethodGet, target, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestAPI_Rooms(t *testing.T) {
	api, srv := newAPI(t)
	id, _ := srv.Login("alice")
	srv.HandleIntent(id, protocol.CreateRoom("rust"))
	srv.HandleIntent(id, protocol.CreateRoom("go"))

	var rooms []string
	assert.Equal(t, http.StatusOK, get(t, api, "/rooms", &rooms))
	assert.Equal(t, []string{"general", "go", "rust"}, rooms)
}

func TestAPI_Health(t *testing.T) {
	api, srv, hub := newAPIWithHub(t)
	srv.Login("alice")
	srv.Login("bob")
	client := &chat.Client{}
	hub.Register(client)
	defer hub.Unregister(client)

	var health httpapi.HealthResponse
	assert.Equal(t, http.StatusOK, get(t, api, "/health", &health))
	assert.Equal(t, httpapi.HealthResponse{Status: "ok", Users: 2, Rooms: 1, Connections: 1}, health)
}

func TestAPI_RoomHistory(t *testing.T) {
	api, srv := newAPI(t)
	id, _ := srv.Login("alice")
	for _, content := range []string{"one", "two", "three"} {
		srv.HandleIntent(id, protocol.SendMessage(content))
	}

	tests := []struct {
		name   string
		target string
		want   []string
	}{
		{"default limit", "/rooms/general/history", []string{"one", "two", "three"}},
		{"explicit limit", "/rooms/general/history?limit=2", []string{"two", "three"}},
		{"limit above max", "/rooms/general/history?limit=1000", []string{"one", "two", "three"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var history []httpapi.MessageResponse
			require.Equal(t, http.StatusOK, get(t, api, tt.target, &history))
			got := make([]string, 0, len(history))
			for _, msg := range history {
				assert.Equal(t, "alice", msg.Sender)
				assert.False(t, msg.Timestamp.IsZero())
				got = append(got, msg.Content)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAPI_RoomHistoryErrors(t *testing.T) {
	api, _ := newAPI(t)

	var body httpapi.ErrorResponse
	assert.Equal(t, http.StatusNotFound, get(t, api, "/rooms/nowhere/history", &body))
	assert.Equal(t, "room not found", body.Error)

	assert.Equal(t, http.StatusBadRequest, get(t, api, "/rooms/general/history?limit=0", &body))
}
