package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wjz20050714-stack/JIFEN/internal/api/apierr"
	"github.com/wjz20050714-stack/JIFEN/internal/api/response"
	"github.com/wjz20050714-stack/JIFEN/internal/factory"
	"github.com/wjz20050714-stack/JIFEN/internal/model"
	"github.com/wjz20050714-stack/JIFEN/internal/testutil"
)

// testServer runs the production wiring behind an httptest server
type testServer struct {
	app    *factory.App
	server *httptest.Server
}

func newTestServer(t *testing.T, staticDir string) *testServer {
	t.Helper()

	// API tests are integration tests - use production factory with real random/clock
	app, err := factory.New(factory.Config{Logger: testutil.NopLogger()})
	require.NoError(t, err)
	app.Start(context.Background())

	server := httptest.NewServer(app.Router(staticDir, "*"))
	t.Cleanup(func() {
		_ = app.Stop()
		server.Close()
	})
	return &testServer{app: app, server: server}
}

func (ts *testServer) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event model.EventType, payload any) {
	t.Helper()
	env, err := model.NewEnvelope(event, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(env))
}

// expect reads frames until one of the given type arrives
func expect(t *testing.T, conn *websocket.Conn, event model.EventType, target any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var env model.Envelope
		require.NoError(t, conn.ReadJSON(&env))
		if env.Type == event {
			require.NoError(t, env.Decode(target))
			return
		}
	}
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t, "")

	for _, path := range []string{"/api/v1/health", "/health"} {
		resp := ts.get(t, path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

		health := decode[response.Health](t, resp)
		assert.Equal(t, response.Health{Status: "ok"}, health)
	}
}

func TestRoomsListsLiveRooms(t *testing.T) {
	ts := newTestServer(t, "")
	before := time.Now().UnixMilli()

	alice := ts.dial(t)
	send(t, alice, model.EventCreateRoom, model.CreateRoomRequest{PlayerName: "Alice"})
	var created model.RoomEnteredPayload
	expect(t, alice, model.EventRoomCreated, &created)

	bob := ts.dial(t)
	send(t, bob, model.EventJoinRoom, model.JoinRoomRequest{RoomID: created.RoomID, PlayerName: "Bob"})
	var joined model.RoomEnteredPayload
	expect(t, bob, model.EventRoomJoined, &joined)
	assert.Len(t, joined.OnlinePlayers, 2)

	resp := ts.get(t, "/api/v1/rooms")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[response.RoomList](t, resp)
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, string(created.RoomID), list.Rooms[0].ID)
	assert.Equal(t, 2, list.Rooms[0].PlayerCount)
	assert.Equal(t, 0, list.Rooms[0].GamePlayers)
	assert.GreaterOrEqual(t, list.Rooms[0].CreatedAt, before)

	health := decode[response.Health](t, ts.get(t, "/api/v1/health"))
	assert.Equal(t, response.Health{Status: "ok", Rooms: 1, Players: 2}, health)
}

func TestWebSocketRoomErrors(t *testing.T) {
	ts := newTestServer(t, "")

	conn := ts.dial(t)
	send(t, conn, model.EventJoinRoom, model.JoinRoomRequest{RoomID: "NOPE00", PlayerName: "Zed"})

	var failure model.RoomErrorPayload
	expect(t, conn, model.EventRoomError, &failure)
	assert.Equal(t, "Room does not exist", failure.Message)
}

func TestSpectatorStream(t *testing.T) {
	ts := newTestServer(t, "")

	alice := ts.dial(t)
	send(t, alice, model.EventCreateRoom, model.CreateRoomRequest{PlayerName: "Alice"})
	var created model.RoomEnteredPayload
	expect(t, alice, model.EventRoomCreated, &created)

	resp := ts.get(t, "/api/v1/rooms/"+string(created.RoomID)+"/events")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 64)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	waitFor := func(want string) {
		t.Helper()
		deadline := time.After(3 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				require.True(t, ok, "stream ended before %q", want)
				if line == want {
					return
				}
			case <-deadline:
				t.Fatalf("timed out waiting for %q", want)
			}
		}
	}
	waitFor("event: connected")

	send(t, alice, model.EventAddPlayer, model.AddPlayerRequest{Name: "Alice"})
	waitFor("event: players_update")

	// Deleting the room ends the stream
	send(t, alice, model.EventLeaveRoom, nil)
	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-lines:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream still open after the room was deleted")
		}
	}
}

func TestSpectatorStreamErrors(t *testing.T) {
	ts := newTestServer(t, "")

	resp := ts.get(t, "/api/v1/rooms/NOPE00/events")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, apierr.CodeRoomNotFound, decode[apierr.ErrorResponse](t, resp).Error.Code)

	resp = ts.get(t, "/api/v1/rooms/bad/events")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, apierr.CodeInvalidRequest, decode[apierr.ErrorResponse](t, resp).Error.Code)
}

func TestUnknownAPIRoute(t *testing.T) {
	ts := newTestServer(t, "")

	resp := ts.get(t, "/api/v1/lobbies")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, apierr.CodeNotFound, decode[apierr.ErrorResponse](t, resp).Error.Code)
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>jifen</h1>"), 0o644))

	ts := newTestServer(t, dir)
	resp := ts.get(t, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	withoutStatic := newTestServer(t, "")
	assert.Equal(t, http.StatusNotFound, withoutStatic.get(t, "/").StatusCode)
}
