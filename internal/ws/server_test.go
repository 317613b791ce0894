package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabnotes/internal/coordinator"
	"collabnotes/internal/identity"
	"collabnotes/internal/protocol"
	"collabnotes/internal/room"
)

type frame struct {
	Event string          `json:"event"`
	Body  json.RawMessage `json:"body"`
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func (c *testClient) send(event string, body any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(map[string]any{"event": event, "body": body}))
}

func (c *testClient) next() frame {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(c.t, c.conn.ReadJSON(&f))
	return f
}

// expect reads the next frame and checks its event (and body, when given).
func (c *testClient) expect(event string, body ...string) frame {
	c.t.Helper()
	f := c.next()
	require.Equal(c.t, event, f.Event, "body: %s", f.Body)
	if len(body) > 0 {
		assert.JSONEq(c.t, body[0], string(f.Body))
	}
	return f
}

type harness struct {
	srv   *httptest.Server
	store *room.Store
	hub   *Hub
}

func newHarness(t *testing.T, ident identity.Provider) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	relay := NewRelay(hub)
	store := room.NewStore()
	coord := coordinator.New(store, relay)
	wsSrv := NewWsServer(hub, relay, coord, ident, Options{})

	engine := gin.New()
	engine.GET("/ws", wsSrv.Handle)
	srv := httptest.NewServer(engine)
	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
	})
	return &harness{srv: srv, store: store, hub: hub}
}

func (h *harness) url(query string) string {
	u := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

func (h *harness) dial(t *testing.T, query string) *testClient {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(h.url(query), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn}
}

func join(c *testClient, roomID, userID, name string) {
	c.send(protocol.EventJoinRoom, map[string]string{"roomId": roomID, "userId": userID, "displayName": name})
}

func TestGateway_CollaborationFlow(t *testing.T) {
	h := newHarness(t, nil)
	a := h.dial(t, "")
	b := h.dial(t, "")

	join(a, "r1", "A", "Alice")
	a.expect(protocol.EventHostInfo, `{"hostId":"A"}`)
	a.expect(protocol.EventUserJoined, `{"userId":"A","displayName":"Alice"}`)

	join(b, "r1", "B", "Bob")
	for _, c := range []*testClient{a, b} {
		c.expect(protocol.EventHostInfo, `{"hostId":"A"}`)
		c.expect(protocol.EventUserJoined, `{"userId":"B","displayName":"Bob"}`)
	}

	// text from B reaches A only
	b.send(protocol.EventUpdateText, map[string]string{"text": "hello"})
	a.expect(protocol.EventUpdateText, `{"text":"hello"}`)

	b.send(protocol.EventUpdateCursor, map[string]any{"userId": "B", "position": 5, "displayName": "Bob"})
	a.expect(protocol.EventCursorPosition, `{"userId":"B","position":5,"displayName":"Bob"}`)

	// B is not the host
	b.send(protocol.EventLock, map[string]string{"userId": "B"})
	b.expect(protocol.EventError, `{"message":"Only host can lock/unlock"}`)

	a.send(protocol.EventLock, map[string]string{"userId": "A"})
	a.expect(protocol.EventLocked, `{"userId":"A"}`)
	b.expect(protocol.EventLocked, `{"userId":"A"}`)

	// locked: B's edits bounce, A's go through
	b.send(protocol.EventUpdateText, map[string]string{"text": "sneaky"})
	b.expect(protocol.EventError, `{"message":"Note is locked"}`)
	b.send(protocol.EventTyping, map[string]string{"userId": "B"})
	b.expect(protocol.EventError, `{"message":"Note is locked"}`)

	a.send(protocol.EventUpdateText, map[string]string{"text": "host edit"})
	b.expect(protocol.EventUpdateText, `{"text":"host edit"}`)

	// chat ignores the lock and echoes to the sender
	b.send(protocol.EventChatMessage, map[string]string{"userId": "B", "displayName": "Bob", "message": "hi"})
	want := `{"userId":"B","displayName":"Bob","message":"hi"}`
	a.expect(protocol.EventChatMessage, want) // nothing from B's rejected edits leaked to A
	b.expect(protocol.EventChatMessage, want)

	a.send(protocol.EventUnlock, map[string]string{"userId": "A"})
	a.expect(protocol.EventUnlock)
	b.expect(protocol.EventUnlock)

	a.send(protocol.EventUnlock, map[string]string{"userId": "A"})
	a.expect(protocol.EventError, `{"message":"Note is already unlocked"}`)
}

func TestGateway_DisconnectFailsOverHost(t *testing.T) {
	h := newHarness(t, nil)
	a := h.dial(t, "")
	b := h.dial(t, "")

	join(a, "r1", "A", "Alice")
	a.expect(protocol.EventHostInfo)
	a.expect(protocol.EventUserJoined)
	join(b, "r1", "B", "Bob")
	b.expect(protocol.EventHostInfo)
	b.expect(protocol.EventUserJoined)

	require.NoError(t, a.conn.Close())
	b.expect(protocol.EventUserLeft, `{"userId":"A"}`)
	b.expect(protocol.EventHostInfo, `{"hostId":"B"}`)

	b.send(protocol.EventLock, map[string]string{"userId": "B"})
	b.expect(protocol.EventLocked, `{"userId":"B"}`)

	snap, ok := h.store.Get("r1")
	require.True(t, ok)
	assert.Equal(t, "A", snap.OwnerID)
	assert.Equal(t, "B", snap.HostID)
	assert.True(t, snap.Locked)

	require.NoError(t, b.conn.Close())
	require.Eventually(t, func() bool {
		_, ok := h.store.Get("r1")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGateway_SwitchingRoomsLeavesThePreviousOne(t *testing.T) {
	h := newHarness(t, nil)
	a := h.dial(t, "")
	b := h.dial(t, "")

	join(a, "r1", "A", "Alice")
	a.expect(protocol.EventHostInfo)
	a.expect(protocol.EventUserJoined)
	join(b, "r1", "B", "Bob")
	a.expect(protocol.EventHostInfo)
	a.expect(protocol.EventUserJoined)
	b.expect(protocol.EventHostInfo)
	b.expect(protocol.EventUserJoined)

	join(b, "r2", "B", "Bob")
	a.expect(protocol.EventUserLeft, `{"userId":"B"}`)
	a.expect(protocol.EventHostInfo, `{"hostId":"A"}`)
	b.expect(protocol.EventHostInfo, `{"hostId":"B"}`)
	b.expect(protocol.EventUserJoined)

	snap, ok := h.store.Get("r2")
	require.True(t, ok)
	assert.Equal(t, "B", snap.OwnerID)
}

func TestGateway_ProtocolErrorsKeepConnectionOpen(t *testing.T) {
	h := newHarness(t, nil)
	a := h.dial(t, "")

	require.NoError(t, a.conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	a.expect(protocol.EventError, `{"message":"invalid payload"}`)

	a.send("explode", nil)
	f := a.expect(protocol.EventError)
	assert.Contains(t, string(f.Body), "unknown event")

	a.send(protocol.EventJoinRoom, map[string]string{"userId": "A"})
	a.expect(protocol.EventError)

	// events before joining are ignored
	a.send(protocol.EventLock, map[string]string{"userId": "A"})

	join(a, "r1", "A", "")
	a.expect(protocol.EventHostInfo, `{"hostId":"A"}`)
	a.expect(protocol.EventUserJoined, `{"userId":"A","displayName":"Anonymous"}`)
}

func TestGateway_JWTIdentity(t *testing.T) {
	p := identity.NewJWTProvider([]byte("secret"))
	h := newHarness(t, p)

	_, resp, err := websocket.DefaultDialer.Dial(h.url(""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	tok, err := p.Generate("A", "alice", time.Hour)
	require.NoError(t, err)
	a := h.dial(t, "token="+tok)

	join(a, "r1", "mallory", "Mallory")
	a.expect(protocol.EventError, `{"message":"Identity mismatch"}`)

	a.send(protocol.EventJoinRoom, map[string]string{"roomId": "r1", "userId": "A"})
	a.expect(protocol.EventHostInfo, `{"hostId":"A"}`)
	a.expect(protocol.EventUserJoined, `{"userId":"A","displayName":"alice"}`)
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{PingPeriod: time.Minute, PongWait: 10 * time.Second}
	o.defaults()
	assert.Less(t, o.PingPeriod, o.PongWait)
	assert.Equal(t, 64, o.OutboxSize)
	assert.EqualValues(t, 64<<10, o.ReadLimit)
}

func TestCheckOrigin(t *testing.T) {
	s := &WsServer{opts: Options{AllowedOrigins: []string{"https://notes.example"}}}
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Origin", "https://evil.example")
	assert.False(t, s.checkOrigin(r))
	r.Header.Set("Origin", "https://notes.example")
	assert.True(t, s.checkOrigin(r))
}
