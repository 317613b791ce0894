package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"collabnotes/internal/coordinator"
	"collabnotes/internal/identity"
	"collabnotes/internal/protocol"
	"collabnotes/internal/room"
)

const writeWait = 10 * time.Second

var (
	errNotJoined        = errors.New("connection has not joined a room")
	errIdentityMismatch = &coordinator.RejectError{Message: "Identity mismatch"}
)

// Options tune the transport. Zero values fall back to sane defaults.
type Options struct {
	ReadLimit      int64
	OutboxSize     int
	PingPeriod     time.Duration // must be < PongWait
	PongWait       time.Duration
	AllowedOrigins []string
}

func (o *Options) defaults() {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 << 10
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = 64
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
}

// ConnContext is the per-connection session state. It is only touched by
// the connection's reader goroutine.
type ConnContext struct {
	ConnID   string
	Identity *identity.Identity // nil when identities are trusted

	RoomID      string
	UserID      string
	DisplayName string
}

func (c *ConnContext) joined() bool { return c.RoomID != "" }

func (c *ConnContext) sender() coordinator.Sender {
	return coordinator.Sender{ConnectionID: c.ConnID, UserID: c.UserID, DisplayName: c.DisplayName}
}

type WsServer struct {
	hub      *Hub
	relay    *Relay
	router   *Router
	coord    *coordinator.Coordinator
	ident    identity.Provider
	upgrader websocket.Upgrader
	opts     Options
}

func NewWsServer(h *Hub, relay *Relay, coord *coordinator.Coordinator, ident identity.Provider, opts Options) *WsServer {
	opts.defaults()
	if ident == nil {
		ident = identity.Trusting{}
	}
	srv := &WsServer{
		hub:    h,
		relay:  relay,
		router: NewRouter(),
		coord:  coord,
		ident:  ident,
		opts:   opts,
	}
	srv.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     srv.checkOrigin,
	}
	srv.registerHandlers() // ← all WS events configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry‑point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	who, err := s.ident.Identify(ginCtx.Request)
	if err != nil {
		zap.L().Debug("ws.identify", zap.Error(err))
		ginCtx.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}

	conn := newClientConn(uuid.NewString(), rawConn, s.opts.OutboxSize)
	if !s.hub.register(conn) {
		_ = rawConn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = rawConn.Close()
		return
	}
	zap.L().Debug("ws.connected", zap.String("conn", conn.id))

	go conn.writePump(s.opts.PingPeriod)
	go s.reader(conn, &ConnContext{ConnID: conn.id, Identity: who})
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, o := range s.opts.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func (s *WsServer) registerHandlers() {
	Register(s.router, protocol.EventJoinRoom,
		func(_ context.Context, cc *ConnContext, req protocol.JoinRoomRequest) error {
			name := req.DisplayName
			if cc.Identity != nil {
				if req.UserID != cc.Identity.UserID {
					return errIdentityMismatch
				}
				if name == "" {
					name = cc.Identity.DisplayName
				}
			}
			if name == "" {
				name = protocol.DefaultDisplayName
			}

			if cc.joined() && (cc.RoomID != req.RoomID || cc.UserID != req.UserID) {
				s.leave(cc)
			}
			next := coordinator.Sender{ConnectionID: cc.ConnID, UserID: req.UserID, DisplayName: name}
			if err := s.coord.Join(req.RoomID, next); err != nil {
				return err
			}
			cc.RoomID, cc.UserID, cc.DisplayName = req.RoomID, req.UserID, name
			return nil
		})

	Register(s.router, protocol.EventUpdateText,
		func(_ context.Context, cc *ConnContext, req protocol.UpdateTextRequest) error {
			if !cc.joined() {
				return errNotJoined
			}
			return s.coord.UpdateText(cc.RoomID, cc.sender(), req.Text)
		})

	Register(s.router, protocol.EventUpdateCursor,
		func(_ context.Context, cc *ConnContext, req protocol.UpdateCursorRequest) error {
			if !cc.joined() {
				return errNotJoined
			}
			return s.coord.UpdateCursor(cc.RoomID, cc.sender(), req.Position)
		})

	typing := func(on bool) func(context.Context, *ConnContext, protocol.TypingRequest) error {
		return func(_ context.Context, cc *ConnContext, _ protocol.TypingRequest) error {
			if !cc.joined() {
				return errNotJoined
			}
			return s.coord.Typing(cc.RoomID, cc.sender(), on)
		}
	}
	Register(s.router, protocol.EventTyping, typing(true))
	Register(s.router, protocol.EventStopTyping, typing(false))

	Register(s.router, protocol.EventChatMessage,
		func(_ context.Context, cc *ConnContext, req protocol.ChatMessageRequest) error {
			if !cc.joined() {
				return errNotJoined
			}
			return s.coord.Chat(cc.RoomID, cc.sender(), req.Message)
		})

	Register(s.router, protocol.EventLock,
		func(_ context.Context, cc *ConnContext, _ protocol.LockRequest) error {
			if !cc.joined() {
				return errNotJoined
			}
			return s.coord.Lock(cc.RoomID, cc.sender())
		})

	Register(s.router, protocol.EventUnlock,
		func(_ context.Context, cc *ConnContext, _ protocol.LockRequest) error {
			if !cc.joined() {
				return errNotJoined
			}
			return s.coord.Unlock(cc.RoomID, cc.sender())
		})
}

// leave synthesizes a Leave for whatever room the connection last joined.
func (s *WsServer) leave(cc *ConnContext) {
	if !cc.joined() {
		return
	}
	if err := s.coord.Leave(cc.RoomID, cc.sender()); err != nil {
		zap.L().Debug("ws.leave_noop", zap.String("conn", cc.ConnID), zap.Error(err))
	}
	cc.RoomID, cc.UserID, cc.DisplayName = "", "", ""
}

func (s *WsServer) reader(conn *clientConn, cc *ConnContext) {
	defer func() {
		s.leave(cc)
		s.hub.unregister(conn)
		conn.close()
		zap.L().Debug("ws.disconnected", zap.String("conn", conn.id))
	}()

	raw := conn.rawConn
	raw.SetReadLimit(s.opts.ReadLimit)
	_ = raw.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Debug("ws.read", zap.String("conn", conn.id), zap.Error(err))
			}
			return // client closed or errored
		}
		_ = raw.SetReadDeadline(time.Now().Add(s.opts.PongWait))

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.reply(cc, ErrInvalidPayload)
			continue
		}

		// handlers only touch in-memory state and enqueue; nothing to cancel
		s.reply(cc, s.router.dispatch(context.Background(), cc, env))
	}
}

// reply reports a failed event to its sender only. State-not-found outcomes
// are silent no-ops.
func (s *WsServer) reply(cc *ConnContext, err error) {
	var re *coordinator.RejectError
	switch {
	case err == nil:
		return
	case errors.As(err, &re):
		zap.L().Debug("ws.rejected", zap.String("conn", cc.ConnID), zap.String("room", cc.RoomID), zap.String("reason", re.Message))
		s.relay.SendTo(cc.ConnID, protocol.Error(re.Message))
	case errors.Is(err, room.ErrRoomNotFound),
		errors.Is(err, coordinator.ErrNotMember),
		errors.Is(err, errNotJoined):
		zap.L().Debug("ws.noop", zap.String("conn", cc.ConnID), zap.Error(err))
	default:
		s.relay.SendTo(cc.ConnID, protocol.Error(err.Error()))
	}
}
