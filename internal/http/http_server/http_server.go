package http_server

import (
	"collabnotes/internal/http/roomhandler"
	"collabnotes/internal/ws"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/abrar71/swaggerfilesv2" // swagger embed files
)

const shutdownTimeout = 10 * time.Second

type httpServer struct {
	listenPort  uint16
	srv         *http.Server
	ln          net.Listener
	roomHandler *roomhandler.Handler
	wsSrv       *ws.WsServer
	ctx         context.Context
}

func NewHttpServer(ctx context.Context, listenPort uint16, wsSrv *ws.WsServer, roomHandler *roomhandler.Handler) *httpServer {
	h := &httpServer{
		listenPort:  listenPort,
		wsSrv:       wsSrv,
		roomHandler: roomHandler,
		ctx:         ctx,
	}
	h.srv = &http.Server{
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return h
}

// Router builds the gin engine serving the websocket gateway, the REST API
// and the swagger UI.
func (h *httpServer) Router() *gin.Engine {
	routerEngine := gin.New()

	routerEngine.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	// Swagger UI and API specs
	routerEngine.StaticFS("/swagger-apis", http.FS(swaggerfilesv2.FS))
	routerEngine.Static("/api-specs", "api_specs")

	// websocket endpoint
	routerEngine.GET("/ws", h.wsSrv.Handle)

	// REST API
	h.roomHandler.Register(routerEngine)

	return routerEngine
}

// Start blocks serving HTTP until Dispose is called.
func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	zap.L().Info("http.listening", zap.String("addr", listenAddr))

	if err := h.srv.Serve(h.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Dispose gracefully shuts the HTTP server down.
// It waits up to 10 s for in‑flight requests to finish. Hijacked websocket
// connections are not tracked by the server; close them through the hub.
func (h *httpServer) Dispose() error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(h.ctx), shutdownTimeout)
	defer cancel()

	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http_dispose", zap.Error(err))
		return err
	}
	return nil
}
