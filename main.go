package main

import (
	"collabnotes/internal/audit"
	"collabnotes/internal/config"
	"collabnotes/internal/coordinator"
	"collabnotes/internal/database/db_client"
	"collabnotes/internal/http/http_server"
	"collabnotes/internal/http/roomhandler"
	"collabnotes/internal/identity"
	"collabnotes/internal/presence"
	"collabnotes/internal/redis/redis_client"
	"collabnotes/internal/room"
	"collabnotes/internal/ws"
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var redisClient *redis.Client
	var pgDb *sql.DB
	var history audit.IHistory

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully",
		zap.Uint16("port", cfg.HttpServerPort),
		zap.Bool("redis", cfg.RedisEnabled),
		zap.Bool("postgres", cfg.PostgresEnabled),
		zap.Bool("jwt", cfg.JwtSecret != ""),
	)

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// 3. Room state, websocket hub and the coordinator
	store := room.NewStore()
	hub := ws.NewHub()
	relay := ws.NewRelay(hub)
	coord := coordinator.New(store, relay)

	// 4. Redis: presence mirror, event stream and notice channels
	if cfg.RedisEnabled {
		redisClient, err = redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort))
		if err != nil {
			Log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		Log.Debug("Redis client created successfully")

		publisher := audit.NewPublisher(redisClient, 0)
		coord.AddObserver(publisher)
		g.Go(func() error { publisher.Run(gctx); return nil })

		subs := ws.NewSubscriptionManager(redisClient, coord)
		coord.AddObserver(subs)
		g.Go(func() error { subs.Run(gctx); return nil })

		presence.Run(gctx, redisClient, store, cfg.PresenceSyncInterval, cfg.PresenceTTL)
		evictor := presence.NewEvictor(redisClient, store, 0)
		coord.AddObserver(evictor)
		g.Go(func() error { evictor.Run(gctx); return nil })
	}

	// 5. Postgres: room event history
	if cfg.PostgresEnabled {
		pgDb, err = db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
		if err != nil {
			Log.Fatal("pg-open", zap.Error(err))
		}
		defer pgDb.Close()

		if err := audit.EnsureSchema(ctx, pgDb); err != nil {
			Log.Fatal("pg-schema", zap.Error(err))
		}
		history = audit.NewHistory(pgDb)

		if redisClient != nil {
			audit.Run(gctx, redisClient, pgDb)
		} else {
			Log.Warn("audit.disabled", zap.String("reason", "postgres history needs REDIS_ENABLED"))
		}
	}

	// 6. Identity
	var ident identity.Provider = identity.Trusting{}
	if cfg.JwtSecret != "" {
		ident = identity.NewJWTProvider([]byte(cfg.JwtSecret))
	}

	// 7. Initialize the WS server
	wsSrv := ws.NewWsServer(hub, relay, coord, ident, ws.Options{
		ReadLimit:      cfg.WsReadLimit,
		OutboxSize:     cfg.WsOutboxSize,
		PingPeriod:     cfg.WsPingPeriod,
		PongWait:       cfg.WsPongWait,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	// 8. HTTP + WS server
	httpServer := http_server.NewHttpServer(gctx, cfg.HttpServerPort, wsSrv, roomhandler.New(coord, hub, history))
	g.Go(httpServer.Start)
	g.Go(func() error {
		<-gctx.Done()
		err := httpServer.Dispose()
		hub.CloseAll()
		return err
	})

	if err := g.Wait(); err != nil {
		Log.Error("Server stopped with error", zap.Error(err))
		return
	}
	Log.Info("Server stopped")
}
