// Package main runs the tictacroom server: WebSocket sessions, the HTTP API
// and the durable record gateway.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"tictacroom/internal/api"
	"tictacroom/internal/broadcast"
	"tictacroom/internal/config"
	"tictacroom/internal/notify"
	"tictacroom/internal/observability"
	"tictacroom/internal/router"
	"tictacroom/internal/server"
	"tictacroom/internal/session"
	"tictacroom/internal/storage"
	"tictacroom/internal/storage/memory"
	"tictacroom/internal/storage/migrations"
	"tictacroom/internal/storage/postgres"
	"tictacroom/internal/storage/sqlite"
	"tictacroom/internal/ws"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file; empty uses defaults and environment")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	provider, shutdownMetrics, err := observability.NewMeterProvider(ctx, cfg.Metrics)
	if err != nil {
		logger.Fatal("creating meter provider", zap.Error(err))
	}
	metrics, err := observability.NewMetrics(provider)
	if err != nil {
		logger.Fatal("creating metrics", zap.Error(err))
	}

	backend, err := openGateway(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("opening storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer backend.close()
	gateway := backend.gateway

	if cfg.NATS.URL != "" {
		nc, err := notify.Connect(cfg.NATS, logger)
		if err != nil {
			logger.Fatal("connecting to nats", zap.Error(err))
		}
		defer nc.Close()
		gateway = notify.NewGateway(gateway, nc, cfg.NATS.Subject, logger)
		logger.Info("publishing finished sessions", zap.String("subject", cfg.NATS.Subject))
	}

	hub := broadcast.NewHub(cfg.Websocket.SendBuffer, logger)
	coord := session.NewCoordinator(session.NewStore(gateway), gateway, hub, session.RetryPolicy{
		WriteTimeout:    cfg.Persistence.WriteTimeout,
		InitialInterval: cfg.Persistence.RetryInitialInterval,
		MaxInterval:     cfg.Persistence.RetryMaxInterval,
		MaxElapsed:      cfg.Persistence.RetryMaxElapsed,
	}, metrics, logger)
	rt := router.New(coord, hub, logger)

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(chimw.Recoverer)
	mux.Use(api.CORSMiddleware(cfg.Server.AllowedOrigins))
	apiHandler := api.NewHandler(coord, gateway, logger)
	if backend.ping != nil {
		apiHandler.AddHealthCheck(cfg.Storage.Driver, backend.ping)
	}
	apiHandler.RegisterRoutes(mux)
	ws.NewHandler(rt, cfg.Websocket, cfg.Server.AllowedOrigins, logger).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	lc := server.NewLifecycle(logger, cfg.Server.ShutdownTimeout)
	lc.Add("metrics", &server.FuncService{
		StartFn: func() error { return nil },
		StopFn:  shutdownMetrics,
	})
	lc.Add("http", &server.FuncService{
		StartFn: func() error {
			logger.Info("listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		StopFn: func(ctx context.Context) error {
			// Rooms hear about the shutdown before sockets close.
			stopErr := coord.Shutdown(ctx)
			hub.CloseAll()
			return errors.Join(stopErr, srv.Shutdown(ctx))
		},
	})

	logger.Info("tictacroom starting",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("storage", cfg.Storage.Driver),
		zap.Duration("startup", time.Since(start)),
	)
	if err := lc.Run(ctx); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
	}
}

// storageBackend is the opened record gateway plus its lifecycle hooks.
type storageBackend struct {
	gateway storage.Gateway
	ping    api.HealthCheck
	close   func()
}

// openGateway builds the durable record gateway for the configured driver.
func openGateway(ctx context.Context, cfg config.Config, logger *zap.Logger) (storageBackend, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory storage; records are lost on restart")
		return storageBackend{gateway: memory.New(), close: func() {}}, nil

	case config.DriverPostgres:
		if cfg.Storage.Migrate {
			if err := migrations.UpPostgres(cfg.Database.DSN()); err != nil {
				return storageBackend{}, err
			}
		}
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return storageBackend{}, err
		}
		logger.Info("connected to postgres", zap.String("host", cfg.Database.Host), zap.String("database", cfg.Database.Name))
		return storageBackend{gateway: pool.Records(), ping: pool.Ping, close: pool.Close}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return storageBackend{}, err
		}
		logger.Info("opened sqlite", zap.String("path", cfg.Storage.SQLitePath))
		return storageBackend{gateway: sqlite.New(db), ping: db.PingContext, close: func() { db.Close() }}, nil

	default:
		return storageBackend{}, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
