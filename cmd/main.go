package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"rehab_monitor/internal/bridge"
	"rehab_monitor/internal/config"
	"rehab_monitor/internal/handlers"
	"rehab_monitor/internal/logger"
	"rehab_monitor/internal/metrics"
	"rehab_monitor/internal/repository"
	"rehab_monitor/internal/repository/db"
	"rehab_monitor/internal/server"
	"rehab_monitor/internal/service"

	"github.com/go-redis/redis/v8"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// bootstrap logger until the configured one exists
	log := logger.Get(logger.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("error reading config", "err", err)
	}
	log = logger.New(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = log.Sync() }()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalw("invalid history timezone", "timezone", cfg.History.Timezone, "err", err)
	}

	// users always live in sqlite; documents follow store.backend
	conn, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "path", cfg.DB.Path, "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	store, closeStore, err := openStore(cfg, conn)
	if err != nil {
		log.Fatalw("failed to open document store", "backend", cfg.Store.Backend, "err", err)
	}
	defer closeStore()
	log.Infow("document store ready", "backend", cfg.Store.Backend)

	// wire dependencies
	m := metrics.New()
	repos := repository.NewRepository(conn, store)
	services := service.NewService(repos, service.Options{
		Dashboard: service.DashboardOptions{
			HeartbeatThreshold: cfg.Monitor.HeartbeatThreshold,
			HeartbeatRecheck:   cfg.Monitor.HeartbeatRecheck,
			TimerPeriod:        cfg.Monitor.TimerPeriod,
			LiveWindow:         cfg.Monitor.LiveWindow,
		},
		Auth: service.AuthOptions{
			SigningKey: cfg.Auth.SigningKey,
			TokenTTL:   cfg.Auth.TokenTTL,
		},
		Location: loc,
	}, log, m)
	if cfg.Auth.SigningKey == "" {
		log.Warnw("auth.signing_key not set; tokens will not survive a restart")
	}
	apiHandler := handlers.NewHandler(services, log.Named("http"), handlers.Options{
		Metrics:      m,
		PushInterval: cfg.WS.PushInterval,
	})

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		services.Run(ctx)
	}()

	if cfg.MQTT.Enabled {
		startRelay(ctx, &wg, cfg.MQTT, store, log.Named("mqtt"), m)
	}

	srv := server.New(cfg.Port, apiHandler.InitRoutes())
	runHTTPServer(srv, log)

	waitForShutdown(cancel, &wg, srv, log)
}

// openStore builds the document store selected by store.backend and returns
// its release func.
func openStore(cfg *config.Config, conn *sql.DB) (repository.DocumentStore, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return repository.NewMemoryStore(), func() {}, nil
	case config.BackendSQLite:
		return repository.NewSQLiteStore(conn), func() {}, nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.Store.Redis.Addr, err)
		}
		return repository.NewRedisStore(client, cfg.Store.Redis.Prefix), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// startRelay connects to the MQTT broker and runs the relay in the
// background. A broker that cannot be reached is logged, not fatal.
func startRelay(ctx context.Context, wg *sync.WaitGroup, cfg config.MQTTConfig,
	store repository.DocumentStore, log *logger.Logger, m *metrics.Metrics) {
	client, err := bridge.Dial(cfg, log)
	if err != nil {
		log.Errorw("mqtt relay disabled", "broker", cfg.Broker, "err", err)
		return
	}
	relay := bridge.NewRelay(store, client, cfg.TopicPrefix, log, m)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer client.Disconnect()
		if err := relay.Run(ctx); err != nil {
			log.Errorw("mqtt relay stopped", "err", err)
		}
	}()
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, log *logger.Logger) {
	go func() {
		log.Infow("http server listening", "addr", srv.Addr())
		if err := srv.Run(); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, wg *sync.WaitGroup, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop subscriptions, the session timer and the relay
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
	wg.Wait()
	log.Infow("shutdown complete")
}
