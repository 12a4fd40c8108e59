package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"

	"liveclass/internal/access"
	"liveclass/internal/api"
	"liveclass/internal/config"
	"liveclass/internal/database"
	"liveclass/internal/database/postgres"
	"liveclass/internal/hub"
	"liveclass/internal/persistence"
	"liveclass/internal/session"
	"liveclass/internal/websocket"
	pkgdatabase "liveclass/pkg/database"
	"liveclass/pkg/interfaces"
)

// Application coordinates all system components
// ARCHITECTURAL DISCOVERY: Exactly one registry and one hub exist per
// application; every component receives them by injection
type Application struct {
	config     *config.Config
	store      interfaces.DatabaseManager
	registry   *session.Registry
	hub        *hub.Hub
	gateway    *persistence.Gateway
	controller *session.Controller
	gate       *access.Gate
	redis      *redis.Client
	apiServer  *api.Server
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
}

// OpenStore opens the configured durable store and brings its schema up to date
func OpenStore(ctx context.Context, cfg *config.DatabaseConfig) (interfaces.DatabaseManager, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil

	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		manager, err := database.NewManager(&pkgdatabase.Config{
			DatabasePath:    cfg.Path,
			MaxConnections:  cfg.MaxConnections,
			ConnMaxLifetime: cfg.Timeout,
			ConnMaxIdleTime: cfg.Timeout / 3,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database manager: %w", err)
		}
		if err := pkgdatabase.NewMigrationManager(manager.GetDB()).ApplyMigrations(); err != nil {
			_ = manager.Close()
			return nil, fmt.Errorf("failed to apply database migrations: %w", err)
		}
		return manager, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// NewApplication creates a new application instance with all components initialized
// Component initialization follows strict dependency order:
// Store → Registry → Hub → Gateway → Controller → Gate → Realtime → API → HTTP
func NewApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// STEP 1: Durable store with schema applied
	store, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	log.Printf("Database ready: driver=%s", cfg.Database.Driver)

	// STEP 2: Process-wide live state and the hub bound to it
	registry := session.NewRegistry()
	messageHub := hub.NewHub(registry)

	// STEP 3: Lifecycle controller with fire-and-forget persistence
	gateway := persistence.NewGateway(store, cfg.Session.PersistTimeout)
	controller := session.NewController(registry, store, gateway, messageHub)

	// STEP 4: Access gate over the configured grant store
	grants, redisClient, err := openGrantStore(ctx, cfg.Access)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	limiter := access.NewRateLimiter(cfg.Access.AttemptLimit, cfg.Access.AttemptWindow)
	gate := access.NewGate(registry, store, grants, limiter, cfg.Access.GrantTTL)

	// STEP 5: Realtime handler and HTTP API
	settings := websocket.DefaultSettings()
	settings.PingInterval = cfg.WebSocket.PingInterval
	settings.ReadTimeout = cfg.WebSocket.ReadTimeout
	settings.MaxMessageSize = cfg.WebSocket.MaxMessageSize
	wsHandler := websocket.NewHandler(messageHub, controller, gate, cfg.Auth.JWTSecret, settings)

	apiServer := api.NewServer(controller, gate, store, messageHub, http.HandlerFunc(wsHandler.HandleWebSocket), cfg.Auth.JWTSecret)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      apiServer,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		store:      store,
		registry:   registry,
		hub:        messageHub,
		gateway:    gateway,
		controller: controller,
		gate:       gate,
		redis:      redisClient,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

// openGrantStore returns the in-memory store or a Redis-backed one
func openGrantStore(ctx context.Context, cfg *config.AccessConfig) (interfaces.GrantStore, *redis.Client, error) {
	if cfg.GrantStore != config.GrantStoreRedis {
		return access.NewMemoryGrantStore(), nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	store := access.NewRedisGrantStore(client, "")
	if err := store.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect grant store: %w", err)
	}
	log.Printf("Grant store ready: redis=%s", cfg.RedisAddr)
	return store, client, nil
}

// Start begins application execution
// Hub starts first so that connections accepted by the HTTP server can register
func (app *Application) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())

	// STEP 1: Start the hub event loop
	if err := app.hub.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("failed to start hub: %w", err)
	}

	// STEP 2: Periodic cleanup of limiter state and expired grants
	go app.gate.RunJanitor(runCtx, app.config.Access.JanitorInterval)

	// STEP 3: Bind the listener before returning so callers can connect
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", app.httpServer.Addr)
	if err != nil {
		cancel()
		_ = app.hub.Stop()
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}

	app.mu.Lock()
	app.listener = listener
	app.cancel = cancel
	app.mu.Unlock()

	go func() {
		if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	log.Printf("Live class service listening on %s", listener.Addr())
	return nil
}

// Stop gracefully shuts down the application
// Reverse dependency order: HTTP → Hub → pending writes → Stores
func (app *Application) Stop(ctx context.Context) error {
	// live sessions are not persisted across restarts
	log.Printf("Shutting down live class service: live_sessions=%d", app.registry.Count())

	// STEP 1: Stop accepting new connections
	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// STEP 2: Stop background loops
	if err := app.hub.Stop(); err != nil && !errors.Is(err, hub.ErrHubNotRunning) {
		log.Printf("Hub shutdown error: %v", err)
	}
	app.mu.Lock()
	if app.cancel != nil {
		app.cancel()
	}
	app.mu.Unlock()

	// STEP 3: Let in-flight session records reach the store
	if err := app.gateway.Wait(ctx); err != nil {
		log.Printf("Pending session records not flushed: %v", err)
	}

	// STEP 4: Close stores
	if err := app.store.Close(); err != nil {
		log.Printf("Database shutdown error: %v", err)
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			log.Printf("Redis shutdown error: %v", err)
		}
	}

	log.Printf("Live class service shutdown complete")
	return nil
}

// GetAddr returns the bound listener address once started, else the configured one
func (app *Application) GetAddr() string {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.listener != nil {
		return app.listener.Addr().String()
	}
	return app.httpServer.Addr
}

// Controller exposes the lifecycle controller for tooling and tests
func (app *Application) Controller() *session.Controller {
	return app.controller
}

// Store exposes the durable store for tooling and tests
func (app *Application) Store() interfaces.DatabaseManager {
	return app.store
}
