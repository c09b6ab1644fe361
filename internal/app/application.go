package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"strangers/internal/api"
	"strangers/internal/config"
	"strangers/internal/database"
	"strangers/internal/hub"
	"strangers/internal/matcher"
	"strangers/internal/router"
	"strangers/internal/session"
	"strangers/internal/websocket"
	pkgdatabase "strangers/pkg/database"
	"strangers/pkg/interfaces"
	"strangers/pkg/types"
)

// Application wires every component of the server together
type Application struct {
	config     *config.Config
	dbManager  *database.Manager
	sessions   *session.Manager
	registry   *websocket.Registry
	matcher    *matcher.Matcher
	router     *router.Router
	hub        *hub.Hub
	apiServer  *api.Server
	mux        *http.ServeMux
	httpServer *http.Server
	listener   net.Listener
	logger     *slog.Logger
}

// NewApplication builds all components in dependency order:
// Database → Sessions → Registry → Matcher/Router → Hub → API → HTTP
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := slog.Default().With("component", "app")

	// The match log is optional; when disabled nothing is recorded
	var (
		dbManager *database.Manager
		recorder  interfaces.MatchRecorder
		matchLog  api.MatchLog
	)
	if cfg.Database.Enabled {
		var err error
		dbManager, err = database.NewManager(cfg.DatabaseSettings())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database manager: %w", err)
		}
		if err := pkgdatabase.NewMigrationManager(dbManager.GetDB()).ApplyAndValidate(); err != nil {
			dbManager.Close()
			return nil, fmt.Errorf("failed to apply database migrations: %w", err)
		}
		// A previous process that died without shutting down leaves its
		// pairings marked active
		closed, err := dbManager.CloseOpenMatches(context.Background(), time.Now(), types.EndReasonInterrupted)
		if err != nil {
			dbManager.Close()
			return nil, fmt.Errorf("failed to close stale matches: %w", err)
		}
		if closed > 0 {
			logger.Warn("closed matches left open by a previous run", "count", closed)
		}
		logger.Info("match log ready", "path", cfg.Database.Path)
		recorder = dbManager
		matchLog = dbManager
	} else {
		logger.Info("match log disabled")
	}

	sessions := session.NewManager()
	registry := websocket.NewRegistry()
	m := matcher.NewMatcher(sessions, registry, recorder)
	r := router.NewRouter(sessions, registry, recorder)
	h := hub.NewHub(registry, sessions, m, r, router.NewRateLimiter(cfg.Matching.RateLimitPerMinute))
	if cfg.Matching.VerifyInvariants {
		h.VerifyInvariants()
	}

	apiServer := api.NewServer(h, matchLog, registry, cfg.HTTP.AllowedOrigin)

	wsHandler := websocket.NewHandler(h, websocket.Options{
		AllowedOrigin:  cfg.HTTP.AllowedOrigin,
		PingInterval:   cfg.WebSocket.PingInterval,
		ReadTimeout:    cfg.WebSocket.ReadTimeout,
		WriteTimeout:   cfg.WebSocket.WriteTimeout,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		BufferSize:     cfg.WebSocket.BufferSize,
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		dbManager:  dbManager,
		sessions:   sessions,
		registry:   registry,
		matcher:    m,
		router:     r,
		hub:        h,
		apiServer:  apiServer,
		mux:        mux,
		httpServer: httpServer,
		logger:     logger,
	}, nil
}

// Start listens on the configured address and begins serving
func (app *Application) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	return app.Serve(ctx, ln)
}

// Serve starts the hub and serves HTTP on ln. It returns once serving has
// begun; serving errors after that are logged.
func (app *Application) Serve(ctx context.Context, ln net.Listener) error {
	if err := app.hub.Start(ctx); err != nil {
		ln.Close()
		return fmt.Errorf("failed to start hub: %w", err)
	}
	app.listener = ln

	serverErrCh := make(chan error, 1)
	go func() {
		err := app.httpServer.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serverErrCh <- err
	}()

	select {
	case err := <-serverErrCh:
		app.hub.Stop()
		if err == nil {
			err = http.ErrServerClosed
		}
		return fmt.Errorf("HTTP server error: %w", err)
	case <-time.After(100 * time.Millisecond):
		app.logger.Info("strangers server started", "addr", ln.Addr().String(), "allowed_origin", app.config.HTTP.AllowedOrigin)
		go func() {
			if err := <-serverErrCh; err != nil {
				app.logger.Error("HTTP server stopped", "error", err)
			}
		}()
		return nil
	case <-ctx.Done():
		app.hub.Stop()
		return ctx.Err()
	}
}

// Stop shuts down in reverse dependency order: HTTP → sockets → hub → database
func (app *Application) Stop(ctx context.Context) error {
	app.logger.Info("shutting down")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		app.logger.Warn("HTTP server shutdown error", "error", err)
	}

	// Hijacked WebSocket connections are not covered by Shutdown
	app.registry.CloseAll()
	app.drain(ctx)

	if err := app.hub.Stop(); err != nil && !errors.Is(err, hub.ErrHubNotRunning) {
		app.logger.Warn("hub shutdown error", "error", err)
	}

	if app.dbManager != nil {
		// Connections the drain did not reach in time
		if closed, err := app.dbManager.CloseOpenMatches(ctx, time.Now(), types.EndReasonDisconnected); err != nil {
			app.logger.Warn("failed to close open matches", "error", err)
		} else if closed > 0 {
			app.logger.Info("closed open matches", "count", closed)
		}
		if err := app.dbManager.Close(); err != nil {
			app.logger.Warn("database shutdown error", "error", err)
		}
	}

	app.logger.Info("shutdown complete")
	return nil
}

// drain waits for closed connections to be torn down by the hub so their
// match log entries are ended before the database closes
func (app *Application) drain(ctx context.Context) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		stats, err := app.hub.Snapshot(ctx)
		if err != nil || stats.Connections == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Addr returns the address being served, or the configured one before Start
func (app *Application) Addr() string {
	if app.listener != nil {
		return app.listener.Addr().String()
	}
	return app.httpServer.Addr
}

// Handler returns the HTTP routes
func (app *Application) Handler() http.Handler {
	return app.mux
}

// MatchLog returns the match log, or nil when it is disabled
func (app *Application) MatchLog() *database.Manager {
	return app.dbManager
}
