package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/vellum/internal/auth/http"
	"github.com/aussiebroadwan/vellum/internal/auth/service"
	"github.com/aussiebroadwan/vellum/internal/auth/store"
	"github.com/aussiebroadwan/vellum/internal/auth/store/drivers/memory"
	"github.com/aussiebroadwan/vellum/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/vellum/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/vellum/pkg/cryptox"
	"github.com/aussiebroadwan/vellum/pkg/httpx"
	"github.com/aussiebroadwan/vellum/pkg/jwtx"
	"github.com/aussiebroadwan/vellum/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"

	storeConnectTimeout = 5 * time.Second
)

// Application encapsulates the session service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db      store.Store
	keySets *jwtx.KeySetCache
	google  *jwtx.GoogleVerifier
	access  *jwtx.AccessCodec
	limiter *httpx.RateLimiter

	// Services
	sessionService      *service.SessionService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "session-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initStore(); err != nil {
		return nil, err
	}

	if err := app.initAuth(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Handler exposes the fully wired router.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("session service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"store", app.cfg.StoreDriver,
		"origins", app.cfg.Origins,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		_ = app.db.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down session service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	// Close the refresh session store
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing store", "error", err)
		return err
	}

	app.logger.Info("session service stopped")
	return nil
}

// initStore opens the configured refresh session store and applies its
// migrations.
func (app *Application) initStore() error {
	var (
		db  store.Store
		err error
	)

	switch app.cfg.StoreDriver {
	case StoreDriverSQLite:
		db, err = sqlite.NewStore(sqlite.FileDSN(app.cfg.DatabaseFile))
	case StoreDriverRedis:
		ctx, cancel := context.WithTimeout(context.Background(), storeConnectTimeout)
		defer cancel()
		db, err = redis.Open(ctx, app.cfg.RedisURL, app.cfg.RedisPrefix)
	case StoreDriverMemory:
		app.logger.Warn("memory store selected, sessions will not survive a restart")
		db = memory.NewStore()
	default:
		err = fmt.Errorf("unknown store driver %q", app.cfg.StoreDriver)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize %s store: %w", app.cfg.StoreDriver, err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply store migrations: %w", err)
	}

	app.logger.Info("store ready", "driver", app.cfg.StoreDriver)
	return nil
}

// initAuth builds the token codecs, the Google key set cache and the
// session rate limiter.
func (app *Application) initAuth() error {
	secret := app.cfg.HMACSecret
	if len(secret) == 0 {
		var err error
		secret, err = cryptox.LoadOrGenerateSecret(app.cfg.HMACSecretFile)
		if err != nil {
			return fmt.Errorf("failed to load session secret: %w", err)
		}
		app.logger.Info("session secret loaded", "file", app.cfg.HMACSecretFile)
	}

	access, err := jwtx.NewAccessCodec(secret, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize access tokens: %w", err)
	}
	app.access = access

	app.keySets = jwtx.NewKeySetCache(
		jwtx.NewHTTPKeySetFetcher(app.cfg.KeySetTimeout),
		jwtx.KeySetCacheConfig{TTL: app.cfg.KeySetTTL},
	)

	google, err := jwtx.NewGoogleVerifier(jwtx.GoogleVerifierConfig{
		ClientIDs: app.cfg.ClientIDs,
		KeySetURL: app.cfg.KeySetURL,
		Keys:      app.keySets,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize google verifier: %w", err)
	}
	app.google = google

	app.limiter = httpx.NewRateLimiter(app.cfg.SessionRateLimit, nil)
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.sessionService = &service.SessionService{
		Google:     app.google,
		Access:     app.access,
		Sessions:   app.db.RefreshSessions(),
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db.RefreshSessions(),
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		BuildVersion,
		app.db,
		app.cfg.Origins,
		app.limiter,
		app.logger,
	)

	// Wire services to router
	router.SessionService = app.sessionService
	router.KeysLoaded = app.google.KeysLoaded
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
