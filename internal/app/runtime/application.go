// Package runtime wires configuration, storage, services, and the HTTP
// server into a runnable process.
package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	app "github.com/CalcStack/calc_service/internal/app"
	"github.com/CalcStack/calc_service/internal/app/auth"
	"github.com/CalcStack/calc_service/internal/app/httpapi"
	"github.com/CalcStack/calc_service/internal/app/metrics"
	"github.com/CalcStack/calc_service/internal/app/storage/postgres"
	"github.com/CalcStack/calc_service/internal/config"
	"github.com/CalcStack/calc_service/internal/middleware"
	"github.com/CalcStack/calc_service/internal/platform/database"
	"github.com/CalcStack/calc_service/internal/platform/migrations"
	"github.com/CalcStack/calc_service/pkg/logger"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg    *config.Config
	log    *logger.Logger
	app    *app.Application
	server *http.Server
	db     *sql.DB
	done   chan struct{}
}

// NewApplication constructs a fully wired application from the given
// configuration.
func NewApplication(cfg *config.Config) (*Application, error) {
	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	var tokens *auth.TokenService
	if cfg.Auth.Secret != "" {
		ttl := time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute
		var err error
		tokens, err = auth.NewTokenService([]byte(cfg.Auth.Secret), ttl, cfg.Auth.Issuer)
		if err != nil {
			return nil, fmt.Errorf("build token service: %w", err)
		}
	}

	stores := app.Stores{}
	var db *sql.DB
	if cfg.Database.DSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		var err error
		db, err = database.Open(ctx, database.Config{
			Driver:                 cfg.Database.Driver,
			DSN:                    cfg.Database.DSN,
			MaxOpenConns:           cfg.Database.MaxOpenConns,
			MaxIdleConns:           cfg.Database.MaxIdleConns,
			ConnMaxLifetimeSeconds: cfg.Database.ConnMaxLifetimeSeconds,
		})
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := migrations.Apply(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}

		store := postgres.New(db)
		stores.Principals = store
		stores.Calculations = store
	} else {
		log.Warn("no database DSN configured; using in-memory store")
	}

	application, err := app.New(stores, tokens, log)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("build application: %w", err)
	}

	done := make(chan struct{})
	handler := buildHandler(cfg, log, application, done)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	return &Application{
		cfg:    cfg,
		log:    log,
		app:    application,
		server: server,
		db:     db,
		done:   done,
	}, nil
}

// buildHandler assembles the middleware chain around the API router:
// metrics outermost, then CORS, rate limiting, and the audit trail.
func buildHandler(cfg *config.Config, log *logger.Logger, application *app.Application, done <-chan struct{}) http.Handler {
	handler := httpapi.NewHandler(application)
	handler = httpapi.WrapWithAudit(handler, cfg.Audit.FilePath)

	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
		limiter.StartCleanup(time.Minute, done)
		handler = limiter.Handler(handler)
	}

	cors := middleware.NewCORSMiddleware(cfg.CORS.AllowedOrigins)
	handler = cors.Handler(handler)

	return metrics.InstrumentHandler(handler)
}

// App exposes the wired application services.
func (a *Application) App() *app.Application {
	return a.app
}

// Run starts the services and the HTTP server, blocking until the context is
// cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.cfg.Addr())
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server, the services, and the database.
func (a *Application) Shutdown(ctx context.Context) error {
	timeout := time.Duration(a.cfg.Server.ShutdownTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	close(a.done)

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("error stopping services")
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}
	return nil
}
