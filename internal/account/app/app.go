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

	httpapi "github.com/keyhavenhq/accountd/internal/account/http"
	"github.com/keyhavenhq/accountd/internal/account/mail"
	"github.com/keyhavenhq/accountd/internal/account/obs"
	"github.com/keyhavenhq/accountd/internal/account/service"
	"github.com/keyhavenhq/accountd/internal/account/store"
	"github.com/keyhavenhq/accountd/internal/account/store/drivers/sqlite"
	"github.com/keyhavenhq/accountd/pkg/cryptox"
	"github.com/keyhavenhq/accountd/pkg/jwtx"
	"github.com/keyhavenhq/accountd/pkg/slogx"
)

// BuildVersion should be overridden at build time via ldflags.
var BuildVersion = "v0.1.0"

// Application wires the account service together: store, signing keys,
// services, HTTP surface and background housekeeping.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db         store.Store
	keyManager *jwtx.KeyManager
	keyCipher  *cryptox.KeyCipher

	registrationService *service.RegistrationService
	sessionService      *service.SessionService
	accountService      *service.AccountService
	authorizer          *service.Authorizer
	keyRotationService  *service.KeyRotationService
	housekeeping        *service.HousekeepingService

	metrics *obs.Metrics
	server  *http.Server
	router  *httpapi.Router
}

// New builds a fully wired Application from the given config.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "accountd",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		metrics: obs.NewMetrics(),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	ctx := context.Background()
	keyManager, cipher, err := InitSigningKeys(ctx, cfg, app.db, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.keyManager = keyManager
	app.keyCipher = cipher

	app.initServices()
	app.initHTTP()

	if err := app.bootstrapAdmin(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	return app, nil
}

// Run starts the HTTP server and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeeping.Start()

	app.logger.Info("account service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"key_storage", app.cfg.KeyStorageMode,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}
	return nil
}

// Shutdown drains outstanding requests, stops housekeeping and closes the
// store.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down account service")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeeping.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("account service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied")
	return nil
}

func (app *Application) initServices() {
	hasher := cryptox.NewHasher(app.cfg.Pepper)
	mailer := mail.NewTemplateMailer(app.logger)

	app.registrationService = &service.RegistrationService{
		Store:       app.db,
		Hasher:      hasher,
		Mailer:      mailer,
		ExternalURL: app.cfg.ExternalURL,
	}
	app.sessionService = &service.SessionService{
		Store:      app.db,
		Hasher:     hasher,
		Keys:       app.keyManager,
		Issuer:     app.cfg.Issuer,
		SessionTTL: app.cfg.SessionTTL,
		APIKey:     app.cfg.APIKey,
	}
	app.accountService = &service.AccountService{Store: app.db}
	app.authorizer = &service.Authorizer{Verifier: app.keyManager.Verifier}

	rotation := &service.KeyRotationService{
		KeyManager:  app.keyManager,
		GracePeriod: app.cfg.KeyGracePeriod,
	}
	if app.cfg.KeyStorageMode == "persistent" {
		rotation.Store = app.db.SigningKeys()
		rotation.Cipher = app.keyCipher
	}
	app.keyRotationService = rotation

	app.housekeeping = service.NewHousekeepingService(
		app.db.SigningKeys(),
		app.keyManager.KeySet,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) initHTTP() {
	app.router = httpapi.NewRouter(
		app.keyManager.KeySet,
		BuildVersion,
		app.db,
		app.metrics,
		app.logger,
	)
	app.router.Registration = app.registrationService
	app.router.Session = app.sessionService
	app.router.Accounts = app.accountService
	app.router.Authorizer = app.authorizer
	app.router.ApplyRoutes()

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// bootstrapAdmin creates the configured admin account in confirmed state.
// Re-running against an existing account is a no-op.
func (app *Application) bootstrapAdmin(ctx context.Context) error {
	if app.cfg.AdminUser == "" {
		return nil
	}
	if err := app.registrationService.CreateAdminAccount(ctx, app.cfg.AdminUser, app.cfg.AdminPassword); err != nil {
		return fmt.Errorf("failed to bootstrap admin account: %w", err)
	}
	return nil
}
