// Package app wires configuration, storage and services into the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/pinnity/pinnity/internal/api"
	"github.com/pinnity/pinnity/internal/audit"
	"github.com/pinnity/pinnity/internal/auth"
	"github.com/pinnity/pinnity/internal/config"
	"github.com/pinnity/pinnity/internal/database"
	"github.com/pinnity/pinnity/internal/repository"
	"github.com/pinnity/pinnity/internal/rpc"
	"github.com/pinnity/pinnity/internal/service"
	"github.com/pinnity/pinnity/internal/storage"
)

// NewLogger builds the process logger: JSON in production, text elsewhere.
func NewLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.App.SlogLevel()}
	var h slog.Handler
	if cfg.App.IsProduction() {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(h).With("service", "pinnity")
}

// App holds every long-lived dependency of a Pinnity process.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Store  repository.Store
	Tokens *auth.TokenManager
	Images storage.ObjectStore
	Audit  audit.Recorder

	Auth          *service.AuthService
	Businesses    *service.BusinessService
	Deals         *service.DealService
	Moderation    *service.ModerationService
	Redemptions   *service.RedemptionService
	Favorites     *service.FavoriteService
	Notifications *service.NotificationService
	Admin         *service.AdminService
	Repair        *service.RepairService

	closers []func(context.Context) error
}

// New connects to PostgreSQL and builds the app on top of it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := database.NewDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a, err := NewWithStore(ctx, cfg, logger, repository.NewPostgres(db.Postgres))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return db.Close() })
	return a, nil
}

// NewWithStore builds the app on an existing store.
func NewWithStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, store repository.Store) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Store: store}

	switch cfg.Audit.Driver {
	case "mongo":
		rec, err := audit.NewMongoRecorder(ctx, cfg.Audit.MongoURI, cfg.Audit.Database, cfg.Audit.Collection)
		if err != nil {
			return nil, err
		}
		a.Audit = rec
		a.closers = append(a.closers, rec.Close)
		logger.Info("audit trail stored in mongo", "database", cfg.Audit.Database, "collection", cfg.Audit.Collection)
	case "none":
		a.Audit = audit.Nop
	default:
		a.Audit = audit.NewLogRecorder(logger)
	}

	images, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, a.closeWith(ctx, err)
	}
	a.Images = images

	tokens, err := auth.NewTokenManager(cfg.JWTSecretOrDefault(), cfg.Auth.TokenTTL)
	if err != nil {
		return nil, a.closeWith(ctx, err)
	}
	a.Tokens = tokens

	codes, err := service.NewCodeGenerator(cfg.Redemption.CodeSecret)
	if err != nil {
		return nil, a.closeWith(ctx, err)
	}

	opts := []service.Option{service.WithLogger(logger), service.WithAudit(a.Audit)}
	a.Auth = service.NewAuthService(store, auth.NewHasher(cfg.Auth.BcryptCost), tokens, opts...)
	a.Businesses = service.NewBusinessService(store, opts...)
	a.Deals = service.NewDealService(store, codes, images, opts...)
	a.Moderation = service.NewModerationService(store, opts...)
	a.Redemptions = service.NewRedemptionService(store, service.RedemptionPolicy{EnforceLimits: cfg.Redemption.EnforceLimits}, opts...)
	a.Favorites = service.NewFavoriteService(store, opts...)
	a.Notifications = service.NewNotificationService(store, opts...)
	a.Admin = service.NewAdminService(store, opts...)
	a.Repair = service.NewRepairService(store, int(cfg.RateLimit.RepairRPS), opts...)

	if !cfg.Redemption.EnforceLimits {
		logger.Warn("redemption limits are not enforced")
	}
	return a, nil
}

func (a *App) closeWith(ctx context.Context, err error) error {
	return errors.Join(err, a.Close(ctx))
}

// Handler serves the REST API at / and the moderation RPC service under
// its connect path, over HTTP/1.1 and h2c.
func (a *App) Handler() http.Handler {
	deps := api.Deps{
		Store:          a.Store,
		Tokens:         a.Tokens,
		Logger:         a.Logger,
		Auth:           a.Auth,
		Businesses:     a.Businesses,
		Deals:          a.Deals,
		Moderation:     a.Moderation,
		Redemptions:    a.Redemptions,
		Favorites:      a.Favorites,
		Notifications:  a.Notifications,
		Admin:          a.Admin,
		CORSOrigins:    a.Config.Server.CORSOrigins,
		RateLimitRPS:   a.Config.RateLimit.RPS,
		RateLimitBurst: a.Config.RateLimit.Burst,
		MaxUploadBytes: int64(a.Config.Storage.MaxUploadMB) << 20,
	}
	if mem, ok := a.Images.(*storage.MemoryStore); ok {
		deps.Images = mem
	}

	mux := http.NewServeMux()
	path, handler := rpc.NewModerationHandler(
		rpc.NewModerationServer(a.Moderation, a.Logger),
		connect.WithInterceptors(rpc.AdminInterceptor(a.Tokens, a.Auth)),
	)
	mux.Handle(path, handler)
	mux.Handle("/", api.NewRouter(deps))

	return h2c.NewHandler(mux, &http2.Server{
		MaxConcurrentStreams: 1000,
	})
}

// Close releases connections in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("app: close: %w", errors.Join(errs...))
	}
	return nil
}
