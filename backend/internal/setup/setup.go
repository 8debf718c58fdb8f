package setup

import (
	"context"

	"github.com/itchan-dev/accounts/backend/internal/handler"
	"github.com/itchan-dev/accounts/backend/internal/service"
	"github.com/itchan-dev/accounts/backend/internal/storage/pg"
	"github.com/itchan-dev/accounts/backend/internal/utils/email"
	"github.com/itchan-dev/accounts/shared/blacklist"
	"github.com/itchan-dev/accounts/shared/config"
	"github.com/itchan-dev/accounts/shared/domain"
	"github.com/itchan-dev/accounts/shared/jwt"
	mw "github.com/itchan-dev/accounts/shared/middleware"
)

// Dependencies struct to hold all initialized dependencies.
type Dependencies struct {
	Config         *config.Config
	Storage        *pg.Storage
	Handler        *handler.Handler
	AuthMiddleware *mw.Auth
	BlacklistCache *blacklist.Cache
	Dispatcher     *service.OutboxDispatcher
}

// SetupDependencies initializes all dependencies required for the application.
// The schema is migrated before anything else touches the database.
func SetupDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	storage, err := pg.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(ctx); err != nil {
		storage.Cleanup()
		return nil, err
	}

	blacklistCache := blacklist.NewCache(storage)
	jwtService := jwt.New(cfg.JwtKey())
	hasher := service.NewHasher(cfg.Public.HashSaltRounds)

	auth := service.NewAuth(storage, storage, storage, hasher, jwtService, &cfg.Public, blacklistCache)
	users := service.NewUsers(storage)

	sender := email.New(&cfg.Private.Email)
	emailHandler := service.NewEmailHandler(sender, service.NewEmailRenderer())
	dispatcher := service.NewOutboxDispatcher(
		service.NewEmailChannel(storage, cfg.Public.Outbox.BatchSize, cfg.Public.Outbox.MaxAttempts),
	)
	dispatcher.Register(string(domain.EmailEventVerifyEmail), emailHandler)
	dispatcher.Register(string(domain.EmailEventResetPassword), emailHandler)

	return &Dependencies{
		Config:         cfg,
		Storage:        storage,
		Handler:        handler.New(auth, users, storage, cfg),
		AuthMiddleware: mw.NewAuth(jwtService, blacklistCache, cfg.Public.SecureCookies),
		BlacklistCache: blacklistCache,
		Dispatcher:     dispatcher,
	}, nil
}
