package handler

import (
	"context"

	"github.com/itchan-dev/accounts/backend/internal/service"
	"github.com/itchan-dev/accounts/shared/config"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	auth   service.AuthService
	users  service.UserService
	health HealthChecker
	cfg    *config.Config
}

func New(auth service.AuthService, users service.UserService, health HealthChecker, cfg *config.Config) *Handler {
	return &Handler{
		auth:   auth,
		users:  users,
		health: health,
		cfg:    cfg,
	}
}
