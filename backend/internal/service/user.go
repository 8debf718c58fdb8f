package service

import (
	"context"

	"github.com/itchan-dev/accounts/shared/domain"
	"github.com/itchan-dev/accounts/shared/errors"
	"github.com/itchan-dev/accounts/shared/logger"
)

type UserService interface {
	FindUser(ctx context.Context, id domain.UserId) (domain.User, error)
	UpdateUser(ctx context.Context, id domain.UserId, name string) (domain.User, error)
	DeleteUser(ctx context.Context, id domain.UserId) error
	FindUsers(ctx context.Context, page, pageSize int) ([]domain.User, int, error)
	SetBlocked(ctx context.Context, id domain.UserId, blocked bool) (domain.User, error)
}

type Users struct {
	storage UserStorage
}

func NewUsers(storage UserStorage) *Users {
	return &Users{storage: storage}
}

func (u *Users) FindUser(ctx context.Context, id domain.UserId) (domain.User, error) {
	user, err := u.storage.FindUser(ctx, domain.UserQuery{Id: id})
	if err != nil {
		return domain.User{}, err
	}
	if user == nil {
		return domain.User{}, errors.NotFound("User")
	}
	return *user, nil
}

func (u *Users) UpdateUser(ctx context.Context, id domain.UserId, name string) (domain.User, error) {
	user, err := u.storage.FindUser(ctx, domain.UserQuery{Id: id})
	if err != nil {
		return domain.User{}, err
	}
	if user == nil {
		return domain.User{}, errors.InvalidOperation("User not found")
	}

	user.Name = name
	return u.storage.UpdateUser(ctx, *user)
}

func (u *Users) DeleteUser(ctx context.Context, id domain.UserId) error {
	user, err := u.storage.FindUser(ctx, domain.UserQuery{Id: id})
	if err != nil {
		return err
	}
	if user == nil {
		return errors.NotFound("User")
	}
	if err := u.storage.DeleteUser(ctx, id); err != nil {
		return err
	}
	logger.Log.Info("user deleted", "user_id", id)
	return nil
}

// FindUsers returns a page of users together with the total user count.
func (u *Users) FindUsers(ctx context.Context, page, pageSize int) ([]domain.User, int, error) {
	users, err := u.storage.FindUsers(ctx, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	total, err := u.storage.CountUsers(ctx)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// SetBlocked blocks or unblocks a user. Blocked users can't log in or refresh
// tokens.
func (u *Users) SetBlocked(ctx context.Context, id domain.UserId, blocked bool) (domain.User, error) {
	user, err := u.storage.FindUser(ctx, domain.UserQuery{Id: id})
	if err != nil {
		return domain.User{}, err
	}
	if user == nil {
		return domain.User{}, errors.NotFound("User")
	}
	if user.IsBlocked == blocked {
		return *user, nil
	}

	user.IsBlocked = blocked
	updated, err := u.storage.UpdateUser(ctx, *user)
	if err != nil {
		return domain.User{}, err
	}
	logger.Log.Info("user block status changed", "user_id", id, "blocked", blocked)
	return updated, nil
}
