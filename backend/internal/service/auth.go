package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/itchan-dev/accounts/shared/config"
	"github.com/itchan-dev/accounts/shared/domain"
	"github.com/itchan-dev/accounts/shared/errors"
	"github.com/itchan-dev/accounts/shared/jwt"
	"github.com/itchan-dev/accounts/shared/logger"
)

type AuthService interface {
	Register(ctx context.Context, reg domain.Registration) (domain.User, error)
	Login(ctx context.Context, creds domain.Credentials) (domain.Tokens, error)
	Logout(ctx context.Context, userId domain.UserId, refreshToken, accessToken string) error
	Refresh(ctx context.Context, refreshToken string) (domain.Tokens, error)
	SendVerificationEmail(ctx context.Context, email domain.Email) error
	VerifyEmail(ctx context.Context, token string) error
	SendResetPasswordEmail(ctx context.Context, email domain.Email) error
	ChangePassword(ctx context.Context, identifier domain.PasswordChangeIdentifier, newPassword domain.Password) error
}

type UserStorage interface {
	FindUser(ctx context.Context, query domain.UserQuery) (*domain.User, error)
	InsertUser(ctx context.Context, draft domain.UserDraft) (domain.User, error)
	UpdateUser(ctx context.Context, user domain.User) (domain.User, error)
	FindUsers(ctx context.Context, page, pageSize int) ([]domain.User, error)
	CountUsers(ctx context.Context) (int, error)
	DeleteUser(ctx context.Context, id domain.UserId) error
}

type BlacklistStorage interface {
	CreateBlacklistEntry(ctx context.Context, token string, expiresAt time.Time) (domain.BlacklistEntry, error)
	FindBlacklistEntry(ctx context.Context, token string) (*domain.BlacklistEntry, error)
}

// EmailOutbox is the only way actions cause an email to be sent.
type EmailOutbox interface {
	CreateEmailEvent(ctx context.Context, draft domain.EmailEventDraft) (domain.EmailEvent, error)
}

// BlacklistCache is refreshed after logout so revoked access tokens are
// rejected right away.
type BlacklistCache interface {
	Update(ctx context.Context) error
}

type Auth struct {
	users          UserStorage
	blacklist      BlacklistStorage
	outbox         EmailOutbox
	hasher         PasswordHasher
	jwt            jwt.JwtService
	passwordPolicy PasswordPolicy
	cfg            *config.Public
	blacklistCache BlacklistCache
}

func NewAuth(
	users UserStorage,
	blacklist BlacklistStorage,
	outbox EmailOutbox,
	hasher PasswordHasher,
	jwtService jwt.JwtService,
	cfg *config.Public,
	blacklistCache BlacklistCache,
) *Auth {
	return &Auth{
		users:          users,
		blacklist:      blacklist,
		outbox:         outbox,
		hasher:         hasher,
		jwt:            jwtService,
		passwordPolicy: NewPasswordPolicy(cfg.Password),
		cfg:            cfg,
		blacklistCache: blacklistCache,
	}
}

// Register creates an unverified user and queues the verification email.
func (a *Auth) Register(ctx context.Context, reg domain.Registration) (domain.User, error) {
	email := strings.ToLower(reg.Email)
	logger.Log.Debug("registering user", "email", email)

	existing, err := a.users.FindUser(ctx, domain.UserQuery{Email: email})
	if err != nil {
		return domain.User{}, err
	}
	if existing != nil {
		return domain.User{}, errors.AlreadyExists("User")
	}

	if err := a.passwordPolicy.Validate(reg.Password); err != nil {
		return domain.User{}, err
	}

	passHash, err := a.hasher.Hash(ctx, reg.Password)
	if err != nil {
		logger.Log.Error("failed to hash password", "error", err)
		return domain.User{}, err
	}

	user, err := a.users.InsertUser(ctx, domain.UserDraft{
		Email:           email,
		PassHash:        passHash,
		Name:            reg.Name,
		IsEmailVerified: false,
		IsBlocked:       false,
		Role:            domain.RoleUser,
	})
	if err != nil {
		return domain.User{}, err
	}
	logger.Log.Info("user registered", "user_id", user.Id)

	// only after the user row exists
	if err := a.enqueueVerificationEmail(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// Login checks credentials and issues an access and a refresh token.
// Unknown email and wrong password fail with the same error to not leak
// existing users.
func (a *Auth) Login(ctx context.Context, creds domain.Credentials) (domain.Tokens, error) {
	email := strings.ToLower(creds.Email)

	user, err := a.users.FindUser(ctx, domain.UserQuery{Email: email})
	if err != nil {
		return domain.Tokens{}, err
	}
	if user == nil {
		return domain.Tokens{}, errors.Unauthorized("Invalid credentials")
	}
	if !a.hasher.Compare(ctx, creds.Password, user.PassHash) {
		logger.Log.Info("login failed: wrong password", "user_id", user.Id)
		return domain.Tokens{}, errors.Unauthorized("Invalid credentials")
	}
	if !user.IsEmailVerified {
		return domain.Tokens{}, errors.Forbidden("User email is not verified")
	}
	if user.IsBlocked {
		return domain.Tokens{}, errors.Forbidden("User is blocked")
	}

	accessToken, err := a.jwt.NewToken(jwt.AccessToken{UserId: user.Id, Role: user.Role}, a.cfg.Token.AccessTTL)
	if err != nil {
		return domain.Tokens{}, err
	}
	refreshToken, err := a.jwt.NewToken(jwt.RefreshToken{UserId: user.Id}, a.cfg.Token.RefreshTTL)
	if err != nil {
		return domain.Tokens{}, err
	}

	logger.Log.Info("user logged in", "user_id", user.Id)
	return domain.Tokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    a.cfg.Token.AccessTTL,
	}, nil
}

// Logout blacklists both tokens until their own expiry.
func (a *Auth) Logout(ctx context.Context, userId domain.UserId, refreshToken, accessToken string) error {
	user, err := a.users.FindUser(ctx, domain.UserQuery{Id: userId})
	if err != nil {
		return err
	}
	if user == nil {
		return errors.InvalidOperation("User not found")
	}

	refreshPayload, refreshExpiresAt, err := a.jwt.DecodeToken(refreshToken)
	if err != nil || refreshPayload.Type() != jwt.RefreshTokenType {
		return errors.InvalidOperation("Token type is not refresh token")
	}
	accessPayload, accessExpiresAt, err := a.jwt.DecodeToken(accessToken)
	if err != nil || accessPayload.Type() != jwt.AccessTokenType {
		return errors.InvalidOperation("Token type is not access token")
	}
	if refreshPayload.Subject() != user.Id || accessPayload.Subject() != user.Id {
		return errors.InvalidOperation("Tokens do not belong to the user")
	}

	if err := a.blacklistToken(ctx, refreshToken, refreshExpiresAt); err != nil {
		return err
	}
	if err := a.blacklistToken(ctx, accessToken, accessExpiresAt); err != nil {
		return err
	}

	if a.blacklistCache != nil {
		if err := a.blacklistCache.Update(ctx); err != nil {
			logger.Log.Error("failed to refresh blacklist cache after logout", "user_id", user.Id, "error", err)
		}
	}
	logger.Log.Info("user logged out", "user_id", user.Id)
	return nil
}

// Refresh issues a new access token. The refresh token itself is returned
// unchanged.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (domain.Tokens, error) {
	entry, err := a.blacklist.FindBlacklistEntry(ctx, refreshToken)
	if err != nil {
		return domain.Tokens{}, err
	}
	if entry != nil {
		return domain.Tokens{}, errors.InvalidOperation("Refresh token is blacklisted")
	}

	payload, err := a.jwt.VerifyToken(refreshToken)
	if err != nil {
		return domain.Tokens{}, errors.InvalidOperation("Invalid refresh token")
	}
	if payload.Type() != jwt.RefreshTokenType {
		return domain.Tokens{}, errors.InvalidOperation("Token type is not refresh token")
	}
	userId := payload.Subject()
	if userId == "" {
		return domain.Tokens{}, errors.InvalidOperation("Refresh token does not contain userId")
	}

	user, err := a.users.FindUser(ctx, domain.UserQuery{Id: userId})
	if err != nil {
		return domain.Tokens{}, err
	}
	if user == nil {
		return domain.Tokens{}, errors.InvalidOperation("User not found")
	}
	if user.IsBlocked {
		return domain.Tokens{}, errors.InvalidOperation("User is blocked")
	}

	accessToken, err := a.jwt.NewToken(jwt.AccessToken{UserId: user.Id, Role: user.Role}, a.cfg.Token.AccessTTL)
	if err != nil {
		return domain.Tokens{}, err
	}
	return domain.Tokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    a.cfg.Token.AccessTTL,
	}, nil
}

func (a *Auth) SendVerificationEmail(ctx context.Context, email domain.Email) error {
	user, err := a.users.FindUser(ctx, domain.UserQuery{Email: strings.ToLower(email)})
	if err != nil {
		return err
	}
	if user == nil {
		return errors.InvalidOperation("User not found")
	}
	if user.IsEmailVerified {
		return errors.InvalidOperation("User email already verified")
	}
	return a.enqueueVerificationEmail(ctx, *user)
}

func (a *Auth) VerifyEmail(ctx context.Context, token string) error {
	payload, err := a.jwt.VerifyToken(token)
	if err != nil {
		return errors.InvalidOperation("Invalid email verification token")
	}
	if payload.Type() != jwt.EmailVerificationTokenType {
		return errors.InvalidOperation("Token type is not email verification token")
	}

	user, err := a.users.FindUser(ctx, domain.UserQuery{Id: payload.Subject()})
	if err != nil {
		return err
	}
	if user == nil {
		return errors.InvalidOperation("User not found")
	}
	if user.IsEmailVerified {
		return errors.InvalidOperation("User email already verified")
	}

	user.IsEmailVerified = true
	if _, err := a.users.UpdateUser(ctx, *user); err != nil {
		return err
	}
	logger.Log.Info("user email verified", "user_id", user.Id)
	return nil
}

func (a *Auth) SendResetPasswordEmail(ctx context.Context, email domain.Email) error {
	user, err := a.users.FindUser(ctx, domain.UserQuery{Email: strings.ToLower(email)})
	if err != nil {
		return err
	}
	if user == nil {
		return errors.InvalidOperation("User not found")
	}
	if user.IsBlocked {
		return errors.InvalidOperation("User is blocked")
	}

	token, err := a.jwt.NewToken(jwt.PasswordResetToken{UserId: user.Id}, a.cfg.Token.ResetPasswordTTL)
	if err != nil {
		return err
	}
	return a.enqueueEmail(ctx, domain.EmailEventResetPassword, *user, a.link("reset-password", token))
}

// ChangePassword sets a new password for the user identified either by id
// (authenticated flow) or by a reset token (anonymous flow). A reset token is
// burned only after the new password is stored.
func (a *Auth) ChangePassword(ctx context.Context, identifier domain.PasswordChangeIdentifier, newPassword domain.Password) error {
	hasUserId := identifier.UserId != ""
	hasToken := identifier.ResetToken != ""
	if hasUserId == hasToken {
		return errors.InvalidOperation("Either user id or reset password token must be provided")
	}

	userId := identifier.UserId
	if hasToken {
		var err error
		userId, err = a.verifyResetPasswordToken(ctx, identifier.ResetToken)
		if err != nil {
			return err
		}
	}

	user, err := a.users.FindUser(ctx, domain.UserQuery{Id: userId})
	if err != nil {
		return err
	}
	if user == nil {
		return errors.InvalidOperation("User not found")
	}
	if user.IsBlocked {
		return errors.InvalidOperation("User is blocked")
	}

	if err := a.passwordPolicy.Validate(newPassword); err != nil {
		return err
	}
	passHash, err := a.hasher.Hash(ctx, newPassword)
	if err != nil {
		logger.Log.Error("failed to hash password", "error", err)
		return err
	}
	user.PassHash = passHash
	if _, err := a.users.UpdateUser(ctx, *user); err != nil {
		return err
	}

	if hasToken {
		_, expiresAt, err := a.jwt.DecodeToken(identifier.ResetToken)
		if err != nil {
			return errors.InvalidOperation("Invalid reset password token")
		}
		if _, err := a.blacklist.CreateBlacklistEntry(ctx, identifier.ResetToken, expiresAt); err != nil {
			return err
		}
	}

	logger.Log.Info("user password changed", "user_id", user.Id, "via_reset_token", hasToken)
	return nil
}

func (a *Auth) verifyResetPasswordToken(ctx context.Context, token string) (domain.UserId, error) {
	payload, err := a.jwt.VerifyToken(token)
	if err != nil {
		return "", errors.InvalidOperation("Invalid reset password token")
	}

	entry, err := a.blacklist.FindBlacklistEntry(ctx, token)
	if err != nil {
		return "", err
	}
	if entry != nil {
		return "", errors.InvalidOperation("Reset password token is already used")
	}

	if payload.Type() != jwt.PasswordResetTokenType || payload.Subject() == "" {
		return "", errors.InvalidOperation("Invalid reset password token")
	}
	return payload.Subject(), nil
}

func (a *Auth) enqueueVerificationEmail(ctx context.Context, user domain.User) error {
	token, err := a.jwt.NewToken(jwt.EmailVerificationToken{UserId: user.Id}, a.cfg.Token.EmailVerificationTTL)
	if err != nil {
		return err
	}
	return a.enqueueEmail(ctx, domain.EmailEventVerifyEmail, user, a.link("verify-email", token))
}

func (a *Auth) enqueueEmail(ctx context.Context, name domain.EmailEventName, user domain.User, link string) error {
	event, err := a.outbox.CreateEmailEvent(ctx, domain.EmailEventDraft{
		EventName: name,
		Payload: domain.EmailPayload{
			RecipientEmail: user.Email,
			Name:           user.Name,
			Link:           link,
		},
	})
	if err != nil {
		return err
	}
	logger.Log.Debug("email event queued", "event_id", event.Id, "event", name, "user_id", user.Id)
	return nil
}

func (a *Auth) link(path, token string) string {
	return strings.TrimRight(a.cfg.FrontendUrl, "/") + "/" + path + "?token=" + url.QueryEscape(token)
}

// blacklistToken ignores tokens that are already blacklisted.
func (a *Auth) blacklistToken(ctx context.Context, token string, expiresAt time.Time) error {
	_, err := a.blacklist.CreateBlacklistEntry(ctx, token, expiresAt)
	if err != nil && !errors.Is(err, errors.KindAlreadyExists) {
		return err
	}
	return nil
}
