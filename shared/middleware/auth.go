package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/itchan-dev/accounts/shared/domain"
	"github.com/itchan-dev/accounts/shared/errors"
	jwt_internal "github.com/itchan-dev/accounts/shared/jwt"
	"github.com/itchan-dev/accounts/shared/logger"
	"github.com/itchan-dev/accounts/shared/utils"
)

// BlacklistCache interface defines methods needed by auth middleware
type BlacklistCache interface {
	IsBlacklisted(token string) bool
}

// Identity is the authenticated caller taken from a valid access token.
type Identity struct {
	UserId      domain.UserId
	Role        domain.Role
	AccessToken string
}

func (i *Identity) IsAdmin() bool {
	return i.Role == domain.RoleAdmin
}

// Key to store the identity in the request context
type key int

const UserClaimsKey key = 0

const AccessTokenCookie = "accessToken"

// Auth holds dependencies for authentication middleware
type Auth struct {
	jwtService     jwt_internal.JwtService
	blacklistCache BlacklistCache
	secureCookies  bool
}

func NewAuth(jwtService jwt_internal.JwtService, blacklistCache BlacklistCache, secureCookies bool) *Auth {
	return &Auth{
		jwtService:     jwtService,
		blacklistCache: blacklistCache,
		secureCookies:  secureCookies,
	}
}

// NeedAuth returns middleware that requires a valid access token
func (a *Auth) NeedAuth() func(http.Handler) http.Handler {
	return a.auth(false)
}

// AdminOnly returns middleware that requires an admin access token
func (a *Auth) AdminOnly() func(http.Handler) http.Handler {
	return a.auth(true)
}

// OptionalAuth populates the identity if the token is valid, but doesn't require auth
func (a *Auth) OptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := a.extractIdentity(r)
			if err == nil {
				next.ServeHTTP(w, withIdentity(r, identity))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Sentinel errors for extractIdentity
var (
	errNoToken     = errors.Unauthorized("Please sign-in")
	errInvalid     = errors.Unauthorized("Invalid token")
	errWrongType   = errors.Unauthorized("Token type is not access token")
	errBlacklisted = errors.Unauthorized("Token is revoked")
)

// tokenFromRequest prefers the Authorization header (API clients) and falls
// back to the cookie (browsers).
func tokenFromRequest(r *http.Request) string {
	if token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); found {
		return strings.TrimSpace(token)
	}
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func (a *Auth) extractIdentity(r *http.Request) (*Identity, error) {
	tokenString := tokenFromRequest(r)
	if tokenString == "" {
		return nil, errNoToken
	}

	payload, err := a.jwtService.VerifyToken(tokenString)
	if err != nil {
		return nil, errInvalid
	}
	access, ok := payload.(jwt_internal.AccessToken)
	if !ok {
		return nil, errWrongType
	}
	if access.UserId == "" {
		return nil, errInvalid
	}

	if a.blacklistCache != nil && a.blacklistCache.IsBlacklisted(tokenString) {
		return nil, errBlacklisted
	}

	return &Identity{UserId: access.UserId, Role: access.Role, AccessToken: tokenString}, nil
}

func (a *Auth) auth(adminOnly bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := a.extractIdentity(r)
			if err != nil {
				if err == errBlacklisted {
					// Clear the cookie to force re-login
					a.clearCookie(w)
					logger.Log.Info("rejected revoked access token", "path", r.URL.Path)
				}
				utils.WriteErrorAndStatusCode(w, err)
				return
			}

			if adminOnly && !identity.IsAdmin() {
				utils.WriteErrorAndStatusCode(w, errors.Forbidden("Access denied. Only for admin"))
				return
			}

			next.ServeHTTP(w, withIdentity(r, identity))
		})
	}
}

func (a *Auth) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     AccessTokenCookie,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func withIdentity(r *http.Request, identity *Identity) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), UserClaimsKey, identity))
}

// GetUserFromContext returns the identity set by the auth middleware, or nil.
func GetUserFromContext(r *http.Request) *Identity {
	identity, ok := r.Context().Value(UserClaimsKey).(*Identity)
	if !ok {
		return nil
	}
	return identity
}
