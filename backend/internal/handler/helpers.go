package handler

import (
	"net/http"
	"strconv"

	"github.com/itchan-dev/accounts/shared/errors"
	mw "github.com/itchan-dev/accounts/shared/middleware"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
)

// parseIntQuery reads an optional positive integer query parameter.
func parseIntQuery(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 1 {
		return 0, errors.InvalidOperation("Invalid %s: must be a positive integer", name)
	}
	return val, nil
}

// requireSelf returns the caller when it is the owner of userId.
// Admins pass when allowAdmin is set.
func requireSelf(r *http.Request, userId string, allowAdmin bool) (*mw.Identity, error) {
	identity := mw.GetUserFromContext(r)
	if identity == nil {
		return nil, errors.Unauthorized("Please sign-in")
	}
	if identity.UserId == userId || (allowAdmin && identity.IsAdmin()) {
		return identity, nil
	}
	return nil, errors.Forbidden("Access denied")
}

func (h *Handler) setAccessCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     mw.AccessTokenCookie,
		Value:    token,
		MaxAge:   int(h.cfg.AccessTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.Public.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearAccessCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     mw.AccessTokenCookie,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.Public.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
