package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/itchan-dev/accounts/shared/errors"
	"github.com/itchan-dev/accounts/shared/middleware/ratelimiter"
	"github.com/itchan-dev/accounts/shared/utils"
)

// maxIdentityBody bounds how much of a body is buffered to find the email.
const maxIdentityBody = 1 << 16

func RateLimit(rl *ratelimiter.KeyedRateLimiter, getIdentity func(r *http.Request) (string, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if identity := GetUserFromContext(r); identity != nil && identity.IsAdmin() { // disable for admin
				next.ServeHTTP(w, r)
				return
			}

			key, err := getIdentity(r)
			if err != nil {
				utils.WriteErrorAndStatusCode(w, err)
				return
			}
			if !rl.Allow(key) {
				http.Error(w, "Rate limit exceeded, try again later", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func GlobalRateLimit(rl *ratelimiter.KeyedRateLimiter) func(http.Handler) http.Handler {
	return RateLimit(rl, func(r *http.Request) (string, error) { return "global", nil })
}

// GetUserIDFromContext keys by the authenticated user. Needs the auth middleware first.
func GetUserIDFromContext(r *http.Request) (string, error) {
	identity := GetUserFromContext(r)
	if identity == nil {
		return "", errors.Unauthorized("Please sign-in")
	}
	return "user_" + identity.UserId, nil
}

// GetIP extracts the client IP from RemoteAddr.
// X-Real-IP and X-Forwarded-For are ignored, they are client controlled.
func GetIP(r *http.Request) (string, error) {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("invalid IP address: %s", ip)
	}
	return ip, nil
}

// GetEmailFromBody keys by the "email" field of a JSON body. The body is
// restored so the handler can decode it again.
func GetEmailFromBody(r *http.Request) (string, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIdentityBody))
	if err != nil {
		return "", errors.InvalidOperation("Failed to read request body")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var data struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return "", errors.InvalidOperation("Body is invalid json")
	}
	if data.Email == "" {
		return "", errors.InvalidOperation("Email field is required")
	}
	return strings.ToLower(data.Email), nil
}
