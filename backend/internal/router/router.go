package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/itchan-dev/accounts/backend/internal/setup"
	mw "github.com/itchan-dev/accounts/shared/middleware"
	"github.com/itchan-dev/accounts/shared/middleware/metrics"
	rl "github.com/itchan-dev/accounts/shared/middleware/ratelimiter"
)

// New creates and configures a new chi router with all the routes.
// IMPORTANT! ratelimiters set with .Use limit request for all endpoints combined in that group
func New(deps *setup.Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(chimw.Compress(5))

	// setup CORS for frontend
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Public.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(mw.SecurityHeaders(deps.Config.Public.SecureCookies, mw.APIContentSecurityPolicy))

	h := deps.Handler
	authMw := deps.AuthMiddleware

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/users", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/token", h.Token)
		r.Post("/verify-email", h.VerifyEmail)

		// Login endpoint (separate rate limiting)
		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimit(rl.OncePerSecond(), mw.GetIP)) // 1 per second by IP
			r.Use(mw.GlobalRateLimit(rl.Rps100()))
			r.Post("/login", h.Login)
		})

		// Email sending endpoints
		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimit(rl.OncePerMinute(), mw.GetEmailFromBody)) // 1 per minute by address
			r.Use(mw.RateLimit(rl.New(1.0/10, 1, 1*time.Hour), mw.GetIP))
			r.Use(mw.GlobalRateLimit(rl.Rps100()))
			r.Post("/send-verification-email", h.SendVerificationEmail)
			r.Post("/reset-password", h.ResetPassword)
		})

		// Reset token or session, whichever the caller has
		r.With(authMw.OptionalAuth()).Post("/change-password", h.ChangePassword)

		r.Group(func(r chi.Router) {
			r.Use(authMw.NeedAuth())
			r.Use(mw.RateLimit(rl.Rps10(), mw.GetUserIDFromContext))
			r.Get("/me", h.Me)
			r.Post("/{userId}/logout", h.Logout)
			r.Patch("/{userId}", h.UpdateUser)
			r.Delete("/{userId}", h.DeleteUser)
		})
	})

	r.Route("/v1/admin/users", func(r chi.Router) {
		r.Use(authMw.AdminOnly())
		r.Get("/", h.ListUsers)
		r.Post("/{userId}/block", h.BlockUser)
		r.Delete("/{userId}/block", h.UnblockUser)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not found", http.StatusNotFound)
	})

	return r
}
