package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/itchan-dev/accounts/shared/config"
	"github.com/itchan-dev/accounts/shared/domain"
	mw "github.com/itchan-dev/accounts/shared/middleware"
)

// --- Mocks ---

type MockAuthService struct {
	MockRegister               func(ctx context.Context, reg domain.Registration) (domain.User, error)
	MockLogin                  func(ctx context.Context, creds domain.Credentials) (domain.Tokens, error)
	MockLogout                 func(ctx context.Context, userId domain.UserId, refreshToken, accessToken string) error
	MockRefresh                func(ctx context.Context, refreshToken string) (domain.Tokens, error)
	MockSendVerificationEmail  func(ctx context.Context, email domain.Email) error
	MockVerifyEmail            func(ctx context.Context, token string) error
	MockSendResetPasswordEmail func(ctx context.Context, email domain.Email) error
	MockChangePassword         func(ctx context.Context, identifier domain.PasswordChangeIdentifier, newPassword domain.Password) error
}

func (m *MockAuthService) Register(ctx context.Context, reg domain.Registration) (domain.User, error) {
	if m.MockRegister != nil {
		return m.MockRegister(ctx, reg)
	}
	return domain.User{}, nil
}

func (m *MockAuthService) Login(ctx context.Context, creds domain.Credentials) (domain.Tokens, error) {
	if m.MockLogin != nil {
		return m.MockLogin(ctx, creds)
	}
	return domain.Tokens{}, nil
}

func (m *MockAuthService) Logout(ctx context.Context, userId domain.UserId, refreshToken, accessToken string) error {
	if m.MockLogout != nil {
		return m.MockLogout(ctx, userId, refreshToken, accessToken)
	}
	return nil
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (domain.Tokens, error) {
	if m.MockRefresh != nil {
		return m.MockRefresh(ctx, refreshToken)
	}
	return domain.Tokens{}, nil
}

func (m *MockAuthService) SendVerificationEmail(ctx context.Context, email domain.Email) error {
	if m.MockSendVerificationEmail != nil {
		return m.MockSendVerificationEmail(ctx, email)
	}
	return nil
}

func (m *MockAuthService) VerifyEmail(ctx context.Context, token string) error {
	if m.MockVerifyEmail != nil {
		return m.MockVerifyEmail(ctx, token)
	}
	return nil
}

func (m *MockAuthService) SendResetPasswordEmail(ctx context.Context, email domain.Email) error {
	if m.MockSendResetPasswordEmail != nil {
		return m.MockSendResetPasswordEmail(ctx, email)
	}
	return nil
}

func (m *MockAuthService) ChangePassword(ctx context.Context, identifier domain.PasswordChangeIdentifier, newPassword domain.Password) error {
	if m.MockChangePassword != nil {
		return m.MockChangePassword(ctx, identifier, newPassword)
	}
	return nil
}

type MockUserService struct {
	MockFindUser   func(ctx context.Context, id domain.UserId) (domain.User, error)
	MockUpdateUser func(ctx context.Context, id domain.UserId, name string) (domain.User, error)
	MockDeleteUser func(ctx context.Context, id domain.UserId) error
	MockFindUsers  func(ctx context.Context, page, pageSize int) ([]domain.User, int, error)
	MockSetBlocked func(ctx context.Context, id domain.UserId, blocked bool) (domain.User, error)
}

func (m *MockUserService) FindUser(ctx context.Context, id domain.UserId) (domain.User, error) {
	if m.MockFindUser != nil {
		return m.MockFindUser(ctx, id)
	}
	return domain.User{Id: id}, nil
}

func (m *MockUserService) UpdateUser(ctx context.Context, id domain.UserId, name string) (domain.User, error) {
	if m.MockUpdateUser != nil {
		return m.MockUpdateUser(ctx, id, name)
	}
	return domain.User{Id: id, Name: name}, nil
}

func (m *MockUserService) DeleteUser(ctx context.Context, id domain.UserId) error {
	if m.MockDeleteUser != nil {
		return m.MockDeleteUser(ctx, id)
	}
	return nil
}

func (m *MockUserService) FindUsers(ctx context.Context, page, pageSize int) ([]domain.User, int, error) {
	if m.MockFindUsers != nil {
		return m.MockFindUsers(ctx, page, pageSize)
	}
	return nil, 0, nil
}

func (m *MockUserService) SetBlocked(ctx context.Context, id domain.UserId, blocked bool) (domain.User, error) {
	if m.MockSetBlocked != nil {
		return m.MockSetBlocked(ctx, id, blocked)
	}
	return domain.User{Id: id, IsBlocked: blocked}, nil
}

type MockHealthChecker struct {
	PingFunc func(ctx context.Context) error
}

func (m *MockHealthChecker) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// --- Helpers ---

func testConfig() *config.Config {
	return &config.Config{Public: config.Public{Token: config.Token{AccessTTL: time.Hour}}}
}

func createRequest(t *testing.T, method, url string, body []byte, cookies ...*http.Cookie) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, url, bytes.NewBuffer(body))
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

// withIdentity stands in for the auth middleware.
func withIdentity(identity *mw.Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if identity != nil {
				r = r.WithContext(context.WithValue(r.Context(), mw.UserClaimsKey, identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// setupRouter mounts every handler on the production paths. identity, when
// set, is injected as if authenticated.
func setupRouter(auth *MockAuthService, users *MockUserService, identity *mw.Identity) (*Handler, *chi.Mux) {
	h := New(auth, users, &MockHealthChecker{}, testConfig())
	r := chi.NewRouter()
	r.Use(withIdentity(identity))
	r.Route("/v1/users", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/token", h.Token)
		r.Post("/send-verification-email", h.SendVerificationEmail)
		r.Post("/verify-email", h.VerifyEmail)
		r.Post("/reset-password", h.ResetPassword)
		r.Post("/change-password", h.ChangePassword)
		r.Get("/me", h.Me)
		r.Post("/{userId}/logout", h.Logout)
		r.Patch("/{userId}", h.UpdateUser)
		r.Delete("/{userId}", h.DeleteUser)
	})
	r.Route("/v1/admin/users", func(r chi.Router) {
		r.Get("/", h.ListUsers)
		r.Post("/{userId}/block", h.BlockUser)
		r.Delete("/{userId}/block", h.UnblockUser)
	})
	return h, r
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
