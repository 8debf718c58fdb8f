package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/itchan-dev/accounts/shared/api"
	"github.com/itchan-dev/accounts/shared/domain"
	mw "github.com/itchan-dev/accounts/shared/middleware"
	"github.com/itchan-dev/accounts/shared/utils"
)

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body api.RegisterRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	user, err := h.auth.Register(r.Context(), domain.Registration{
		Email:    body.Email,
		Password: body.Password,
		Name:     body.Name,
	})
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, user)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body api.LoginRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	tokens, err := h.auth.Login(r.Context(), domain.Credentials{Email: body.Email, Password: body.Password})
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	// browsers use the cookie, API clients the body
	h.setAccessCookie(w, tokens.AccessToken)
	utils.WriteJSON(w, http.StatusOK, api.NewTokensResponse(tokens))
}

// Token exchanges a refresh token for a new access token.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	var body api.RefreshRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	tokens, err := h.auth.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	h.setAccessCookie(w, tokens.AccessToken)
	utils.WriteJSON(w, http.StatusOK, api.NewTokensResponse(tokens))
}

// Logout revokes the caller's refresh token and the access token the request
// was authenticated with.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, err := requireSelf(r, chi.URLParam(r, "userId"), false)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	var body api.LogoutRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.auth.Logout(r.Context(), identity.UserId, body.RefreshToken, identity.AccessToken); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	h.clearAccessCookie(w)
	utils.WriteJSON(w, http.StatusOK, api.MessageResponse{Message: "You logged out"})
}

func (h *Handler) SendVerificationEmail(w http.ResponseWriter, r *http.Request) {
	var body api.EmailRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.auth.SendVerificationEmail(r.Context(), body.Email); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.MessageResponse{Message: "Verification email sent"})
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var body api.VerifyEmailRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.auth.VerifyEmail(r.Context(), body.Token); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.MessageResponse{Message: "Email verified. You can login now"})
}

// ResetPassword sends the reset password email.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var body api.EmailRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.auth.SendResetPasswordEmail(r.Context(), body.Email); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.MessageResponse{Message: "Reset password email sent"})
}

// ChangePassword serves both flows: a reset token in the body wins, otherwise
// the authenticated caller changes their own password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var body api.ChangePasswordRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	var identifier domain.PasswordChangeIdentifier
	if body.Token != "" {
		identifier.ResetToken = body.Token
	} else if identity := mw.GetUserFromContext(r); identity != nil {
		identifier.UserId = identity.UserId
	}

	if err := h.auth.ChangePassword(r.Context(), identifier, body.Password); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.MessageResponse{Message: "Password changed"})
}
