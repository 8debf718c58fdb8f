package api

import "github.com/itchan-dev/accounts/shared/domain"

// Request DTOs

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,max=254,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,max=254,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// EmailRequest is the body of endpoints that only need an address:
// send-verification-email and reset-password.
type EmailRequest struct {
	Email string `json:"email" validate:"required,max=254,email"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// ChangePasswordRequest carries a reset token for anonymous callers.
// Authenticated callers leave it empty.
type ChangePasswordRequest struct {
	Password string `json:"password" validate:"required"`
	Token    string `json:"token,omitempty"`
}

// Response DTOs

type TokensResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"` // seconds
}

func NewTokensResponse(tokens domain.Tokens) TokensResponse {
	return TokensResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    int64(tokens.ExpiresIn.Seconds()),
	}
}

type MessageResponse struct {
	Message string `json:"message"`
}
