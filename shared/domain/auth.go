package domain

import "time"

type Credentials struct {
	Email    Email
	Password Password
}

type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration // access token lifetime
}

type BlacklistEntry struct {
	Id        string
	Token     string
	ExpiresAt time.Time
}

// PasswordChangeIdentifier names the account whose password changes: either
// an authenticated user id or a password reset token, never both.
type PasswordChangeIdentifier struct {
	UserId     UserId
	ResetToken string
}

type Registration struct {
	Email    Email
	Password Password
	Name     string
}
