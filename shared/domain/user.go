package domain

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	Id              UserId    `json:"id"`
	Email           Email     `json:"email"`
	PassHash        string    `json:"-"`
	Name            string    `json:"name"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	IsBlocked       bool      `json:"isBlocked"`
	Role            Role      `json:"role"`
	CreatedAt       time.Time `json:"createdAt"`
}

// UserDraft is a user that has not been stored yet and therefore has no id.
type UserDraft struct {
	Email           Email
	PassHash        string
	Name            string
	IsEmailVerified bool
	IsBlocked       bool
	Role            Role
}

// UserQuery selects a single user. Exactly one field must be set.
type UserQuery struct {
	Id    UserId
	Email Email
}
