package domain

type (
	Email    = string
	Password = string
	UserId   = string // UUID
	EventId  = string // UUID
)
