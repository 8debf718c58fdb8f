package domain

import "time"

type EmailEventName string

const (
	EmailEventVerifyEmail   EmailEventName = "verifyEmail"
	EmailEventResetPassword EmailEventName = "resetPassword"
)

type EmailEventStatus string

const (
	EmailEventPending EmailEventStatus = "pending"
	EmailEventSent    EmailEventStatus = "sent"
	EmailEventFailed  EmailEventStatus = "failed"
)

type EmailPayload struct {
	RecipientEmail Email  `json:"recipientEmail"`
	Name           string `json:"name"`
	Link           string `json:"link"`
}

type EmailEventDraft struct {
	EventName EmailEventName
	Payload   EmailPayload
}

type EmailEvent struct {
	Id        EventId
	EventName EmailEventName
	Payload   EmailPayload
	Status    EmailEventStatus
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}
