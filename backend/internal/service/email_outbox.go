package service

import (
	"context"
	"fmt"

	"github.com/itchan-dev/accounts/backend/internal/utils/email"
	"github.com/itchan-dev/accounts/shared/domain"
	"github.com/itchan-dev/accounts/shared/logger"
)

const verifyEmailTemplate = `Hello {{.Name}},

Thanks for signing up. Please confirm your email address by following the link below.

[Verify email]({{.Link}})

If you did not create an account, please ignore this email.
`

const resetPasswordTemplate = `Hello {{.Name}},

We received a request to reset your password. Follow the link below to choose a new one.

[Reset password]({{.Link}})

If you did not request this, please ignore this email. Your password stays unchanged.
`

// NewEmailRenderer returns a renderer with a template for every email event.
func NewEmailRenderer() *email.Renderer {
	return email.NewRenderer().
		MustRegister(string(domain.EmailEventVerifyEmail), "Please confirm your email address", verifyEmailTemplate).
		MustRegister(string(domain.EmailEventResetPassword), "Reset your password", resetPasswordTemplate)
}

type EmailEventStorage interface {
	PendingEmailEvents(ctx context.Context, eventNames []string, limit int) ([]domain.EmailEvent, error)
	MarkEmailEventSent(ctx context.Context, id domain.EventId) (bool, error)
	MarkEmailEventFailedAttempt(ctx context.Context, id domain.EventId, cause string, maxAttempts int) (domain.EmailEventStatus, error)
}

// EmailChannel feeds pending email events from storage to the dispatcher.
type EmailChannel struct {
	storage     EmailEventStorage
	batchSize   int
	maxAttempts int
}

func NewEmailChannel(storage EmailEventStorage, batchSize, maxAttempts int) *EmailChannel {
	return &EmailChannel{storage: storage, batchSize: batchSize, maxAttempts: maxAttempts}
}

func (c *EmailChannel) Name() string {
	return "email_events"
}

func (c *EmailChannel) Pending(ctx context.Context, eventNames []string) ([]OutboxMessage, error) {
	events, err := c.storage.PendingEmailEvents(ctx, eventNames, c.batchSize)
	if err != nil {
		return nil, err
	}
	messages := make([]OutboxMessage, 0, len(events))
	for _, event := range events {
		messages = append(messages, OutboxMessage{
			Id:        event.Id,
			EventName: string(event.EventName),
			Payload:   event.Payload,
		})
	}
	return messages, nil
}

// Ack marks the event sent. An event that is no longer pending stays as it is.
func (c *EmailChannel) Ack(ctx context.Context, msg OutboxMessage) error {
	updated, err := c.storage.MarkEmailEventSent(ctx, msg.Id)
	if err != nil {
		return err
	}
	if !updated {
		logger.Log.Debug("email event was already processed", "component", "outbox", "message_id", msg.Id)
	}
	return nil
}

// Nack counts a failed attempt. After maxAttempts the event is failed for good.
func (c *EmailChannel) Nack(ctx context.Context, msg OutboxMessage, cause error) error {
	status, err := c.storage.MarkEmailEventFailedAttempt(ctx, msg.Id, cause.Error(), c.maxAttempts)
	if err != nil {
		return err
	}
	if status == domain.EmailEventFailed {
		logger.Log.Warn("email event gave up after max attempts",
			"component", "outbox",
			"message_id", msg.Id,
			"event", msg.EventName,
			"max_attempts", c.maxAttempts)
	}
	return nil
}

type EmailSender interface {
	Send(ctx context.Context, message email.Message) error
}

type EmailRenderer interface {
	Render(name string, data email.TemplateData) (string, string, error)
}

// NewEmailHandler renders the template named after the event and sends it to
// the payload's recipient.
func NewEmailHandler(sender EmailSender, renderer EmailRenderer) OutboxHandler {
	return OutboxHandlerFunc(func(ctx context.Context, msg OutboxMessage) error {
		payload, ok := msg.Payload.(domain.EmailPayload)
		if !ok {
			return fmt.Errorf("unexpected payload type %T for event %s", msg.Payload, msg.EventName)
		}

		subject, body, err := renderer.Render(msg.EventName, email.TemplateData{Name: payload.Name, Link: payload.Link})
		if err != nil {
			return err
		}

		if err := sender.Send(ctx, email.Message{
			Id:       msg.Id,
			To:       payload.RecipientEmail,
			Subject:  subject,
			HTMLBody: body,
		}); err != nil {
			return fmt.Errorf("failed to send %s email: %w", msg.EventName, err)
		}
		return nil
	})
}
