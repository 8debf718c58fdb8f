package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/itchan-dev/accounts/shared/domain"
	internal_errors "github.com/itchan-dev/accounts/shared/errors"
	"github.com/itchan-dev/accounts/shared/logger"
	"github.com/lib/pq"
)

const emailEventEntity = "EmailEvent"

const emailEventColumns = "id, event_name, payload, status, attempts, last_error, created_at, updated_at"

// =========================================================================
// Public Methods (satisfy service.EmailOutbox and the outbox email channel)
// =========================================================================

// CreateEmailEvent stores a pending event for the dispatcher.
func (s *Storage) CreateEmailEvent(ctx context.Context, draft domain.EmailEventDraft) (domain.EmailEvent, error) {
	var event domain.EmailEvent
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		event, err = s.createEmailEvent(ctx, tx, draft)
		return err
	})
	return event, err
}

func (s *Storage) FindEmailEvent(ctx context.Context, id domain.EventId) (*domain.EmailEvent, error) {
	return s.findEmailEvent(ctx, s.db, id)
}

// PendingEmailEvents returns up to limit pending events named in eventNames,
// oldest first. Events with other names stay pending and take no slots.
// A row whose payload can't be decoded is marked failed and left out.
func (s *Storage) PendingEmailEvents(ctx context.Context, eventNames []string, limit int) ([]domain.EmailEvent, error) {
	return s.pendingEmailEvents(ctx, s.db, eventNames, limit)
}

// MarkEmailEventSent moves a pending event to sent. It reports false when the
// event was not pending anymore, in which case nothing changes.
func (s *Storage) MarkEmailEventSent(ctx context.Context, id domain.EventId) (bool, error) {
	return s.markEmailEventSent(ctx, s.db, id)
}

// MarkEmailEventFailedAttempt counts a failed delivery of a pending event and
// records the cause. Once attempts reach maxAttempts the event becomes failed.
// The resulting status is returned.
func (s *Storage) MarkEmailEventFailedAttempt(ctx context.Context, id domain.EventId, cause string, maxAttempts int) (domain.EmailEventStatus, error) {
	var status domain.EmailEventStatus
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		status, err = s.markEmailEventFailedAttempt(ctx, tx, id, cause, maxAttempts)
		return err
	})
	return status, err
}

// =========================================================================
// Internal Methods (Core Database Logic)
// =========================================================================

// payloadError reports a stored payload that does not decode into EmailPayload.
type payloadError struct {
	id  domain.EventId
	err error
}

func (e *payloadError) Error() string {
	return fmt.Sprintf("failed to decode payload of event %s: %v", e.id, e.err)
}

func (e *payloadError) Unwrap() error {
	return e.err
}

func scanEmailEvent(row rowScanner) (domain.EmailEvent, error) {
	var event domain.EmailEvent
	var eventName, status string
	var payload []byte
	if err := row.Scan(&event.Id, &eventName, &payload, &status, &event.Attempts,
		&event.LastError, &event.CreatedAt, &event.UpdatedAt); err != nil {
		return domain.EmailEvent{}, err
	}
	event.EventName = domain.EmailEventName(eventName)
	event.Status = domain.EmailEventStatus(status)
	if err := json.Unmarshal(payload, &event.Payload); err != nil {
		return domain.EmailEvent{}, &payloadError{id: event.Id, err: err}
	}
	return event, nil
}

func (s *Storage) createEmailEvent(ctx context.Context, q Querier, draft domain.EmailEventDraft) (domain.EmailEvent, error) {
	payload, err := json.Marshal(draft.Payload)
	if err != nil {
		return domain.EmailEvent{}, internal_errors.NewRepositoryError(emailEventEntity, "create", err)
	}
	row := q.QueryRowContext(ctx, `
		INSERT INTO email_events (id, event_name, payload, status)
		VALUES ($1, $2, $3, $4)
		RETURNING `+emailEventColumns,
		uuid.NewString(), string(draft.EventName), payload, string(domain.EmailEventPending),
	)
	event, err := scanEmailEvent(row)
	if err != nil {
		return domain.EmailEvent{}, internal_errors.NewRepositoryError(emailEventEntity, "create", err)
	}
	return event, nil
}

func (s *Storage) findEmailEvent(ctx context.Context, q Querier, id domain.EventId) (*domain.EmailEvent, error) {
	row := q.QueryRowContext(ctx, "SELECT "+emailEventColumns+" FROM email_events WHERE id = $1", id)
	event, err := scanEmailEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, internal_errors.NewRepositoryError(emailEventEntity, "find", err)
	}
	return &event, nil
}

func (s *Storage) pendingEmailEvents(ctx context.Context, q Querier, eventNames []string, limit int) ([]domain.EmailEvent, error) {
	if len(eventNames) == 0 {
		return nil, nil
	}
	rows, err := q.QueryContext(ctx, `
		SELECT `+emailEventColumns+`
		FROM email_events
		WHERE status = $1 AND event_name = ANY($2)
		ORDER BY created_at, id
		LIMIT $3`,
		string(domain.EmailEventPending), pq.Array(eventNames), limit,
	)
	if err != nil {
		return nil, internal_errors.NewRepositoryError(emailEventEntity, "find", err)
	}
	defer rows.Close()

	var events []domain.EmailEvent
	var broken []*payloadError
	for rows.Next() {
		event, err := scanEmailEvent(rows)
		if err != nil {
			var payloadErr *payloadError
			if errors.As(err, &payloadErr) {
				broken = append(broken, payloadErr)
				continue
			}
			return nil, internal_errors.NewRepositoryError(emailEventEntity, "find", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, internal_errors.NewRepositoryError(emailEventEntity, "find", err)
	}
	rows.Close()

	// can never be delivered, so it must not come back in every batch
	for _, payloadErr := range broken {
		logger.Log.Error("email event has undecodable payload, marking failed",
			"component", "outbox",
			"message_id", payloadErr.id,
			"error", payloadErr.err)
		if err := s.markEmailEventBroken(ctx, q, payloadErr.id, payloadErr.Error()); err != nil {
			logger.Log.Error("failed to mark email event failed", "component", "outbox", "message_id", payloadErr.id, "error", err)
		}
	}
	return events, nil
}

func (s *Storage) markEmailEventBroken(ctx context.Context, q Querier, id domain.EventId, cause string) error {
	_, err := q.ExecContext(ctx, `
		UPDATE email_events
		SET status = $2, last_error = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4`,
		id, string(domain.EmailEventFailed), cause, string(domain.EmailEventPending),
	)
	if err != nil {
		return internal_errors.NewRepositoryError(emailEventEntity, "update", err)
	}
	return nil
}

func (s *Storage) markEmailEventSent(ctx context.Context, q Querier, id domain.EventId) (bool, error) {
	result, err := q.ExecContext(ctx, `
		UPDATE email_events
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3`,
		id, string(domain.EmailEventSent), string(domain.EmailEventPending),
	)
	if err != nil {
		return false, internal_errors.NewRepositoryError(emailEventEntity, "update", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, internal_errors.NewRepositoryError(emailEventEntity, "update", err)
	}
	return rowsAffected == 1, nil
}

func (s *Storage) markEmailEventFailedAttempt(ctx context.Context, q Querier, id domain.EventId, cause string, maxAttempts int) (domain.EmailEventStatus, error) {
	var status string
	err := q.QueryRowContext(ctx, `
		UPDATE email_events
		SET attempts = attempts + 1,
			last_error = $2,
			status = CASE WHEN attempts + 1 >= $3 THEN $4 ELSE status END,
			updated_at = NOW()
		WHERE id = $1 AND status = $5
		RETURNING status`,
		id, cause, maxAttempts, string(domain.EmailEventFailed), string(domain.EmailEventPending),
	).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", internal_errors.NotFound("Pending email event")
		}
		return "", internal_errors.NewRepositoryError(emailEventEntity, "update", err)
	}
	return domain.EmailEventStatus(status), nil
}
