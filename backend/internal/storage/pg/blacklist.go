package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/itchan-dev/accounts/shared/domain"
	internal_errors "github.com/itchan-dev/accounts/shared/errors"
	sharedpg "github.com/itchan-dev/accounts/shared/storage/pg"
)

const blacklistEntity = "BlacklistToken"

// =========================================================================
// Public Methods (satisfy service.BlacklistStorage and blacklist.BlacklistCacheStorage)
// =========================================================================

// CreateBlacklistEntry records token as revoked until expiresAt. A token can be
// blacklisted once; a second insert fails with AlreadyExists.
func (s *Storage) CreateBlacklistEntry(ctx context.Context, token string, expiresAt time.Time) (domain.BlacklistEntry, error) {
	var entry domain.BlacklistEntry
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		entry, err = s.createBlacklistEntry(ctx, tx, token, expiresAt)
		return err
	})
	return entry, err
}

// FindBlacklistEntry returns (nil, nil) when token was never blacklisted.
func (s *Storage) FindBlacklistEntry(ctx context.Context, token string) (*domain.BlacklistEntry, error) {
	return s.findBlacklistEntry(ctx, s.db, token)
}

// ActiveBlacklistedTokens lists entries that expire after now. Used to
// populate the in-memory blacklist cache.
func (s *Storage) ActiveBlacklistedTokens(ctx context.Context, now time.Time) ([]domain.BlacklistEntry, error) {
	return s.activeBlacklistedTokens(ctx, s.db, now)
}

// =========================================================================
// Internal Methods (Core Database Logic)
// =========================================================================

func (s *Storage) createBlacklistEntry(ctx context.Context, q Querier, token string, expiresAt time.Time) (domain.BlacklistEntry, error) {
	entry := domain.BlacklistEntry{Id: uuid.NewString(), Token: token}
	err := q.QueryRowContext(ctx, `
		INSERT INTO blacklist_tokens (id, token, expires_at)
		VALUES ($1, $2, $3)
		RETURNING expires_at`,
		entry.Id, token, expiresAt.UTC(),
	).Scan(&entry.ExpiresAt)
	if err != nil {
		if sharedpg.IsUniqueViolation(err) {
			return domain.BlacklistEntry{}, internal_errors.AlreadyExists(blacklistEntity)
		}
		return domain.BlacklistEntry{}, internal_errors.NewRepositoryError(blacklistEntity, "create", err)
	}
	return entry, nil
}

func (s *Storage) findBlacklistEntry(ctx context.Context, q Querier, token string) (*domain.BlacklistEntry, error) {
	var entry domain.BlacklistEntry
	err := q.QueryRowContext(ctx,
		"SELECT id, token, expires_at FROM blacklist_tokens WHERE token = $1", token,
	).Scan(&entry.Id, &entry.Token, &entry.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, internal_errors.NewRepositoryError(blacklistEntity, "find", err)
	}
	return &entry, nil
}

func (s *Storage) activeBlacklistedTokens(ctx context.Context, q Querier, now time.Time) ([]domain.BlacklistEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, token, expires_at
		FROM blacklist_tokens
		WHERE expires_at > $1
		ORDER BY expires_at`,
		now.UTC(),
	)
	if err != nil {
		return nil, internal_errors.NewRepositoryError(blacklistEntity, "find", err)
	}
	defer rows.Close()

	var entries []domain.BlacklistEntry
	for rows.Next() {
		var entry domain.BlacklistEntry
		if err := rows.Scan(&entry.Id, &entry.Token, &entry.ExpiresAt); err != nil {
			return nil, internal_errors.NewRepositoryError(blacklistEntity, "find", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, internal_errors.NewRepositoryError(blacklistEntity, "find", err)
	}
	return entries, nil
}
