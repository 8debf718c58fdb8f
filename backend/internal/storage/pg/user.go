package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/itchan-dev/accounts/shared/domain"
	internal_errors "github.com/itchan-dev/accounts/shared/errors"
	sharedpg "github.com/itchan-dev/accounts/shared/storage/pg"
)

const userEntity = "User"

const userColumns = "id, email, password_hash, name, is_email_verified, is_blocked, role, created_at"

// =========================================================================
// Public Methods (satisfy the service.UserStorage interface)
// =========================================================================

// FindUser fetches a single user by id or email. A missing user is reported as
// (nil, nil).
func (s *Storage) FindUser(ctx context.Context, query domain.UserQuery) (*domain.User, error) {
	return s.findUser(ctx, s.db, query)
}

// InsertUser stores a new user and assigns its id.
func (s *Storage) InsertUser(ctx context.Context, draft domain.UserDraft) (domain.User, error) {
	var user domain.User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		user, err = s.insertUser(ctx, tx, draft)
		return err
	})
	return user, err
}

// UpdateUser overwrites all mutable fields of an existing user.
func (s *Storage) UpdateUser(ctx context.Context, user domain.User) (domain.User, error) {
	var updated domain.User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		updated, err = s.updateUser(ctx, tx, user)
		return err
	})
	return updated, err
}

// FindUsers returns one page of users ordered by creation time. Pages start at 1.
func (s *Storage) FindUsers(ctx context.Context, page, pageSize int) ([]domain.User, error) {
	return s.findUsers(ctx, s.db, page, pageSize)
}

func (s *Storage) CountUsers(ctx context.Context) (int, error) {
	return s.countUsers(ctx, s.db)
}

// DeleteUser removes the user row.
func (s *Storage) DeleteUser(ctx context.Context, id domain.UserId) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.deleteUser(ctx, tx, id)
	})
}

// =========================================================================
// Internal Methods (Core Database Logic)
// These methods accept a Querier and are transaction-agnostic.
// =========================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var user domain.User
	var role string
	err := row.Scan(&user.Id, &user.Email, &user.PassHash, &user.Name,
		&user.IsEmailVerified, &user.IsBlocked, &role, &user.CreatedAt)
	user.Role = domain.Role(role)
	return user, err
}

func (s *Storage) findUser(ctx context.Context, q Querier, query domain.UserQuery) (*domain.User, error) {
	var row *sql.Row
	switch {
	case query.Id != "" && query.Email != "":
		return nil, internal_errors.InvalidOperation("Either id or email must be provided, not both")
	case query.Id != "":
		if _, err := uuid.Parse(query.Id); err != nil {
			// column is a uuid string, anything else can't match
			return nil, nil
		}
		row = q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", query.Id)
	case query.Email != "":
		row = q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", strings.ToLower(query.Email))
	default:
		return nil, internal_errors.InvalidOperation("Either id or email must be provided")
	}

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, internal_errors.NewRepositoryError(userEntity, "find", err)
	}
	return &user, nil
}

func (s *Storage) insertUser(ctx context.Context, q Querier, draft domain.UserDraft) (domain.User, error) {
	role := draft.Role
	if role == "" {
		role = domain.RoleUser
	}
	row := q.QueryRowContext(ctx, `
		INSERT INTO users (id, email, password_hash, name, is_email_verified, is_blocked, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+userColumns,
		uuid.NewString(), strings.ToLower(draft.Email), draft.PassHash, draft.Name,
		draft.IsEmailVerified, draft.IsBlocked, string(role),
	)
	user, err := scanUser(row)
	if err != nil {
		if sharedpg.IsUniqueViolation(err) {
			return domain.User{}, internal_errors.AlreadyExists(userEntity)
		}
		return domain.User{}, internal_errors.NewRepositoryError(userEntity, "create", err)
	}
	return user, nil
}

func (s *Storage) updateUser(ctx context.Context, q Querier, user domain.User) (domain.User, error) {
	row := q.QueryRowContext(ctx, `
		UPDATE users
		SET email = $2, password_hash = $3, name = $4, is_email_verified = $5, is_blocked = $6, role = $7
		WHERE id = $1
		RETURNING `+userColumns,
		user.Id, strings.ToLower(user.Email), user.PassHash, user.Name,
		user.IsEmailVerified, user.IsBlocked, string(user.Role),
	)
	updated, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, internal_errors.NotFound(userEntity)
		}
		if sharedpg.IsUniqueViolation(err) {
			return domain.User{}, internal_errors.AlreadyExists(userEntity)
		}
		return domain.User{}, internal_errors.NewRepositoryError(userEntity, "update", err)
	}
	return updated, nil
}

func (s *Storage) findUsers(ctx context.Context, q Querier, page, pageSize int) ([]domain.User, error) {
	if page < 1 || pageSize < 1 {
		return nil, internal_errors.InvalidOperation("Page and page size must be positive")
	}
	rows, err := q.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2`,
		pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, internal_errors.NewRepositoryError(userEntity, "find", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, internal_errors.NewRepositoryError(userEntity, "find", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, internal_errors.NewRepositoryError(userEntity, "find", err)
	}
	return users, nil
}

func (s *Storage) countUsers(ctx context.Context, q Querier) (int, error) {
	var count int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, internal_errors.NewRepositoryError(userEntity, "count", err)
	}
	return count, nil
}

func (s *Storage) deleteUser(ctx context.Context, q Querier, id domain.UserId) error {
	if _, err := uuid.Parse(id); err != nil {
		return internal_errors.NotFound(userEntity)
	}
	result, err := q.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return internal_errors.NewRepositoryError(userEntity, "delete", err)
	}
	rowsDeleted, err := result.RowsAffected()
	if err != nil {
		return internal_errors.NewRepositoryError(userEntity, "delete", err)
	}
	if rowsDeleted == 0 {
		return internal_errors.NotFound(userEntity)
	}
	return nil
}
