package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *ErrorWithStatusCode
		kind       Kind
		statusCode int
		message    string
	}{
		{"invalid operation", InvalidOperation("User %s not found", "42"), KindInvalidOperation, http.StatusBadRequest, "User 42 not found"},
		{"not found", NotFound("User"), KindNotFound, http.StatusNotFound, "User not found"},
		{"already exists", AlreadyExists("User"), KindAlreadyExists, http.StatusConflict, "User already exists"},
		{"unauthorized", Unauthorized("Invalid credentials"), KindUnauthorized, http.StatusUnauthorized, "Invalid credentials"},
		{"forbidden", Forbidden("User is blocked"), KindForbidden, http.StatusForbidden, "User is blocked"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.statusCode, tt.err.StatusCode)
			assert.Equal(t, tt.message, tt.err.Error())
			assert.True(t, Is(tt.err, tt.kind))
		})
	}
}

func TestKindOfWrapped(t *testing.T) {
	t.Run("wrapped status error keeps its kind", func(t *testing.T) {
		err := fmt.Errorf("login: %w", Unauthorized("Invalid credentials"))
		assert.Equal(t, KindUnauthorized, KindOf(err))
	})

	t.Run("repository error", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := fmt.Errorf("outer: %w", NewRepositoryError("User", "find", cause))
		assert.True(t, Is(err, KindRepositoryFailure))
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "User repository failed to find")
	})

	t.Run("plain error has no kind", func(t *testing.T) {
		assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
		assert.False(t, Is(nil, KindNotFound))
	})

	t.Run("IsNotFound", func(t *testing.T) {
		assert.True(t, IsNotFound(NotFound("User")))
		assert.False(t, IsNotFound(AlreadyExists("User")))
	})
}
