package utils

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/itchan-dev/accounts/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeValidate(t *testing.T) {
	type TestStruct struct {
		Field1 string `json:"field1" validate:"required"`
		Field2 int    `json:"field2"`
		Email  string `json:"email" validate:"omitempty,email"`
	}

	tests := []struct {
		name        string
		requestBody string
		expectedErr string
	}{
		{
			name:        "Valid JSON and Validation",
			requestBody: `{"field1": "value", "field2": 123}`,
		},
		{
			name:        "Optional field omitted",
			requestBody: `{"field1": "value"}`,
		},
		{
			name:        "Invalid JSON",
			requestBody: `{"field1": "value", "field2": 123`, // Missing closing brace
			expectedErr: "Body is invalid json",
		},
		{
			name:        "Missing Required Field",
			requestBody: `{"field2": 123}`,
			expectedErr: "Invalid field: Field1",
		},
		{
			name:        "Malformed email",
			requestBody: `{"field1": "value", "email": "not-an-email"}`,
			expectedErr: "Invalid field: Email",
		},
		{
			name:        "Empty Body",
			requestBody: "",
			expectedErr: "Body is invalid json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/", bytes.NewReader([]byte(tt.requestBody)))

			err := DecodeValidate(req.Body, &TestStruct{})

			if tt.expectedErr == "" {
				assert.NoError(t, err)
				return
			}
			var e *errors.ErrorWithStatusCode
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.expectedErr, e.Message)
			assert.Equal(t, http.StatusBadRequest, e.StatusCode)
		})
	}
}

func TestWriteErrorAndStatusCode(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
		expectedBody string
	}{
		{"invalid operation", errors.InvalidOperation("User not found"), http.StatusBadRequest, "User not found"},
		{"not found", errors.NotFound("User"), http.StatusNotFound, "User not found"},
		{"already exists", errors.AlreadyExists("User"), http.StatusConflict, "User already exists"},
		{"unauthorized", errors.Unauthorized("Invalid credentials"), http.StatusUnauthorized, "Invalid credentials"},
		{"forbidden", errors.Forbidden("User is blocked"), http.StatusForbidden, "User is blocked"},
		{"wrapped status error", fmt.Errorf("ctx: %w", errors.Forbidden("User is blocked")), http.StatusForbidden, "User is blocked"},
		{"repository error hides cause", errors.NewRepositoryError("User", "find", io.ErrUnexpectedEOF), http.StatusInternalServerError, "Internal error"},
		{"unknown error hides cause", fmt.Errorf("dial tcp: secret host"), http.StatusInternalServerError, "Internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteErrorAndStatusCode(rr, tt.err)

			assert.Equal(t, tt.expectedCode, rr.Code)
			assert.Equal(t, tt.expectedBody+"\n", rr.Body.String())
		})
	}
}

func TestWriteJSON(t *testing.T) {
	t.Run("Valid JSON", func(t *testing.T) {
		rr := httptest.NewRecorder()
		WriteJSON(rr, http.StatusCreated, map[string]string{"message": "hello"})

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		assert.Equal(t, `{"message":"hello"}`+"\n", rr.Body.String())
	})

	t.Run("Unencodable value", func(t *testing.T) {
		rr := httptest.NewRecorder()
		WriteJSON(rr, http.StatusOK, make(chan int))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "Internal error\n", rr.Body.String())
	})
}
