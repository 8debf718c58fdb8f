package utils

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/itchan-dev/accounts/shared/errors"
	"github.com/itchan-dev/accounts/shared/logger"
)

// maxBodyBytes caps request bodies; every accounts request is tiny.
const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// WriteErrorAndStatusCode renders err as a plain text response.
// Only ErrorWithStatusCode messages reach the client; anything else is logged
// and answered with a generic 500.
func WriteErrorAndStatusCode(w http.ResponseWriter, err error) {
	var repoErr *errors.RepositoryError
	if stderrors.As(err, &repoErr) {
		logger.Log.Error("repository failure", "entity", repoErr.Entity, "operation", repoErr.Operation, "error", repoErr.Err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	var e *errors.ErrorWithStatusCode
	if stderrors.As(err, &e) {
		http.Error(w, e.Message, e.StatusCode)
		return
	}
	// default error is 500
	logger.Log.Error("unhandled error", "error", err)
	http.Error(w, "Internal error", http.StatusInternalServerError)
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.Log.Error("failed to encode response", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

func DecodeValidate(r io.ReadCloser, body any) error {
	if err := Decode(r, body); err != nil {
		return err
	}
	if err := validate.Struct(body); err != nil {
		logger.Log.Debug("request validation failed", "error", err)
		var fieldErrs validator.ValidationErrors
		if stderrors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return errors.InvalidOperation("Invalid field: %s", fieldErrs[0].Field())
		}
		return errors.InvalidOperation("Required fields missing")
	}
	return nil
}

func Decode(r io.ReadCloser, body any) error {
	if err := json.NewDecoder(io.LimitReader(r, maxBodyBytes)).Decode(body); err != nil {
		logger.Log.Debug("request body is not json", "error", err)
		return errors.InvalidOperation("Body is invalid json")
	}
	return nil
}
