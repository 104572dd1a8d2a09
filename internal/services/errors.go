package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/data/repos"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrTokenNotFound        = errors.New("invalid_token")
	ErrTokenExpiredOrClosed = errors.New("token_expired_or_closed")
	ErrStorage              = errors.New("storage failure")
	ErrConflict             = errors.New("conflict")
)

// ValidationError is a user-fixable input problem.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// QueryFailedError wraps a storage failure during a dashboard read.
type QueryFailedError struct {
	Op  string
	Err error
}

func (e *QueryFailedError) Error() string {
	return fmt.Sprintf("%s: query failed: %v", e.Op, e.Err)
}

func (e *QueryFailedError) Unwrap() []error { return []error{ErrStorage, e.Err} }

// StorageError wraps a failed write or blob upload.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repos.ErrDuplicate) {
		return fmt.Errorf("%s: %w", op, errors.Join(ErrConflict, err))
	}
	return &StorageError{Op: op, Err: err}
}

// NotificationError is logged by the dispatcher and never returned to
// the caller of the primary operation.
type NotificationError struct {
	Sink string
	Err  error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notify %s: %v", e.Sink, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// HTTPStatus maps the error taxonomy onto response codes.
func HTTPStatus(err error) int {
	var ve *ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, ErrTokenExpiredOrClosed):
		return http.StatusGone
	case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrStorage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode is the stable machine-readable code for err.
func ErrorCode(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return "validation_error"
	case errors.Is(err, ErrTokenExpiredOrClosed):
		return "token_expired_or_closed"
	case errors.Is(err, ErrTokenNotFound):
		return "invalid_token"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrStorage):
		return "storage_failure"
	default:
		return "internal_error"
	}
}
