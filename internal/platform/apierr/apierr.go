// Package apierr carries an explicit HTTP status and machine code for errors
// raised at the transport edge, before any service is involved.
package apierr

import (
	"fmt"
	"net/http"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Err != nil:
		return e.Err.Error()
	case e.Code != "":
		return e.Code
	default:
		return fmt.Sprintf("api error (%d)", e.Status)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return &Error{Status: status, Code: code, Err: err}
}

// PayloadTooLarge reports a request body cut off at limit bytes.
func PayloadTooLarge(limit int64) *Error {
	return New(http.StatusRequestEntityTooLarge, "payload_too_large", fmt.Errorf("upload exceeds %d bytes", limit))
}
