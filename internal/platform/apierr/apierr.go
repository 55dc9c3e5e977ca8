package apierr

import "fmt"

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

const (
	CodeExternalServiceUnavailable = "external_service_unavailable"
	CodeMalformedOutput            = "malformed_output"
	CodeNotFound                   = "not_found"
	CodeUnauthorized               = "unauthorized"
	CodePartialFailure             = "partial_failure"
)

func NotFound(err error) *Error     { return New(404, CodeNotFound, err) }
func Unauthorized(err error) *Error { return New(403, CodeUnauthorized, err) }
func Unavailable(err error) *Error  { return New(503, CodeExternalServiceUnavailable, err) }

// IsCode reports whether err (or anything it wraps) is an *Error carrying code.
func IsCode(err error, code string) bool {
	for err != nil {
		if apiErr, ok := err.(*Error); ok {
			return apiErr.Code == code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
