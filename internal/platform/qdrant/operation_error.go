package qdrant

import (
	"errors"
	"fmt"
	"strings"
)

// OperationErrorCode classifies why a store operation failed. Codes are
// stable strings so callers can branch without string-matching messages.
type OperationErrorCode string

const (
	OperationErrorValidation        OperationErrorCode = "validation_failed"
	OperationErrorUnsupportedFilter OperationErrorCode = "unsupported_filter"
	OperationErrorEncodeFailed      OperationErrorCode = "encode_failed"
	OperationErrorDecodeFailed      OperationErrorCode = "decode_failed"
	OperationErrorTransportFailed   OperationErrorCode = "transport_failed"
	OperationErrorTimeout           OperationErrorCode = "timeout"
	OperationErrorQueryFailed       OperationErrorCode = "query_failed"
)

// OperationError carries the failed operation (upsert, query, delete,
// filter_translate), its code, and the HTTP status when one was received.
type OperationError struct {
	Code       OperationErrorCode
	Operation  string
	StatusCode int
	Message    string
	Cause      error
}

func (e *OperationError) Error() string {
	if e == nil {
		return "qdrant: operation failed"
	}
	var b strings.Builder
	b.WriteString("qdrant ")
	b.WriteString(e.Operation)
	b.WriteString(": ")
	b.WriteString(string(e.Code))
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (http %d)", e.StatusCode)
	}
	switch {
	case e.Message != "":
		b.WriteString(": ")
		b.WriteString(e.Message)
	case e.Cause != nil:
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsOperationCode reports whether err is (or wraps) an OperationError with
// the given code.
func IsOperationCode(err error, code OperationErrorCode) bool {
	var oe *OperationError
	return errors.As(err, &oe) && oe.Code == code
}

func opErr(op string, code OperationErrorCode, msg string, cause error) error {
	return &OperationError{
		Code:      code,
		Operation: op,
		Message:   msg,
		Cause:     cause,
	}
}
