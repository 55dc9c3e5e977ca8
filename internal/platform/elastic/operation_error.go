package elastic

import "fmt"

type OperationErrorCode string

const (
	OperationErrorValidation      OperationErrorCode = "validation_failed"
	OperationErrorEncodeFailed    OperationErrorCode = "encode_failed"
	OperationErrorDecodeFailed    OperationErrorCode = "decode_failed"
	OperationErrorTransportFailed OperationErrorCode = "transport_failed"
	OperationErrorTimeout         OperationErrorCode = "timeout"
	OperationErrorQueryFailed     OperationErrorCode = "query_failed"
	OperationErrorUnavailable     OperationErrorCode = "unavailable"
)

type OperationError struct {
	Code       OperationErrorCode
	Operation  string
	StatusCode int
	Message    string
	Cause      error
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.StatusCode != 0 {
		if e.Cause != nil {
			return fmt.Sprintf("elastic %s [%s status=%d]: %s: %v", e.Operation, e.Code, e.StatusCode, msg, e.Cause)
		}
		return fmt.Sprintf("elastic %s [%s status=%d]: %s", e.Operation, e.Code, e.StatusCode, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("elastic %s [%s]: %s: %v", e.Operation, e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("elastic %s [%s]: %s", e.Operation, e.Code, msg)
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func opErr(op string, code OperationErrorCode, msg string, cause error) error {
	return &OperationError{
		Code:      code,
		Operation: op,
		Message:   msg,
		Cause:     cause,
	}
}
