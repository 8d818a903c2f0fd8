package processing

import "fmt"

type OperationErrorCode string

const (
	OperationErrorEncodeFailed    OperationErrorCode = "encode_failed"
	OperationErrorTransportFailed OperationErrorCode = "transport_failed"
	OperationErrorTimeout         OperationErrorCode = "timeout"
	OperationErrorRejected        OperationErrorCode = "rejected"
)

// OperationError describes a failed call to the processing API. StatusCode is
// zero when no response was received.
type OperationError struct {
	Code       OperationErrorCode
	Operation  string
	StatusCode int
	Message    string
	Cause      error
}

func (e *OperationError) Error() string {
	if e == nil {
		return "processing operation failed"
	}
	if e.Message != "" && e.Cause != nil {
		return fmt.Sprintf("processing operation failed (op=%s code=%s status=%d): %s: %v",
			e.Operation, e.Code, e.StatusCode, e.Message, e.Cause)
	}
	if e.Message != "" {
		return fmt.Sprintf("processing operation failed (op=%s code=%s status=%d): %s",
			e.Operation, e.Code, e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("processing operation failed (op=%s code=%s status=%d): %v",
			e.Operation, e.Code, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("processing operation failed (op=%s code=%s status=%d)", e.Operation, e.Code, e.StatusCode)
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func opErr(op string, code OperationErrorCode, msg string, cause error) error {
	return &OperationError{Code: code, Operation: op, Message: msg, Cause: cause}
}
