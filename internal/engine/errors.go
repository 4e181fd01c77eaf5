package engine

import (
	"context"
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeExternalCallFailed  ErrorCode = "ExternalCallFailed"
	CodeExternalCallTimeout ErrorCode = "ExternalCallTimeout"
	CodeMissingInput        ErrorCode = "MissingInput"
	CodeInvalidInput        ErrorCode = "InvalidInput"
	CodeCancelled           ErrorCode = "Cancelled"
	CodeUpstreamFailed      ErrorCode = "UpstreamFailed"

	CodeCreditExhausted    ErrorCode = "CreditExhausted"
	CodeStorageUnavailable ErrorCode = "StorageUnavailable"
)

// NodeError is a recoverable failure of one node. It marks the node failed and skips its
// dependents, the rest of the graph keeps running.
type NodeError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"statusCode,omitempty"`
}

func (e *NodeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewNodeError(code ErrorCode, format string, args ...any) *NodeError {
	return &NodeError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsNodeError classifies any executor error. Context deadlines become ExternalCallTimeout and
// unknown errors ExternalCallFailed.
func AsNodeError(err error) *NodeError {
	if err == nil {
		return nil
	}
	var ne *NodeError
	if errors.As(err, &ne) {
		return ne
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &NodeError{Code: CodeExternalCallTimeout, Message: err.Error()}
	case errors.Is(err, context.Canceled):
		return &NodeError{Code: CodeCancelled, Message: err.Error()}
	}
	return &NodeError{Code: CodeExternalCallFailed, Message: err.Error()}
}

// JobPollError is a transient failure while polling an external job.
type JobPollError struct {
	JobID   string
	Attempt int
	Err     error
}

func (e *JobPollError) Error() string {
	return fmt.Sprintf("poll job %s (attempt %d): %v", e.JobID, e.Attempt, e.Err)
}

func (e *JobPollError) Unwrap() error {
	return e.Err
}

// FatalError aborts the whole execution.
type FatalError struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	return e.Reason
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func NewFatalError(code ErrorCode, err error, format string, args ...any) *FatalError {
	return &FatalError{Code: code, Reason: fmt.Sprintf(format, args...), Err: err}
}

func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
