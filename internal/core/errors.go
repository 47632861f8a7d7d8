package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotEditable is returned when an edit is attempted after the edit
	// window has closed.
	ErrNotEditable = errors.New("transaction is no longer editable")
	// ErrRejected marks a request the backend refused (4xx).
	ErrRejected = errors.New("request rejected by backend")
	// ErrUnavailable marks a backend or transport failure (5xx, network).
	ErrUnavailable = errors.New("backend unavailable")
)

// GenericFailureMessage is shown when the backend gives no message.
const GenericFailureMessage = "Failed to save transaction"

// ValidationError collects field-level problems found before submission.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records the first message for a field.
func (e *ValidationError) Add(field, msg string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// OrNil returns nil when no field failed.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// RequestError is a failed call to the backend.
type RequestError struct {
	Op      string
	Status  int // 0 for transport failures
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s: backend returned %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + ": request failed"
}

// Unwrap exposes the failure class and the transport cause.
func (e *RequestError) Unwrap() []error {
	class := ErrUnavailable
	if e.Status >= 400 && e.Status < 500 {
		class = ErrRejected
	}
	if e.Err != nil {
		return []error{class, e.Err}
	}
	return []error{class}
}

// UserMessage returns the text to show for a failed submission: the backend
// message verbatim when present, otherwise the generic notice.
func UserMessage(err error) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) && strings.TrimSpace(reqErr.Message) != "" {
		return reqErr.Message
	}
	return GenericFailureMessage
}
