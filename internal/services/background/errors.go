package background

import (
	"fmt"
)

type Kind int

const (
	KindInvalidInput Kind = iota + 1
	KindPayloadTooLarge
	KindUnprocessableImage
	KindBackendUnavailable
	KindProcessingFailed
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindPayloadTooLarge:
		return "PayloadTooLarge"
	case KindUnprocessableImage:
		return "UnprocessableImage"
	case KindBackendUnavailable:
		return "BackendUnavailable"
	case KindProcessingFailed:
		return "ProcessingFailed"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the only error type returned by Service operations. Message is
// safe to show to callers; Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}
