package parser

import "errors"

// Kind categorizes parse failures for clearer handling and messaging.
type Kind string

const (
	KindParse      Kind = "ParseError"
	KindValidation Kind = "ValidationError"
	KindNetwork    Kind = "NetworkError"
)

// Sentinels for errors.Is matching. Every *Error matches ErrParse; the
// specialized sentinels match only their own kind, so callers can distinguish
// validation and transport failures without losing the common base.
var (
	ErrParse      = errors.New("parse error")
	ErrValidation = errors.New("validation error")
	ErrNetwork    = errors.New("network error")
)

// Error is a structured failure from loading or normalizing a specification.
type Error struct {
	Kind    Kind
	Message string
	Source  string // file path or URL
	Cause   error
}

func (e *Error) Error() string {
	if e.Source != "" {
		return e.Message + " (" + e.Source + ")"
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrParse:
		return true
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrNetwork:
		return e.Kind == KindNetwork
	}
	return false
}

func newParseError(msg, source string, cause error) error {
	return &Error{Kind: KindParse, Message: msg, Source: source, Cause: cause}
}

func newValidationError(msg, source string, cause error) error {
	return &Error{Kind: KindValidation, Message: msg, Source: source, Cause: cause}
}

func newNetworkError(msg, source string, cause error) error {
	return &Error{Kind: KindNetwork, Message: msg, Source: source, Cause: cause}
}
