// Package llmerr defines the error taxonomy shared by every provider adapter,
// the staged request builder, and the agentic step loop.
package llmerr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error into one of a small set of categories. Kind is a
// classification, not a Go type: callers branch on Kind() rather than using
// type assertions against adapter-specific error types.
type Kind string

const (
	// MissingField means the staged builder was forced but a required field
	// (model, and either a prompt or an initial message list) was unset.
	MissingField Kind = "missing_field"

	// InvalidInput means malformed input was supplied directly by the
	// caller: an unparseable base URL, an empty tool name, and similar.
	InvalidInput Kind = "invalid_input"

	// ApiError means the transport returned an HTTP status >= 400 or SSE
	// framing broke mid-stream. Status, when known, is carried for retry
	// logic (see Retryable).
	ApiError Kind = "api_error"

	// ToolCallError means a registered tool returned an error, or no tool
	// matched the requested name. ToolCallError is never fatal to a run: the
	// loop reports it back to the model as a Tool message and continues.
	ToolCallError Kind = "tool_call_error"

	// PromptError means the (out-of-scope) template renderer failed before
	// a request could be assembled.
	PromptError Kind = "prompt_error"

	// ProviderError wraps an opaque, provider-specific error, preserving the
	// provider's own error type and message as reported on the wire.
	ProviderError Kind = "provider_error"

	// Other is the catch-all for failures that do not fit another kind.
	Other Kind = "other"
)

// Error is the concrete error type returned by every package in this module.
// Error implements errors.Unwrap so callers may still errors.Is/As through to
// a wrapped transport or SDK error.
type Error struct {
	kind Kind

	// Status is the HTTP status code when Kind is ApiError and the transport
	// observed one; zero otherwise.
	Status int

	// ProviderType is the provider's own error type/code when Kind is
	// ProviderError (for example Anthropic's "overloaded_error").
	ProviderType string

	msg   string
	cause error
}

// New constructs an Error of the given kind with a message.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Newf constructs an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind that wraps cause, preserving it
// for errors.Is/As through Unwrap.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{kind: kind, msg: msg, cause: cause}
}

// API constructs an ApiError carrying the observed HTTP status.
func API(status int, msg string, cause error) *Error {
	return &Error{kind: ApiError, Status: status, msg: msg, cause: cause}
}

// Provider constructs a ProviderError preserving the provider's own error
// type/code alongside its message.
func Provider(providerType, msg string, cause error) *Error {
	return &Error{kind: ProviderError, ProviderType: providerType, msg: msg, cause: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.msg
	if msg == "" && e.cause != nil {
		msg = e.cause.Error()
	}
	switch e.kind {
	case ApiError:
		if e.Status > 0 {
			return fmt.Sprintf("%s: %d %s", e.kind, e.Status, msg)
		}
	case ProviderError:
		if e.ProviderType != "" {
			return fmt.Sprintf("%s: %s: %s", e.kind, e.ProviderType, msg)
		}
	}
	return fmt.Sprintf("%s: %s", e.kind, msg)
}

// Unwrap returns the wrapped cause, if any, so errors.Is/As can traverse
// through an Error to the underlying transport or SDK error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Kind returns the error's classification.
func (e *Error) Kind() Kind {
	if e == nil {
		return ""
	}
	return e.kind
}

// Retryable reports whether the request that produced this error is safe to
// retry unchanged. Only a 429 ApiError is retryable per the bounded backoff
// policy; everything else is one-shot.
func (e *Error) Retryable() bool {
	return e != nil && e.kind == ApiError && e.Status == 429
}

// As reports whether err (or any error in its chain) is an *Error of the
// given kind, returning it when so.
func As(err error, kind Kind) (*Error, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return nil, false
	}
	if e.kind != kind {
		return nil, false
	}
	return e, true
}

// IsRetryable reports whether err is a retryable *Error (429 ApiError)
// anywhere in its chain.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}
