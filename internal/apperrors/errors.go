// Package apperrors defines the gateway's canonical error taxonomy.
// Each kind carries its own retryability and HTTP-status
// mapping; the pipeline and breaker consult Kind rather than inspecting
// error strings.
package apperrors

import "fmt"

// Kind is the canonical error classification.
type Kind string

const (
	KindAuth           Kind = "auth"
	KindInvalidRequest Kind = "invalid_request"
	KindTranslation    Kind = "translation"
	KindUpstream       Kind = "upstream"
	KindTransport      Kind = "transport"
	KindInternal       Kind = "internal"
)

// Error is the concrete error type returned across codec, router, and
// pipeline boundaries.
type Error struct {
	Kind Kind

	// Status is the upstream HTTP status code, set only for KindUpstream.
	Status int

	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func Auth(msg string) *Error {
	return &Error{Kind: KindAuth, Message: msg}
}

func InvalidRequest(msg string, cause error) *Error {
	return &Error{Kind: KindInvalidRequest, Message: msg, Cause: cause}
}

func Translation(msg string, cause error) *Error {
	return &Error{Kind: KindTranslation, Message: msg, Cause: cause}
}

func Upstream(status int, msg string, cause error) *Error {
	return &Error{Kind: KindUpstream, Status: status, Message: msg, Cause: cause}
}

func Transport(msg string, cause error) *Error {
	return &Error{Kind: KindTransport, Message: msg, Cause: cause}
}

func Internal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Cause: cause}
}

// Retryable reports whether the pipeline should advance to the next
// candidate after this error: retryable on Upstream 5xx /
// 408 / 429 and on Transport; never on Auth, InvalidRequest, Translation, or
// Internal.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTransport:
		return true
	case KindUpstream:
		if e.Status >= 500 {
			return true
		}
		return e.Status == 408 || e.Status == 429
	default:
		return false
	}
}

// TripsBreaker reports whether an attempt ending in this error should count
// against the (upstream,model) circuit breaker. 4xx errors other than
// 408/429 are the caller's fault, not the upstream's, and must not trip it.
func (e *Error) TripsBreaker() bool {
	switch e.Kind {
	case KindTransport:
		return true
	case KindUpstream:
		if e.Status >= 500 {
			return true
		}
		return e.Status == 408 || e.Status == 429
	default:
		return false
	}
}

// HTTPStatus returns the status code this error should surface as, for
// ingresses that haven't already committed to a dialect-specific shape.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindAuth:
		return 401
	case KindInvalidRequest:
		return 400
	case KindTranslation, KindInternal:
		return 500
	case KindUpstream:
		if e.Status != 0 {
			return e.Status
		}
		return 502
	case KindTransport:
		return 504
	default:
		return 500
	}
}

// As reports whether err is (or wraps) an *Error, returning it.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	if ok {
		return e, true
	}
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		return As(u.Unwrap())
	}
	return nil, false
}
