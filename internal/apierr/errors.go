// Package apierr provides the engine's unified error taxonomy.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies one entry in the engine's error taxonomy.
type Kind string

const (
	KindValidation       Kind = "VALIDATION"
	KindNotFound         Kind = "NOT_FOUND"
	KindCycleDetected    Kind = "CYCLE_DETECTED"
	KindResolution       Kind = "RESOLUTION"
	KindHTTPIO           Kind = "HTTP_IO"
	KindRetryExhausted   Kind = "HANDLER_RETRY_EXHAUSTED"
	KindVerificationErr  Kind = "VERIFICATION_QUERY"
	KindAssertion        Kind = "ASSERTION"
	KindInputTimeout     Kind = "INPUT_TIMEOUT"
	KindCancelled        Kind = "CANCELLED"
	KindInternal         Kind = "INTERNAL"
)

// EngineError is a structured error carrying its taxonomy kind, an
// HTTP status for synchronous control-plane responses, and optional
// details.
type EngineError struct {
	Kind       Kind                   `json:"kind"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped error for errors.Is/As.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// WithDetails attaches a key/value detail, returning the receiver for
// chaining.
func (e *EngineError) WithDetails(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func httpStatusFor(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindCycleDetected:
		return http.StatusUnprocessableEntity
	case KindResolution, KindHTTPIO, KindRetryExhausted, KindVerificationErr, KindAssertion:
		return http.StatusOK // step-local failures are reported in a 200 run result, not a transport error
	case KindInputTimeout:
		return http.StatusOK
	case KindCancelled:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// New creates an EngineError of the given kind.
func New(kind Kind, message string) *EngineError {
	return &EngineError{Kind: kind, Message: message, HTTPStatus: httpStatusFor(kind)}
}

// Wrap creates an EngineError of the given kind wrapping err.
func Wrap(kind Kind, message string, err error) *EngineError {
	return &EngineError{Kind: kind, Message: message, HTTPStatus: httpStatusFor(kind), Err: err}
}

// Validation builds a VALIDATION error.
func Validation(message string) *EngineError { return New(KindValidation, message) }

// NotFound builds a NOT_FOUND error naming the missing resource/id.
func NotFound(resource, id string) *EngineError {
	return New(KindNotFound, fmt.Sprintf("%s not found", resource)).WithDetails("id", id)
}

// CycleDetected builds a CYCLE_DETECTED planner error.
func CycleDetected(suiteID string) *EngineError {
	return New(KindCycleDetected, "dependency cycle detected").WithDetails("suite_id", suiteID)
}

// Resolution builds a RESOLUTION error naming the offending token.
func Resolution(token string) *EngineError {
	return New(KindResolution, "failed to resolve placeholder").WithDetails("token", token)
}

// HTTPIO builds an HTTP_IO error for connection/timeout failures.
func HTTPIO(err error) *EngineError {
	return Wrap(KindHTTPIO, "http request failed", err)
}

// RetryExhausted builds a HANDLER_RETRY_EXHAUSTED error.
func RetryExhausted(attempts int) *EngineError {
	return New(KindRetryExhausted, "retry attempts exhausted").WithDetails("attempts", attempts)
}

// VerificationQuery builds a VERIFICATION_QUERY error for driver failures.
func VerificationQuery(connector string, err error) *EngineError {
	return Wrap(KindVerificationErr, "verification query failed", err).WithDetails("connector", connector)
}

// Assertion builds an ASSERTION error naming the failing assertion.
func Assertion(jsonPath, reason string) *EngineError {
	return New(KindAssertion, reason).WithDetails("json_path", jsonPath)
}

// InputTimeout builds an INPUT_TIMEOUT error.
func InputTimeout(field string) *EngineError {
	return New(KindInputTimeout, "manual input not submitted in time").WithDetails("field", field)
}

// Cancelled builds a CANCELLED error.
func Cancelled(runID string) *EngineError {
	return New(KindCancelled, "run was cancelled").WithDetails("run_id", runID)
}

// Internal builds a catch-all internal error.
func Internal(message string, err error) *EngineError {
	return Wrap(KindInternal, message, err)
}

// As extracts an *EngineError from err's chain, if present.
func As(err error) *EngineError {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee
	}
	return nil
}

// Is reports whether err's chain contains an EngineError of the given kind.
func Is(err error, kind Kind) bool {
	ee := As(err)
	return ee != nil && ee.Kind == kind
}

// HTTPStatus returns the HTTP status for err, defaulting to 500 for
// errors outside the taxonomy.
func HTTPStatus(err error) int {
	if ee := As(err); ee != nil {
		return ee.HTTPStatus
	}
	return http.StatusInternalServerError
}
