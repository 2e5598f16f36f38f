package client

import (
	"errors"
	"fmt"
)

// ErrorKind is the classification of a driver error. Server-reported
// failures map onto kinds via the (HTTP status, error code) table;
// Protocol, Network, and Client cover failures that never carry a
// service error body.
type ErrorKind int

const (
	// KindService is a server-reported failure with no more specific
	// classification, including responses with an undefined status.
	KindService ErrorKind = iota
	// KindQueryCheck is an invalid query rejected before execution.
	KindQueryCheck
	// KindQueryRuntime is a query failure raised during execution.
	KindQueryRuntime
	// KindAbort is a user-initiated abort; the abort payload carries
	// the value passed to abort().
	KindAbort
	// KindConstraintFailure is a write rejected by a schema constraint.
	KindConstraintFailure
	// KindInvalidRequest is a request the service could not process.
	KindInvalidRequest
	// KindAuthentication means the secret was missing or invalid.
	KindAuthentication
	// KindAuthorization means the secret lacks permission.
	KindAuthorization
	// KindContendedTransaction is a transaction aborted due to contention.
	KindContendedTransaction
	// KindThrottling is a rate-limit rejection; transient by definition.
	KindThrottling
	// KindQueryTimeout means the server ran out of time, as opposed to
	// the client giving up waiting.
	KindQueryTimeout
	// KindServiceInternal is an unexpected server-side failure.
	KindServiceInternal
	// KindProtocol is an HTTP-layer failure not originating from the
	// service, such as a malformed body or an intermediary's status.
	KindProtocol
	// KindNetwork means the transport never completed the round trip.
	KindNetwork
	// KindClient is a failure inside the driver, or a caller-supplied
	// transport, before any request reached the service.
	KindClient
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindService:
		return "service_error"
	case KindQueryCheck:
		return "query_check_error"
	case KindQueryRuntime:
		return "query_runtime_error"
	case KindAbort:
		return "abort_error"
	case KindConstraintFailure:
		return "constraint_failure_error"
	case KindInvalidRequest:
		return "invalid_request_error"
	case KindAuthentication:
		return "authentication_error"
	case KindAuthorization:
		return "authorization_error"
	case KindContendedTransaction:
		return "contended_transaction_error"
	case KindThrottling:
		return "throttling_error"
	case KindQueryTimeout:
		return "query_timeout_error"
	case KindServiceInternal:
		return "service_internal_error"
	case KindProtocol:
		return "protocol_error"
	case KindNetwork:
		return "network_error"
	case KindClient:
		return "client_error"
	default:
		return "unknown_error"
	}
}

// ConstraintFailure describes one violated constraint.
type ConstraintFailure struct {
	Message string          `json:"message"`
	Name    string          `json:"name,omitempty"`
	Paths   [][]interface{} `json:"paths,omitempty"`
}

// Error is the driver's error type. Classification happens once, at the
// boundary where the raw failure is observed; the instance then
// propagates unchanged through retries and iteration.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Code       string
	Message    string
	Summary    string

	// ConstraintFailures is populated for KindConstraintFailure.
	ConstraintFailures []ConstraintFailure

	// Abort carries the decoded abort payload for KindAbort.
	Abort interface{}

	// TxnTime and Stats carry the failure response's query info when
	// the service supplied one.
	TxnTime int64
	Stats   *Stats

	// Cause is the underlying low-level error; always set for
	// KindNetwork and KindClient.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %s)", e.Kind, msg, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// AsError extracts a classified *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// IsThrottling reports whether err is a rate-limit rejection. The retry
// layers treat only these as transient.
func IsThrottling(err error) bool {
	e, ok := AsError(err)
	return ok && e.Kind == KindThrottling
}

// IsQueryTimeout reports whether the server ran out of time executing
// the query.
func IsQueryTimeout(err error) bool {
	e, ok := AsError(err)
	return ok && e.Kind == KindQueryTimeout
}

// queryCheckCodes are the 400-status codes raised before a query runs.
var queryCheckCodes = map[string]bool{
	"invalid_query":               true,
	"invalid_syntax":              true,
	"invalid_type":                true,
	"invalid_identifier":          true,
	"invalid_function_definition": true,
}

// classify maps a (status, code) pair onto an error kind. A zero status
// means the service reported a failure without an HTTP status, such as
// an embedded error event; those classify by code alone.
func classify(status int, code string) ErrorKind {
	if status == 0 || status == 400 {
		switch {
		case queryCheckCodes[code]:
			return KindQueryCheck
		case code == "abort":
			return KindAbort
		case code == "constraint_failure":
			return KindConstraintFailure
		case code == "invalid_request":
			return KindInvalidRequest
		case code == "throttle" || code == "limit_exceeded":
			// Embedded events report throttling by code only.
			if status == 0 {
				return KindThrottling
			}
		}
		if status == 400 {
			return KindQueryRuntime
		}
		return KindService
	}

	switch status {
	case 401:
		return KindAuthentication
	case 403:
		return KindAuthorization
	case 409:
		return KindContendedTransaction
	case 429:
		return KindThrottling
	case 440, 503:
		return KindQueryTimeout
	case 500:
		return KindServiceInternal
	default:
		return KindService
	}
}

// newServiceError builds a classified error from a service failure body.
func newServiceError(status int, w *wireError) *Error {
	e := &Error{
		Kind:       classify(status, w.Code),
		StatusCode: status,
		Code:       w.Code,
		Message:    w.Message,
	}
	if len(w.ConstraintFailures) > 0 {
		e.ConstraintFailures = w.ConstraintFailures
	}
	return e
}

// newProtocolError marks an HTTP response that does not match the
// service's failure schema.
func newProtocolError(status int, message string, cause error) *Error {
	return &Error{Kind: KindProtocol, StatusCode: status, Message: message, Cause: cause}
}

// newNetworkError marks a round trip the transport never completed.
func newNetworkError(cause error) *Error {
	return &Error{Kind: KindNetwork, Message: "the request never reached the service", Cause: cause}
}

// newClientError marks a failure inside the driver before dispatch.
func newClientError(message string, cause error) *Error {
	return &Error{Kind: KindClient, Message: message, Cause: cause}
}

// wrapAsClientError passes already-classified errors through unchanged
// and wraps anything else as a driver-internal failure.
func wrapAsClientError(message string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsError(err); ok {
		return err
	}
	return newClientError(message, err)
}

// ConfigError reports missing or conflicting configuration, detected
// eagerly at construction time.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

// RangeError reports a configuration value outside its permitted range.
type RangeError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *RangeError) Error() string {
	return fmt.Sprintf("configuration out of range: %s: %s", e.Field, e.Message)
}
