package models

import "fmt"

// Transport error kinds.
const (
	TransportTimeout    = "timeout"
	TransportDNS        = "dns"
	TransportConnection = "connection"
	TransportOffline    = "offline"
)

// TransportError is a network-level failure below the HTTP status layer.
type TransportError struct {
	Kind string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIStatusError is a non-2xx response from the remote rates API.
type APIStatusError struct {
	StatusCode int
}

func (e *APIStatusError) Error() string {
	return fmt.Sprintf("rates api status %d", e.StatusCode)
}

// Retryable reports whether the status class justifies a retry. Client
// errors will not heal on their own; only server errors are retried.
func (e *APIStatusError) Retryable() bool { return e.StatusCode >= 500 }

// DecodeError is a malformed remote response body.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode response: %v", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// DateParseError is a date string that failed the strict YYYY-MM-DD contract.
type DateParseError struct {
	Input string
	Err   error
}

func (e *DateParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse date %q: %v", e.Input, e.Err)
	}
	return fmt.Sprintf("parse date %q: not a zero-padded calendar day", e.Input)
}

func (e *DateParseError) Unwrap() error { return e.Err }

// DateCalculationError is malformed date arithmetic (inverted or zero
// ranges). Never swallowed; gap analysis propagates it.
type DateCalculationError struct {
	Reason string
}

func (e *DateCalculationError) Error() string {
	return "date calculation: " + e.Reason
}

// RetryExhaustedError wraps the last failure after the retry budget is spent.
// Distinguishable from the original cause by type; the cause stays reachable
// through Unwrap.
type RetryExhaustedError struct {
	Endpoint string
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s: retries exhausted after %d attempts: %v", e.Endpoint, e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// StorageError is a durable-tier failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }
