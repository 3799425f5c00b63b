package retry

import (
	"context"
	"errors"
	"net"

	"RateSync/internal/domain/models"
)

// Retryable classifies an error for retry purposes. Cancellation is never
// retried, client errors will not heal, and malformed responses stay
// malformed; everything transport-shaped is worth another attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}

	var statusErr *models.APIStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}

	var transportErr *models.TransportError
	if errors.As(err, &transportErr) {
		return true
	}

	var decodeErr *models.DecodeError
	if errors.As(err, &decodeErr) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	return false
}
