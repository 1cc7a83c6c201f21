package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// GatewayError classifies dispatch failures as transient/permanent.
type GatewayError struct {
	StatusCode int
	Message    string
	Transient  bool
	Cause      error
}

func (e *GatewayError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "gateway error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *GatewayError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransient reports whether a dispatch failure looks retryable on a later
// run. The pipeline records NOT_SENT either way; the classification is kept
// for logs and reports.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var gatewayErr *GatewayError
	if errors.As(err, &gatewayErr) {
		return gatewayErr.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
