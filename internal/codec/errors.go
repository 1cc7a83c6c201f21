package codec

import (
	"fmt"
	"strings"
)

// CodecError marks a format-level failure: truncated or corrupt compressed
// streams and malformed container structures. Format errors are fatal for
// the batch, unlike per-item lookup failures.
type CodecError struct {
	Op    string
	Cause error
}

func (e *CodecError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 2)
	parts = append(parts, "codec error")
	if op := strings.TrimSpace(e.Op); op != "" {
		parts = append(parts, op)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *CodecError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func codecErrorf(op string, format string, args ...any) *CodecError {
	return &CodecError{Op: op, Cause: fmt.Errorf(format, args...)}
}
