package transport

import (
	"errors"
	"fmt"
)

// Sentinel errors for the transport package.
var (
	// ErrClosed is returned when publishing or subscribing on a closed
	// transport.
	ErrClosed = errors.New("transport: closed")

	// ErrInvalidConfig is returned when a Config is missing required
	// fields for its Kind.
	ErrInvalidConfig = errors.New("transport: invalid config")
)

// Error is a network or connection failure at publish or subscribe
// time. Broker rejections are not Errors; they travel in the Receipt.
type Error struct {
	Op      string // "publish" or "subscribe"
	Subject string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport: %s %q: %v", e.Op, e.Subject, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
