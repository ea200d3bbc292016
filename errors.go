package ae

import (
	"errors"
	"fmt"
)

// Sentinel errors for session-state preconditions. They are wrapped by
// the typed errors below so callers can test with errors.Is.
var (
	ErrNoSession      = errors.New("ae: no active session")
	ErrRefreshExpired = errors.New("ae: refresh token expired")
	ErrAccessExpired  = errors.New("ae: access token expired")
)

// RegistrationError is returned when the challenge request, the verify
// request, or the verification result fails. It carries enough context
// to diagnose against a specific broker without re-running with
// elevated logging.
type RegistrationError struct {
	AgentID   string
	BrokerURL string
	Op        string // "challenge" or "verify"
	Status    int    // HTTP status, 0 for network-level failures
	Body      string
	Err       error
}

func (e *RegistrationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("ae: registration %s failed for %q against %s: HTTP %d: %s",
			e.Op, e.AgentID, e.BrokerURL, e.Status, e.Body)
	}
	return fmt.Sprintf("ae: registration %s failed for %q against %s: %v",
		e.Op, e.AgentID, e.BrokerURL, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// SessionError is returned when a session operation cannot proceed: no
// session exists, the refresh token is expired, an explicit refresh
// call fails, or the access token is expired with automatic refresh
// disabled.
type SessionError struct {
	AgentID string
	Status  int
	Body    string
	Err     error
}

func (e *SessionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("ae: session operation failed for %q: HTTP %d: %s",
			e.AgentID, e.Status, e.Body)
	}
	return fmt.Sprintf("ae: session operation failed for %q: %v", e.AgentID, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// CapabilityError is returned when an explicit capability declaration
// is rejected by the broker.
type CapabilityError struct {
	AgentID   string
	BrokerURL string
	Status    int
	Body      string
	Err       error
}

func (e *CapabilityError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("ae: capability declaration failed for %q against %s: HTTP %d: %s",
			e.AgentID, e.BrokerURL, e.Status, e.Body)
	}
	return fmt.Sprintf("ae: capability declaration failed for %q against %s: %v",
		e.AgentID, e.BrokerURL, e.Err)
}

func (e *CapabilityError) Unwrap() error { return e.Err }
