package session

import (
	"context"
	"time"
)

// State is the client-side view of an ABI session. It mirrors the
// broker's /verify and /session/refresh responses with the relative
// expiries converted to absolute epoch seconds at receipt time.
//
// A State is never mutated after construction: a refresh produces a
// new State bound to the same SessionID, superseding the old one.
type State struct {
	AgentID          string `json:"ae_id"`
	SessionID        string `json:"session_id"`
	AccessToken      string `json:"access_token"`
	AccessExpiresAt  int64  `json:"access_expires_at"`
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresAt int64  `json:"refresh_expires_at"`
}

// Grant is the token fragment shared by the broker's verify and
// refresh responses.
type Grant struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
}

// FromGrant builds a State from a broker grant, anchoring the relative
// expiries at now.
func FromGrant(agentID, sessionID string, grant Grant, now time.Time) *State {
	return &State{
		AgentID:          agentID,
		SessionID:        sessionID,
		AccessToken:      grant.AccessToken,
		AccessExpiresAt:  now.Unix() + grant.ExpiresIn,
		RefreshToken:     grant.RefreshToken,
		RefreshExpiresAt: now.Unix() + grant.RefreshExpiresIn,
	}
}

// AccessExpiredAt reports whether the access token is expired at now,
// treating tokens within leeway of expiry as already expired.
func (s *State) AccessExpiredAt(now time.Time, leeway time.Duration) bool {
	return now.Unix() >= s.AccessExpiresAt-int64(leeway.Seconds())
}

// RefreshExpiredAt reports whether the refresh token is expired at now,
// treating tokens within leeway of expiry as already expired.
func (s *State) RefreshExpiredAt(now time.Time, leeway time.Duration) bool {
	return now.Unix() >= s.RefreshExpiresAt-int64(leeway.Seconds())
}

// Clone returns a copy of the state.
func (s *State) Clone() *State {
	copied := *s
	return &copied
}

// Store persists at most one session record. Implementations are
// single-writer: concurrent processes sharing the same backing record
// are out of scope.
type Store interface {
	// Load returns the stored session, or ok=false if no readable
	// record exists. Implementations log and swallow read failures:
	// the caller falls back to fresh registration either way.
	Load(ctx context.Context) (state *State, ok bool)

	// Save persists the session. A concurrent Load never observes a
	// half-written record.
	Save(ctx context.Context, state *State) error

	// Clear removes the backing record. Clearing an absent record is
	// not an error.
	Clear(ctx context.Context) error
}
