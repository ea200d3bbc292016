// Package session holds the client-side view of an ABI session (the
// access/refresh token pair with expiry bookkeeping) and Store
// implementations that persist exactly one session record per agent.
//
// A store is best-effort caching, not a correctness requirement: the
// broker remains the source of truth, so load failures degrade to "no
// session" and save failures are logged by the owning client rather
// than raised.
package session
