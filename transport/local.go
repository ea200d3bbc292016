package transport

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// InProcess is an in-memory bus for offline development and tests.
// Handlers may be bound to exact subjects or to doublestar glob
// patterns ("jobs.*"). Delivery order within a subject follows publish
// order; a failing handler never prevents delivery to the others.
type InProcess struct {
	mu      sync.Mutex
	entries map[string][]*localEntry // subject or pattern -> bindings
	logger  *slog.Logger
	closed  bool
}

type localEntry struct {
	fn Handler
}

var _ Transport = (*InProcess)(nil)

// NewInProcess creates an empty in-process bus.
func NewInProcess(logger *slog.Logger) *InProcess {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcess{
		entries: make(map[string][]*localEntry),
		logger:  logger,
	}
}

// Publish delivers data to every handler whose subject or pattern
// matches. The handler list is snapshotted under the lock and invoked
// outside it, so a handler that itself publishes cannot deadlock.
// Publishing with zero matching subscribers is a no-op.
func (t *InProcess) Publish(_ context.Context, subject string, data []byte) (*Receipt, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, &Error{Op: "publish", Subject: subject, Err: ErrClosed}
	}
	var snapshot []*localEntry
	for key, entries := range t.entries {
		if subjectMatches(key, subject) {
			snapshot = append(snapshot, entries...)
		}
	}
	t.mu.Unlock()

	for _, entry := range snapshot {
		t.invoke(subject, entry.fn, data)
	}
	return &Receipt{Delivered: true}, nil
}

// invoke runs one handler, containing panics so one failing handler
// does not stop delivery to the rest.
func (t *InProcess) invoke(subject string, fn Handler, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("handler panicked", "subject", subject, "panic", r)
		}
	}()
	fn(data)
}

// Subscribe binds a handler to a subject or glob pattern. The returned
// subscription's Stop detaches exactly this binding.
func (t *InProcess) Subscribe(_ context.Context, subject string, fn Handler) (*Subscription, error) {
	if isPattern(subject) {
		if !doublestar.ValidatePattern(subject) {
			return nil, &Error{Op: "subscribe", Subject: subject, Err: ErrInvalidConfig}
		}
	}

	entry := &localEntry{fn: fn}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, &Error{Op: "subscribe", Subject: subject, Err: ErrClosed}
	}
	t.entries[subject] = append(t.entries[subject], entry)
	t.mu.Unlock()

	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		entries := t.entries[subject]
		for i, e := range entries {
			if e == entry {
				t.entries[subject] = append(entries[:i:i], entries[i+1:]...)
				break
			}
		}
		if len(t.entries[subject]) == 0 {
			delete(t.entries, subject)
		}
	}
	return newSubscription(subject, cancel, nil), nil
}

// SetCredential is a no-op: the in-process bus carries no credential.
func (t *InProcess) SetCredential(string) {}

// Close drops all bindings. Further publishes and subscribes fail with
// ErrClosed.
func (t *InProcess) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.entries = make(map[string][]*localEntry)
	return nil
}

// isPattern reports whether a registered subject uses glob syntax.
func isPattern(subject string) bool {
	return strings.ContainsAny(subject, "*?[{")
}

// subjectMatches checks a registered key (exact subject or pattern)
// against a published subject. Dots are literal in doublestar syntax
// and '*' never crosses '/', so dot-separated subjects match naturally.
func subjectMatches(key, subject string) bool {
	if key == subject {
		return true
	}
	if !isPattern(key) {
		return false
	}
	ok, err := doublestar.Match(key, subject)
	return err == nil && ok
}
