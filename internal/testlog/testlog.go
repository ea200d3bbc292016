// Package testlog provides a capturing slog handler so tests can
// assert on best-effort failures that are logged rather than returned.
package testlog

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Recorder is a slog.Handler that records every message it handles.
type Recorder struct {
	mu      sync.Mutex
	records []slog.Record
}

// New returns a logger writing into the returned Recorder.
func New() (*slog.Logger, *Recorder) {
	r := &Recorder{}
	return slog.New(r), r
}

func (r *Recorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *Recorder) Handle(_ context.Context, rec slog.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec.Clone())
	return nil
}

func (r *Recorder) WithAttrs([]slog.Attr) slog.Handler { return r }
func (r *Recorder) WithGroup(string) slog.Handler      { return r }

// Messages returns every recorded message text.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.Message
	}
	return out
}

// Contains reports whether any recorded message contains the substring.
func (r *Recorder) Contains(substr string) bool {
	for _, msg := range r.Messages() {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

// CountLevel returns how many records were emitted at the given level.
func (r *Recorder) CountLevel(level slog.Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if rec.Level == level {
			n++
		}
	}
	return n
}
