package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every sink in a [Fallback] chain fails.
var ErrAllFailed = errors.New("action: all sinks failed")

// fallbackEntry pairs a sink with the name used in logs.
type fallbackEntry struct {
	name string
	sink Sink
}

// Fallback wraps a primary and zero or more fallback sinks. When the primary
// fails, the next sink is tried in registration order. A cancelled context
// stops the chain immediately instead of retrying a deliberate interrupt on
// the next player.
//
// Fallback is safe for concurrent use; the chain is fixed at construction.
type Fallback struct {
	entries []fallbackEntry
}

// NewFallback creates a [Fallback] with primary as the first entry.
// Additional sinks are registered via [Fallback.Add].
func NewFallback(primaryName string, primary Sink) *Fallback {
	return &Fallback{entries: []fallbackEntry{{name: primaryName, sink: primary}}}
}

// Add appends a fallback sink. Fallbacks are tried in the order they are
// added, after the primary.
func (f *Fallback) Add(name string, sink Sink) *Fallback {
	f.entries = append(f.entries, fallbackEntry{name: name, sink: sink})
	return f
}

// Perform tries each sink in order until one succeeds. Returns [ErrAllFailed]
// wrapped with the last error if every sink fails.
func (f *Fallback) Perform(ctx context.Context, asset string) error {
	var lastErr error
	for _, entry := range f.entries {
		err := entry.sink.Perform(ctx, asset)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		lastErr = err
		slog.Warn("player failed, trying next", "player", entry.name, "err", err)
	}
	return fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

var _ Sink = (*Fallback)(nil)
