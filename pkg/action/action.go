// Package action defines the Sink interface for the playback action a wake
// word triggers. Sinks are synchronous: the trigger controller blocks on
// Perform so that no audio is scored while the action runs.
package action

import "context"

// Sink performs the configured playback action to completion.
type Sink interface {
	// Perform plays the referenced asset and blocks until playback finishes
	// or ctx is cancelled. An error means the action could not be performed;
	// callers treat it as transient and resume listening.
	Perform(ctx context.Context, asset string) error
}

// Func adapts a function to the Sink interface.
type Func func(ctx context.Context, asset string) error

// Perform calls f.
func (f Func) Perform(ctx context.Context, asset string) error {
	return f(ctx, asset)
}
