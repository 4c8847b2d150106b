// Package mpv implements action.Sink by shelling out to the mpv media
// player. It handles arbitrary media assets (the classic deployment plays a
// fullscreen video on a kiosk display).
package mpv

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/MrWong99/hearken/pkg/action"
)

// Compile-time assertion that Sink satisfies action.Sink.
var _ action.Sink = (*Sink)(nil)

// defaultArgs keep mpv quiet and fullscreen, matching kiosk use.
var defaultArgs = []string{"--fs", "--really-quiet", "--no-terminal"}

// Sink plays assets with an external mpv process, one at a time.
type Sink struct {
	binary string
	args   []string
}

// Option configures a Sink.
type Option func(*Sink)

// WithBinary overrides the mpv executable path. Default: "mpv" on PATH.
func WithBinary(path string) Option {
	return func(s *Sink) { s.binary = path }
}

// WithArgs replaces the default mpv arguments.
func WithArgs(args ...string) Option {
	return func(s *Sink) { s.args = args }
}

// New creates an mpv sink.
func New(opts ...Option) *Sink {
	s := &Sink{binary: "mpv", args: defaultArgs}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Perform runs mpv on the asset and waits for it to exit. Cancelling ctx
// kills the player. A missing mpv binary is reported distinctly since it is
// a deployment problem rather than a playback failure.
func (s *Sink) Perform(ctx context.Context, asset string) error {
	args := append(append([]string{}, s.args...), asset)
	cmd := exec.CommandContext(ctx, s.binary, args...)
	if err := cmd.Run(); err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return fmt.Errorf("mpv: %s not found: %w", s.binary, err)
		}
		return fmt.Errorf("mpv: play %q: %w", asset, err)
	}
	return nil
}
