// Package beep implements action.Sink with in-process WAV playback through
// the beep/speaker stack. It suits deployments that trigger a sound effect
// rather than an external media player.
package beep

import (
	"context"
	"fmt"
	"os"
	"time"

	beeplib "github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/wav"

	"github.com/MrWong99/hearken/pkg/action"
)

// Compile-time assertion that Sink satisfies action.Sink.
var _ action.Sink = (*Sink)(nil)

// resampleQuality is beep's resampler quality knob; 4 is its recommended
// middle ground between CPU cost and artefacts.
const resampleQuality = 4

// Sink plays WAV assets to the default output device. The speaker is
// initialised on the first Perform with that asset's sample rate; later
// assets at other rates are resampled.
type Sink struct {
	initialised bool
	rate        beeplib.SampleRate
}

// New creates a beep sink. Speaker initialisation is deferred to the first
// Perform so that construction cannot fail on machines without audio output
// unless the sink is actually used.
func New() *Sink {
	return &Sink{}
}

// Perform decodes the WAV asset and plays it to completion. The call blocks
// until the last sample has been handed to the device or ctx is cancelled;
// cancellation stops playback early without error.
func (s *Sink) Perform(ctx context.Context, asset string) error {
	f, err := os.Open(asset)
	if err != nil {
		return fmt.Errorf("beep: open %q: %w", asset, err)
	}
	defer f.Close()

	streamer, format, err := wav.Decode(f)
	if err != nil {
		return fmt.Errorf("beep: decode %q: %w", asset, err)
	}
	defer streamer.Close()

	if !s.initialised {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(100*time.Millisecond)); err != nil {
			return fmt.Errorf("beep: init speaker: %w", err)
		}
		s.initialised = true
		s.rate = format.SampleRate
	}

	var source beeplib.Streamer = streamer
	if format.SampleRate != s.rate {
		source = beeplib.Resample(resampleQuality, format.SampleRate, s.rate, streamer)
	}

	done := make(chan struct{})
	speaker.Play(beeplib.Seq(source, beeplib.Callback(func() { close(done) })))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return nil
	}
}
