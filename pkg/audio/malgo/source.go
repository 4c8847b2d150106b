// Package malgo implements audio.FrameSource on top of miniaudio (via the
// malgo binding). It is the fallback capture backend for platforms where
// PortAudio is unavailable; miniaudio ships vendored, so the binary has no
// native audio dependency.
//
// miniaudio delivers audio via a device callback in chunks of its own
// choosing, so the source re-frames internally: callback bytes feed a
// channel and Read assembles exactly one pipeline frame at a time.
package malgo

import (
	"errors"
	"fmt"
	"log/slog"

	malgolib "github.com/gen2brain/malgo"

	"github.com/MrWong99/hearken/pkg/audio"
)

// Compile-time assertion that Source satisfies audio.FrameSource.
var _ audio.FrameSource = (*Source)(nil)

// chunkBuffer is the callback-to-reader channel depth. Callback chunks are
// ~10 ms; 64 of them rides out a consumer stall of over half a second
// before the callback starts dropping.
const chunkBuffer = 64

// Config holds the capture stream parameters.
type Config struct {
	// SampleRate in Hz. Default 16000.
	SampleRate int

	// FrameLength in samples per Read. Default 1280.
	FrameLength int
}

// Source reads fixed-length mono int16 frames from a miniaudio capture device.
type Source struct {
	ctx    *malgolib.AllocatedContext
	device *malgolib.Device

	frameLength int
	chunks      chan []int16
	pending     []int16
	closed      bool
}

// Open initialises miniaudio and starts the default capture device.
func Open(cfg Config) (*Source, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	if cfg.FrameLength <= 0 {
		cfg.FrameLength = audio.DefaultFrameLength
	}

	mctx, err := malgolib.InitContext(nil, malgolib.ContextConfig{}, func(message string) {
		slog.Debug("miniaudio", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("malgo: initialise context: %w", err)
	}

	s := &Source{
		ctx:         mctx,
		frameLength: cfg.FrameLength,
		chunks:      make(chan []int16, chunkBuffer),
	}

	deviceConfig := malgolib.DefaultDeviceConfig(malgolib.Capture)
	deviceConfig.Capture.Format = malgolib.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(cfg.SampleRate)

	callbacks := malgolib.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			select {
			case s.chunks <- audio.BytesToInt16(input):
			default:
				// Reader stalled past the channel depth; dropping here is
				// the overflow the pipeline already tolerates.
			}
		},
	}

	device, err := malgolib.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		teardownContext(mctx)
		return nil, fmt.Errorf("malgo: initialise device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		teardownContext(mctx)
		return nil, fmt.Errorf("malgo: start device: %w", err)
	}

	s.device = device
	slog.Info("audio stream opened", "backend", "miniaudio",
		"sample_rate", cfg.SampleRate, "frame_length", cfg.FrameLength)
	return s, nil
}

// Read assembles and returns the next full frame from callback chunks.
func (s *Source) Read() (audio.Frame, error) {
	for len(s.pending) < s.frameLength {
		chunk, ok := <-s.chunks
		if !ok {
			return audio.Frame{}, errors.New("malgo: source closed")
		}
		s.pending = append(s.pending, chunk...)
	}

	samples := make([]int16, s.frameLength)
	copy(samples, s.pending)
	s.pending = append(s.pending[:0:0], s.pending[s.frameLength:]...)
	return audio.Frame{Samples: samples}, nil
}

// Close stops the device and frees the miniaudio context, waking any
// blocked Read.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.device.Uninit()
	close(s.chunks)
	if err := teardownContext(s.ctx); err != nil {
		return fmt.Errorf("malgo: %w", err)
	}
	return nil
}

func teardownContext(mctx *malgolib.AllocatedContext) error {
	err := mctx.Uninit()
	mctx.Free()
	return err
}
