// Package portaudio implements audio.FrameSource on top of PortAudio. It is
// the default capture backend and carries the USB-microphone auto-detection
// the kiosk deployments rely on: input devices are scanned for a configured
// name substring, falling back to the system default input.
package portaudio

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	portaudiolib "github.com/gordonklaus/portaudio"

	"github.com/MrWong99/hearken/pkg/audio"
)

// Compile-time assertion that Source satisfies audio.FrameSource.
var _ audio.FrameSource = (*Source)(nil)

// DefaultDeviceHint matches the USB microphones shipped with the kiosk
// hardware, as they enumerate on Linux.
const DefaultDeviceHint = "USB PnP"

// Config holds the capture stream parameters.
type Config struct {
	// SampleRate in Hz. Default 16000.
	SampleRate int

	// FrameLength in samples per Read. Default 1280.
	FrameLength int

	// DeviceHint is a case-sensitive substring matched against input device
	// names. Empty uses DefaultDeviceHint; no match falls back to the
	// system default input device.
	DeviceHint string
}

// Source reads fixed-length mono int16 frames from a PortAudio input stream.
type Source struct {
	stream     *portaudiolib.Stream
	buf        []int16
	sampleRate int
	closed     bool
}

// Open initialises PortAudio and opens a mono input stream. Device
// unavailability is a fatal startup error by the pipeline's taxonomy;
// callers abort before listening begins.
func Open(cfg Config) (*Source, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	if cfg.FrameLength <= 0 {
		cfg.FrameLength = audio.DefaultFrameLength
	}
	hint := cfg.DeviceHint
	if hint == "" {
		hint = DefaultDeviceHint
	}

	if err := portaudiolib.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialise: %w", err)
	}

	dev, err := findInputDevice(hint)
	if err != nil {
		portaudiolib.Terminate()
		return nil, err
	}

	s := &Source{
		buf:        make([]int16, cfg.FrameLength),
		sampleRate: cfg.SampleRate,
	}

	var stream *portaudiolib.Stream
	if dev != nil {
		params := portaudiolib.HighLatencyParameters(dev, nil)
		params.Input.Channels = 1
		params.SampleRate = float64(cfg.SampleRate)
		params.FramesPerBuffer = cfg.FrameLength
		stream, err = portaudiolib.OpenStream(params, s.buf)
	} else {
		stream, err = portaudiolib.OpenDefaultStream(1, 0, float64(cfg.SampleRate), cfg.FrameLength, s.buf)
	}
	if err != nil {
		portaudiolib.Terminate()
		return nil, fmt.Errorf("portaudio: open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudiolib.Terminate()
		return nil, fmt.Errorf("portaudio: start stream: %w", err)
	}

	s.stream = stream
	slog.Info("audio stream opened", "backend", "portaudio",
		"sample_rate", cfg.SampleRate, "frame_length", cfg.FrameLength)
	return s, nil
}

// findInputDevice scans input-capable devices for the hint substring,
// logging each one the way the deployment docs describe. Returns nil when
// no device matches, which selects the system default input.
func findInputDevice(hint string) (*portaudiolib.DeviceInfo, error) {
	devices, err := portaudiolib.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: enumerate devices: %w", err)
	}

	var match *portaudiolib.DeviceInfo
	for i, dev := range devices {
		if dev.MaxInputChannels <= 0 {
			continue
		}
		slog.Debug("input device", "index", i, "name", dev.Name,
			"channels", dev.MaxInputChannels, "default_rate", int(dev.DefaultSampleRate))
		if match == nil && strings.Contains(dev.Name, hint) {
			match = dev
			slog.Info("matched input device", "index", i, "name", dev.Name, "hint", hint)
		}
	}
	if match == nil {
		slog.Warn("no input device matched hint, using system default", "hint", hint)
	}
	return match, nil
}

// Read blocks until one full frame has been captured. An input overflow
// (consumer fell behind the hardware buffer) is returned as a transient
// error; the stream remains usable.
func (s *Source) Read() (audio.Frame, error) {
	if s.closed {
		return audio.Frame{}, errors.New("portaudio: source closed")
	}
	if err := s.stream.Read(); err != nil {
		if errors.Is(err, portaudiolib.InputOverflowed) {
			return audio.Frame{}, fmt.Errorf("portaudio: input overflow: %w", err)
		}
		return audio.Frame{}, fmt.Errorf("portaudio: read: %w", err)
	}

	samples := make([]int16, len(s.buf))
	copy(samples, s.buf)
	return audio.Frame{Samples: samples}, nil
}

// Close stops the stream and tears down PortAudio. Teardown errors are
// combined and reported; shutdown proceeds regardless.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.stream.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop stream: %w", err))
	}
	if err := s.stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close stream: %w", err))
	}
	if err := portaudiolib.Terminate(); err != nil {
		errs = append(errs, fmt.Errorf("terminate: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("portaudio: %w", errors.Join(errs...))
	}
	return nil
}

// ListDevices enumerates input-capable devices for the -list-devices CLI
// surface. It initialises and terminates PortAudio around the scan.
func ListDevices() ([]audio.DeviceInfo, error) {
	if err := portaudiolib.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialise: %w", err)
	}
	defer portaudiolib.Terminate()

	devices, err := portaudiolib.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: enumerate devices: %w", err)
	}

	var out []audio.DeviceInfo
	for i, dev := range devices {
		if dev.MaxInputChannels <= 0 {
			continue
		}
		out = append(out, audio.DeviceInfo{
			Index:             i,
			Name:              dev.Name,
			MaxInputChannels:  dev.MaxInputChannels,
			DefaultSampleRate: int(dev.DefaultSampleRate),
		})
	}
	return out, nil
}
