// Package wavfile implements audio.FrameSource over a prerecorded WAV
// file. It backs the offline detection runner (hearken-file) and tests:
// the same detector code that scores live microphone audio can be driven
// from a reproducible recording.
package wavfile

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	audiopkg "github.com/MrWong99/hearken/pkg/audio"
)

// Compile-time assertion that Source satisfies audio.FrameSource.
var _ audiopkg.FrameSource = (*Source)(nil)

// Source yields fixed-length frames from a WAV file, downmixing stereo to
// mono. Read returns io.EOF once the file is exhausted; a trailing partial
// frame is discarded, matching the live pipeline where frames are always
// exactly one inference quantum.
//
// Unlike the live backends this source is finite, so it is not meant to sit
// behind a CaptureLoop (which treats read errors as transient and retries).
type Source struct {
	f           *os.File
	dec         *wav.Decoder
	frameLength int
	sampleRate  int
	channels    int
	pending     []int16
	eof         bool
}

// Open opens and validates the WAV file. Files are expected to be 16-bit
// PCM; a sample rate other than expectedRate is logged as a warning (the
// detector will mis-score resampled audio) but not rejected, matching the
// file-tester's tolerance.
func Open(path string, frameLength, expectedRate int) (*Source, error) {
	if frameLength <= 0 {
		frameLength = audiopkg.DefaultFrameLength
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wavfile: open %q: %w", path, err)
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("wavfile: %q is not a valid WAV file", path)
	}
	if dec.BitDepth != 16 {
		f.Close()
		return nil, fmt.Errorf("wavfile: %q has %d-bit samples, want 16-bit PCM", path, dec.BitDepth)
	}
	if expectedRate > 0 && int(dec.SampleRate) != expectedRate {
		slog.Warn("wav sample rate differs from pipeline rate; detection quality will suffer",
			"file", path, "file_rate", dec.SampleRate, "pipeline_rate", expectedRate)
	}

	return &Source{
		f:           f,
		dec:         dec,
		frameLength: frameLength,
		sampleRate:  int(dec.SampleRate),
		channels:    int(dec.NumChans),
	}, nil
}

// SampleRate returns the file's sample rate in Hz.
func (s *Source) SampleRate() int { return s.sampleRate }

// Read returns the next frame, or io.EOF after the last full frame.
func (s *Source) Read() (audiopkg.Frame, error) {
	for !s.eof && len(s.pending) < s.frameLength {
		if err := s.fill(); err != nil {
			return audiopkg.Frame{}, err
		}
	}
	if len(s.pending) < s.frameLength {
		return audiopkg.Frame{}, io.EOF
	}

	samples := make([]int16, s.frameLength)
	copy(samples, s.pending)
	s.pending = append(s.pending[:0:0], s.pending[s.frameLength:]...)
	return audiopkg.Frame{Samples: samples}, nil
}

// fill decodes one chunk from the file into the pending buffer.
func (s *Source) fill() error {
	buf := &goaudio.IntBuffer{
		Data:   make([]int, s.frameLength*s.channels),
		Format: &goaudio.Format{NumChannels: s.channels, SampleRate: s.sampleRate},
	}
	n, err := s.dec.PCMBuffer(buf)
	if err != nil {
		return fmt.Errorf("wavfile: decode: %w", err)
	}
	if n == 0 {
		s.eof = true
		return nil
	}

	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(buf.Data[i])
	}
	if s.channels == 2 {
		samples = audiopkg.StereoToMono(samples)
	}
	s.pending = append(s.pending, samples...)
	return nil
}

// Close closes the underlying file.
func (s *Source) Close() error {
	return s.f.Close()
}
