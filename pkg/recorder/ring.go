// Package recorder provides the rotating debug recording ring: the last few
// seconds of captured audio, persisted as a fixed set of WAV files that are
// overwritten in rotation. It exists purely for debugging wake-word misses
// and sits off the detection path — frames are handed to it inline on the
// consumer goroutine after they have been dequeued.
package recorder

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/MrWong99/hearken/pkg/audio"
)

// Defaults matching the debug-recording surface: ten files of five seconds
// each, so the ring spans the last 50 seconds of audio.
const (
	DefaultNumFiles        = 10
	DefaultDurationSeconds = 5
)

// Ring accumulates samples and writes them out as buffer_<index>.wav files,
// rotating the index modulo the file count. Samples beyond a file boundary
// carry over into the next accumulation, so no audio is lost or duplicated
// across files.
//
// Not safe for concurrent use; Process is called from the single consumer
// goroutine.
type Ring struct {
	dir            string
	numFiles       int
	sampleRate     int
	samplesPerFile int

	index   int
	buf     []int16
	onWrite func(index int, err error)
}

// RingOption configures a Ring.
type RingOption func(*Ring)

// WithNumFiles sets how many files the ring rotates through.
func WithNumFiles(n int) RingOption {
	return func(r *Ring) { r.numFiles = n }
}

// WithDurationSeconds sets the audio span of each file.
func WithDurationSeconds(s int) RingOption {
	return func(r *Ring) { r.samplesPerFile = s * r.sampleRate }
}

// WithWriteObserver registers a callback invoked after every file write
// attempt with the rotation index and the write outcome.
func WithWriteObserver(fn func(index int, err error)) RingOption {
	return func(r *Ring) { r.onWrite = fn }
}

// NewRing creates a ring writing mono 16-bit WAV files into dir, creating
// the directory if needed.
func NewRing(dir string, sampleRate int, opts ...RingOption) (*Ring, error) {
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}
	r := &Ring{
		dir:            dir,
		numFiles:       DefaultNumFiles,
		sampleRate:     sampleRate,
		samplesPerFile: DefaultDurationSeconds * sampleRate,
	}
	for _, o := range opts {
		o(r)
	}
	if r.numFiles < 1 {
		return nil, fmt.Errorf("recorder: num files must be at least 1, got %d", r.numFiles)
	}
	if r.samplesPerFile < 1 {
		return nil, fmt.Errorf("recorder: samples per file must be positive, got %d", r.samplesPerFile)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("recorder: create %q: %w", dir, err)
	}
	return r, nil
}

// SamplesPerFile returns how many samples each ring file holds.
func (r *Ring) SamplesPerFile() int { return r.samplesPerFile }

// Process appends the frame's samples to the accumulation buffer and writes
// a ring file each time a full file's worth is available. Write failures are
// logged and non-fatal: the buffer advances normally so the next rotation is
// attempted with fresh audio.
func (r *Ring) Process(frame audio.Frame) {
	r.buf = append(r.buf, frame.Samples...)
	for len(r.buf) >= r.samplesPerFile {
		err := r.writeFile(r.buf[:r.samplesPerFile])
		if err != nil {
			slog.Warn("debug recording write failed", "index", r.index, "err", err)
		}
		if r.onWrite != nil {
			r.onWrite(r.index, err)
		}
		// Carry the overflow into the next file regardless of write outcome.
		r.buf = append(r.buf[:0:0], r.buf[r.samplesPerFile:]...)
		r.index = (r.index + 1) % r.numFiles
	}
}

// FilePath returns the path of the ring file at the given rotation index.
func (r *Ring) FilePath(index int) string {
	return filepath.Join(r.dir, fmt.Sprintf("buffer_%d.wav", index))
}

func (r *Ring) writeFile(samples []int16) error {
	f, err := os.Create(r.FilePath(r.index))
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}

	enc := wav.NewEncoder(f, r.sampleRate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: r.sampleRate},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		f.Close()
		return fmt.Errorf("encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalise: %w", err)
	}
	return f.Close()
}
