package audio

import "time"

// Default capture parameters. One frame is the inference quantum of the
// wake-word models: 80 ms of 16 kHz mono audio.
const (
	DefaultSampleRate  = 16000
	DefaultFrameLength = 1280
)

// Frame is a single fixed-length chunk of mono signed 16-bit PCM flowing
// through the pipeline. Frames are created by a FrameSource and never
// mutated afterwards; the queue owns a frame until the consumer pops it.
type Frame struct {
	// Samples is the PCM payload. Length is fixed per pipeline config
	// (one inference quantum, e.g. 1280 samples at 16 kHz).
	Samples []int16

	// Seq is the capture sequence number, starting at 0 and increasing by
	// one per frame read from the source.
	Seq uint64

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// Duration returns the wall-clock span the frame covers at the given sample rate.
func (f Frame) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(sampleRate)
}
