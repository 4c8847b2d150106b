package audio

// FrameSource abstracts a live audio input that produces fixed-length PCM
// frames. Implementations live in pkg/audio/portaudio, pkg/audio/malgo and
// pkg/audio/wavfile.
//
// Read blocks until one full frame is available (bounded by the hardware
// buffer for live inputs). A read error signals a device-level problem such
// as an input overflow; callers treat it as transient — the stream stays
// usable and the next Read is expected to succeed. Sources are not safe for
// concurrent Reads; the CaptureLoop is their only reader.
type FrameSource interface {
	// Read returns the next frame in capture order.
	Read() (Frame, error)

	// Close releases the underlying stream. Read must not be called after
	// Close. Calling Close more than once is safe.
	Close() error
}

// DeviceInfo describes one input-capable audio device, as reported by a
// capture backend's device enumeration.
type DeviceInfo struct {
	// Index is the backend-specific device index.
	Index int

	// Name is the human-readable device name (e.g. "USB PnP Audio Device").
	Name string

	// MaxInputChannels is the number of input channels the device supports.
	MaxInputChannels int

	// DefaultSampleRate is the device's preferred sample rate in Hz.
	DefaultSampleRate int
}
