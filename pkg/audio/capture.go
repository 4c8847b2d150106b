package audio

import (
	"log/slog"
	"sync"
	"time"
)

// defaultJoinTimeout bounds Stop's wait for the capture goroutine to exit.
// A source read can block for at most the hardware buffer span, so two
// seconds is generous; an overrun is reported, not fatal.
const defaultJoinTimeout = 2 * time.Second

// CaptureLoop pulls frames from a FrameSource on its own goroutine and
// pushes them into a FrameQueue. Start and Stop are idempotent and may be
// called repeatedly over the process lifetime: the trigger controller
// suspends capture for the duration of every playback action and resumes it
// afterwards.
//
// Start/Stop must be called from a single goroutine (the controller's);
// only the internal capture goroutine touches the source while running.
type CaptureLoop struct {
	source FrameSource
	queue  *FrameQueue

	joinTimeout time.Duration
	onFrame     func(Frame, bool)

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool

	// seq and started persist across Start/Stop cycles so that sequence
	// numbers and timestamps stay monotonic for the whole session.
	seq     uint64
	started time.Time
}

// CaptureOption configures a CaptureLoop.
type CaptureOption func(*CaptureLoop)

// WithJoinTimeout sets how long Stop waits for the capture goroutine.
func WithJoinTimeout(d time.Duration) CaptureOption {
	return func(c *CaptureLoop) { c.joinTimeout = d }
}

// WithFrameObserver registers a callback invoked after every push attempt
// with the frame and whether the queue accepted it. Used for metrics.
func WithFrameObserver(fn func(Frame, bool)) CaptureOption {
	return func(c *CaptureLoop) { c.onFrame = fn }
}

// NewCaptureLoop creates a capture loop reading from source into queue.
// The loop is created stopped; call Start to begin producing frames.
func NewCaptureLoop(source FrameSource, queue *FrameQueue, opts ...CaptureOption) *CaptureLoop {
	c := &CaptureLoop{
		source:      source,
		queue:       queue,
		joinTimeout: defaultJoinTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start spawns the capture goroutine. Calling Start while the loop is
// already running is a no-op, so restart is safely re-entrant.
func (c *CaptureLoop) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return
	}
	// A previous Stop may have abandoned its join while the goroutine was
	// still blocked inside source.Read. Two live readers would race on the
	// source and the sequence counter, so wait the old goroutine out before
	// spawning; if it is still stuck after the timeout, refuse and let a
	// later Start retry.
	if c.done != nil {
		select {
		case <-c.done:
		case <-time.After(c.joinTimeout):
			slog.Warn("previous capture goroutine still running, refusing to start another",
				"timeout", c.joinTimeout)
			return
		}
	}
	if c.started.IsZero() {
		c.started = time.Now()
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.running = true
	go c.run(c.stop, c.done)
	slog.Debug("capture loop started")
}

// Stop signals the capture goroutine to exit and joins it within a bounded
// timeout. A goroutine that fails to exit in time is reported via the log
// and left to finish on its own; capture is best-effort and must never
// wedge the caller.
func (c *CaptureLoop) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	close(c.stop)
	select {
	case <-c.done:
	case <-time.After(c.joinTimeout):
		slog.Warn("capture goroutine did not exit in time, abandoning join",
			"timeout", c.joinTimeout)
	}
	c.running = false
	slog.Debug("capture loop stopped")
}

// Running reports whether the capture goroutine is active.
func (c *CaptureLoop) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *CaptureLoop) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		frame, err := c.source.Read()
		if err != nil {
			// Device-level read errors (input overflow under CPU pressure
			// being the common one) are transient: the source audio is
			// continuous, so log and keep reading.
			slog.Warn("capture read error", "err", err)
			continue
		}
		frame.Seq = c.seq
		frame.Timestamp = time.Since(c.started)
		c.seq++

		ok, err := c.queue.Push(frame)
		if err != nil {
			// Queue closed: shutdown is in progress.
			return
		}
		if !ok {
			slog.Debug("frame dropped by queue policy", "seq", frame.Seq)
		}
		if c.onFrame != nil {
			c.onFrame(frame, ok)
		}
	}
}
