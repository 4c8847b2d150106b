// Package trigger implements the detection state machine at the heart of
// Hearken: it consumes frames from the capture queue, scores them against
// the wake-word detector, and on a confident detection runs the exclusive
// suspend → flush → reset → act → resume protocol before listening again.
package trigger

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/MrWong99/hearken/pkg/action"
	"github.com/MrWong99/hearken/pkg/audio"
	"github.com/MrWong99/hearken/pkg/detect"
)

// State is the controller's externally observable state.
type State int32

const (
	// StateListening: popping frames and scoring them.
	StateListening State = iota

	// StateFired: a detection crossed the threshold; capture is being
	// suspended, stale audio flushed, and the action performed.
	StateFired

	// StateSuspended: the action finished; capture is being restarted.
	// The only path back to Listening, so flush-then-reset is never skipped.
	StateSuspended

	// StateShutdown: terminal; reached on context cancellation from any state.
	StateShutdown
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateFired:
		return "fired"
	case StateSuspended:
		return "suspended"
	case StateShutdown:
		return "shutdown"
	}
	return "unknown"
}

// defaultPopTimeout is the consumer's queue-poll interval. It doubles as the
// cooperative cancellation check period: a shutdown signal is observed
// within one interval.
const defaultPopTimeout = 500 * time.Millisecond

// FrameTap receives every frame the controller consumes, in scoring order,
// inline on the consumer goroutine. The debug recording ring implements it.
type FrameTap interface {
	Process(audio.Frame)
}

// Controller owns the consumer side of the pipeline. Construct with New,
// then call Run exactly once; Run returns when ctx is cancelled.
type Controller struct {
	queue    *audio.FrameQueue
	capture  *audio.CaptureLoop
	detector detect.Detector
	sink     action.Sink
	asset    string

	threshold  float64
	popTimeout time.Duration
	tap        FrameTap

	onDetect func(detect.Event)
	onAction func(time.Duration, error)

	state atomic.Int32
}

// Option configures a Controller.
type Option func(*Controller)

// WithPopTimeout sets the queue poll interval. Default 500 ms.
func WithPopTimeout(d time.Duration) Option {
	return func(c *Controller) { c.popTimeout = d }
}

// WithFrameTap registers a tap that sees every consumed frame before it is
// scored. Used for the debug recording ring.
func WithFrameTap(t FrameTap) Option {
	return func(c *Controller) { c.tap = t }
}

// WithDetectionObserver registers a callback invoked on every fired
// detection. Used for metrics.
func WithDetectionObserver(fn func(detect.Event)) Option {
	return func(c *Controller) { c.onDetect = fn }
}

// WithActionObserver registers a callback invoked after every action with
// its duration and outcome. Used for metrics.
func WithActionObserver(fn func(time.Duration, error)) Option {
	return func(c *Controller) { c.onAction = fn }
}

// New creates a Controller. threshold is the strict confidence bound a
// label's score must exceed to fire; asset is handed to the sink verbatim.
func New(queue *audio.FrameQueue, capture *audio.CaptureLoop, detector detect.Detector, sink action.Sink, asset string, threshold float64, opts ...Option) *Controller {
	c := &Controller{
		queue:      queue,
		capture:    capture,
		detector:   detector,
		sink:       sink,
		asset:      asset,
		threshold:  threshold,
		popTimeout: defaultPopTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns the current state. Safe to call from any goroutine.
func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
	slog.Debug("trigger state", "state", s.String())
}

// Run starts capture and executes the listening loop until ctx is
// cancelled, then stops capture and returns ctx.Err(). The detector and
// frame source are closed by the owning application, not here.
func (c *Controller) Run(ctx context.Context) error {
	c.capture.Start()
	c.setState(StateListening)
	slog.Info("listening", "labels", c.detector.Labels(), "threshold", c.threshold)

	defer func() {
		c.setState(StateShutdown)
		c.capture.Stop()
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, ok := c.queue.Pop(c.popTimeout)
		if !ok {
			// Empty poll: loop again. The timeout is the cooperative yield
			// point, so there is no busy spin and no separate cancel check.
			continue
		}

		if c.tap != nil {
			c.tap.Process(frame)
		}

		scores, err := c.detector.Score(frame)
		if err != nil {
			// One bad frame never stops the loop.
			slog.Warn("scoring error, skipping frame", "seq", frame.Seq, "err", err)
			continue
		}

		label, score, hit := detect.Select(scores, c.threshold, c.detector.Labels())
		if !hit {
			continue
		}

		c.fire(ctx, detect.Event{Label: label, Score: score, Seq: frame.Seq})
	}
}

// fire runs the FIRED → SUSPENDED → LISTENING sequence for one detection.
// The ordering is load-bearing: capture stops before the queue is cleared
// so no frame produced before the detection survives the flush, and the
// detector resets before any new audio is scored so residual activation
// cannot re-trigger.
func (c *Controller) fire(ctx context.Context, ev detect.Event) {
	c.setState(StateFired)
	slog.Info("wake word detected", "label", ev.Label, "score", ev.Score, "seq", ev.Seq)
	if c.onDetect != nil {
		c.onDetect(ev)
	}

	c.capture.Stop()
	if dropped := c.queue.Clear(); dropped > 0 {
		slog.Debug("flushed stale frames", "count", dropped)
	}
	c.detector.Reset()

	start := time.Now()
	err := c.sink.Perform(ctx, c.asset)
	if c.onAction != nil {
		c.onAction(time.Since(start), err)
	}
	if err != nil {
		// A failed action must not wedge the listening loop.
		slog.Warn("action failed", "asset", c.asset, "err", err)
	}

	c.setState(StateSuspended)
	c.capture.Start()
	c.setState(StateListening)
	slog.Info("listening again")
}
