// Package app wires all Hearken subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the capture-and-detect loop, and Shutdown tears
// everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithSource, WithDetector, etc.). When an option is not provided, New
// creates real implementations through the config registry.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/hearken/internal/config"
	"github.com/MrWong99/hearken/internal/health"
	"github.com/MrWong99/hearken/internal/observe"
	"github.com/MrWong99/hearken/pkg/action"
	"github.com/MrWong99/hearken/pkg/audio"
	"github.com/MrWong99/hearken/pkg/detect"
	"github.com/MrWong99/hearken/pkg/recorder"
	"github.com/MrWong99/hearken/pkg/trigger"
)

// httpShutdownTimeout bounds the graceful drain of the HTTP server once the
// run context is cancelled.
const httpShutdownTimeout = 3 * time.Second

// App owns all subsystem lifetimes and orchestrates the Hearken pipeline:
// capture → queue → controller → detector → action.
type App struct {
	cfg *config.Config

	// Subsystems — initialised in New, torn down in Shutdown.
	source     audio.FrameSource
	queue      *audio.FrameQueue
	capture    *audio.CaptureLoop
	detector   detect.Detector
	sink       action.Sink
	ring       *recorder.Ring
	controller *trigger.Controller
	metrics    *observe.Metrics

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSource injects a frame source instead of creating one from config.
func WithSource(s audio.FrameSource) Option {
	return func(a *App) { a.source = s }
}

// WithDetector injects a detector instead of creating one from config.
func WithDetector(d detect.Detector) Option {
	return func(a *App) { a.detector = d }
}

// WithSink injects an action sink instead of creating one from config.
func WithSink(s action.Sink) Option {
	return func(a *App) { a.sink = s }
}

// WithMetrics injects a metrics instance instead of the process-wide default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The registry comes
// from main.go with the built-in backends registered. Use Option functions to
// inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: device open, model load,
// queue and capture construction, debug ring setup, and controller assembly.
func New(ctx context.Context, cfg *config.Config, reg *config.Registry, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Frame source ──────────────────────────────────────────────────
	if a.source == nil {
		src, err := reg.CreateSource(cfg.Audio)
		if err != nil {
			return nil, fmt.Errorf("app: open frame source: %w", err)
		}
		a.source = src
		a.closers = append(a.closers, src.Close)
	}

	// ── 2. Detector ──────────────────────────────────────────────────────
	if a.detector == nil {
		det, err := reg.CreateEngine(cfg.Detection, cfg.Audio)
		if err != nil {
			return nil, fmt.Errorf("app: load detector: %w", err)
		}
		a.detector = det
		a.closers = append(a.closers, det.Close)
	}
	slog.Info("detector ready", "labels", a.detector.Labels(), "threshold", cfg.Detection.Threshold)

	// ── 3. Action sink ───────────────────────────────────────────────────
	if a.sink == nil {
		sink, err := reg.CreateSink(cfg.Action)
		if err != nil {
			return nil, fmt.Errorf("app: create action sink: %w", err)
		}
		a.sink = sink
	}
	if _, err := os.Stat(cfg.Action.AssetPath); err != nil {
		// The path may appear later (mounted volume, download). Warn now so a
		// typo is visible before the first detection fails.
		slog.Warn("action asset not readable at startup", "path", cfg.Action.AssetPath, "err", err)
	}

	// ── 4. Queue + capture loop ──────────────────────────────────────────
	a.queue = audio.NewFrameQueue(cfg.Audio.QueueCapacity,
		audio.WithDropPolicy(cfg.Audio.DropPolicy),
	)
	a.capture = audio.NewCaptureLoop(a.source, a.queue,
		audio.WithFrameObserver(a.observeFrame),
	)
	gaugeReg, err := a.metrics.RegisterQueueLength(func() int64 { return int64(a.queue.Len()) })
	if err != nil {
		return nil, fmt.Errorf("app: register queue gauge: %w", err)
	}
	a.closers = append(a.closers, gaugeReg.Unregister)

	// ── 5. Debug ring ────────────────────────────────────────────────────
	triggerOpts := []trigger.Option{
		trigger.WithDetectionObserver(a.observeDetection),
		trigger.WithActionObserver(a.observeAction),
	}
	if cfg.Recording.Enabled {
		ring, err := recorder.NewRing(cfg.Recording.Dir, cfg.Audio.SampleRate,
			recorder.WithNumFiles(cfg.Recording.NumFiles),
			recorder.WithDurationSeconds(cfg.Recording.DurationSeconds),
			recorder.WithWriteObserver(func(_ int, err error) {
				if err == nil {
					a.metrics.RingWrites.Add(context.Background(), 1)
				}
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("app: init debug ring: %w", err)
		}
		a.ring = ring
		triggerOpts = append(triggerOpts, trigger.WithFrameTap(ring))
		slog.Info("debug recording enabled", "dir", cfg.Recording.Dir,
			"files", cfg.Recording.NumFiles, "seconds_per_file", cfg.Recording.DurationSeconds)
	}

	// ── 6. Controller ────────────────────────────────────────────────────
	scored := &instrumentedDetector{Detector: a.detector, metrics: a.metrics}
	a.controller = trigger.New(a.queue, a.capture, scored, a.sink,
		cfg.Action.AssetPath, cfg.Detection.Threshold, triggerOpts...)

	return a, nil
}

// instrumentedDetector wraps a detector with scoring latency and error
// metrics. All other methods pass through to the embedded detector.
type instrumentedDetector struct {
	detect.Detector
	metrics *observe.Metrics
}

func (d *instrumentedDetector) Score(f audio.Frame) (detect.Scores, error) {
	start := time.Now()
	scores, err := d.Detector.Score(f)

	ctx := context.Background()
	d.metrics.ScoreDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		d.metrics.ScoreErrors.Add(ctx, 1)
	}
	return scores, err
}

// ─── Metric observers ────────────────────────────────────────────────────────

// observeFrame records capture throughput and queue pressure. pushed is false
// when the frame was rejected under the configured drop policy.
func (a *App) observeFrame(_ audio.Frame, pushed bool) {
	ctx := context.Background()
	a.metrics.FramesCaptured.Add(ctx, 1)
	if !pushed {
		a.metrics.RecordDrop(ctx, string(a.cfg.Audio.DropPolicy))
	}
}

// observeDetection records a threshold crossing.
func (a *App) observeDetection(ev detect.Event) {
	a.metrics.RecordDetection(context.Background(), ev.Label)
}

// observeAction records action latency and failures.
func (a *App) observeAction(d time.Duration, err error) {
	ctx := context.Background()
	a.metrics.ActionDuration.Record(ctx, d.Seconds())
	if err != nil {
		a.metrics.ActionErrors.Add(ctx, 1)
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the controller loop and, when server.listen_addr is set, an HTTP
// server with /metrics, /healthz and /readyz. It blocks until ctx is
// cancelled or a subsystem fails, then returns the first error.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.controller.Run(ctx)
	})

	if addr := a.cfg.Server.ListenAddr; addr != "" {
		srv := a.buildHTTPServer(addr)

		g.Go(func() error {
			slog.Info("http server listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// buildHTTPServer assembles the mux for the operational endpoints.
func (a *App) buildHTTPServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	h := health.New(
		health.RunningCheck("capture", a.capture.Running),
		health.RunningCheck("controller", func() bool {
			return a.controller.State() != trigger.StateShutdown
		}),
	)
	h.Register(mux)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		// Stop producing before releasing the device and the model.
		a.capture.Stop()
		a.queue.Close()

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// Controller exposes the trigger controller, mainly for state inspection in
// tests and the startup summary.
func (a *App) Controller() *trigger.Controller { return a.controller }
