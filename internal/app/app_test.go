package app_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/hearken/internal/app"
	"github.com/MrWong99/hearken/internal/config"
	"github.com/MrWong99/hearken/internal/observe"
	"github.com/MrWong99/hearken/pkg/action"
	"github.com/MrWong99/hearken/pkg/audio"
	"github.com/MrWong99/hearken/pkg/detect"
	detectmock "github.com/MrWong99/hearken/pkg/detect/mock"
)

// tickSource yields a short frame per read with a tiny pause so tests do not
// spin the capture loop flat out.
type tickSource struct {
	mu     sync.Mutex
	closed bool
}

func (s *tickSource) Read() (audio.Frame, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return audio.Frame{}, errors.New("source closed")
	}
	time.Sleep(time.Millisecond)
	return audio.Frame{Samples: make([]int16, 16)}, nil
}

func (s *tickSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// recordingSink records Perform calls and signals the first one.
type recordingSink struct {
	mu     sync.Mutex
	assets []string
	first  chan struct{}
	once   sync.Once
}

func newRecordingSink() *recordingSink {
	return &recordingSink{first: make(chan struct{})}
}

func (s *recordingSink) Perform(_ context.Context, asset string) error {
	s.mu.Lock()
	s.assets = append(s.assets, asset)
	s.mu.Unlock()
	s.once.Do(func() { close(s.first) })
	return nil
}

func (s *recordingSink) Assets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.assets...)
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Audio: config.AudioConfig{
			SampleRate:    16000,
			FrameLength:   16,
			QueueCapacity: 100,
			DropPolicy:    audio.PolicyBlock,
		},
		Detection: config.DetectionConfig{Threshold: 0.5},
		Action:    config.ActionConfig{AssetPath: "clip.mp4"},
	}
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func TestDetectionTriggersConfiguredAction(t *testing.T) {
	det := detectmock.New([]string{"jarvis"},
		detectmock.Step{Scores: detect.Scores{"jarvis": 0.1}},
		detectmock.Step{Scores: detect.Scores{"jarvis": 0.9}},
	)
	sink := newRecordingSink()

	a, err := app.New(context.Background(), testConfig(), config.NewRegistry(),
		app.WithSource(&tickSource{}),
		app.WithDetector(det),
		app.WithSink(sink),
		app.WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case <-sink.first:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the action to fire")
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if assets := sink.Assets(); len(assets) == 0 || assets[0] != "clip.mp4" {
		t.Errorf("sink assets = %v, want first call with clip.mp4", assets)
	}
	if det.Resets() < 1 {
		t.Errorf("detector resets = %d, want at least 1", det.Resets())
	}

	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	a, err := app.New(context.Background(), testConfig(), config.NewRegistry(),
		app.WithSource(&tickSource{}),
		app.WithDetector(detectmock.New([]string{"jarvis"})),
		app.WithSink(action.Func(func(context.Context, string) error { return nil })),
		app.WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := a.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown #%d: %v", i+1, err)
		}
	}
}

func TestNewFailsWithoutRegisteredBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Audio.Backend = "portaudio"

	_, err := app.New(context.Background(), cfg, config.NewRegistry(),
		app.WithDetector(detectmock.New([]string{"jarvis"})),
		app.WithSink(action.Func(func(context.Context, string) error { return nil })),
		app.WithMetrics(testMetrics(t)),
	)
	if !errors.Is(err, config.ErrNotRegistered) {
		t.Errorf("New err = %v, want ErrNotRegistered", err)
	}
}

func TestOperationalEndpointsServed(t *testing.T) {
	// Grab a free port, release it, and hand it to the app. A tiny window for
	// reuse exists but is acceptable for a test.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()

	cfg := testConfig()
	cfg.Server.ListenAddr = addr

	a, err := app.New(context.Background(), cfg, config.NewRegistry(),
		app.WithSource(&tickSource{}),
		app.WithDetector(detectmock.New([]string{"jarvis"})),
		app.WithSink(action.Func(func(context.Context, string) error { return nil })),
		app.WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	defer func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("Run did not return after cancel")
		}
		_ = a.Shutdown(context.Background())
	}()

	get := func(path string) (*http.Response, error) {
		return http.Get(fmt.Sprintf("http://%s%s", addr, path))
	}

	// Poll until the server is up.
	deadline := time.Now().Add(5 * time.Second)
	var resp *http.Response
	for {
		resp, err = get("/healthz")
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /healthz never succeeded: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz = %d, want 200", resp.StatusCode)
	}

	for _, path := range []string{"/readyz", "/metrics"} {
		resp, err := get(path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s = %d, want 200", path, resp.StatusCode)
		}
	}
}
