// Package porcupine implements detect.Detector on top of the Picovoice
// Porcupine keyword engine. It serves the named-keyword configuration:
// each configured keyword is either a built-in Porcupine keyword (e.g.
// "jarvis", "computer") or a path to a trained .ppn keyword file.
package porcupine

import (
	"errors"
	"fmt"
	"strings"

	porcupinelib "github.com/Picovoice/porcupine/binding/go/v3"

	"github.com/MrWong99/hearken/pkg/audio"
	"github.com/MrWong99/hearken/pkg/detect"
)

// Compile-time assertion that Engine satisfies detect.Detector.
var _ detect.Detector = (*Engine)(nil)

// Engine wraps one Porcupine instance loaded with a fixed keyword set.
//
// Porcupine consumes fixed 512-sample windows while the pipeline frame is
// larger (1280 samples by default), so the engine re-chunks internally and
// carries remainder samples between Score calls. That carry is the only
// temporal state; Reset discards it.
type Engine struct {
	p       porcupinelib.Porcupine
	labels  []string
	pending []int16
	closed  bool
}

// Option is a functional option for configuring an Engine.
type Option func(*config)

type config struct {
	modelPath     string
	sensitivities []float32
}

// WithModelPath overrides the Porcupine parameter model file (.pv).
func WithModelPath(path string) Option {
	return func(c *config) { c.modelPath = path }
}

// WithSensitivities sets the per-keyword sensitivities in [0, 1], one per
// configured keyword. Defaults to 0.5 each.
func WithSensitivities(s []float32) Option {
	return func(c *config) { c.sensitivities = s }
}

// New creates an Engine for the given keywords. A keyword ending in ".ppn"
// is treated as a keyword file path; anything else is resolved as a
// built-in keyword (underscores map to spaces, so "hey_siri" works).
// Loading failures are fatal startup errors.
func New(accessKey string, keywords []string, opts ...Option) (*Engine, error) {
	if accessKey == "" {
		return nil, errors.New("porcupine: access key must not be empty")
	}
	if len(keywords) == 0 {
		return nil, errors.New("porcupine: at least one keyword is required")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.sensitivities != nil && len(cfg.sensitivities) != len(keywords) {
		return nil, fmt.Errorf("porcupine: %d sensitivities for %d keywords",
			len(cfg.sensitivities), len(keywords))
	}

	p := porcupinelib.Porcupine{
		AccessKey:     accessKey,
		ModelPath:     cfg.modelPath,
		Sensitivities: cfg.sensitivities,
	}
	labels := make([]string, len(keywords))
	for i, kw := range keywords {
		labels[i] = labelFor(kw)
		if strings.HasSuffix(kw, ".ppn") {
			p.KeywordPaths = append(p.KeywordPaths, kw)
		} else {
			builtin := porcupinelib.BuiltInKeyword(strings.ReplaceAll(kw, "_", " "))
			p.BuiltInKeywords = append(p.BuiltInKeywords, builtin)
		}
	}
	if len(p.KeywordPaths) > 0 && len(p.BuiltInKeywords) > 0 {
		return nil, errors.New("porcupine: built-in keywords and keyword files cannot be mixed")
	}

	if err := p.Init(); err != nil {
		return nil, fmt.Errorf("porcupine: init: %w", err)
	}
	return &Engine{p: p, labels: labels}, nil
}

// labelFor derives the reported label from a keyword spec: the bare name for
// built-ins, the file stem for .ppn paths.
func labelFor(kw string) string {
	if !strings.HasSuffix(kw, ".ppn") {
		return kw
	}
	base := kw
	if i := strings.LastIndexAny(base, "/\\"); i >= 0 {
		base = base[i+1:]
	}
	return strings.TrimSuffix(base, ".ppn")
}

// Score re-chunks the frame into Porcupine-native windows and returns 1.0
// for every keyword that fired in any window, 0.0 otherwise. Porcupine does
// not expose raw confidences; sensitivity tuning happens at construction.
func (e *Engine) Score(frame audio.Frame) (detect.Scores, error) {
	if e.closed {
		return nil, errors.New("porcupine: engine closed")
	}

	scores := make(detect.Scores, len(e.labels))
	for _, l := range e.labels {
		scores[l] = 0
	}

	e.pending = append(e.pending, frame.Samples...)
	win := porcupinelib.FrameLength
	for len(e.pending) >= win {
		idx, err := e.p.Process(e.pending[:win])
		e.pending = e.pending[win:]
		if err != nil {
			return nil, fmt.Errorf("porcupine: process: %w", err)
		}
		if idx >= 0 && idx < len(e.labels) {
			scores[e.labels[idx]] = 1.0
		}
	}
	return scores, nil
}

// Labels returns the keyword labels in configured order.
func (e *Engine) Labels() []string { return e.labels }

// Reset discards carried remainder samples. Porcupine itself is stateless
// across windows beyond its internal frame, so dropping the carry is the
// whole reset.
func (e *Engine) Reset() {
	e.pending = e.pending[:0]
}

// Close releases the Porcupine instance.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.p.Delete()
}
