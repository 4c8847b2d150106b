// Package mock provides a scripted Detector for tests.
package mock

import (
	"sync"

	"github.com/MrWong99/hearken/pkg/audio"
	"github.com/MrWong99/hearken/pkg/detect"
)

// Detector replays a scripted sequence of score maps (or errors), one per
// Score call, and records every call for assertions. All accessors are safe
// to call while the pipeline is running.
type Detector struct {
	mu sync.Mutex

	script []Step
	labels []string

	calls  int
	resets int
	closed bool

	scoredSeqs []uint64

	// pendingReset marks that a Reset happened; the next Score call records
	// its frame's Seq into resetsBefore, proving reset-before-score order.
	pendingReset bool
	resetsBefore []uint64
}

// Step is one scripted Score result.
type Step struct {
	Scores detect.Scores
	Err    error
}

// New creates a scripted detector reporting the given labels. After the
// script is exhausted, Score returns empty Scores.
func New(labels []string, script ...Step) *Detector {
	return &Detector{labels: labels, script: script}
}

func (d *Detector) Score(frame audio.Frame) (detect.Scores, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pendingReset {
		d.resetsBefore = append(d.resetsBefore, frame.Seq)
		d.pendingReset = false
	}
	d.scoredSeqs = append(d.scoredSeqs, frame.Seq)

	i := d.calls
	d.calls++
	if i >= len(d.script) {
		return detect.Scores{}, nil
	}
	return d.script[i].Scores, d.script[i].Err
}

func (d *Detector) Labels() []string { return d.labels }

func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets++
	d.pendingReset = true
}

func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Calls returns how many times Score was invoked.
func (d *Detector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// Resets returns how many times Reset was invoked.
func (d *Detector) Resets() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resets
}

// Closed reports whether Close was called.
func (d *Detector) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// ScoredSeqs returns the frame sequence numbers in Score call order.
func (d *Detector) ScoredSeqs() []uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint64(nil), d.scoredSeqs...)
}

// ResetsBefore returns, per Reset call, the Seq of the first frame scored
// afterwards.
func (d *Detector) ResetsBefore() []uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint64(nil), d.resetsBefore...)
}
