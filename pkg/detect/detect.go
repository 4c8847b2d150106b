// Package detect defines the Detector interface for wake-word scoring
// backends and the selection rule that turns per-frame scores into a
// detection event.
//
// A Detector wraps an opaque frame-level classifier (e.g. a Porcupine
// keyword engine or a sherpa-onnx keyword spotter) and surfaces it as a
// stateful scorer. Detectors keep temporal smoothing state across frames, so
// frames must be scored in strict capture order; the pipeline guarantees
// this (FIFO queue, single consumer). Reset clears that state after a
// trigger fires so residual activation cannot cause an immediate re-trigger.
//
// Detectors are not safe for concurrent use; the trigger controller is
// their only caller.
package detect

import "github.com/MrWong99/hearken/pkg/audio"

// Scores maps a model label to its confidence for one frame, in [0, 1].
// Produced once per frame and not retained across frames.
type Scores map[string]float64

// Event records a single wake-word detection.
type Event struct {
	// Label is the winning model label.
	Label string

	// Score is the winning confidence.
	Score float64

	// Seq is the sequence number of the frame that fired.
	Seq uint64
}

// Detector scores one frame at a time against a set of wake-word models.
type Detector interface {
	// Score runs inference on one frame and returns per-label confidences.
	// A scoring error applies to this frame only; the detector remains
	// usable for subsequent frames.
	Score(frame audio.Frame) (Scores, error)

	// Labels returns the model labels in configured order. The order is the
	// tie-break order for Select.
	Labels() []string

	// Reset clears temporal state kept across frames.
	Reset()

	// Close releases the underlying model. Calling Close more than once is safe.
	Close() error
}

// Select applies the detection rule to one frame's scores: among labels
// whose score strictly exceeds threshold, the highest score wins; ties break
// by first appearance in order. Returns false when no label crosses.
//
// Labels present in scores but absent from order are considered after all
// ordered labels, in unspecified relative order. Engines normally score
// exactly their configured labels, so this path stays cold.
func Select(scores Scores, threshold float64, order []string) (label string, score float64, ok bool) {
	consider := func(l string, s float64) {
		if s <= threshold {
			return
		}
		if !ok || s > score {
			label, score, ok = l, s, true
		}
	}
	seen := make(map[string]bool, len(order))
	for _, l := range order {
		seen[l] = true
		if s, present := scores[l]; present {
			consider(l, s)
		}
	}
	for l, s := range scores {
		if !seen[l] {
			consider(l, s)
		}
	}
	return label, score, ok
}
