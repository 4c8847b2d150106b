package detect_test

import (
	"testing"

	"github.com/MrWong99/hearken/pkg/detect"
)

func TestSelect(t *testing.T) {
	t.Parallel()

	order := []string{"alpha", "beta", "gamma"}
	tests := []struct {
		name      string
		scores    detect.Scores
		threshold float64
		wantLabel string
		wantOK    bool
	}{
		{
			name:      "no label crosses",
			scores:    detect.Scores{"alpha": 0.2, "beta": 0.4},
			threshold: 0.5,
			wantOK:    false,
		},
		{
			name:      "single crossing",
			scores:    detect.Scores{"alpha": 0.6, "beta": 0.1},
			threshold: 0.5,
			wantLabel: "alpha",
			wantOK:    true,
		},
		{
			name:      "highest score wins",
			scores:    detect.Scores{"alpha": 0.7, "beta": 0.8},
			threshold: 0.5,
			wantLabel: "beta",
			wantOK:    true,
		},
		{
			name:      "tie breaks by configured order",
			scores:    detect.Scores{"gamma": 0.9, "beta": 0.9},
			threshold: 0.5,
			wantLabel: "beta",
			wantOK:    true,
		},
		{
			name:      "threshold is strict",
			scores:    detect.Scores{"alpha": 0.5},
			threshold: 0.5,
			wantOK:    false,
		},
		{
			name:      "unordered label still selectable",
			scores:    detect.Scores{"delta": 0.95},
			threshold: 0.5,
			wantLabel: "delta",
			wantOK:    true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			label, score, ok := detect.Select(tc.scores, tc.threshold, order)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if label != tc.wantLabel {
				t.Fatalf("label = %q, want %q", label, tc.wantLabel)
			}
			if score != tc.scores[tc.wantLabel] {
				t.Fatalf("score = %f, want %f", score, tc.scores[tc.wantLabel])
			}
		})
	}
}

func TestSelectDeterministicAcrossRepeats(t *testing.T) {
	t.Parallel()

	// Map iteration order varies; the selection must not.
	scores := detect.Scores{"a": 0.9, "b": 0.9, "c": 0.9}
	order := []string{"c", "a", "b"}
	for range 50 {
		label, _, ok := detect.Select(scores, 0.5, order)
		if !ok || label != "c" {
			t.Fatalf("got %q, want stable winner %q", label, "c")
		}
	}
}
