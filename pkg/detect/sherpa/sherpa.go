// Package sherpa implements detect.Detector on top of the sherpa-onnx
// keyword spotter. It serves the custom-model configuration: a directory
// holding a transducer model (encoder/decoder/joiner ONNX files), its token
// table, and a keywords file listing the phrases to spot.
package sherpa

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	sherpaonnx "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"github.com/MrWong99/hearken/pkg/audio"
	"github.com/MrWong99/hearken/pkg/detect"
)

// Compile-time assertion that Engine satisfies detect.Detector.
var _ detect.Detector = (*Engine)(nil)

// Model file names expected inside the model directory.
const (
	encoderFile  = "encoder.onnx"
	decoderFile  = "decoder.onnx"
	joinerFile   = "joiner.onnx"
	tokensFile   = "tokens.txt"
	keywordsFile = "keywords.txt"
)

// Config holds the spotter parameters.
type Config struct {
	// ModelDir is the directory containing encoder.onnx, decoder.onnx,
	// joiner.onnx, tokens.txt and keywords.txt.
	ModelDir string

	// SampleRate of the PCM frames passed to Score. Default 16000.
	SampleRate int

	// Labels lists the keyword phrases in keywords.txt, in file order. Used
	// for Labels() and as the tie-break order; the spotter reports matches
	// by phrase text.
	Labels []string

	// Threshold is the spotter's internal keyword threshold. Default 0.25;
	// the pipeline applies its own confidence threshold on top.
	Threshold float32

	// NumThreads for ONNX inference. Default 1.
	NumThreads int
}

// Engine wraps one sherpa-onnx keyword spotter and its online stream. The
// stream accumulates feature state across frames; Reset replaces it with a
// fresh stream.
type Engine struct {
	spotter    *sherpaonnx.KeywordSpotter
	stream     *sherpaonnx.OnlineStream
	labels     []string
	sampleRate int
	closed     bool
}

// New loads the spotter from cfg.ModelDir. Missing model files are fatal
// startup errors, reported before any audio is processed.
func New(cfg Config) (*Engine, error) {
	if cfg.ModelDir == "" {
		return nil, errors.New("sherpa: model directory must not be empty")
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.25
	}
	if cfg.NumThreads <= 0 {
		cfg.NumThreads = 1
	}

	paths := make(map[string]string, 5)
	for _, name := range []string{encoderFile, decoderFile, joinerFile, tokensFile, keywordsFile} {
		p := filepath.Join(cfg.ModelDir, name)
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("sherpa: model asset %s: %w", name, err)
		}
		paths[name] = p
	}

	scfg := sherpaonnx.KeywordSpotterConfig{
		FeatConfig: sherpaonnx.FeatureConfig{
			SampleRate: cfg.SampleRate,
			FeatureDim: 80,
		},
		ModelConfig: sherpaonnx.OnlineModelConfig{
			Transducer: sherpaonnx.OnlineTransducerModelConfig{
				Encoder: paths[encoderFile],
				Decoder: paths[decoderFile],
				Joiner:  paths[joinerFile],
			},
			Tokens:     paths[tokensFile],
			NumThreads: cfg.NumThreads,
			Provider:   "cpu",
		},
		KeywordsFile:      paths[keywordsFile],
		KeywordsThreshold: cfg.Threshold,
	}

	spotter := sherpaonnx.NewKeywordSpotter(&scfg)
	if spotter == nil {
		return nil, fmt.Errorf("sherpa: failed to create keyword spotter from %s", cfg.ModelDir)
	}
	stream := sherpaonnx.NewKeywordStream(spotter)
	if stream == nil {
		sherpaonnx.DeleteKeywordSpotter(spotter)
		return nil, errors.New("sherpa: failed to create keyword stream")
	}

	labels := cfg.Labels
	if len(labels) == 0 {
		// Fall back to the model directory name as a single label.
		labels = []string{filepath.Base(filepath.Clean(cfg.ModelDir))}
	}

	return &Engine{
		spotter:    spotter,
		stream:     stream,
		labels:     labels,
		sampleRate: cfg.SampleRate,
	}, nil
}

// Score feeds the frame into the spotter stream and decodes any pending
// results. A spotted phrase scores 1.0 this frame; everything else 0.0.
func (e *Engine) Score(frame audio.Frame) (detect.Scores, error) {
	if e.closed {
		return nil, errors.New("sherpa: engine closed")
	}

	scores := make(detect.Scores, len(e.labels))
	for _, l := range e.labels {
		scores[l] = 0
	}

	e.stream.AcceptWaveform(e.sampleRate, audio.Int16ToFloat32(frame.Samples))
	for e.spotter.IsReady(e.stream) {
		e.spotter.Decode(e.stream)
		r := e.spotter.GetResult(e.stream)
		if r == nil || r.Keyword == "" {
			continue
		}
		scores[r.Keyword] = 1.0
	}
	return scores, nil
}

// Labels returns the keyword phrases in configured order.
func (e *Engine) Labels() []string { return e.labels }

// Reset replaces the online stream, discarding all accumulated feature and
// decoder state.
func (e *Engine) Reset() {
	if e.closed {
		return
	}
	sherpaonnx.DeleteOnlineStream(e.stream)
	e.stream = sherpaonnx.NewKeywordStream(e.spotter)
}

// Close releases the stream and the spotter.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	sherpaonnx.DeleteOnlineStream(e.stream)
	sherpaonnx.DeleteKeywordSpotter(e.spotter)
	return nil
}
