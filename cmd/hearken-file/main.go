// Command hearken-file scores WAV files offline against a wake-word model.
// It prints every threshold crossing with its timestamp, which makes it the
// quickest way to sanity-check a model or a debug ring recording without
// touching a microphone.
//
// Usage:
//
//	hearken-file -models jarvis clip1.wav clip2.wav
//	hearken-file -engine sherpa -model-path ./kws-model recording.wav
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrWong99/hearken/pkg/audio"
	"github.com/MrWong99/hearken/pkg/audio/wavfile"
	"github.com/MrWong99/hearken/pkg/detect"
	porcupineengine "github.com/MrWong99/hearken/pkg/detect/porcupine"
	sherpaengine "github.com/MrWong99/hearken/pkg/detect/sherpa"
)

func main() {
	os.Exit(run())
}

func run() int {
	engine := flag.String("engine", "porcupine", "detection engine: porcupine or sherpa")
	models := flag.String("models", "", "comma-separated wake word models")
	modelPath := flag.String("model-path", "", "path to a custom model (.ppn file or sherpa model dir)")
	threshold := flag.Float64("threshold", 0.5, "confidence threshold in (0, 1]")
	accessKey := flag.String("access-key", "", "Picovoice access key (defaults to PORCUPINE_ACCESS_KEY)")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "hearken-file: load .env: %v\n", err)
		return 1
	}

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "hearken-file: no WAV files given")
		flag.Usage()
		return 2
	}

	det, err := buildDetector(*engine, *models, *modelPath, *accessKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hearken-file: %v\n", err)
		return 1
	}
	defer det.Close()

	exit := 0
	for _, path := range files {
		hits, err := scoreFile(det, path, *threshold)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hearken-file: %s: %v\n", path, err)
			exit = 1
			continue
		}
		if hits == 0 {
			fmt.Printf("%s: no detections\n", path)
		}
		// Detector state must not leak into the next file.
		det.Reset()
	}
	return exit
}

// buildDetector constructs the requested engine from the flag values.
func buildDetector(engine, models, modelPath, accessKey string) (detect.Detector, error) {
	var labels []string
	if models != "" {
		for _, m := range strings.Split(models, ",") {
			if m = strings.TrimSpace(m); m != "" {
				labels = append(labels, m)
			}
		}
	}

	switch engine {
	case "porcupine":
		if accessKey == "" {
			accessKey = os.Getenv("PORCUPINE_ACCESS_KEY")
		}
		keywords := labels
		if modelPath != "" {
			keywords = []string{modelPath}
		}
		if len(keywords) == 0 {
			return nil, errors.New("porcupine needs -models or -model-path")
		}
		return porcupineengine.New(accessKey, keywords)

	case "sherpa":
		if modelPath == "" {
			return nil, errors.New("sherpa needs -model-path pointing at the model directory")
		}
		return sherpaengine.New(sherpaengine.Config{
			ModelDir: modelPath,
			Labels:   labels,
		})

	default:
		return nil, fmt.Errorf("unknown engine %q", engine)
	}
}

// scoreFile streams one WAV file through the detector and prints every
// threshold crossing. Returns the number of crossings.
func scoreFile(det detect.Detector, path string, threshold float64) (int, error) {
	src, err := wavfile.Open(path, audio.DefaultFrameLength, audio.DefaultSampleRate)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	hits := 0
	var seq uint64
	for {
		frame, err := src.Read()
		if errors.Is(err, io.EOF) {
			return hits, nil
		}
		if err != nil {
			return hits, err
		}
		frame.Seq = seq
		frame.Timestamp = time.Duration(seq) * frame.Duration(src.SampleRate())
		seq++

		scores, err := det.Score(frame)
		if err != nil {
			return hits, fmt.Errorf("score frame %d: %w", frame.Seq, err)
		}
		if label, score, ok := detect.Select(scores, threshold, det.Labels()); ok {
			fmt.Printf("%s: %8s  %s (%.3f)\n", path, frame.Timestamp.Truncate(time.Millisecond), label, score)
			hits++
		}
	}
}
