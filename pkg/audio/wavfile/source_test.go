package wavfile_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/MrWong99/hearken/pkg/audio/wavfile"
)

// writeWAV creates a 16-bit PCM test file with n samples per channel whose
// values count upwards, so frame boundaries are verifiable.
func writeWAV(t *testing.T, rate, channels, n int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	data := make([]int, n*channels)
	for i := 0; i < n; i++ {
		for c := 0; c < channels; c++ {
			data[i*channels+c] = i
		}
	}
	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	return path
}

func TestSourceYieldsExactFramesAndDiscardsTail(t *testing.T) {
	t.Parallel()

	const frameLen = 100
	// Two and a half frames: the half frame at the end is discarded.
	path := writeWAV(t, 16000, 1, 2*frameLen+frameLen/2)

	src, err := wavfile.Open(path, frameLen, 16000)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	var frames int
	var next int16
	for {
		f, err := src.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if len(f.Samples) != frameLen {
			t.Fatalf("frame %d: %d samples, want %d", frames, len(f.Samples), frameLen)
		}
		for _, s := range f.Samples {
			if s != next {
				t.Fatalf("sample value %d, want %d (frames out of order)", s, next)
			}
			next++
		}
		frames++
	}
	if frames != 2 {
		t.Fatalf("got %d frames, want 2 (partial tail must be discarded)", frames)
	}
}

func TestSourceDownmixesStereo(t *testing.T) {
	t.Parallel()

	const frameLen = 50
	path := writeWAV(t, 16000, 2, frameLen)

	src, err := wavfile.Open(path, frameLen, 16000)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	f, err := src.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	// Both channels carry the same counting signal, so the mono mix is the
	// signal itself.
	for i, s := range f.Samples {
		if s != int16(i) {
			t.Fatalf("sample %d = %d, want %d", i, s, i)
		}
	}
}

func TestOpenRejectsNonWAV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "not.wav")
	if err := os.WriteFile(path, []byte("definitely not audio"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := wavfile.Open(path, 100, 16000); err == nil {
		t.Fatal("Open accepted a non-WAV file")
	}
}

func TestOpenMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := wavfile.Open(filepath.Join(t.TempDir(), "absent.wav"), 100, 16000); err == nil {
		t.Fatal("Open accepted a missing file")
	}
}
