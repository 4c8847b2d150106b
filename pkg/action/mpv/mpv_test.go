package mpv_test

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/hearken/pkg/action/mpv"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests use unix stub binaries")
	}
}

func TestPerformRunsBinaryToCompletion(t *testing.T) {
	requireUnix(t)
	t.Parallel()

	s := mpv.New(mpv.WithBinary("true"), mpv.WithArgs())
	if err := s.Perform(context.Background(), "clip.mp4"); err != nil {
		t.Fatalf("Perform: %v", err)
	}
}

func TestPerformReportsExitFailure(t *testing.T) {
	requireUnix(t)
	t.Parallel()

	s := mpv.New(mpv.WithBinary("false"), mpv.WithArgs())
	err := s.Perform(context.Background(), "clip.mp4")
	if err == nil {
		t.Fatal("Perform with failing binary returned nil")
	}
	if !strings.Contains(err.Error(), "clip.mp4") {
		t.Errorf("err = %v, want the asset named", err)
	}
}

func TestPerformMissingBinary(t *testing.T) {
	t.Parallel()

	s := mpv.New(mpv.WithBinary("definitely-not-a-real-player"), mpv.WithArgs())
	err := s.Perform(context.Background(), "clip.mp4")
	if err == nil {
		t.Fatal("Perform with missing binary returned nil")
	}
	var execErr *exec.Error
	if !errors.As(err, &execErr) {
		t.Errorf("err = %v, want a wrapped exec.Error", err)
	}
}

func TestCancelKillsPlayer(t *testing.T) {
	requireUnix(t)
	t.Parallel()

	// sleep <asset>: the asset doubles as the duration argument.
	s := mpv.New(mpv.WithBinary("sleep"), mpv.WithArgs())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	if err := s.Perform(ctx, "30"); err == nil {
		t.Fatal("Perform returned nil after the process was killed")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Perform took %v, cancellation did not kill the player", elapsed)
	}
}
