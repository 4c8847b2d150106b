package audio_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/hearken/pkg/audio"
)

// fakeSource produces frames on demand, optionally failing every errEvery-th
// read. It counts concurrent readers to catch double-started capture loops.
type fakeSource struct {
	mu       sync.Mutex
	reads    int
	errEvery int
	readers  int
	maxSeen  int
	delay    time.Duration
	block    chan struct{} // when set, every read parks here until closed
}

func (s *fakeSource) Read() (audio.Frame, error) {
	s.mu.Lock()
	s.readers++
	if s.readers > s.maxSeen {
		s.maxSeen = s.readers
	}
	s.reads++
	n := s.reads
	s.mu.Unlock()

	if s.block != nil {
		<-s.block
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.readers--
	s.mu.Unlock()

	if s.errEvery > 0 && n%s.errEvery == 0 {
		return audio.Frame{}, errors.New("input overflow")
	}
	return audio.Frame{Samples: make([]int16, 4)}, nil
}

func (s *fakeSource) Close() error { return nil }

func (s *fakeSource) stats() (reads, maxReaders int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads, s.maxSeen
}

func TestCaptureProducesOrderedFrames(t *testing.T) {
	t.Parallel()

	src := &fakeSource{delay: time.Millisecond}
	q := audio.NewFrameQueue(64)
	c := audio.NewCaptureLoop(src, q)

	c.Start()
	defer c.Stop()

	var prev uint64
	for i := 0; i < 10; i++ {
		f, ok := q.Pop(time.Second)
		if !ok {
			t.Fatalf("Pop %d timed out", i)
		}
		if i > 0 && f.Seq != prev+1 {
			t.Fatalf("seq jumped from %d to %d", prev, f.Seq)
		}
		prev = f.Seq
	}
}

func TestCaptureStartIsIdempotent(t *testing.T) {
	t.Parallel()

	src := &fakeSource{delay: time.Millisecond}
	q := audio.NewFrameQueue(64)
	c := audio.NewCaptureLoop(src, q)

	c.Start()
	c.Start()
	c.Start()

	time.Sleep(30 * time.Millisecond)
	c.Stop()

	if _, maxReaders := src.stats(); maxReaders > 1 {
		t.Fatalf("observed %d concurrent readers, want at most 1", maxReaders)
	}
}

func TestCaptureStopIsIdempotentAndRestartable(t *testing.T) {
	t.Parallel()

	src := &fakeSource{delay: time.Millisecond}
	q := audio.NewFrameQueue(256)
	c := audio.NewCaptureLoop(src, q)

	// A full detector cycle suspends and resumes capture repeatedly.
	for cycle := 0; cycle < 3; cycle++ {
		c.Start()
		if _, ok := q.Pop(time.Second); !ok {
			t.Fatalf("cycle %d: no frame produced", cycle)
		}
		c.Stop()
		c.Stop()
		if c.Running() {
			t.Fatalf("cycle %d: Running() = true after Stop", cycle)
		}
	}

	// Sequence numbers stay monotonic across restarts.
	c.Start()
	defer c.Stop()
	q.Clear()
	f1, ok1 := q.Pop(time.Second)
	f2, ok2 := q.Pop(time.Second)
	if !ok1 || !ok2 {
		t.Fatal("no frames after restart")
	}
	if f2.Seq <= f1.Seq {
		t.Fatalf("seq not monotonic across restart: %d then %d", f1.Seq, f2.Seq)
	}
}

func TestCaptureRestartAfterAbandonedJoin(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	src := &fakeSource{block: release}
	q := audio.NewFrameQueue(64)
	c := audio.NewCaptureLoop(src, q, audio.WithJoinTimeout(10*time.Millisecond))

	c.Start()
	time.Sleep(20 * time.Millisecond) // goroutine is parked inside Read
	c.Stop()                          // join times out, goroutine is abandoned

	// Restarting while the old goroutine still holds the source must not
	// spawn a second reader.
	c.Start()
	if c.Running() {
		t.Fatal("Running() = true while the abandoned goroutine still holds the source")
	}

	close(release)
	time.Sleep(20 * time.Millisecond)

	// Once the source unblocks, the old goroutine exits and restart works.
	c.Start()
	if !c.Running() {
		t.Fatal("Running() = false after the abandoned goroutine exited")
	}
	if _, ok := q.Pop(time.Second); !ok {
		t.Fatal("no frame produced after restart")
	}
	c.Stop()

	if _, maxReaders := src.stats(); maxReaders > 1 {
		t.Fatalf("observed %d concurrent readers across restart, want exactly 1", maxReaders)
	}
}

func TestCaptureContinuesPastReadErrors(t *testing.T) {
	t.Parallel()

	src := &fakeSource{delay: time.Millisecond, errEvery: 3}
	q := audio.NewFrameQueue(64)
	c := audio.NewCaptureLoop(src, q)

	c.Start()
	defer c.Stop()

	// Every third read fails; frames keep flowing regardless.
	for i := 0; i < 5; i++ {
		if _, ok := q.Pop(time.Second); !ok {
			t.Fatalf("Pop %d timed out; capture stopped on read error", i)
		}
	}
}

func TestCaptureExitsWhenQueueCloses(t *testing.T) {
	t.Parallel()

	src := &fakeSource{delay: time.Millisecond}
	q := audio.NewFrameQueue(4)
	c := audio.NewCaptureLoop(src, q)

	c.Start()
	time.Sleep(10 * time.Millisecond)
	q.Close()
	time.Sleep(20 * time.Millisecond)

	readsBefore, _ := src.stats()
	time.Sleep(20 * time.Millisecond)
	readsAfter, _ := src.stats()
	if readsAfter > readsBefore+1 {
		t.Fatalf("capture kept reading after queue close: %d → %d reads", readsBefore, readsAfter)
	}
	c.Stop()
}

func TestCaptureFrameObserver(t *testing.T) {
	t.Parallel()

	src := &fakeSource{delay: time.Millisecond}
	q := audio.NewFrameQueue(64)

	var mu sync.Mutex
	var accepted int
	c := audio.NewCaptureLoop(src, q, audio.WithFrameObserver(func(_ audio.Frame, ok bool) {
		mu.Lock()
		if ok {
			accepted++
		}
		mu.Unlock()
	}))

	c.Start()
	time.Sleep(50 * time.Millisecond)
	c.Stop()

	mu.Lock()
	defer mu.Unlock()
	if accepted == 0 {
		t.Fatal("frame observer never saw an accepted frame")
	}
}
