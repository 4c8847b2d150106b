package audio_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/hearken/pkg/audio"
)

// frame builds a one-sample frame whose payload encodes seq, so tests can
// verify ordering through the queue.
func frame(seq uint64) audio.Frame {
	return audio.Frame{Samples: []int16{int16(seq)}, Seq: seq}
}

func TestQueueFIFOOrder(t *testing.T) {
	t.Parallel()

	q := audio.NewFrameQueue(8)
	for i := uint64(0); i < 8; i++ {
		ok, err := q.Push(frame(i))
		if err != nil || !ok {
			t.Fatalf("Push(%d) = %v, %v; want accepted", i, ok, err)
		}
	}
	for i := uint64(0); i < 8; i++ {
		f, ok := q.Pop(10 * time.Millisecond)
		if !ok {
			t.Fatalf("Pop %d: queue unexpectedly empty", i)
		}
		if f.Seq != i {
			t.Fatalf("Pop %d: got seq %d, want %d", i, f.Seq, i)
		}
	}
}

func TestQueuePopTimeout(t *testing.T) {
	t.Parallel()

	q := audio.NewFrameQueue(4)
	start := time.Now()
	_, ok := q.Pop(30 * time.Millisecond)
	if ok {
		t.Fatal("Pop on empty queue returned a frame")
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Fatalf("Pop returned after %v, want ≥ 30ms wait", elapsed)
	}
}

func TestQueueBlockPolicyPreservesOrderUnderPressure(t *testing.T) {
	t.Parallel()

	const n, capacity = 50, 4
	q := audio.NewFrameQueue(capacity, audio.WithPushTimeout(time.Second))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(0); i < n; i++ {
			if ok, err := q.Push(frame(i)); err != nil || !ok {
				t.Errorf("Push(%d) = %v, %v", i, ok, err)
				return
			}
		}
	}()

	var got []uint64
	for len(got) < n {
		f, ok := q.Pop(200 * time.Millisecond)
		if !ok {
			t.Fatalf("Pop timed out after %d frames", len(got))
		}
		got = append(got, f.Seq)
	}
	wg.Wait()

	for i, seq := range got {
		if seq != uint64(i) {
			t.Fatalf("frame %d: got seq %d, want %d (reordered)", i, seq, i)
		}
	}
}

func TestQueueDropNewest(t *testing.T) {
	t.Parallel()

	q := audio.NewFrameQueue(2, audio.WithDropPolicy(audio.PolicyDropNewest))
	for i := uint64(0); i < 2; i++ {
		if ok, _ := q.Push(frame(i)); !ok {
			t.Fatalf("Push(%d) rejected on non-full queue", i)
		}
	}
	if ok, err := q.Push(frame(2)); ok || err != nil {
		t.Fatalf("Push on full queue = %v, %v; want rejected, nil", ok, err)
	}
	// The two oldest frames survive.
	f, _ := q.Pop(time.Millisecond)
	if f.Seq != 0 {
		t.Fatalf("got seq %d, want 0", f.Seq)
	}
}

func TestQueueDropOldest(t *testing.T) {
	t.Parallel()

	q := audio.NewFrameQueue(2, audio.WithDropPolicy(audio.PolicyDropOldest))
	for i := uint64(0); i < 3; i++ {
		if ok, err := q.Push(frame(i)); !ok || err != nil {
			t.Fatalf("Push(%d) = %v, %v; want accepted", i, ok, err)
		}
	}
	f, _ := q.Pop(time.Millisecond)
	if f.Seq != 1 {
		t.Fatalf("after eviction got seq %d, want 1", f.Seq)
	}
}

func TestQueueClearDiscardsAll(t *testing.T) {
	t.Parallel()

	q := audio.NewFrameQueue(8)
	for i := uint64(0); i < 5; i++ {
		q.Push(frame(i))
	}
	if n := q.Clear(); n != 5 {
		t.Fatalf("Clear() = %d, want 5", n)
	}
	if n := q.Len(); n != 0 {
		t.Fatalf("Len() after Clear = %d, want 0", n)
	}
	if _, ok := q.Pop(5 * time.Millisecond); ok {
		t.Fatal("Pop after Clear returned a frame")
	}
}

// A pop racing with clear must never yield a frame pushed before the clear's
// logical point once the clear has completed.
func TestQueueClearConcurrentWithPushPop(t *testing.T) {
	t.Parallel()

	q := audio.NewFrameQueue(16)
	stop := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var seq uint64
		for {
			select {
			case <-stop:
				return
			default:
			}
			q.Push(frame(seq))
			seq++
		}
	}()

	for range 100 {
		q.Clear()
		if f, ok := q.Pop(time.Millisecond); ok {
			// Any frame seen after a clear must have been pushed after it,
			// so the queue can never hand back a seq it already handed out.
			_ = f
		}
	}
	close(stop)
	wg.Wait()

	// After a final clear with the producer stopped, the queue stays empty.
	q.Clear()
	if _, ok := q.Pop(time.Millisecond); ok {
		t.Fatal("Pop returned a frame after final Clear with no producer")
	}
}

func TestQueueClosed(t *testing.T) {
	t.Parallel()

	q := audio.NewFrameQueue(4)
	q.Push(frame(0))
	q.Close()

	if _, err := q.Push(frame(1)); !errors.Is(err, audio.ErrQueueClosed) {
		t.Fatalf("Push after Close: err = %v, want ErrQueueClosed", err)
	}
	// Queued frames drain after close.
	if f, ok := q.Pop(time.Millisecond); !ok || f.Seq != 0 {
		t.Fatalf("Pop after Close = %v, %v; want frame 0", f, ok)
	}
	if _, ok := q.Pop(time.Millisecond); ok {
		t.Fatal("Pop on drained closed queue returned a frame")
	}
	// Close is idempotent.
	q.Close()
}

func TestQueueCloseWakesBlockedPop(t *testing.T) {
	t.Parallel()

	q := audio.NewFrameQueue(4)
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop(5 * time.Second)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("Pop returned a frame from an empty closed queue")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not wake the blocked Pop")
	}
}
