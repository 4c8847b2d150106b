// Package audio provides the frame types and the capture half of the Hearken
// pipeline: the bounded producer/consumer frame queue, the restartable
// capture loop, and PCM conversion helpers shared by the capture backends.
package audio

import (
	"errors"
	"sync"
	"time"
)

// ErrQueueClosed is returned by Push after the queue has been closed.
var ErrQueueClosed = errors.New("audio: frame queue closed")

// DropPolicy selects what Push does when the queue is full.
type DropPolicy string

const (
	// PolicyBlock makes Push wait up to the configured push timeout for
	// space, then reject the frame. This is the default: it preserves every
	// frame under transient consumer stalls and degrades to dropping the
	// newest frame when the consumer is truly stuck.
	PolicyBlock DropPolicy = "block"

	// PolicyDropOldest evicts the oldest queued frame to make room.
	PolicyDropOldest DropPolicy = "drop-oldest"

	// PolicyDropNewest rejects the incoming frame immediately.
	PolicyDropNewest DropPolicy = "drop-newest"
)

// IsValid reports whether p is a recognised drop policy.
func (p DropPolicy) IsValid() bool {
	switch p {
	case PolicyBlock, PolicyDropOldest, PolicyDropNewest:
		return true
	}
	return false
}

// defaultPushTimeout bounds a blocked Push under PolicyBlock. Matches the
// capture side's tolerance: one frame is 80 ms, so a producer stalled for
// longer than this is better served dropping than backing up the device.
const defaultPushTimeout = 100 * time.Millisecond

// FrameQueue is a fixed-capacity FIFO of frames connecting one producer
// (the CaptureLoop) to one consumer (the trigger controller). Push, Pop,
// Clear and Close are mutually exclusive at frame granularity; FIFO order
// is preserved.
type FrameQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	frames   []Frame
	capacity int
	policy   DropPolicy
	pushWait time.Duration
	closed   bool
}

// QueueOption configures a FrameQueue.
type QueueOption func(*FrameQueue)

// WithDropPolicy sets the full-queue behaviour. Default: PolicyBlock.
func WithDropPolicy(p DropPolicy) QueueOption {
	return func(q *FrameQueue) { q.policy = p }
}

// WithPushTimeout sets how long a Push may block under PolicyBlock before
// rejecting the frame. Default: 100 ms.
func WithPushTimeout(d time.Duration) QueueOption {
	return func(q *FrameQueue) { q.pushWait = d }
}

// NewFrameQueue creates a queue holding at most capacity frames.
// Capacity must be at least 1.
func NewFrameQueue(capacity int, opts ...QueueOption) *FrameQueue {
	if capacity < 1 {
		capacity = 1
	}
	q := &FrameQueue{
		frames:   make([]Frame, 0, capacity),
		capacity: capacity,
		policy:   PolicyBlock,
		pushWait: defaultPushTimeout,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	for _, o := range opts {
		o(q)
	}
	return q
}

// Push appends f in production order. It returns false when the frame was
// rejected under the configured drop policy and ErrQueueClosed after Close.
// Under PolicyDropOldest the returned bool is always true for an open queue,
// even though an older frame may have been evicted.
func (q *FrameQueue) Push(f Frame) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false, ErrQueueClosed
	}

	if len(q.frames) >= q.capacity {
		switch q.policy {
		case PolicyDropOldest:
			q.frames = q.frames[1:]
		case PolicyDropNewest:
			return false, nil
		default: // PolicyBlock
			if !q.waitNotFull() {
				if q.closed {
					return false, ErrQueueClosed
				}
				return false, nil
			}
		}
	}

	q.frames = append(q.frames, f)
	q.notEmpty.Signal()
	return true, nil
}

// waitNotFull blocks until space is available, the queue closes, or the push
// timeout elapses. Caller holds q.mu. Reports whether space became available.
func (q *FrameQueue) waitNotFull() bool {
	deadline := time.Now().Add(q.pushWait)
	for len(q.frames) >= q.capacity && !q.closed {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		t := time.AfterFunc(remaining, q.notFull.Broadcast)
		q.notFull.Wait()
		t.Stop()
	}
	return len(q.frames) < q.capacity && !q.closed
}

// Pop removes and returns the oldest frame, waiting up to timeout when the
// queue is empty. The second return value is false when no frame became
// available before the timeout (also the shutdown path: Close wakes all
// waiters, which then observe an empty queue).
func (q *FrameQueue) Pop(timeout time.Duration) (Frame, bool) {
	deadline := time.Now().Add(timeout)

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.frames) == 0 {
		if q.closed {
			return Frame{}, false
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Frame{}, false
		}
		t := time.AfterFunc(remaining, q.notEmpty.Broadcast)
		q.notEmpty.Wait()
		t.Stop()
	}

	f := q.frames[0]
	q.frames = q.frames[1:]
	q.notFull.Signal()
	return f, true
}

// Clear atomically discards all queued frames and returns how many were
// dropped. A Push racing with Clear lands entirely before or entirely after
// it; the consumer never observes a partially cleared queue.
func (q *FrameQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.frames)
	q.frames = q.frames[:0]
	q.notFull.Broadcast()
	return n
}

// Len returns the number of queued frames.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Close marks the queue closed and wakes all blocked producers and
// consumers. Queued frames remain poppable until the queue drains; further
// Pushes fail with ErrQueueClosed. Closing twice is safe.
func (q *FrameQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}
