// Package encodequeue provides the backpressure gate between the frame
// reassembler and the hardware encoder.
//
// Hardware encoders perform best with shallow submission queues, so the
// gate keeps at most maxSize frames in flight. Waiting is event-driven:
// a caller blocked in WaitForSpace suspends until a completed chunk frees
// a slot, and exactly one waiter wakes per completion, in FIFO order. An
// explicit waiter queue (rather than a condition-variable broadcast)
// preserves that fairness.
package encodequeue

import (
	"context"
	"fmt"
	"sync"

	"github.com/user/screenshow/pkg/pipeline"
)

// Queue gates encoder submissions by in-flight count.
type Queue struct {
	mu       sync.Mutex
	max      int
	inFlight int
	waiters  []chan struct{}
}

// New creates a queue allowing at most maxSize in-flight frames.
// maxSize < 1 would deadlock the pipeline, so it is rejected at
// construction instead of clamped.
func New(maxSize int) (*Queue, error) {
	if maxSize < 1 {
		return nil, fmt.Errorf("%w: encode queue max size %d", pipeline.ErrResourceExhausted, maxSize)
	}
	return &Queue{max: maxSize}, nil
}

// WaitForSpace blocks until the in-flight count is below the maximum or
// the context is cancelled. It does not reserve the slot; the caller must
// follow a successful wait with Increment before waiting again.
func (q *Queue) WaitForSpace(ctx context.Context) error {
	q.mu.Lock()
	if q.inFlight < q.max {
		q.mu.Unlock()
		return nil
	}
	w := make(chan struct{})
	q.waiters = append(q.waiters, w)
	q.mu.Unlock()

	select {
	case <-w:
		return nil
	case <-ctx.Done():
		q.remove(w)
		return ctx.Err()
	}
}

// Increment records one accepted encoder submission. Called exactly once
// per submission, after WaitForSpace.
func (q *Queue) Increment() {
	q.mu.Lock()
	q.inFlight++
	q.mu.Unlock()
}

// OnChunkOutput records one encoder-acknowledged completion. It decrements
// the in-flight count and wakes the oldest waiter, if any.
func (q *Queue) OnChunkOutput() {
	q.mu.Lock()
	if q.inFlight > 0 {
		q.inFlight--
	}
	var wake chan struct{}
	if q.inFlight < q.max && len(q.waiters) > 0 {
		wake = q.waiters[0]
		q.waiters = q.waiters[1:]
	}
	q.mu.Unlock()

	if wake != nil {
		close(wake)
	}
}

// InFlight returns the current in-flight count.
func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

// Drain wakes every waiter and resets the in-flight count. Used on
// cancellation so no caller stays suspended on a queue that will never
// see another completion.
func (q *Queue) Drain() {
	q.mu.Lock()
	waiters := q.waiters
	q.waiters = nil
	q.inFlight = 0
	q.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
}

// remove drops a cancelled waiter so a later completion does not wake a
// caller that already gave up.
func (q *Queue) remove(w chan struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, cand := range q.waiters {
		if cand == w {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			return
		}
	}
}
