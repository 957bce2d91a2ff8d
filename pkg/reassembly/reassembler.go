// Package reassembly restores strict frame order after parallel rendering.
//
// Workers complete frames in arbitrary order; the Reassembler buffers
// out-of-order arrivals and releases frames downstream only as contiguous
// runs starting at the next expected index. This is the sole ordering
// boundary in the pipeline: everything downstream of it may assume a
// strictly increasing, gap-free index sequence.
package reassembly

import (
	"fmt"

	"github.com/user/screenshow/pkg/pipeline"
)

// Reassembler buffers completed frames until they can be emitted in order.
// It is used from a single collector goroutine and needs no internal
// locking.
type Reassembler struct {
	next       int64
	pending    map[int64]*pipeline.RenderedFrame
	maxPending int
}

// New creates a Reassembler expecting startIndex first. maxPending bounds
// the out-of-order buffer; the orchestrator's dispatch credits keep at
// most n*2 frames outstanding for n workers, so anything above that
// indicates a pipeline bug.
func New(startIndex int64, maxPending int) (*Reassembler, error) {
	if maxPending < 1 {
		return nil, fmt.Errorf("%w: reassembler maxPending %d", pipeline.ErrResourceExhausted, maxPending)
	}
	return &Reassembler{
		next:       startIndex,
		pending:    make(map[int64]*pipeline.RenderedFrame, maxPending),
		maxPending: maxPending,
	}, nil
}

// OnCompleted records one completed frame and returns the frames that are
// now releasable: zero if the next expected index is still missing, or a
// burst of several when the arrival closes a gap.
func (r *Reassembler) OnCompleted(index int64, frame *pipeline.RenderedFrame) ([]*pipeline.RenderedFrame, error) {
	if index < r.next {
		return nil, fmt.Errorf("reassembly: frame %d already emitted (next expected %d)", index, r.next)
	}
	if _, dup := r.pending[index]; dup {
		return nil, fmt.Errorf("reassembly: duplicate frame %d", index)
	}
	r.pending[index] = frame
	if len(r.pending) > r.maxPending {
		return nil, fmt.Errorf("reassembly: %d frames pending, limit %d", len(r.pending), r.maxPending)
	}

	var emitted []*pipeline.RenderedFrame
	for {
		f, ok := r.pending[r.next]
		if !ok {
			break
		}
		delete(r.pending, r.next)
		emitted = append(emitted, f)
		r.next++
	}
	return emitted, nil
}

// NextExpected returns the index the reassembler is waiting for.
func (r *Reassembler) NextExpected() int64 {
	return r.next
}

// Pending returns the number of buffered out-of-order frames.
func (r *Reassembler) Pending() int {
	return len(r.pending)
}
