// Package framepool provides a bounded allocator/recycler for decoded-frame
// handles. It keeps pipeline memory use flat when the decode and render
// stages run at different speeds: a frame's pixel data stays alive exactly
// from Acquire to Release, and the pool refuses to hold more than maxSize
// frames at once.
package framepool

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"
)

var (
	// ErrPoolExhausted is returned by Acquire when maxSize handles are
	// already outstanding and the pool was configured to fail fast.
	ErrPoolExhausted = errors.New("framepool: pool exhausted")

	// ErrStaleHandle is returned when a handle is used after release.
	// The generation tag catches use-after-release deterministically.
	ErrStaleHandle = errors.New("framepool: stale or released handle")
)

// Handle identifies one acquired frame. Handles transfer between pipeline
// stages by value; the slot index plus generation tag make a released
// handle detectably invalid instead of silently aliasing a newer frame.
type Handle struct {
	slot int
	gen  uint64
}

// Zero reports whether h is the zero handle (never acquired).
func (h Handle) Zero() bool {
	return h.gen == 0
}

type slot struct {
	img image.Image
	gen uint64
	// live distinguishes an occupied slot from a recycled one with the
	// same generation counter value.
	live bool
}

// Pool is a bounded arena of frame slots. All methods are safe for
// concurrent use.
type Pool struct {
	mu      sync.Mutex
	slots   []slot
	free    []int
	nextGen uint64
	copies  int64 // count of data-copy fallbacks, for diagnostics
}

// New creates a pool that allows at most maxSize concurrently acquired
// handles. maxSize < 1 is a construction-time error, never clamped.
func New(maxSize int) (*Pool, error) {
	if maxSize < 1 {
		return nil, fmt.Errorf("framepool: maxSize must be >= 1, got %d", maxSize)
	}
	p := &Pool{
		slots:   make([]slot, maxSize),
		free:    make([]int, 0, maxSize),
		nextGen: 1,
	}
	for i := maxSize - 1; i >= 0; i-- {
		p.free = append(p.free, i)
	}
	return p, nil
}

// Acquire wraps a decoded image in a pooled handle. When the image is an
// *image.RGBA the pool shares the underlying pixel buffer (reference
// semantics, no copy); any other image type is copied into an RGBA buffer
// once, which only costs throughput, never correctness.
//
// Acquire fails with ErrPoolExhausted when maxSize handles are outstanding;
// the caller must release a frame first.
func (p *Pool) Acquire(img image.Image) (Handle, error) {
	if img == nil {
		return Handle{}, errors.New("framepool: nil image")
	}

	stored, copied := asRGBA(img)

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) == 0 {
		return Handle{}, ErrPoolExhausted
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]

	gen := p.nextGen
	p.nextGen++
	p.slots[idx] = slot{img: stored, gen: gen, live: true}
	if copied {
		p.copies++
	}
	return Handle{slot: idx, gen: gen}, nil
}

// Image returns the pixel data behind a live handle.
func (p *Pool) Image(h Handle) (image.Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.valid(h) {
		return nil, ErrStaleHandle
	}
	return p.slots[h.slot].img, nil
}

// Release frees the slot behind the handle. Releasing a stale handle is an
// error so double-release bugs surface in tests instead of corrupting a
// newer frame.
func (p *Pool) Release(h Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.valid(h) {
		return ErrStaleHandle
	}
	p.slots[h.slot] = slot{}
	p.free = append(p.free, h.slot)
	return nil
}

// Valid reports whether the handle still refers to a live frame.
func (p *Pool) Valid(h Handle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.valid(h)
}

func (p *Pool) valid(h Handle) bool {
	if h.Zero() || h.slot < 0 || h.slot >= len(p.slots) {
		return false
	}
	s := p.slots[h.slot]
	return s.live && s.gen == h.gen
}

// Outstanding returns the number of currently acquired handles.
func (p *Pool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots) - len(p.free)
}

// Copies returns how many acquires fell back to a pixel copy.
func (p *Pool) Copies() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.copies
}

// Clear forcibly releases every outstanding handle. Used on cancellation
// and error paths to guarantee the pool returns to zero.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.free = p.free[:0]
	for i := len(p.slots) - 1; i >= 0; i-- {
		p.slots[i] = slot{}
		p.free = append(p.free, i)
	}
}

// asRGBA returns img as *image.RGBA, copying only when the underlying type
// does not support zero-copy sharing.
func asRGBA(img image.Image) (image.Image, bool) {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, false
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst, true
}
