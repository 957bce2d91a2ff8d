// Package prefetch wraps two decode cursors over one source track so that
// seek latency overlaps render latency: while frame N is being consumed
// downstream, frame N+1 is already being sought and decoded on the other
// cursor.
package prefetch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/user/screenshow/pkg/framepool"
	"github.com/user/screenshow/pkg/pipeline"
	"github.com/user/screenshow/pkg/ports"
)

// DefaultSeekTimeout bounds a single seek so a stuck source fails the
// export instead of hanging it.
const DefaultSeekTimeout = 10 * time.Second

// Options configures a prefetch source.
type Options struct {
	// TrimStartUs/TrimEndUs select the exported sub-interval of source
	// time. TrimEndUs == 0 means the full track; an end beyond the track
	// is clamped so the source stops cleanly at track end.
	TrimStartUs int64
	TrimEndUs   int64

	// FrameDurationUs is the output frame interval (1e6 / fps).
	FrameDurationUs int64

	// SeekTimeout bounds each seek. Zero selects DefaultSeekTimeout.
	SeekTimeout time.Duration
}

type fetchResult struct {
	index    int64
	img      image.Image
	outputTs int64
	err      error
}

// Source produces decoded frames in increasing output-time order through
// its sole entry point, Next.
type Source struct {
	open    ports.SourceOpener
	pool    *framepool.Pool
	log     ports.Logger
	opts    Options
	info    ports.SourceInfo
	cursors [2]ports.FrameSource

	total     int64
	nextIndex int64
	pending   chan fetchResult
	started   bool
}

// New opens both decode cursors and computes the output frame count from
// the trim range.
func New(open ports.SourceOpener, pool *framepool.Pool, log ports.Logger, opts Options) (*Source, error) {
	if opts.FrameDurationUs <= 0 {
		return nil, fmt.Errorf("%w: frame duration %dus", pipeline.ErrConfigInvalid, opts.FrameDurationUs)
	}
	if opts.SeekTimeout <= 0 {
		opts.SeekTimeout = DefaultSeekTimeout
	}

	s := &Source{
		open:    open,
		pool:    pool,
		log:     log.WithComponent("prefetch"),
		opts:    opts,
		pending: make(chan fetchResult, 1),
	}
	for i := range s.cursors {
		c, err := open()
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("%w: open cursor: %v", pipeline.ErrSourceUnreadable, err)
		}
		s.cursors[i] = c
	}
	s.info = s.cursors[0].Info()

	end := s.opts.TrimEndUs
	if end <= 0 || end > s.info.DurationUs {
		end = s.info.DurationUs
	}
	span := end - s.opts.TrimStartUs
	if span <= 0 {
		return nil, fmt.Errorf("%w: trim range [%d,%d]us empty", pipeline.ErrConfigInvalid, s.opts.TrimStartUs, end)
	}
	s.total = span / opts.FrameDurationUs
	if s.total < 1 {
		return nil, fmt.Errorf("%w: trim range [%d,%d]us shorter than one frame", pipeline.ErrConfigInvalid, s.opts.TrimStartUs, end)
	}

	return s, nil
}

// Info returns the underlying track information.
func (s *Source) Info() ports.SourceInfo {
	return s.info
}

// Total returns the number of output frames the trim range yields.
func (s *Source) Total() int64 {
	return s.total
}

// Next returns the next decoded frame on the output timeline. Past the
// trim end it returns pipeline.ErrPastEnd; for an optional overlay track
// the caller treats that as "render without this layer".
func (s *Source) Next(ctx context.Context) (*pipeline.DecodedFrame, error) {
	if s.nextIndex >= s.total {
		return nil, pipeline.ErrPastEnd
	}
	if !s.started {
		s.startFetch(ctx, 0)
		s.started = true
	}

	var res fetchResult
	select {
	case res = <-s.pending:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, res.err
	}

	s.nextIndex = res.index + 1
	if s.nextIndex < s.total {
		// Overlap the next seek with the caller's render of this frame.
		s.startFetch(ctx, s.nextIndex)
	}

	handle, err := s.pool.Acquire(res.img)
	if err != nil {
		return nil, fmt.Errorf("acquire frame %d: %w", res.index, err)
	}
	return &pipeline.DecodedFrame{
		Index:       res.index,
		TimestampUs: res.outputTs,
		Handle:      handle,
	}, nil
}

// startFetch decodes frame index on the cursor the previous fetch did not
// use. At most one fetch is outstanding at a time, so cursor ownership
// alternates without locking.
func (s *Source) startFetch(ctx context.Context, index int64) {
	go func() {
		outputTs := index * s.opts.FrameDurationUs
		sourceTs := s.opts.TrimStartUs + outputTs

		img, err := s.readWithRetry(ctx, int(index%2), sourceTs)
		s.pending <- fetchResult{index: index, img: img, outputTs: outputTs, err: err}
	}()
}

// readWithRetry performs one timed seek+decode, replacing the cursor and
// retrying once when the seek times out.
func (s *Source) readWithRetry(ctx context.Context, cursor int, sourceTs int64) (image.Image, error) {
	img, err := s.readTimed(ctx, s.cursors[cursor], sourceTs)
	if err == nil || !errors.Is(err, pipeline.ErrSeekTimeout) {
		return img, err
	}

	s.log.Warn("Seek to %dus timed out, retrying with a fresh cursor", sourceTs)
	s.cursors[cursor].Close()
	fresh, openErr := s.open()
	if openErr != nil {
		return nil, fmt.Errorf("%w: reopen cursor after timeout: %v", pipeline.ErrSourceUnreadable, openErr)
	}
	s.cursors[cursor] = fresh
	return s.readTimed(ctx, fresh, sourceTs)
}

func (s *Source) readTimed(ctx context.Context, cursor ports.FrameSource, sourceTs int64) (image.Image, error) {
	seekCtx, cancel := context.WithTimeout(ctx, s.opts.SeekTimeout)
	defer cancel()

	img, _, err := cursor.ReadFrameAt(seekCtx, sourceTs)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: seek to %dus", pipeline.ErrSeekTimeout, sourceTs)
		}
		return nil, err
	}
	return img, nil
}

// Close releases both cursors.
func (s *Source) Close() {
	for i, c := range s.cursors {
		if c != nil {
			c.Close()
			s.cursors[i] = nil
		}
	}
}
