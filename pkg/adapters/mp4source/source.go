package mp4source

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"sync"

	"github.com/user/screenshow/pkg/pipeline"
	"github.com/user/screenshow/pkg/ports"
)

// Source is a decode cursor over one MP4 video track. Decoding runs in an
// ffmpeg subprocess that streams raw RGBA frames over a pipe; the cursor
// reads forward cheaply and restarts the subprocess for backward seeks.
//
// Not safe for concurrent use. Callers needing overlapping reads open
// multiple cursors over the same file.
type Source struct {
	path       string
	ffmpegPath string
	idx        *trackIndex
	frameSize  int

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout *bufio.Reader
	nextNr int // sample number the pipe will yield next
	closed bool
}

// Open creates a cursor over the video track of the MP4 at path.
func Open(path string) (*Source, error) {
	ffmpegPath, err := FindFFmpeg()
	if err != nil {
		return nil, err
	}
	idx, err := indexFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", pipeline.ErrSourceUnreadable, path, err)
	}
	return &Source{
		path:       path,
		ffmpegPath: ffmpegPath,
		idx:        idx,
		frameSize:  idx.width * idx.height * 4,
	}, nil
}

// Opener returns a SourceOpener bound to path, for the prefetch layer.
func Opener(path string) ports.SourceOpener {
	return func() (ports.FrameSource, error) {
		return Open(path)
	}
}

// Info returns static information about the track.
func (s *Source) Info() ports.SourceInfo {
	return s.idx.info()
}

// ReadFrameAt seeks to the sample covering timestampUs and decodes it.
// Forward motion skips frames on the open pipe; backward motion restarts
// the decoder at the target timestamp.
func (s *Source) ReadFrameAt(ctx context.Context, timestampUs int64) (image.Image, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, 0, fmt.Errorf("%w: cursor closed", pipeline.ErrSourceUnreadable)
	}

	target := s.idx.sampleAt(timestampUs)
	if target < 0 {
		return nil, 0, fmt.Errorf("%w: %dus beyond track end %dus",
			pipeline.ErrPastEnd, timestampUs, s.idx.durationUs)
	}

	if s.cmd == nil || target < s.nextNr {
		if err := s.restart(target); err != nil {
			return nil, 0, err
		}
	}

	// Discard intermediate frames. The subprocess emits exactly one raw
	// frame per sample (passthrough frame timing), so pipe position and
	// sample number stay in lockstep.
	skip := make([]byte, s.frameSize)
	for s.nextNr < target {
		if err := s.readFull(ctx, skip); err != nil {
			return nil, 0, err
		}
		s.nextNr++
	}

	buf := make([]byte, s.frameSize)
	if err := s.readFull(ctx, buf); err != nil {
		return nil, 0, err
	}
	s.nextNr++

	img := &image.RGBA{
		Pix:    buf,
		Stride: s.idx.width * 4,
		Rect:   image.Rect(0, 0, s.idx.width, s.idx.height),
	}
	return img, s.idx.samples[target].tsUs, nil
}

// restart launches a fresh decode subprocess positioned at sample nr.
func (s *Source) restart(nr int) error {
	s.stop()

	args := []string{"-loglevel", "error", "-nostdin"}
	if ts := s.idx.samples[nr].tsUs; ts > 0 {
		args = append(args, "-ss", fmt.Sprintf("%d.%06d", ts/1e6, ts%1e6))
	}
	args = append(args,
		"-i", s.path,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-fps_mode", "passthrough",
		"-an",
		"pipe:1",
	)

	cmd := exec.Command(s.ffmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: stdout pipe: %v", pipeline.ErrSourceUnreadable, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start decoder: %v", pipeline.ErrSourceUnreadable, err)
	}

	s.cmd = cmd
	s.stdout = bufio.NewReaderSize(stdout, 1<<16)
	s.nextNr = nr
	return nil
}

// readFull reads one raw frame, honoring context cancellation. On
// cancellation the subprocess is killed so the blocked pipe read unwinds;
// the next ReadFrameAt restarts it.
func (s *Source) readFull(ctx context.Context, buf []byte) error {
	done := make(chan error, 1)
	go func() {
		_, err := io.ReadFull(s.stdout, buf)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			s.stop()
			return fmt.Errorf("%w: read frame %d: %v", pipeline.ErrSourceUnreadable, s.nextNr, err)
		}
		return nil
	case <-ctx.Done():
		s.stop()
		<-done
		return ctx.Err()
	}
}

// stop kills the decode subprocess, if any.
func (s *Source) stop() {
	if s.cmd == nil {
		return
	}
	s.cmd.Process.Kill()
	s.cmd.Wait()
	s.cmd = nil
	s.stdout = nil
}

// Close releases decoder resources.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stop()
	return nil
}

// Ensure Source implements ports.FrameSource
var _ ports.FrameSource = (*Source)(nil)
