// Package h264encoder provides asynchronous H.264 encoding through an
// ffmpeg subprocess. Raw RGBA frames stream into libx264 over stdin and
// Annex B access units stream back over stdout, so encoding overlaps
// compositing instead of batching at the end of the export.
package h264encoder

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
	"sync"

	"github.com/user/screenshow/pkg/ports"
)

// Encoder implements ports.VideoEncoder on an ffmpeg subprocess.
//
// libx264 runs with B-frames disabled and access unit delimiters enabled,
// so output access units map one-to-one onto submitted frames in
// submission order. Each emitted chunk is stamped with the frame index
// and timestamp queued at Submit time.
type Encoder struct {
	width  int
	height int

	mu         sync.Mutex
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stderr     bytes.Buffer
	pending    []chunkTag
	chunks     chan ports.EncodedChunk
	readerDone chan error
	closed     bool
}

// chunkTag carries the caller's frame identity until the encoded access
// unit for it comes back out of the subprocess.
type chunkTag struct {
	index int64
	tsUs  int64
}

// New creates an Encoder. Begin must be called before Submit.
func New() *Encoder {
	return &Encoder{}
}

// Begin starts the encode subprocess.
func (e *Encoder) Begin(width, height int, fps float64, opts ports.EncoderOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd != nil {
		return ErrAlreadyStarted
	}

	ffmpegPath, err := FindFFmpeg()
	if err != nil {
		return err
	}

	e.width = width
	e.height = height
	e.closed = false
	e.pending = e.pending[:0]
	e.chunks = make(chan ports.EncodedChunk, 16)
	e.readerDone = make(chan error, 1)

	crf := opts.Quality
	if crf <= 0 || crf > 51 {
		crf = 23
	}

	args := []string{
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", fmt.Sprintf("%.3f", fps),
		"-i", "pipe:0",
		"-c:v", "libx264",
		"-preset", "fast",
		"-tune", "zerolatency",
		// aud=1 delimits every access unit; bframes=0 keeps output order
		// equal to input order.
		"-x264-params", "aud=1:bframes=0",
		"-g", fmt.Sprintf("%d", keyframeInterval(fps)),
		"-crf", fmt.Sprintf("%d", crf),
		"-pix_fmt", "yuv420p",
	}
	if opts.Bitrate > 0 {
		args = append(args, "-b:v", fmt.Sprintf("%dk", opts.Bitrate))
	}
	args = append(args, "-f", "h264", "pipe:1")

	cmd := exec.Command(ffmpegPath, args...)
	cmd.Stderr = &e.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	e.cmd = cmd
	e.stdin = stdin
	go e.readChunks(stdout)
	return nil
}

// keyframeInterval is two seconds of output, minimum one frame.
func keyframeInterval(fps float64) int {
	g := int(fps * 2)
	if g < 1 {
		g = 1
	}
	return g
}

// Submit writes one raw frame to the subprocess. The write blocks only
// while the encoder's own input buffer is full, which is the intended
// backpressure path.
func (e *Encoder) Submit(img image.Image, frameIndex, timestampUs int64) error {
	e.mu.Lock()
	if e.stdin == nil || e.closed {
		e.mu.Unlock()
		return ErrNotInitialized
	}
	e.pending = append(e.pending, chunkTag{index: frameIndex, tsUs: timestampUs})
	stdin := e.stdin
	e.mu.Unlock()

	pix := rgbaPixels(img, e.width, e.height)
	if _, err := stdin.Write(pix); err != nil {
		return fmt.Errorf("write frame %d: %w", frameIndex, err)
	}
	return nil
}

// rgbaPixels returns the frame as a tightly packed RGBA buffer, reusing
// the image's own storage when it already has the right shape.
func rgbaPixels(img image.Image, width, height int) []byte {
	if rgba, ok := img.(*image.RGBA); ok {
		b := rgba.Bounds()
		if b.Dx() == width && b.Dy() == height && rgba.Stride == width*4 && b.Min == (image.Point{}) {
			return rgba.Pix
		}
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	return dst.Pix
}

// readChunks splits the Annex B stream into access units and emits one
// chunk per unit, tagged in FIFO order.
func (e *Encoder) readChunks(stdout io.Reader) {
	splitter := newAUSplitter(bufio.NewReaderSize(stdout, 1<<16))
	var err error
	for {
		var au []byte
		au, err = splitter.Next()
		if au == nil {
			break
		}
		e.emit(au)
	}
	if err == io.EOF {
		err = nil
	}
	e.readerDone <- err
	close(e.chunks)
}

func (e *Encoder) emit(au []byte) {
	e.mu.Lock()
	var tag chunkTag
	if len(e.pending) > 0 {
		tag = e.pending[0]
		e.pending = e.pending[1:]
	}
	e.mu.Unlock()

	e.chunks <- ports.EncodedChunk{
		FrameIndex:  tag.index,
		TimestampUs: tag.tsUs,
		IsKeyframe:  hasIDR(au),
		Data:        au,
	}
}

// Flush closes the input, drains the subprocess, and waits for the last
// chunk to be emitted.
func (e *Encoder) Flush(ctx context.Context) error {
	e.mu.Lock()
	if e.stdin == nil || e.closed {
		e.mu.Unlock()
		return ErrNotInitialized
	}
	e.closed = true
	stdin := e.stdin
	e.stdin = nil
	e.mu.Unlock()

	stdin.Close()

	select {
	case err := <-e.readerDone:
		werr := e.cmd.Wait()
		if err != nil {
			return fmt.Errorf("read encoder output: %w", err)
		}
		if werr != nil {
			return fmt.Errorf("ffmpeg encoding failed: %w\nstderr: %s", werr, e.stderr.String())
		}
		return nil
	case <-ctx.Done():
		e.cmd.Process.Kill()
		<-e.readerDone
		e.cmd.Wait()
		return ctx.Err()
	}
}

// Chunks returns the encoded output channel.
func (e *Encoder) Chunks() <-chan ports.EncodedChunk {
	return e.chunks
}

// Close aborts encoding. Safe to call after Flush or on failure paths.
func (e *Encoder) Close() {
	e.mu.Lock()
	if e.cmd == nil {
		e.mu.Unlock()
		return
	}
	alreadyFlushed := e.closed
	e.closed = true
	if e.stdin != nil {
		e.stdin.Close()
		e.stdin = nil
	}
	cmd := e.cmd
	e.cmd = nil
	e.mu.Unlock()

	if !alreadyFlushed {
		cmd.Process.Kill()
		<-e.readerDone
	}
	cmd.Wait()
}

// Ensure Encoder implements ports.VideoEncoder
var _ ports.VideoEncoder = (*Encoder)(nil)
