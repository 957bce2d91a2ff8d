// Package orchestrator coordinates the export pipeline: configuration
// validation, pipeline construction with single-threaded fallback, the
// steady-state pump loop, encoder flush, muxer handoff, and cleanup on
// cancellation or failure.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/ideamans/go-l10n"

	"github.com/user/screenshow/pkg/compositor"
	"github.com/user/screenshow/pkg/config"
	"github.com/user/screenshow/pkg/encodequeue"
	"github.com/user/screenshow/pkg/framepool"
	"github.com/user/screenshow/pkg/pipeline"
	"github.com/user/screenshow/pkg/ports"
	"github.com/user/screenshow/pkg/prefetch"
	"github.com/user/screenshow/pkg/reassembly"
	"github.com/user/screenshow/pkg/workerpool"
)

// State is the orchestrator's lifecycle state.
type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateRunning      State = "running"
	StateFlushing     State = "flushing"
	StateFinalizing   State = "finalizing"
	StateCompleted    State = "completed"
	StateCancelled    State = "cancelled"
	StateFailed       State = "failed"
)

// ExportRequest describes one export.
type ExportRequest struct {
	OutputWidth  int
	OutputHeight int
	TrimStartMs  int
	TrimEndMs    int // 0 = full source duration
	FPS          float64
	OutputPath   string

	UseParallelRendering bool
	WorkerCount          int // 0 = derived from CPU count, clamped to [1,8]
	EncodeQueueSize      int // 0 = 4; hardware encoders favor shallow queues

	Quality int // CRF
	Bitrate int // kbps, 0 = CRF only
	OutroMs int // hold the final frame this long

	SeekTimeout time.Duration
}

// Result is the terminal outcome reported to the caller.
type Result struct {
	State          State
	OutputPath     string
	FramesExported int64
	ErrorKind      string
}

// ProgressFunc receives progress events as frames complete.
type ProgressFunc func(pipeline.Progress)

// Orchestrator runs exports. One orchestrator runs one export at a time;
// it holds no state that outlives an export beyond the last State value.
type Orchestrator struct {
	openPrimary ports.SourceOpener
	openOverlay ports.SourceOpener // nil when no PiP track is configured
	renderer    ports.Renderer
	encoder     ports.VideoEncoder
	muxer       ports.Muxer
	fs          ports.FileSystem
	sink        ports.DebugSink
	log         ports.Logger

	mu    sync.Mutex
	state State
}

// New creates an Orchestrator.
func New(
	openPrimary ports.SourceOpener,
	openOverlay ports.SourceOpener,
	renderer ports.Renderer,
	encoder ports.VideoEncoder,
	muxer ports.Muxer,
	fs ports.FileSystem,
	sink ports.DebugSink,
	log ports.Logger,
) *Orchestrator {
	return &Orchestrator{
		openPrimary: openPrimary,
		openOverlay: openOverlay,
		renderer:    renderer,
		encoder:     encoder,
		muxer:       muxer,
		fs:          fs,
		sink:        sink,
		log:         log,
		state:       StateIdle,
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// exportEnv holds the per-export pipeline pieces.
type exportEnv struct {
	cfg  config.RenderConfig
	req  ExportRequest
	pool *framepool.Pool

	primary *prefetch.Source
	overlay *prefetch.Source

	queue       *encodequeue.Queue
	frameDurUs  int64
	total       int64 // rendered frames
	outroFrames int64
	totalChunks int64

	onProgress ProgressFunc

	overlayEnded bool
	lastRendered *pipeline.RenderedFrame
}

// Export runs one export to completion, cancellation, or failure.
// Cancellation is not an error: the result state is Cancelled and the
// returned error is nil.
func (o *Orchestrator) Export(ctx context.Context, cfg config.RenderConfig, req ExportRequest, onProgress ProgressFunc) (Result, error) {
	o.setState(StateInitializing)
	o.log.Info(l10n.T("Starting export"))

	env, err := o.initialize(ctx, cfg, req, onProgress)
	if err != nil {
		return o.fail(env, err)
	}
	defer env.primary.Close()
	if env.overlay != nil {
		defer env.overlay.Close()
	}

	if err := o.run(ctx, env); err != nil {
		return o.fail(env, err)
	}

	o.setState(StateFinalizing)
	data, err := o.muxer.Finalize()
	if err != nil {
		return o.fail(env, fmt.Errorf("finalize container: %w", err))
	}
	if err := o.fs.WriteFile(req.OutputPath, data); err != nil {
		return o.fail(env, fmt.Errorf("write output: %w", err))
	}

	env.pool.Clear()
	o.setState(StateCompleted)
	o.log.Info(l10n.F("Export completed: %d frames to %s", env.totalChunks, req.OutputPath))
	return Result{
		State:          StateCompleted,
		OutputPath:     req.OutputPath,
		FramesExported: env.totalChunks,
	}, nil
}

// initialize validates the configuration and builds the pipeline up to
// (but not including) the worker pool.
func (o *Orchestrator) initialize(ctx context.Context, cfg config.RenderConfig, req ExportRequest, onProgress ProgressFunc) (*exportEnv, error) {
	if req.OutputWidth <= 0 || req.OutputHeight <= 0 {
		return nil, fmt.Errorf("%w: output %dx%d", pipeline.ErrConfigInvalid, req.OutputWidth, req.OutputHeight)
	}
	if req.FPS <= 0 {
		return nil, fmt.Errorf("%w: fps %g", pipeline.ErrConfigInvalid, req.FPS)
	}
	if req.OutputPath == "" {
		return nil, fmt.Errorf("%w: empty output path", pipeline.ErrConfigInvalid)
	}
	if req.TrimStartMs < 0 || (req.TrimEndMs != 0 && req.TrimEndMs <= req.TrimStartMs) {
		return nil, fmt.Errorf("%w: trim range [%d,%d]ms", pipeline.ErrConfigInvalid, req.TrimStartMs, req.TrimEndMs)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if req.WorkerCount == 0 {
		req.WorkerCount = defaultWorkerCount()
	}
	if req.EncodeQueueSize == 0 {
		req.EncodeQueueSize = 4
	}

	env := &exportEnv{cfg: cfg, req: req, onProgress: onProgress}
	env.frameDurUs = int64(1e6 / req.FPS)

	// The pool must cover every frame in flight: one per worker plus the
	// prefetched pair on each track and the reassembly buffer.
	poolSize := req.WorkerCount*4 + 8
	pool, err := framepool.New(poolSize)
	if err != nil {
		return nil, err
	}
	env.pool = pool

	env.primary, err = prefetch.New(o.openPrimary, pool, o.log, prefetch.Options{
		TrimStartUs:     int64(req.TrimStartMs) * 1000,
		TrimEndUs:       int64(req.TrimEndMs) * 1000,
		FrameDurationUs: env.frameDurUs,
		SeekTimeout:     req.SeekTimeout,
	})
	if err != nil {
		return nil, err
	}

	info := env.primary.Info()
	if env.cfg.SourceWidth == 0 || env.cfg.SourceHeight == 0 {
		env.cfg.SourceWidth = info.Width
		env.cfg.SourceHeight = info.Height
	}

	if env.cfg.PiP.Enabled && o.openOverlay != nil {
		env.overlay, err = prefetch.New(o.openOverlay, pool, o.log, prefetch.Options{
			FrameDurationUs: env.frameDurUs,
			SeekTimeout:     req.SeekTimeout,
		})
		if err != nil {
			// An unreadable overlay track degrades to no overlay.
			o.log.Warn(l10n.F("Picture-in-picture source unavailable: %s", err))
			env.overlay = nil
		}
	}

	env.total = env.primary.Total()
	env.outroFrames = int64(float64(req.OutroMs) / 1000 * req.FPS)
	env.totalChunks = env.total + env.outroFrames

	env.queue, err = encodequeue.New(req.EncodeQueueSize)
	if err != nil {
		return nil, err
	}

	if err := o.encoder.Begin(req.OutputWidth, req.OutputHeight, req.FPS, ports.EncoderOptions{
		Quality: req.Quality,
		Bitrate: req.Bitrate,
	}); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	if err := o.muxer.Begin(req.OutputWidth, req.OutputHeight, req.FPS); err != nil {
		return nil, fmt.Errorf("begin muxing: %w", err)
	}

	if o.sink.Enabled() {
		if data, err := json.MarshalIndent(env.cfg, "", "  "); err == nil {
			o.sink.SaveConfigJSON(data)
		}
	}

	o.log.Info(l10n.F("Exporting %d frames (%dx%d @ %.3g fps, %d workers, queue %d)",
		env.total, req.OutputWidth, req.OutputHeight, req.FPS, req.WorkerCount, req.EncodeQueueSize))
	return env, nil
}

// run drives the Running and Flushing phases.
func (o *Orchestrator) run(ctx context.Context, env *exportEnv) error {
	o.setState(StateRunning)

	// Chunk pump: encoder output → muxer, freeing an encode queue slot and
	// reporting progress per chunk. Runs until the encoder closes its
	// channel (after Flush or Close).
	chunkDone := make(chan error, 1)
	go func() {
		var firstErr error
		var completed int64
		for chunk := range o.encoder.Chunks() {
			if err := o.muxer.WriteChunk(chunk); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("mux chunk %d: %w", chunk.FrameIndex, err)
			}
			env.queue.OnChunkOutput()
			completed++
			if env.onProgress != nil {
				env.onProgress(pipeline.Progress{
					FramesCompleted: completed,
					TotalFrames:     env.totalChunks,
					Phase:           pipeline.PhaseRendering,
				})
			}
		}
		chunkDone <- firstErr
	}()

	var renderErr error
	if env.req.UseParallelRendering {
		renderErr = o.runParallel(ctx, env)
	} else {
		renderErr = o.runSingle(ctx, env)
	}

	if renderErr == nil {
		renderErr = o.submitOutro(ctx, env)
	}

	if renderErr != nil {
		// Unblock the chunk pump before reporting: abort the encoder so
		// its channel closes, then release everything.
		o.encoder.Close()
		<-chunkDone
		env.queue.Drain()
		env.pool.Clear()
		return renderErr
	}

	o.setState(StateFlushing)
	if err := o.encoder.Flush(ctx); err != nil {
		o.encoder.Close()
		<-chunkDone
		env.queue.Drain()
		env.pool.Clear()
		return fmt.Errorf("flush encoder: %w", err)
	}
	return <-chunkDone
}

// runParallel is the steady-state pump: prefetch → idle worker →
// compositor → reassembler → encode queue → encoder.
func (o *Orchestrator) runParallel(ctx context.Context, env *exportEnv) error {
	wp, err := workerpool.New(env.req.WorkerCount, func(workerID int) (workerpool.Compositor, error) {
		return compositor.New(env.cfg, env.req.OutputWidth, env.req.OutputHeight,
			env.frameDurUs, o.renderer, env.pool, o.fs, o.log)
	}, o.log)
	if err != nil {
		// Graceful fallback: correctness must not depend on parallel
		// workers being available.
		o.log.Warn(l10n.F("Render workers unavailable (%s), falling back to single-threaded compositing", err))
		return o.runSingle(ctx, env)
	}
	defer func() {
		// Workers may still be publishing results; keep the channel moving
		// until Shutdown closes it.
		go func() {
			for range wp.Results() {
			}
		}()
		wp.Shutdown()
	}()

	reasm, err := reassembly.New(0, env.req.WorkerCount*2+1)
	if err != nil {
		return err
	}

	// Dispatch credits bound how far completions can run ahead of the
	// ordered emit point: at most WorkerCount*2 frames are dispatched but
	// not yet emitted, so one slow frame stalls the pump instead of
	// overflowing the reassembler's pending buffer.
	credits := make(chan struct{}, env.req.WorkerCount*2)
	for i := 0; i < cap(credits); i++ {
		credits <- struct{}{}
	}

	// Distribution pump: assign each prefetched frame to the first idle
	// worker. Out-of-order completion is expected downstream.
	pumpErr := make(chan error, 1)
	pumpCtx, cancelPump := context.WithCancel(ctx)
	defer cancelPump()
	go func() {
		pumpErr <- o.pump(pumpCtx, env, wp, credits)
	}()

	retried := make(map[int64]bool)
	var emitted int64
	for emitted < env.total {
		select {
		case res := <-wp.Results():
			if res.Err != nil {
				if err := o.retryFailed(pumpCtx, env, wp, res, retried); err != nil {
					cancelPump()
					<-pumpErr
					return err
				}
				continue
			}
			burst, err := reasm.OnCompleted(res.Index, res.Frame)
			if err != nil {
				cancelPump()
				<-pumpErr
				return err
			}
			for _, f := range burst {
				if err := o.submitRendered(ctx, env, f); err != nil {
					cancelPump()
					<-pumpErr
					return err
				}
				emitted++
				credits <- struct{}{}
			}

		case err := <-pumpErr:
			if err != nil {
				return err
			}
			// Pump finished; remaining results keep arriving above.
			pumpErr = nil

		case <-ctx.Done():
			cancelPump()
			if pumpErr != nil {
				<-pumpErr
			}
			return ctx.Err()
		}
	}

	if pumpErr != nil {
		if err := <-pumpErr; err != nil {
			return err
		}
	}
	return nil
}

// pump feeds every source frame to exactly one idle worker. Each frame
// consumes a dispatch credit that the collector returns on ordered emit.
func (o *Orchestrator) pump(ctx context.Context, env *exportEnv, wp *workerpool.Pool, credits <-chan struct{}) error {
	for {
		select {
		case <-credits:
		case <-ctx.Done():
			return ctx.Err()
		}

		frame, err := env.primary.Next(ctx)
		if errors.Is(err, pipeline.ErrPastEnd) {
			return nil
		}
		if err != nil {
			return err
		}

		overlay := o.nextOverlay(ctx, env)

		w, err := wp.WaitForIdleWorker(ctx)
		if err != nil {
			return err
		}
		w.Submit(workerpool.Job{Frame: frame, Overlay: overlay})
	}
}

// runSingle renders inline with one compositor, same contract as the
// parallel path.
func (o *Orchestrator) runSingle(ctx context.Context, env *exportEnv) error {
	comp, err := compositor.New(env.cfg, env.req.OutputWidth, env.req.OutputHeight,
		env.frameDurUs, o.renderer, env.pool, o.fs, o.log)
	if err != nil {
		return err
	}

	for {
		frame, err := env.primary.Next(ctx)
		if errors.Is(err, pipeline.ErrPastEnd) {
			return nil
		}
		if err != nil {
			return err
		}

		overlay := o.nextOverlay(ctx, env)
		rendered, err := comp.Render(frame, overlay)
		if err != nil {
			return err
		}
		if err := o.submitRendered(ctx, env, rendered); err != nil {
			return err
		}
	}
}

// nextOverlay fetches the PiP frame for the current timestamp. A track
// that ends early (or fails) silently disables the overlay for the rest
// of the export, with a single warning.
func (o *Orchestrator) nextOverlay(ctx context.Context, env *exportEnv) *pipeline.DecodedFrame {
	if env.overlay == nil {
		return nil
	}
	frame, err := env.overlay.Next(ctx)
	if err == nil {
		return frame
	}
	if !env.overlayEnded {
		env.overlayEnded = true
		if errors.Is(err, pipeline.ErrPastEnd) {
			o.log.Warn(l10n.T("Picture-in-picture track ended before the export range; remaining frames render without it"))
		} else {
			o.log.Warn(l10n.F("Picture-in-picture decode failed (%s); remaining frames render without it", err))
		}
	}
	env.overlay.Close()
	env.overlay = nil
	return nil
}

// retryFailed resubmits a crashed frame to another worker once. A second
// failure on the same frame, or a frame whose pixel data was already
// consumed, fails the export.
func (o *Orchestrator) retryFailed(ctx context.Context, env *exportEnv, wp *workerpool.Pool, res workerpool.Result, retried map[int64]bool) error {
	if !errors.Is(res.Err, pipeline.ErrWorkerCrashed) {
		return res.Err
	}
	if retried[res.Index] {
		return fmt.Errorf("frame %d failed twice: %w", res.Index, res.Err)
	}
	if !env.pool.Valid(res.Job.Frame.Handle) {
		return fmt.Errorf("frame %d lost in crash: %w", res.Index, res.Err)
	}
	retried[res.Index] = true
	o.log.Warn(l10n.F("Retrying frame %d after worker crash", res.Index))

	w, err := wp.WaitForIdleWorker(ctx)
	if err != nil {
		return err
	}
	w.Submit(res.Job)
	return nil
}

// submitRendered pushes one ordered frame through the backpressure gate
// into the encoder, retrying a rejected frame once.
func (o *Orchestrator) submitRendered(ctx context.Context, env *exportEnv, f *pipeline.RenderedFrame) error {
	if o.sink.Enabled() {
		o.sink.SaveRenderedFrame(f.Index, f.Image)
	}

	if err := env.queue.WaitForSpace(ctx); err != nil {
		return err
	}
	if err := o.encoder.Submit(f.Image, f.Index, f.TimestampUs); err != nil {
		o.log.Warn(l10n.F("Encoder rejected frame %d, retrying: %s", f.Index, err))
		if err := o.encoder.Submit(f.Image, f.Index, f.TimestampUs); err != nil {
			return fmt.Errorf("%w: frame %d: %v", pipeline.ErrEncodeRejected, f.Index, err)
		}
	}
	env.queue.Increment()
	env.lastRendered = f
	return nil
}

// submitOutro holds the final frame for the configured outro duration.
func (o *Orchestrator) submitOutro(ctx context.Context, env *exportEnv) error {
	if env.outroFrames == 0 || env.lastRendered == nil {
		return nil
	}
	last := env.lastRendered
	for k := int64(1); k <= env.outroFrames; k++ {
		hold := &pipeline.RenderedFrame{
			Index:       last.Index + k,
			TimestampUs: last.TimestampUs + k*env.frameDurUs,
			Image:       last.Image,
		}
		if err := o.submitRendered(ctx, env, hold); err != nil {
			return err
		}
	}
	return nil
}

// fail transitions to Cancelled or Failed, releasing every resource.
// Cancellation always unwinds cleanly and is never reported as an error.
func (o *Orchestrator) fail(env *exportEnv, err error) (Result, error) {
	if env != nil && env.pool != nil {
		env.pool.Clear()
	}
	if env != nil && env.queue != nil {
		env.queue.Drain()
	}

	if errors.Is(err, context.Canceled) {
		o.setState(StateCancelled)
		o.log.Info(l10n.T("Export cancelled"))
		return Result{State: StateCancelled}, nil
	}

	o.setState(StateFailed)
	kind := errorKind(err)
	o.log.Error(l10n.F("Export failed (%s): %s", kind, err))
	return Result{State: StateFailed, ErrorKind: kind}, err
}

// errorKind maps the error taxonomy to the terminal result's kind string.
func errorKind(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrConfigInvalid):
		return "config_invalid"
	case errors.Is(err, pipeline.ErrSeekTimeout):
		return "seek_timeout"
	case errors.Is(err, pipeline.ErrSourceUnreadable):
		return "source_unreadable"
	case errors.Is(err, pipeline.ErrWorkerCrashed):
		return "worker_crashed"
	case errors.Is(err, pipeline.ErrEncodeRejected):
		return "encode_rejected"
	case errors.Is(err, pipeline.ErrResourceExhausted):
		return "resource_exhausted"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "internal"
	}
}

// defaultWorkerCount derives parallelism from the host, clamped to a safe
// range. A tuning default, not a correctness requirement.
func defaultWorkerCount() int {
	n := runtime.NumCPU()
	if n > 8 {
		n = 8
	}
	if n < 1 {
		n = 1
	}
	if n > 4 {
		n = 4
	}
	return n
}
