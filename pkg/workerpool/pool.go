// Package workerpool manages N isolated render workers, each hosting one
// compositor instance bound to its own goroutine. Idle workers are handed
// out in FIFO order through a channel, completed frames arrive out of
// order on a shared results channel, and a crashed worker is respawned
// once so a single fault degrades parallelism instead of failing the
// export.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/user/screenshow/pkg/pipeline"
	"github.com/user/screenshow/pkg/ports"
)

// Compositor is the per-worker rendering engine.
type Compositor interface {
	Render(frame *pipeline.DecodedFrame, overlay *pipeline.DecodedFrame) (*pipeline.RenderedFrame, error)
}

// Factory builds one compositor. It runs on the worker's own goroutine so
// implementations may bind thread-affine rendering state.
type Factory func(workerID int) (Compositor, error)

// State is the lifecycle state of one worker.
type State int

const (
	StateSpawning State = iota
	StateReady
	StateRendering
	StateError
	StateShutDown
)

// Job is one frame render request.
type Job struct {
	Frame   *pipeline.DecodedFrame
	Overlay *pipeline.DecodedFrame
}

// Result is one completed (or failed) render. On failure Job carries the
// original request so the caller can resubmit it to another worker.
type Result struct {
	Index    int64
	Frame    *pipeline.RenderedFrame
	Job      Job
	WorkerID int
	Err      error
}

// Worker is one render execution context.
type Worker struct {
	id   int
	jobs chan Job
	pool *Pool

	mu    sync.Mutex
	state State
}

// ID returns the worker's slot id.
func (w *Worker) ID() int { return w.id }

// State returns the worker's current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Submit hands a job to the worker. Only valid for a worker just obtained
// from GetIdleWorker or WaitForIdleWorker.
func (w *Worker) Submit(job Job) {
	w.jobs <- job
}

// Pool owns the workers.
type Pool struct {
	factory Factory
	log     ports.Logger

	idle    chan *Worker
	results chan Result

	mu           sync.Mutex
	workers      map[int]*Worker
	alive        int
	respawnsLeft int
	closed       bool
	dead         chan struct{} // closed when the last worker is lost

	wg sync.WaitGroup
}

// ErrAllWorkersLost is returned by WaitForIdleWorker when every worker has
// crashed and no respawns remain.
var ErrAllWorkersLost = fmt.Errorf("%w: all workers lost", pipeline.ErrWorkerCrashed)

// New spawns count workers. Construction succeeds when at least one worker
// comes up; it fails only when every factory call fails, in which case the
// caller falls back to single-threaded compositing.
func New(count int, factory Factory, log ports.Logger) (*Pool, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: worker count %d", pipeline.ErrResourceExhausted, count)
	}
	p := &Pool{
		factory:      factory,
		log:          log.WithComponent("workerpool"),
		idle:         make(chan *Worker, count*2),
		results:      make(chan Result, count*4),
		workers:      make(map[int]*Worker, count),
		respawnsLeft: count,
		dead:         make(chan struct{}),
	}

	var lastErr error
	for i := 0; i < count; i++ {
		if err := p.spawn(i); err != nil {
			lastErr = err
			p.log.Warn("Worker %d failed to start: %s", i, err)
		}
	}
	if p.alive == 0 {
		return nil, fmt.Errorf("no render workers available: %w", lastErr)
	}
	if p.alive < count {
		p.log.Warn("Running with %d of %d render workers", p.alive, count)
	}
	return p, nil
}

// spawn starts one worker and waits until its compositor is ready.
func (p *Pool) spawn(id int) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.New("workerpool: pool shut down")
	}
	p.wg.Add(1)
	p.mu.Unlock()

	w := &Worker{id: id, jobs: make(chan Job, 1), pool: p, state: StateSpawning}
	ready := make(chan error, 1)
	go w.run(ready)
	if err := <-ready; err != nil {
		return err
	}

	p.mu.Lock()
	p.workers[id] = w
	p.alive++
	p.mu.Unlock()

	w.setState(StateReady)
	p.idle <- w
	return nil
}

// run is the worker goroutine: build the compositor, then serve jobs until
// the channel closes or the worker crashes.
func (w *Worker) run(ready chan<- error) {
	defer w.pool.wg.Done()

	comp, err := w.pool.factory(w.id)
	if err != nil {
		ready <- err
		return
	}
	ready <- nil

	for job := range w.jobs {
		w.setState(StateRendering)
		res := w.render(comp, job)
		w.pool.results <- res

		if errors.Is(res.Err, pipeline.ErrWorkerCrashed) {
			w.setState(StateError)
			w.pool.handleCrash(w)
			return
		}
		w.setState(StateReady)
		w.pool.idle <- w
	}
	w.setState(StateShutDown)
}

// render executes one job, converting a panic in the compositor into a
// crash result instead of taking down the process.
func (w *Worker) render(comp Compositor, job Job) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{
				Index:    job.Frame.Index,
				Job:      job,
				WorkerID: w.id,
				Err:      fmt.Errorf("%w: worker %d: %v", pipeline.ErrWorkerCrashed, w.id, r),
			}
		}
	}()

	frame, err := comp.Render(job.Frame, job.Overlay)
	return Result{Index: job.Frame.Index, Frame: frame, Job: job, WorkerID: w.id, Err: err}
}

// handleCrash removes a dead worker and respawns a replacement while the
// respawn budget lasts; otherwise the pool keeps running with reduced
// parallelism.
func (p *Pool) handleCrash(w *Worker) {
	p.mu.Lock()
	delete(p.workers, w.id)
	p.alive--
	respawn := !p.closed && p.respawnsLeft > 0
	if respawn {
		p.respawnsLeft--
	}
	lost := p.alive == 0 && !respawn
	p.mu.Unlock()

	if respawn {
		p.log.Warn("Worker %d crashed, respawning", w.id)
		if err := p.spawn(w.id); err != nil {
			p.log.Error("Worker %d respawn failed: %s", w.id, err)
			p.mu.Lock()
			lost = p.alive == 0
			p.mu.Unlock()
		}
	} else {
		p.log.Warn("Worker %d crashed, reducing parallelism to %d", w.id, p.Alive())
	}

	if lost {
		close(p.dead)
	}
}

// GetIdleWorker returns an idle worker without blocking, or nil.
func (p *Pool) GetIdleWorker() *Worker {
	select {
	case w := <-p.idle:
		return w
	default:
		return nil
	}
}

// WaitForIdleWorker suspends the caller until a worker reports idle.
// Wake-up is FIFO-fair: workers come off a channel, not a broadcast.
func (p *Pool) WaitForIdleWorker(ctx context.Context) (*Worker, error) {
	select {
	case w := <-p.idle:
		return w, nil
	case <-p.dead:
		return nil, ErrAllWorkersLost
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Results is the completion stream. It closes after Shutdown.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Alive returns the number of live workers.
func (p *Pool) Alive() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

// Shutdown signals every worker to release its compositor, waits for them
// to terminate, and closes the results channel. Idempotent.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	workers := make([]*Worker, 0, len(p.workers))
	for _, w := range p.workers {
		workers = append(workers, w)
	}
	p.mu.Unlock()

	for _, w := range workers {
		close(w.jobs)
	}
	p.wg.Wait()
	close(p.results)

	// Drop stale idle entries so a late caller cannot grab a dead worker.
	for {
		select {
		case <-p.idle:
		default:
			return
		}
	}
}
