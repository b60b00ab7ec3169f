// ABOUTME: Run queue serializing sync runs per direction and target store
// ABOUTME: Overlapping requests coalesce into one pending run; each caller waits on a RunHandle
package sync

import (
	"context"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harperreed/crmbridge/connector"
	"github.com/harperreed/crmbridge/models"
)

// Runner executes one sync run. *Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, direction models.Direction, input Input) (*Report, error)
	Target(direction models.Direction) string
}

// InputFunc loads the input for a push run at the moment the run starts.
type InputFunc func(ctx context.Context) (Input, error)

// RunHandle tracks one submitted run request.
type RunHandle struct {
	ID        string
	Direction models.Direction

	done   chan struct{}
	report *Report
	err    error
}

func newHandle(direction models.Direction) *RunHandle {
	return &RunHandle{ID: uuid.NewString(), Direction: direction, done: make(chan struct{})}
}

func (h *RunHandle) resolve(report *Report, err error) {
	h.report = report
	h.err = err
	close(h.done)
}

// Done is closed once the run this handle belongs to has finished.
func (h *RunHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the run finishes or ctx is done. A ctx expiry stops the
// wait only; the run itself continues.
func (h *RunHandle) Wait(ctx context.Context) (*Report, error) {
	select {
	case <-h.done:
		return h.report, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type queueKey struct {
	direction models.Direction
	target    string
}

type pendingRun struct {
	input   Input
	load    InputFunc
	handles []*RunHandle
}

type worker struct {
	pending *pendingRun
}

// Queue serializes runs per (direction, target). While a run is in flight,
// later submissions for the same key merge into a single pending run whose
// report every merged handle receives.
type Queue struct {
	runner  Runner
	timeout time.Duration
	logger  *zap.Logger

	// OnComplete, when set, is called with every finished report before handles resolve.
	OnComplete func(*Report)

	mu      gosync.Mutex
	workers map[queueKey]*worker
	closed  bool
	wg      gosync.WaitGroup
}

// NewQueue creates a queue running each run with the given deadline. A zero
// timeout means no deadline.
func NewQueue(runner Runner, timeout time.Duration, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		runner:  runner,
		timeout: timeout,
		logger:  logger,
		workers: make(map[queueKey]*worker),
	}
}

// Submit requests a run with fixed input. For pull runs input may be nil.
func (q *Queue) Submit(direction models.Direction, input Input) *RunHandle {
	return q.submit(direction, &pendingRun{input: input})
}

// SubmitFunc requests a run whose input is loaded when the run starts, so a
// coalesced run sees the latest source state.
func (q *Queue) SubmitFunc(direction models.Direction, load InputFunc) *RunHandle {
	return q.submit(direction, &pendingRun{load: load})
}

func (q *Queue) submit(direction models.Direction, req *pendingRun) *RunHandle {
	h := newHandle(direction)
	if err := direction.Validate(); err != nil {
		h.resolve(nil, err)
		return h
	}

	key := queueKey{direction: direction, target: q.runner.Target(direction)}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		h.resolve(nil, ErrQueueClosed)
		return h
	}

	w, running := q.workers[key]
	if !running {
		w = &worker{}
		q.workers[key] = w
		q.wg.Add(1)
		go q.work(key, w)
	}

	if w.pending == nil {
		w.pending = &pendingRun{}
	} else {
		q.logger.Debug("coalescing run request",
			zap.String("direction", string(direction)),
			zap.String("target", key.target),
			zap.Int("waiting", len(w.pending.handles)+1))
	}
	w.pending.input = req.input
	w.pending.load = req.load
	w.pending.handles = append(w.pending.handles, h)
	return h
}

// work executes pending runs for one key until none remain.
func (q *Queue) work(key queueKey, w *worker) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		p := w.pending
		w.pending = nil
		if p == nil {
			delete(q.workers, key)
			q.mu.Unlock()
			return
		}
		q.mu.Unlock()

		report, err := q.execute(key.direction, p)
		if report != nil && q.OnComplete != nil {
			q.OnComplete(report)
		}
		for _, h := range p.handles {
			h.resolve(report, err)
		}
	}
}

func (q *Queue) execute(direction models.Direction, p *pendingRun) (*Report, error) {
	ctx := context.Background()
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	input := p.input
	if p.load != nil {
		loaded, err := p.load(ctx)
		if err != nil {
			q.logger.Error("failed to load run input", zap.String("direction", string(direction)), zap.Error(err))
			return nil, err
		}
		input = loaded
	}

	return q.runner.Run(ctx, direction, input)
}

// Close stops accepting runs, waits for in-flight and pending runs to finish,
// and returns once every worker has exited.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wg.Wait()
}

// Dispatcher submits runs to a queue, loading push input from the primary
// store when each run starts.
type Dispatcher struct {
	Queue   *Queue
	Primary connector.Connector
}

// Submit requests a run in direction.
func (d *Dispatcher) Submit(direction models.Direction) *RunHandle {
	if direction == models.DirectionPush {
		return d.Queue.SubmitFunc(direction, func(ctx context.Context) (Input, error) {
			return LoadInput(ctx, d.Primary)
		})
	}
	return d.Queue.Submit(direction, nil)
}
