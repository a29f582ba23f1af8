// Package sched implements a cooperative task scheduler over a bounded pool
// of workers. Tasks execute in segments: between two suspension points a task
// occupies exactly one worker, and at every suspension point (see
// TaskContext.Await) it releases that worker back to the pool. Successive
// segments of the same task are not guaranteed to run on the same worker.
//
// Each worker owns an ambient diagnostic state (mdc.State) read by log
// statements executing on it. Because workers are shared across tasks over
// time, the scheduler invokes the task's context elements around every
// segment: Install immediately before the segment starts and Restore
// immediately after it suspends, completes, or fails, on every exit path.
// The install/restore pair is applied unconditionally by the scheduler so no
// task code path can forget the release half.
package sched

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"goa.design/runctx/mdc"
	"goa.design/runctx/telemetry"
)

// ErrPoolStopped is returned when a task cannot obtain a worker because the
// pool has been stopped.
var ErrPoolStopped = errors.New("sched: pool stopped")

type (
	// Element is the context-element hook the scheduler invokes around each
	// resumption of a task. Install runs on the worker about to execute the
	// task's next segment and returns the state to hand back to the matching
	// Restore on the same worker. mdc.Element satisfies Element.
	Element interface {
		Install(*mdc.State) mdc.Saved
		Restore(*mdc.State, mdc.Saved)
	}

	// Pool multiplexes cooperative tasks over a fixed set of workers. A
	// worker executes at most one task segment at a time; a task holds at
	// most one worker at a time.
	Pool struct {
		leases  chan *worker
		size    int
		limiter *rate.Limiter
		logger  telemetry.Logger
		init    func(id int, s *mdc.State)
		base    context.Context

		stopCh   chan struct{}
		stopOnce sync.Once
		wg       sync.WaitGroup
	}

	// worker is a lease on one execution slot. Its state is the ambient
	// diagnostic context exposed to whatever code runs on the slot.
	worker struct {
		id    int
		state *mdc.State
	}

	// Option configures a Pool.
	Option func(*Pool)
)

// WithWorkers sets the number of workers in the pool. Defaults to 4.
func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.size = n
		}
	}
}

// WithLogger sets the logger used for scheduler diagnostics. Defaults to a
// noop logger.
func WithLogger(l telemetry.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithResumeLimit throttles task resumptions across the pool to the given
// rate. Zero (the default) disables throttling.
func WithResumeLimit(limit rate.Limit, burst int) Option {
	return func(p *Pool) {
		if limit > 0 {
			p.limiter = rate.NewLimiter(limit, burst)
		}
	}
}

// WithBaseContext sets a base context whose observability state (Clue
// logger, OTEL baggage and span context) is merged into every task's
// context at submission. Tasks submitted with a bare context then inherit
// the pool owner's logging and tracing setup. Cancellation and deadlines of
// the base context are not inherited.
func WithBaseContext(ctx context.Context) Option {
	return func(p *Pool) {
		if ctx != nil {
			p.base = context.WithoutCancel(ctx)
		}
	}
}

// WithWorkerInit seeds each worker's ambient state before the pool starts
// handing out leases. Use it to install host-level keys that must survive
// every task (for example a worker identifier).
func WithWorkerInit(fn func(id int, s *mdc.State)) Option {
	return func(p *Pool) { p.init = fn }
}

// New constructs a pool and makes all worker leases immediately available.
func New(opts ...Option) *Pool {
	p := &Pool{
		size:   4,
		logger: telemetry.NewNoopLogger(),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.leases = make(chan *worker, p.size)
	for i := 1; i <= p.size; i++ {
		w := &worker{id: i, state: mdc.NewState()}
		if p.init != nil {
			p.init(w.id, w.state)
		}
		p.leases <- w
	}
	return p
}

// Workers reports the pool size.
func (p *Pool) Workers() int { return p.size }

// Stop prevents new segment executions and waits for in-flight tasks to
// finish. Tasks suspended in Await fail their reoccupation with
// ErrPoolStopped. If ctx expires before the drain completes, Stop returns
// the context error; tasks keep their own ctx and are not force-cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.stopCh) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.logger.Info(ctx, "pool stopped")
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "pool stop timed out waiting for tasks")
		return ctx.Err()
	}
}

// acquire obtains a worker lease. When honorCancel is set the wait aborts on
// ctx cancellation; reoccupation after a suspension keeps waiting so the
// cancellation-handling segment still runs inside its install/restore pair.
func (p *Pool) acquire(ctx context.Context, honorCancel bool) (*worker, error) {
	select {
	case <-p.stopCh:
		return nil, ErrPoolStopped
	default:
	}
	if p.limiter != nil && ctx.Err() == nil {
		if err := p.limiter.Wait(ctx); err != nil && honorCancel {
			return nil, err
		}
	}
	if honorCancel {
		select {
		case w := <-p.leases:
			return w, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.stopCh:
			return nil, ErrPoolStopped
		}
	}
	select {
	case w := <-p.leases:
		return w, nil
	case <-p.stopCh:
		return nil, ErrPoolStopped
	}
}

func (p *Pool) release(w *worker) {
	if w == nil {
		return
	}
	p.leases <- w
}

// stopTimeout bounds how long tests and examples wait in Stop by default.
const stopTimeout = 10 * time.Second

// StopWithTimeout is Stop with a derived deadline.
func (p *Pool) StopWithTimeout(d time.Duration) error {
	if d <= 0 {
		d = stopTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return p.Stop(ctx)
}
