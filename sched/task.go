package sched

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"goa.design/runctx/mdc"
	"goa.design/runctx/telemetry"
)

type (
	// Func is a task body. It runs in segments on pool workers; between
	// segments (inside Await) the task holds no worker. The TaskContext is
	// valid only for the duration of the call.
	Func func(*TaskContext) error

	// TaskContext is the per-task facade handed to a Func. It tracks the
	// worker the current segment occupies and the context elements whose
	// install/restore pair the scheduler applies around every segment.
	TaskContext struct {
		ctx      context.Context
		pool     *Pool
		id       string
		elements []Element

		worker   *worker
		saved    []mdc.Saved
		detached *mdc.State
	}

	// Handle tracks an in-flight task started with Pool.Go.
	Handle struct {
		id   string
		done chan struct{}
		err  error
	}

	// TaskOption configures a task submission.
	TaskOption func(*TaskContext)
)

// WithContextElement attaches a context element to the task. Elements are
// installed in attachment order before every segment and restored in
// reverse order after it.
func WithContextElement(e Element) TaskOption {
	return func(t *TaskContext) {
		if e != nil {
			t.elements = append(t.elements, e)
		}
	}
}

// WithTaskID overrides the generated task identifier.
func WithTaskID(id string) TaskOption {
	return func(t *TaskContext) {
		if id != "" {
			t.id = id
		}
	}
}

// Go submits a task for execution and returns immediately. The task's first
// segment starts as soon as a worker lease is available.
func (p *Pool) Go(ctx context.Context, fn Func, opts ...TaskOption) *Handle {
	t := &TaskContext{
		ctx:  telemetry.MergeContext(ctx, p.base),
		pool: p,
		id:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(t)
	}
	h := &Handle{id: t.id, done: make(chan struct{})}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		h.err = t.run(fn)
		close(h.done)
	}()
	return h
}

// Run submits a task and waits for it to complete.
func (p *Pool) Run(ctx context.Context, fn Func, opts ...TaskOption) error {
	return p.Go(ctx, fn, opts...).Wait(ctx)
}

// ID returns the task identifier.
func (h *Handle) ID() string { return h.id }

// Wait blocks until the task completes and returns its error, or returns
// the context error if ctx expires first. The task keeps running in the
// latter case.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ID returns the task identifier.
func (t *TaskContext) ID() string { return t.id }

// Context returns the context the task was submitted with.
func (t *TaskContext) Context() context.Context { return t.ctx }

// State returns the ambient diagnostic state of the worker executing the
// current segment. It must not be retained across Await calls: the next
// segment may run on a different worker.
//
// When the task holds no worker — after Await fails to reoccupy one because
// the pool stopped — State returns a task-private detached state instead of
// nil so the unwinding code path can keep logging; writes to it are never
// visible to any worker.
func (t *TaskContext) State() *mdc.State {
	if t.worker == nil {
		if t.detached == nil {
			t.detached = mdc.NewState()
		}
		return t.detached
	}
	return t.worker.state
}

// run drives the task through its first segment. Occupation failures (pool
// stopped, ctx cancelled before start) surface as the task error. The
// deferred vacate guarantees the restore half of every installed element
// runs on all exit paths, including panics, before the worker is released.
func (t *TaskContext) run(fn Func) (err error) {
	w, err := t.pool.acquire(t.ctx, true)
	if err != nil {
		return err
	}
	t.attach(w)
	defer t.vacate()
	defer func() {
		if r := recover(); r != nil {
			t.pool.logger.Error(t.ctx, "task panicked", "task_id", t.id, "panic", r)
			err = fmt.Errorf("sched: task %s panicked: %v", t.id, r)
		}
	}()
	return fn(t)
}

// Await suspends the task around a blocking wait. The current worker is
// restored and released before wait runs, so other tasks may occupy it in
// the meantime; afterwards the task reoccupies a worker (not necessarily
// the same one) and its elements are installed again.
//
// If the task's context is cancelled while suspended, the task still
// reoccupies a worker so that the returned error unwinds fn inside the
// install/restore pair; Await then reports the cancellation.
//
// Reoccupation fails with ErrPoolStopped when the pool stops while the task
// is suspended. The task then holds no worker: State falls back to a
// detached task-private state and fn is expected to unwind.
func (t *TaskContext) Await(wait func(context.Context) error) error {
	if t.worker == nil {
		return fmt.Errorf("sched: task %s is not occupying a worker", t.id)
	}
	t.vacate()

	waitErr := wait(t.ctx)

	w, err := t.pool.acquire(t.ctx, false)
	if err != nil {
		return err
	}
	t.attach(w)

	if waitErr != nil {
		return waitErr
	}
	return t.ctx.Err()
}

// attach installs the task's elements on the worker, recording the saved
// states to thread back into the matching restores.
func (t *TaskContext) attach(w *worker) {
	t.worker = w
	t.saved = t.saved[:0]
	for _, e := range t.elements {
		t.saved = append(t.saved, e.Install(w.state))
	}
}

// vacate restores the worker's ambient state (elements in reverse order)
// and releases the lease. Safe to call when no worker is held.
func (t *TaskContext) vacate() {
	w := t.worker
	if w == nil {
		return
	}
	for i := len(t.elements) - 1; i >= 0; i-- {
		t.elements[i].Restore(w.state, t.saved[i])
	}
	t.worker = nil
	t.saved = t.saved[:0]
	t.pool.release(w)
}
