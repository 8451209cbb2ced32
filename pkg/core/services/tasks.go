package services

import (
	"context"
	"log"
	"sync"
)

// Task is a unit of deferred work (a replication push, a webhook
// delivery, an image sideload). Tasks run outside the request path so
// peer or endpoint latency never blocks a user-facing response.
type Task func(ctx context.Context)

// TaskRunner is a single-worker background queue. Enqueuing is
// thread-safe; the worker drains tasks in FIFO order.
//
// The queue is unbounded so a burst of page saves cannot block the
// HTTP handlers that enqueue pushes. A buffered signal channel (size 1)
// coalesces wakeups, which keeps Stop/ctx-cancellation responsive.
type TaskRunner struct {
	mu     sync.Mutex
	tasks  []Task
	closed bool
	signal chan struct{}
	done   chan struct{}
}

func NewTaskRunner() *TaskRunner {
	return &TaskRunner{
		tasks:  make([]Task, 0, 16),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Enqueue adds a task. Returns false if the runner has been stopped.
func (r *TaskRunner) Enqueue(t Task) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	r.tasks = append(r.tasks, t)

	select {
	case r.signal <- struct{}{}:
	default:
	}
	return true
}

// Run drains the queue until ctx is cancelled or Stop is called.
// Call in its own goroutine.
func (r *TaskRunner) Run(ctx context.Context) {
	defer close(r.done)
	for {
		task, ok := r.next()
		if task != nil {
			runTask(ctx, task)
			continue
		}
		if !ok {
			return
		}
		select {
		case <-r.signal:
		case <-ctx.Done():
			return
		}
	}
}

// next pops the front task. The bool is false once the runner is
// stopped and the queue empty.
func (r *TaskRunner) next() (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.tasks) == 0 {
		return nil, !r.closed
	}
	t := r.tasks[0]
	r.tasks = r.tasks[1:]
	return t, true
}

// Stop rejects further tasks and lets Run exit after the queue drains.
func (r *TaskRunner) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	select {
	case r.signal <- struct{}{}:
	default:
	}
	<-r.done
}

// Pending reports queued task count, for admin introspection.
func (r *TaskRunner) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// runTask shields the worker loop: a panicking task is logged, not fatal.
func runTask(ctx context.Context, t Task) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("background task panicked: %v", rec)
		}
	}()
	t(ctx)
}
