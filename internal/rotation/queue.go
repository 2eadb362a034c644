package rotation

import (
	"context"
	"sync/atomic"
)

// defaultQueueSize is used when NewTaskQueue is given a non-positive size.
const defaultQueueSize = 16

// TaskQueue runs tasks serially on a single worker goroutine.
//
// It stands in for the host's UI/render task thread: every scene mutation
// runs on this one context, in submission order, and never on the caller's
// goroutine. Schedule is fire-and-forget.
type TaskQueue struct {
	tasks  chan func(ctx context.Context)
	logger Logger

	running atomic.Bool
	done    atomic.Uint64
}

// NewTaskQueue creates a queue holding up to size pending tasks.
func NewTaskQueue(size int, logger Logger) *TaskQueue {
	if size <= 0 {
		size = defaultQueueSize
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &TaskQueue{
		tasks:  make(chan func(ctx context.Context), size),
		logger: logger,
	}
}

// Schedule enqueues a task without blocking.
// It returns ErrQueueFull when the buffer is exhausted.
func (q *TaskQueue) Schedule(task func(ctx context.Context)) error {
	select {
	case q.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run executes queued tasks until ctx is cancelled. It blocks.
// Tasks still queued at cancellation are discarded.
func (q *TaskQueue) Run(ctx context.Context) {
	q.running.Store(true)
	defer q.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-q.tasks:
			q.runTask(ctx, task)
		}
	}
}

// runTask executes one task, containing any panic to the task.
func (q *TaskQueue) runTask(ctx context.Context, task func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("host task panic recovered", "panic", r)
		}
		q.done.Add(1)
	}()
	task(ctx)
}

// Pending returns the number of queued tasks.
func (q *TaskQueue) Pending() int {
	return len(q.tasks)
}

// Completed returns the number of tasks that have finished (including panics).
func (q *TaskQueue) Completed() uint64 {
	return q.done.Load()
}

// IsRunning reports whether a worker is draining the queue.
func (q *TaskQueue) IsRunning() bool {
	return q.running.Load()
}
