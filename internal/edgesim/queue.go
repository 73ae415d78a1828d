package edgesim

import (
	"context"
	"sync"
)

const defaultQueueDepth = 256

// Job is a unit of background work.
type Job struct {
	Name string
	Run  func() error
}

// TaskQueue runs jobs one at a time in submission order. It is best
// effort: jobs still queued when the queue stops are discarded.
type TaskQueue struct {
	jobs chan Job
	logs *LogManager

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

func NewTaskQueue(logs *LogManager) *TaskQueue {
	return &TaskQueue{
		jobs: make(chan Job, defaultQueueDepth),
		logs: logs,
	}
}

// Add enqueues a job. It reports false when the queue is full.
func (q *TaskQueue) Add(job Job) bool {
	select {
	case q.jobs <- job:
		q.logs.Add("Task added: %s", job.Name)
		return true
	default:
		q.logs.Add("Task dropped, queue full: %s", job.Name)
		return false
	}
}

// Start launches the consumer. Calling Start on a running queue is a no-op.
func (q *TaskQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.running = true
	q.stop = make(chan struct{})
	q.done = make(chan struct{})

	go q.consume(ctx, q.stop, q.done)
}

// Stop signals the consumer and waits for the job in progress to finish.
func (q *TaskQueue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	stop, done := q.stop, q.done
	q.mu.Unlock()

	q.logs.Add("Task queue stopping...")
	close(stop)
	<-done
}

func (q *TaskQueue) consume(ctx context.Context, stop, done chan struct{}) {
	defer close(done)
	q.logs.Add("Task queue started.")
	defer q.logs.Add("Task queue stopped.")

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case job := <-q.jobs:
			q.logs.Add("Executing task: %s", job.Name)
			if err := job.Run(); err != nil {
				q.logs.Add("Task error: %v", err)
			}
		}
	}
}
