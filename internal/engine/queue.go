package engine

import (
	"sync"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/fhe"
)

// jobQueue is a thread-safe FIFO queue of decryption jobs.
//
// The queue is unbounded: the compute engine dispatches from inside a
// ledger transaction and must never block on a slow oracle.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type jobQueue struct {
	mu     sync.Mutex
	jobs   []fhe.Job
	closed bool
	signal chan struct{} // buffered, size 1
}

func newJobQueue() *jobQueue {
	return &jobQueue{
		jobs:   make([]fhe.Job, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a job to the back of the queue.
// Returns false if the queue is closed.
func (q *jobQueue) Enqueue(job fhe.Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.jobs = append(q.jobs, job)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front job without blocking.
func (q *jobQueue) TryDequeue() (fhe.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return fhe.Job{}, false
	}

	job := q.jobs[0]
	// Release the handle snapshot for GC.
	q.jobs[0] = fhe.Job{}

	if len(q.jobs) == 1 {
		q.jobs = q.jobs[:0]
	} else {
		q.jobs = q.jobs[1:]
	}

	return job, true
}

// Wait returns a channel that signals when jobs may be available. It is
// closed when the queue is closed.
func (q *jobQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *jobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close signals that no more jobs will be enqueued and wakes any waiter.
func (q *jobQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
