package utils

import (
	"sync"
)

// Job represents a task to be executed by a worker.
type Job struct {
	Task func()
}

// WorkerPool manages a pool of workers to execute jobs. A pool with a single
// worker runs jobs one at a time in submission order, which makes it usable
// as an event loop.
type WorkerPool struct {
	workers   int
	jobQueue  chan Job
	quit      chan struct{}
	closeOnce sync.Once
	waitGroup sync.WaitGroup
}

// NewWorkerPool creates a new WorkerPool with the specified number of workers
// and job queue capacity.
func NewWorkerPool(workers, queueSize int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < workers {
		queueSize = workers
	}
	pool := &WorkerPool{
		workers:  workers,
		jobQueue: make(chan Job, queueSize),
		quit:     make(chan struct{}),
	}

	pool.waitGroup.Add(workers)
	for i := 0; i < workers; i++ {
		go pool.worker()
	}

	return pool
}

// worker processes jobs from the jobQueue until the pool is shut down.
func (wp *WorkerPool) worker() {
	defer wp.waitGroup.Done()
	for {
		select {
		case job := <-wp.jobQueue:
			job.Task()
		case <-wp.quit:
			return
		}
	}
}

// Submit adds a new job to the worker pool. It blocks while the queue is full
// and returns false once the pool has been shut down.
func (wp *WorkerPool) Submit(task func()) bool {
	select {
	case <-wp.quit:
		return false
	default:
	}

	select {
	case wp.jobQueue <- Job{Task: task}:
		return true
	case <-wp.quit:
		return false
	}
}

// Shutdown stops the workers and waits for the running jobs to finish.
// Jobs still queued are discarded. Must not be called from inside a job.
func (wp *WorkerPool) Shutdown() {
	wp.closeOnce.Do(func() {
		close(wp.quit)
	})
	wp.waitGroup.Wait()
}
