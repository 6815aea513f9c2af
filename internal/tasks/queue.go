// Package tasks runs best-effort side effects on a small worker pool so
// failures are logged in one place instead of by detached goroutines.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

var ErrStopped = errors.New("task queue stopped")

type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

type Queue struct {
	workers int
	timeout time.Duration
	work    chan Task

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mutex   sync.RWMutex
	stopped bool
	failed  int
}

// NewQueue creates a queue with the given worker count and buffer size.
// Each task runs with timeout as its deadline.
func NewQueue(workers, buffer int, timeout time.Duration) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		workers: workers,
		timeout: timeout,
		work:    make(chan Task, buffer),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (q *Queue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	log.Printf("Task queue started with %d workers", q.workers)
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	for task := range q.work {
		q.execute(id, task)
	}
}

func (q *Queue) execute(id int, task Task) {
	ctx, cancel := context.WithTimeout(q.ctx, q.timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return task.Run(ctx)
	}()
	if err != nil {
		q.mutex.Lock()
		q.failed++
		q.mutex.Unlock()
		log.Printf("❌ Task %q failed on worker %d: %v", task.Name, id, err)
	}
}

// Submit enqueues fn without blocking. It reports false when the queue is
// full or stopped; the task is dropped and logged.
func (q *Queue) Submit(name string, fn func(ctx context.Context) error) bool {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	if q.stopped {
		log.Printf("⚠️ Dropping task %q: %v", name, ErrStopped)
		return false
	}
	select {
	case q.work <- Task{Name: name, Run: fn}:
		return true
	default:
		log.Printf("⚠️ Task queue full, dropping %q", name)
		return false
	}
}

// Failed returns how many tasks have returned an error so far.
func (q *Queue) Failed() int {
	q.mutex.RLock()
	defer q.mutex.RUnlock()
	return q.failed
}

// Stop refuses new tasks and waits for queued ones to drain, or cancels them
// when ctx expires first.
func (q *Queue) Stop(ctx context.Context) error {
	q.mutex.Lock()
	if q.stopped {
		q.mutex.Unlock()
		return nil
	}
	q.stopped = true
	close(q.work)
	q.mutex.Unlock()

	drained := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-drained
		return ctx.Err()
	}
}
