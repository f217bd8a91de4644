// internal/ranking/executor/executor.go

// Package executor runs ranking work off the request path. Tasks queue on a
// buffered channel served by a fixed pool of goroutines; when the queue is
// full, Submit blocks rather than dropping work, so every accepted run
// eventually executes.
package executor

import (
	"context"
	"sync"

	"recruiter-backend/internal/common/logger"
	"recruiter-backend/internal/common/metrics"
)

// Task is one unit of background work. The task owns its completion
// reporting; the executor only guarantees it gets called.
type Task func(ctx context.Context)

type Executor struct {
	queue   chan Task
	workers int
	logger  logger.Logger
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

func New(workers, queueSize int, log logger.Logger) *Executor {
	return &Executor{
		queue:   make(chan Task, queueSize),
		workers: workers,
		logger:  log.WithFields(map[string]interface{}{"component": "executor"}),
	}
}

func (e *Executor) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true

	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}
	e.logger.Info("executor started", map[string]interface{}{
		"workers":   e.workers,
		"queueSize": cap(e.queue),
	})
}

// Submit enqueues a task, blocking when the queue is full.
func (e *Executor) Submit(task Task) {
	e.queue <- task
	metrics.RankingQueueDepth.Set(float64(len(e.queue)))
}

// Stop drains the queue and waits for in-flight tasks to finish. No tasks
// may be submitted after Stop.
func (e *Executor) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	e.mu.Unlock()

	close(e.queue)
	e.wg.Wait()
	e.logger.Info("executor stopped", nil)
}

func (e *Executor) worker(id int) {
	defer e.wg.Done()

	for task := range e.queue {
		metrics.RankingQueueDepth.Set(float64(len(e.queue)))
		task(context.Background())
	}

	e.logger.Debug("worker exiting", map[string]interface{}{"worker": id})
}
