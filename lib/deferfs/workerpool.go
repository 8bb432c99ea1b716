// Copyright 2026 The Deferfs Authors
// SPDX-License-Identifier: Apache-2.0

package deferfs

import (
	"log/slog"
	"sync"
)

// taskQueueDepth bounds the WorkerPool's task queue. It is large
// enough that a burst of submissions (e.g. the ten-thousand-file
// scenario in the testable-properties scenarios) never blocks the
// dispatch thread waiting for a worker to drain the queue; it is not
// unbounded because an unbounded queue would let a runaway caller
// exhaust memory instead of applying backpressure.
const taskQueueDepth = 1 << 16

// Task is a unit of deferred work. It returns a POSIX-style integer
// result: zero or positive for success, negative for a negated errno.
// The WorkerPool never returns this value to the original caller —
// by the time a Task runs, the caller has already received success —
// it only logs failures.
type Task func() int

// WorkerPool is a fixed-size group of goroutines that execute
// [Task]s submitted by the [Dispatcher]. Tasks are fire-and-forget;
// WorkerPool only guarantees that every submitted Task has returned
// by the time [WorkerPool.Drain] returns.
type WorkerPool struct {
	tasks  chan Task
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewWorkerPool starts a WorkerPool with n worker goroutines. If
// logger is nil, failures are discarded rather than logged. n is
// clamped to at least 1.
func NewWorkerPool(n int, logger *slog.Logger) *WorkerPool {
	if n < 1 {
		n = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	p := &WorkerPool{
		tasks:  make(chan Task, taskQueueDepth),
		logger: logger,
	}

	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.run()
	}
	return p
}

func (p *WorkerPool) run() {
	defer p.wg.Done()
	for task := range p.tasks {
		if result := task(); result < 0 {
			p.logger.Error("deferred filesystem operation failed", "errno", -result)
		}
	}
}

// Submit enqueues task to run on a worker goroutine. Submit may block
// if taskQueueDepth tasks are already queued; it never runs task on
// the calling goroutine.
func (p *WorkerPool) Submit(task Task) {
	p.tasks <- task
}

// Drain closes the pool's task queue and blocks until every worker
// has finished the tasks already queued. After Drain returns, Submit
// must not be called again. Drain is the pool's shutdown guarantee:
// no deferred task remains executing once it returns.
func (p *WorkerPool) Drain() {
	close(p.tasks)
	p.wg.Wait()
}

// Pending reports how many tasks are currently queued, not counting
// ones a worker has already started. Used by diagnostics.
func (p *WorkerPool) Pending() int {
	return len(p.tasks)
}
