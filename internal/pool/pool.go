// Package pool implements the elastic worker pool that drives parallel
// mapping and reduction inside each worker process.
package pool

import (
	"container/list"
	"log"
	"runtime"
	"sync"

	"pkg.jsn.cam/wordmill/pkg/wordmill"
)

// Task is one unit of work.
type Task func()

// Pool runs submitted tasks on a bounded set of worker goroutines. It starts
// with Min workers and grows one worker at a time, up to Max, whenever the
// pending queue is deeper than the current worker count.
type Pool struct {
	min int
	max int

	mu       sync.Mutex
	cond     *sync.Cond
	queue    *list.List
	workers  int
	shutdown bool

	wg     sync.WaitGroup // tracks worker goroutines
	tasks  sync.WaitGroup // tracks submitted tasks
	logger *log.Logger
}

// ResolveBounds applies the zero-value rule: 0 means the host's available
// parallelism, with a fallback of 2. Max is raised to Min when it falls below.
func ResolveBounds(b wordmill.PoolBounds) (min, max int) {
	min = b.Min
	if min <= 0 {
		min = runtime.NumCPU()
		if min <= 0 {
			min = 2
		}
	}

	max = b.Max
	if max <= 0 {
		max = runtime.NumCPU()
		if max <= 0 {
			max = 2
		}
	}
	if max < min {
		max = min
	}

	return min, max
}

// New creates a pool and starts its minimum worker set. The logger may be nil.
func New(bounds wordmill.PoolBounds, logger *log.Logger) *Pool {
	min, max := ResolveBounds(bounds)

	if logger == nil {
		logger = log.Default()
	}

	p := &Pool{
		min:    min,
		max:    max,
		queue:  list.New(),
		logger: logger,
	}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < min; i++ {
		p.startWorker()
	}

	p.logger.Printf("[POOL] Started with %d workers (max %d)", min, max)

	return p
}

// Submit enqueues a task. It returns immediately; the only failure mode is
// submitting after Shutdown has begun.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()

	if p.shutdown {
		p.mu.Unlock()
		return wordmill.ErrPoolShutdown
	}

	p.tasks.Add(1)
	p.queue.PushBack(task)

	// Grow when the backlog outruns the workers we have.
	if p.queue.Len() > p.workers && p.workers < p.max {
		p.startWorker()
		p.logger.Printf("[POOL] Scaled up to %d workers (queue depth %d)", p.workers, p.queue.Len())
	}

	p.mu.Unlock()
	p.cond.Signal()

	return nil
}

// Shutdown rejects new submissions and blocks until every previously
// submitted task has finished. It is idempotent.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	already := p.shutdown
	p.shutdown = true
	p.mu.Unlock()

	p.cond.Broadcast()

	// Wait for all submitted tasks even on repeat calls; tasks.Wait returns
	// immediately once the count is drained.
	p.tasks.Wait()

	if !already {
		p.wg.Wait()
		p.logger.Printf("[POOL] Shut down")
	}
}

// Workers returns the current worker count.
func (p *Pool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}

// QueueDepth returns the number of tasks waiting to run.
func (p *Pool) QueueDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Len()
}

// startWorker launches one worker goroutine. Caller must hold p.mu.
func (p *Pool) startWorker() {
	p.workers++
	p.wg.Add(1)

	go p.workerLoop()
}

// workerLoop waits for tasks until shutdown is signalled and the queue drains.
func (p *Pool) workerLoop() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for p.queue.Len() == 0 && !p.shutdown {
			p.cond.Wait()
		}

		if p.queue.Len() == 0 && p.shutdown {
			p.mu.Unlock()
			return
		}

		task := p.queue.Remove(p.queue.Front()).(Task)
		p.mu.Unlock()

		p.runTask(task)
	}
}

// runTask executes one task, isolating panics so a failing task cannot take
// its worker down with it.
func (p *Pool) runTask(task Task) {
	defer p.tasks.Done()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Printf("[POOL] Task panicked: %v", r)
		}
	}()

	task()
}
