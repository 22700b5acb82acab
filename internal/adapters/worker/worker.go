// Package worker runs independent tasks on a bounded pool of goroutines.
//
// The service uses it to compute batches of timelines concurrently. Tasks
// share nothing, so the pool only bounds parallelism and queue depth.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/dasha/pkg/logger"
	"github.com/okian/dasha/pkg/metrics"
)

const (
	defaultQueueMultiplier = 4
	metricsUpdateInterval  = 5 * time.Second
)

// Task is a unit of work. It should honour ctx.
type Task func(ctx context.Context) error

type job struct {
	ctx    context.Context //nolint:containedctx // each job carries its caller's context
	task   Task
	result chan error
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Name      string `json:"name"`
	Workers   int    `json:"workers"`
	Active    int64  `json:"active"`
	Queued    int    `json:"queued"`
	Capacity  int    `json:"capacity"`
	Processed int64  `json:"processed"`
	Failed    int64  `json:"failed"`
}

// Pool is a fixed set of workers reading from one bounded queue.
type Pool struct {
	name            string
	size            int
	queueSize       int
	metricsInterval time.Duration

	jobs     chan job
	mu       sync.RWMutex
	running  bool
	shutdown chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	active    atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64

	logger logger.Logger
}

// NewPool creates a pool of size workers. A size below one means one worker
// per CPU. The pool does nothing until Start.
func NewPool(size int, opts ...Option) *Pool {
	if size < 1 {
		size = runtime.NumCPU()
	}
	p := &Pool{
		name:            "worker-pool",
		size:            size,
		queueSize:       size * defaultQueueMultiplier,
		metricsInterval: metricsUpdateInterval,
		shutdown:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named(p.name)
	}
	p.jobs = make(chan job, p.queueSize)

	metrics.UpdateWorkerCount(size)
	metrics.UpdateWorkerActiveCount(0)
	metrics.UpdateWorkerQueue(0, p.queueSize)
	return p
}

// Start launches the workers. When ctx is done the pool stops accepting
// tasks as if Shutdown had been called; workers still answer every queued
// job before they exit. Calling Start twice is a no-op.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	select {
	case <-p.shutdown:
		return
	default:
	}
	p.running = true

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
	go p.startMetricsUpdater(ctx)
	go func() {
		select {
		case <-ctx.Done():
			p.stop()
		case <-p.shutdown:
		}
	}()

	p.logger.Info(ctx, "worker pool started",
		logger.String("name", p.name),
		logger.Int("workers", p.size),
		logger.Int("queue_size", p.queueSize),
	)
}

// Submit queues task and returns a channel that receives its result exactly
// once. It blocks while the queue is full, until ctx is done or the pool
// stops.
func (p *Pool) Submit(ctx context.Context, task Task) (<-chan error, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.running {
		return nil, ErrPoolStopped
	}

	j := job{ctx: ctx, task: task, result: make(chan error, 1)}
	select {
	case p.jobs <- j:
		metrics.UpdateWorkerQueue(len(p.jobs), cap(p.jobs))
		return j.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.shutdown:
		return nil, ErrPoolStopped
	}
}

// Do runs every task on the pool and waits for all of them. The returned
// slice holds each task's error at the task's index. Once a task is queued Do
// waits for its result even after ctx is done, so no task outlives the call;
// queued tasks whose ctx has ended are answered with ctx.Err() unrun.
func (p *Pool) Do(ctx context.Context, tasks ...Task) []error {
	errs := make([]error, len(tasks))
	results := make([]<-chan error, len(tasks))
	for i, task := range tasks {
		ch, err := p.Submit(ctx, task)
		if err != nil {
			errs[i] = err
			continue
		}
		results[i] = ch
	}
	for i, ch := range results {
		if ch == nil {
			continue
		}
		errs[i] = <-ch
	}
	return errs
}

// Stats reports the current pool state.
func (p *Pool) Stats() Stats {
	return Stats{
		Name:      p.name,
		Workers:   p.size,
		Active:    p.active.Load(),
		Queued:    len(p.jobs),
		Capacity:  cap(p.jobs),
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
	}
}

// Shutdown stops accepting tasks, lets workers drain what is queued and waits
// for them until ctx is done.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.stop()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.logger.Info(ctx, "worker pool stopped", logger.String("name", p.name))
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "worker pool shutdown timed out", logger.String("name", p.name))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// stop refuses new tasks and closes the queue. Submit callers blocked on a
// full queue see shutdown before the write lock is taken.
func (p *Pool) stop() {
	p.stopOnce.Do(func() {
		close(p.shutdown)
		p.mu.Lock()
		p.running = false
		close(p.jobs)
		p.mu.Unlock()
	})
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	for j := range p.jobs {
		j.result <- p.process(j, id)
	}
}

func (p *Pool) process(j job, id int) (err error) {
	if err := j.ctx.Err(); err != nil {
		return err
	}

	metrics.UpdateWorkerActiveCount(int(p.active.Add(1)))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
			p.logger.Error(j.ctx, "task panicked", logger.Int("worker_id", id), logger.Any("panic", r))
		}
		metrics.UpdateWorkerActiveCount(int(p.active.Add(-1)))
		metrics.RecordWorkerJob(float64(time.Since(start).Microseconds())/1000, err != nil)
		p.processed.Add(1)
		if err != nil {
			p.failed.Add(1)
			metrics.RecordErrorByComponent("worker", "task_error")
		}
	}()

	return j.task(j.ctx)
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(p.metricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			metrics.UpdateWorkerQueue(len(p.jobs), cap(p.jobs))
		}
	}
}
