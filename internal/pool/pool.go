package pool

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/codeforge/judge-harness/internal/domain"
	"github.com/codeforge/judge-harness/internal/metrics"
)

// Job is one unit of work. Exactly one of Run or Abort is called.
type Job struct {
	Ctx   context.Context
	Run   func(ctx context.Context)
	Abort func(err error)
}

// WorkerPool runs jobs on a fixed number of goroutines. It is shared by every
// caller, so it bounds work process-wide.
type WorkerPool struct {
	size   int
	jobs   chan *Job
	logger *zap.Logger
	wg     sync.WaitGroup

	mu       sync.RWMutex
	closed   bool
	done     chan struct{}
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewWorkerPool creates a new fixed-size worker pool with a bounded queue.
func NewWorkerPool(size, queueSize int, logger *zap.Logger) *WorkerPool {
	if size < 1 {
		size = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &WorkerPool{
		size:   size,
		jobs:   make(chan *Job, queueSize),
		logger: logger,
		done:   make(chan struct{}),
		cancel: func() {},
	}
}

// Size returns the number of workers.
func (p *WorkerPool) Size() int { return p.size }

// Start launches all worker goroutines. Call Stop to wait for them to finish.
func (p *WorkerPool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("Starting worker pool", zap.Int("pool_size", p.size))

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Submit queues a job, blocking while the queue is full.
func (p *WorkerPool) Submit(ctx context.Context, job *Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return domain.ErrPoolClosed
	}

	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return domain.ErrPoolClosed
	}
}

// Stop lets running jobs finish, then aborts anything still queued.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.cancel()
		p.wg.Wait()

		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		aborted := 0
		for {
			select {
			case job := <-p.jobs:
				job.Abort(domain.ErrPoolClosed)
				aborted++
				continue
			default:
			}
			break
		}

		p.logger.Info("Worker pool stopped", zap.Int("aborted_jobs", aborted))
	})
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.Debug("Worker started", zap.Int("worker_id", id))

	for {
		if ctx.Err() != nil {
			p.logger.Debug("Worker shutting down", zap.Int("worker_id", id))
			return
		}
		select {
		case <-ctx.Done():
			p.logger.Debug("Worker shutting down", zap.Int("worker_id", id))
			return
		case job := <-p.jobs:
			p.run(id, job)
		}
	}
}

func (p *WorkerPool) run(id int, job *Job) {
	jobCtx := job.Ctx
	if jobCtx == nil {
		jobCtx = context.Background()
	}
	if err := jobCtx.Err(); err != nil {
		job.Abort(err)
		return
	}

	metrics.WorkersActive.Inc()
	defer metrics.WorkersActive.Dec()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Worker panic recovered",
				zap.Int("worker_id", id),
				zap.Any("panic", r),
			)
			job.Abort(fmt.Errorf("worker panic: %v", r))
		}
	}()

	job.Run(jobCtx)
}
