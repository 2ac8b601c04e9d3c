package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Common errors.
var (
	// ErrPoolStopped indicates the pool is draining and no longer accepts work.
	ErrPoolStopped = errors.New("worker pool no longer accepts work")

	// ErrQueueFull indicates the job queue is at capacity.
	ErrQueueFull = errors.New("job queue is full")
)

// JobFunc is a unit of work. The context is cancelled when the pool is
// forcefully interrupted; implementations must return promptly once it is.
type JobFunc func(ctx context.Context) error

// Config configures a Pool.
type Config struct {
	// Workers is the number of concurrent workers.
	// Default: 4
	Workers int

	// QueueDepth is the capacity of the pending-job queue.
	// Default: 16
	QueueDepth int

	// Logger receives per-job logs. A nil logger disables logging.
	Logger *zap.Logger
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Queued    int64
	Active    int64
	Completed int64
	Failed    int64
}

// Pool is a fixed-size worker pool with a bounded queue. It implements
// the shutdown.WorkerPool capability.
type Pool struct {
	config Config
	logger *zap.Logger

	mu       sync.RWMutex
	jobs     chan job
	draining atomic.Bool

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup

	runCtx    context.Context
	interrupt context.CancelFunc

	queued    atomic.Int64
	active    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

type job struct {
	id   string
	name string
	fn   JobFunc
}

// New creates a pool. Call Start to launch the workers.
func New(config Config) *Pool {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.QueueDepth <= 0 {
		config.QueueDepth = 16
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		config:    config,
		logger:    logger,
		jobs:      make(chan job, config.QueueDepth),
		runCtx:    ctx,
		interrupt: cancel,
	}
}

// Start launches the workers. Safe to call more than once.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.wg.Add(p.config.Workers)
		for i := 0; i < p.config.Workers; i++ {
			go p.worker(i)
		}
		p.logger.Info("worker pool started",
			zap.Int("workers", p.config.Workers),
			zap.Int("queue_depth", p.config.QueueDepth))
	})
}

// Submit queues a job for execution and returns its generated ID.
// Returns ErrPoolStopped once draining, ErrQueueFull when the queue is
// at capacity.
func (p *Pool) Submit(name string, fn JobFunc) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.draining.Load() {
		return "", ErrPoolStopped
	}

	j := job{id: uuid.NewString(), name: name, fn: fn}
	select {
	case p.jobs <- j:
		p.queued.Add(1)
		return j.id, nil
	default:
		return "", ErrQueueFull
	}
}

// RequestGracefulStop closes intake. Queued and running jobs continue to
// completion. Safe to call more than once.
func (p *Pool) RequestGracefulStop() {
	p.stopOnce.Do(func() {
		p.draining.Store(true)
		// Submit holds the read lock while sending, so the channel can
		// only close once no send is in progress.
		p.mu.Lock()
		close(p.jobs)
		p.mu.Unlock()
		p.logger.Info("worker pool draining")
	})
}

// AwaitQuiescence blocks until every worker has exited, or until ctx is
// done. Workers exit once the queue is closed and drained, so quiescence
// is only reachable after RequestGracefulStop. Reports true on quiescence.
func (p *Pool) AwaitQuiescence(ctx context.Context) bool {
	quiesced := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(quiesced)
	}()

	select {
	case <-quiesced:
		return true
	case <-ctx.Done():
		return false
	}
}

// InterruptAll cancels the context observed by every running job. Queued
// jobs that have not started are failed without running. Safe to call
// more than once.
func (p *Pool) InterruptAll() {
	p.logger.Warn("interrupting all running jobs",
		zap.Int64("active", p.active.Load()),
		zap.Int64("queued", p.queued.Load()))
	p.interrupt()
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Queued:    p.queued.Load(),
		Active:    p.active.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}

// Draining reports whether intake has been closed.
func (p *Pool) Draining() bool {
	return p.draining.Load()
}

func (p *Pool) worker(n int) {
	defer p.wg.Done()

	for j := range p.jobs {
		p.queued.Add(-1)

		// After an interrupt the queue is flushed without running jobs,
		// so drain completes even with a backlog.
		if p.runCtx.Err() != nil {
			p.failed.Add(1)
			p.logger.Warn("job dropped: pool interrupted",
				zap.String("job_id", j.id),
				zap.String("job", j.name))
			continue
		}

		p.active.Add(1)
		start := time.Now()
		err := p.runJob(j)
		p.active.Add(-1)

		if err != nil {
			p.failed.Add(1)
			p.logger.Error("job failed",
				zap.String("job_id", j.id),
				zap.String("job", j.name),
				zap.Int("worker", n),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err))
			continue
		}

		p.completed.Add(1)
		p.logger.Debug("job complete",
			zap.String("job_id", j.id),
			zap.String("job", j.name),
			zap.Int("worker", n),
			zap.Duration("duration", time.Since(start)))
	}
}

// runJob executes a job, converting a panic into an error so a bad job
// cannot take down its worker.
func (p *Pool) runJob(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return j.fn(p.runCtx)
}
