package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Coordinator drives the three-phase shutdown sequence: pause connection
// acceptance, drain the worker pool within the graceful timeout, and
// forcefully interrupt whatever is left within the forceful timeout.
//
// A Coordinator runs its sequence exactly once per process lifetime.
// Repeat triggers return the recorded report.
type Coordinator struct {
	config Config
	logger *zap.Logger

	mu       sync.Mutex
	listener Listener
	pool     WorkerPool

	once       sync.Once
	done       chan struct{}
	report     Report
	signalChan chan os.Signal
}

// NewCoordinator creates a new shutdown coordinator. Zero timeouts are
// replaced with the documented defaults (30s graceful, 10s forceful).
//
// Server handles are intentionally not taken here: the listener and pool
// may not exist yet while the application is still wiring itself up.
// Bind them once they are ready; triggering an unbound coordinator reports
// OutcomeConfigMismatch without touching anything.
func NewCoordinator(config Config) *Coordinator {
	if config.GracefulTimeout == 0 {
		config.GracefulTimeout = DefaultConfig().GracefulTimeout
	}
	if config.ForcefulTimeout == 0 {
		config.ForcefulTimeout = DefaultConfig().ForcefulTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Coordinator{
		config:     config,
		logger:     logger,
		done:       make(chan struct{}),
		signalChan: make(chan os.Signal, 1),
	}
}

// Bind supplies the listener and worker pool handles the sequence will
// control. Safe to call any time before the shutdown trigger fires.
func (c *Coordinator) Bind(listener Listener, pool WorkerPool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = listener
	c.pool = pool
}

// Shutdown runs the shutdown sequence and blocks until it ends. The caller
// must not proceed with process teardown before Shutdown returns, or
// in-flight requests die with the process.
//
// Cancelling ctx while a drain wait is in progress aborts the sequence
// with OutcomeCancelled; the cancellation error is preserved in the report
// rather than swallowed. ctx carries no deadline of its own here: the two
// phase timeouts are the coordinator's, measured from each phase start.
//
// No failure escapes as a panic. Shutdown runs during process teardown,
// where an unexpected crash would skip teardown of unrelated subsystems.
func (c *Coordinator) Shutdown(ctx context.Context) Report {
	c.once.Do(func() {
		c.report = c.run(ctx)
		if c.config.OnOutcome != nil {
			c.config.OnOutcome(c.report)
		}
		close(c.done)
	})

	<-c.done
	return c.report
}

// HandleSignals arranges for SIGTERM and SIGINT to trigger Shutdown.
// Must be called before the signals are expected.
func (c *Coordinator) HandleSignals() {
	signal.Notify(c.signalChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-c.signalChan
		c.Shutdown(context.Background())
	}()
}

// Trigger simulates a termination signal (useful for testing).
func (c *Coordinator) Trigger() {
	select {
	case c.signalChan <- syscall.SIGTERM:
	default:
	}
}

// Done returns a channel that is closed when the sequence has ended.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Report returns the final report, or nil if the sequence has not ended.
func (c *Coordinator) Report() *Report {
	select {
	case <-c.done:
		r := c.report
		return &r
	default:
		return nil
	}
}

// run performs the actual phase sequence.
func (c *Coordinator) run(ctx context.Context) (report Report) {
	start := time.Now()
	defer func() {
		report.TotalDuration = time.Since(start)
		if r := recover(); r != nil {
			c.logger.Error("shutdown sequence panicked",
				zap.Any("panic", r))
			report.Outcome = OutcomeFailure
		}
	}()

	c.mu.Lock()
	listener, pool := c.listener, c.pool
	c.mu.Unlock()

	if listener == nil || pool == nil {
		c.logger.Error("graceful shutdown failed: no listener/pool bound to coordinator")
		report.Outcome = OutcomeConfigMismatch
		report.Err = ErrNotBound
		return report
	}

	// Phase 1: refuse new connections before the pool stops taking work,
	// so a late-routed connection is refused at the network layer instead
	// of being rejected by a draining pool.
	c.logger.Info("shutting down: pausing connection acceptance")
	listener.Pause()

	// Phase 2: orderly drain.
	pool.RequestGracefulStop()
	quiesced, cancelled, waited := awaitPhase(ctx, pool, c.config.GracefulTimeout)
	report.GracefulWait = waited
	if cancelled {
		report.Outcome = OutcomeCancelled
		report.Err = ctx.Err()
		return report
	}
	if quiesced {
		c.logger.Info("graceful shutdown complete",
			zap.Duration("drained_in", waited))
		report.Outcome = OutcomeSuccess
		return report
	}

	// Phase 3: forceful interruption. The forceful wait gets its full
	// budget regardless of how long the graceful wait took.
	c.logger.Warn("worker pool did not quiesce within graceful timeout, interrupting workers",
		zap.Duration("graceful_timeout", c.config.GracefulTimeout))
	pool.InterruptAll()
	stopped, cancelled, waited := awaitPhase(ctx, pool, c.config.ForcefulTimeout)
	report.ForcefulWait = waited
	if cancelled {
		report.Outcome = OutcomeCancelled
		report.Err = ctx.Err()
		return report
	}
	if stopped {
		c.logger.Warn("shutdown complete after forceful interruption",
			zap.Duration("stopped_in", waited))
		report.Outcome = OutcomeSuccessAfterForce
		return report
	}

	c.logger.Error("graceful shutdown failed: worker pool did not stop within forceful timeout",
		zap.Duration("forceful_timeout", c.config.ForcefulTimeout))
	report.Outcome = OutcomeFailure
	return report
}

// awaitPhase waits for pool quiescence under a fresh timeout derived from
// parent. A false result is disambiguated against the parent context:
// parent cancellation is an abnormal external interruption, phase timeout
// is a normal transition trigger.
func awaitPhase(parent context.Context, pool WorkerPool, timeout time.Duration) (quiesced, cancelled bool, waited time.Duration) {
	begin := time.Now()
	waitCtx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ok := pool.AwaitQuiescence(waitCtx)
	waited = time.Since(begin)
	if ok {
		return true, false, waited
	}
	if parent.Err() != nil {
		return false, true, waited
	}
	return false, false, waited
}
