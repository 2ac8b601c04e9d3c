package shutdown

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Common errors.
var (
	// ErrNotBound indicates the coordinator was triggered before server
	// handles were bound with Bind.
	ErrNotBound = errors.New("server handles not bound")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Listener is the network-facing capability the coordinator controls.
// Implementations stop accepting new inbound connections when paused;
// connections already established keep being served.
type Listener interface {
	// Pause stops acceptance of new connections. It must be synchronous,
	// return quickly and be safe to call more than once.
	Pause()
}

// WorkerPool is the request-execution capability the coordinator drains.
type WorkerPool interface {
	// RequestGracefulStop stops intake of new work. Work already running
	// or queued continues to completion. Must be safe to call more than once.
	RequestGracefulStop()

	// AwaitQuiescence blocks until the pool has no running or queued work,
	// or until ctx is done. It reports true only on full quiescence.
	// The coordinator supplies the phase timeout through ctx.
	AwaitQuiescence(ctx context.Context) bool

	// InterruptAll signals all running work to abort immediately. Workers
	// are expected to unwind promptly; one that ignores the signal keeps
	// running until the host process is killed.
	InterruptAll()
}

// Outcome classifies how a shutdown sequence ended.
type Outcome int

const (
	// OutcomeUnknown means the sequence has not run.
	OutcomeUnknown Outcome = iota

	// OutcomeSuccess means the pool quiesced within the graceful timeout.
	OutcomeSuccess

	// OutcomeSuccessAfterForce means the pool stopped only after workers
	// were forcefully interrupted. Degraded but successful; worth alerting
	// on, since it signals capacity or latency problems.
	OutcomeSuccessAfterForce

	// OutcomeFailure means workers were still running when the forceful
	// timeout expired. The coordinator gives up and returns control;
	// remaining work is abandoned to the host process.
	OutcomeFailure

	// OutcomeConfigMismatch means no compatible listener/pool pair was
	// bound when shutdown was triggered. No control call was issued.
	OutcomeConfigMismatch

	// OutcomeCancelled means the coordinator's own wait was cancelled
	// externally before the sequence could finish.
	OutcomeCancelled
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSuccessAfterForce:
		return "success_after_force"
	case OutcomeFailure:
		return "failure"
	case OutcomeConfigMismatch:
		return "config_mismatch"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Report describes a completed shutdown sequence.
type Report struct {
	// Outcome of the sequence.
	Outcome Outcome

	// GracefulWait is how long the coordinator actually waited in the
	// graceful drain phase.
	GracefulWait time.Duration

	// ForcefulWait is how long the coordinator actually waited after
	// interrupting workers. Zero if the forceful phase never ran.
	ForcefulWait time.Duration

	// TotalDuration of the entire sequence.
	TotalDuration time.Duration

	// Err carries the preserved cancellation error for OutcomeCancelled,
	// ErrNotBound for OutcomeConfigMismatch, nil otherwise.
	Err error
}

// Failed reports whether the sequence ended without stopping the pool.
func (r *Report) Failed() bool {
	return r.Outcome != OutcomeSuccess && r.Outcome != OutcomeSuccessAfterForce
}

// Config configures the shutdown coordinator.
type Config struct {
	// GracefulTimeout bounds the wait for orderly drain after acceptance
	// is paused. Must be non-negative.
	// Default: 30 seconds
	GracefulTimeout time.Duration

	// ForcefulTimeout bounds the wait after workers are interrupted.
	// Must be non-negative.
	// Default: 10 seconds
	ForcefulTimeout time.Duration

	// Logger receives phase-transition logs. A nil logger disables logging.
	Logger *zap.Logger

	// OnOutcome is called once with the final report when the sequence
	// ends. Can be used for metrics.
	OnOutcome func(Report)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.GracefulTimeout < 0 || c.ForcefulTimeout < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		GracefulTimeout: 30 * time.Second,
		ForcefulTimeout: 10 * time.Second,
		Logger:          zap.NewNop(),
	}
}
