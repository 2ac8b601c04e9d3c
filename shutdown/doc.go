// Package shutdown sequences graceful termination of an HTTP server process
// running under a container orchestrator.
//
// # Overview
//
// Orchestrators such as Kubernetes may keep routing traffic to a pod for a
// short window after sending SIGTERM. Killing listeners abruptly turns that
// window into client-visible errors, while waiting indefinitely for in-flight
// requests risks the platform's hard kill deadline. The coordinator walks the
// middle path: stop accepting immediately, drain within a bound, interrupt
// within a second, shorter bound, and report which of those it took.
//
// # Architecture
//
//	SIGTERM ──▶ Coordinator
//	              │
//	              ├─ Phase 1: Listener.Pause()            (immediate)
//	              ├─ Phase 2: RequestGracefulStop()
//	              │           AwaitQuiescence ──ok──▶ Success
//	              │                │ timeout
//	              ├─ Phase 3: InterruptAll()
//	              │           AwaitQuiescence ──ok──▶ SuccessAfterForce
//	              │                │ timeout
//	              └──────────────────────────────────▶ Failure
//
// The two waits carry independent budgets: the forceful wait always gets its
// full timeout no matter how long the graceful wait ran. External
// cancellation during either wait ends the sequence with OutcomeCancelled
// and preserves the cancellation error for the caller.
//
// # Usage
//
//	coord := shutdown.NewCoordinator(shutdown.Config{
//	    GracefulTimeout: 30 * time.Second,
//	    ForcefulTimeout: 10 * time.Second,
//	    Logger:          logger,
//	})
//
//	// Bind handles once the server is actually up.
//	coord.Bind(server, pool)
//	coord.HandleSignals() // SIGTERM, SIGINT
//
//	<-coord.Done()
//	report := coord.Report()
//	if report.Failed() {
//	    os.Exit(1)
//	}
//
// Any server can participate by satisfying the Listener and WorkerPool
// capability interfaces; the httpserver and workerpool packages provide
// ready implementations for net/http services. A coordinator triggered
// before Bind reports OutcomeConfigMismatch and touches nothing, so a
// broken shutdown path never blocks the rest of process teardown.
//
// # Recommendations
//
//   - Keep ForcefulTimeout well under the orchestrator's kill deadline
//     (terminationGracePeriodSeconds on Kubernetes)
//   - Alert on OutcomeSuccessAfterForce: it means requests routinely
//     outlive the graceful window
//   - Handlers must respect context cancellation for InterruptAll to work
package shutdown
