// Package workerpool provides a bounded in-process worker pool that
// satisfies the shutdown.WorkerPool capability.
//
// # Overview
//
// A Pool runs a fixed number of workers consuming a buffered job queue.
// During normal operation requests are submitted with Submit and processed
// concurrently. During termination the pool supports the full drain
// contract: RequestGracefulStop closes intake, AwaitQuiescence waits for
// the queue and all running jobs to finish, and InterruptAll cancels the
// context every running job observes.
//
// # Usage
//
//	pool := workerpool.New(workerpool.Config{
//	    Workers:    8,
//	    QueueDepth: 64,
//	    Logger:     logger,
//	})
//	pool.Start()
//
//	id, err := pool.Submit("resize-image", func(ctx context.Context) error {
//	    return process(ctx)
//	})
//
// Jobs receive a context that is cancelled by InterruptAll. A job that
// ignores its context cannot be stopped by the pool; its goroutine runs
// until the host process exits.
package workerpool
