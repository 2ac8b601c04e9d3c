package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phajek/drainkit/config"
	"github.com/phajek/drainkit/httpserver"
	"github.com/phajek/drainkit/shutdown"
	"github.com/phajek/drainkit/telemetry"
	"github.com/phajek/drainkit/workerpool"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the job server until terminated",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "drainkit.toml", "path to TOML config file")
}

func serve() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	recorder, err := telemetry.NewRecorder(nil)
	if err != nil {
		return err
	}

	pool := workerpool.New(workerpool.Config{
		Workers:    cfg.Workers,
		QueueDepth: cfg.QueueDepth,
		Logger:     logger.Named("pool"),
	})
	pool.Start()

	server := httpserver.New(httpserver.Config{
		Addr:          cfg.Listen,
		ThrottleRPS:   cfg.ThrottleRPS,
		ThrottleBurst: cfg.ThrottleBurst,
		Logger:        logger.Named("http"),
	}, pool)

	coord := shutdown.NewCoordinator(shutdown.Config{
		GracefulTimeout: cfg.GracefulTimeout,
		ForcefulTimeout: cfg.ForcefulTimeout,
		Logger:          logger.Named("shutdown"),
		OnOutcome:       recorder.OnOutcome,
	})

	// Bind only once the listener actually exists, so a failed startup
	// never leaves the coordinator holding dead handles.
	if err := server.Listen(); err != nil {
		return fmt.Errorf("starting listener: %w", err)
	}
	coord.Bind(server, pool)
	coord.HandleSignals()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve()
	}()

	logger.Info("drainkitd running",
		zap.String("addr", server.Addr()),
		zap.Int("workers", cfg.Workers))

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serving: %w", err)
		}
		// Listener paused by the coordinator; wait out the drain.
		<-coord.Done()
	case <-coord.Done():
	}

	report := coord.Report()
	logger.Info("shutdown sequence ended",
		zap.String("outcome", report.Outcome.String()),
		zap.Duration("graceful_wait", report.GracefulWait),
		zap.Duration("forceful_wait", report.ForcefulWait),
		zap.Duration("total", report.TotalDuration))

	switch report.Outcome {
	case shutdown.OutcomeSuccess, shutdown.OutcomeSuccessAfterForce:
		return nil
	case shutdown.OutcomeCancelled:
		os.Exit(130)
	default:
		os.Exit(1)
	}
	return nil
}
