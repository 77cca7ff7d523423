package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/appclacks/sloworker/config"
	"github.com/appclacks/sloworker/internal/tracing"
	"github.com/appclacks/sloworker/internal/worker"
	"github.com/appclacks/sloworker/pkg/probe"
	"github.com/appclacks/sloworker/pkg/slo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

type workerOptions struct {
	daemon  bool
	sloFile string
}

func buildWorkerCmd() *cobra.Command {
	var options workerOptions
	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Runs the SLO polling worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := buildLogger(logLevel, logFormat)
			return logError(logger, runWorker(logger, options))
		},
	}
	workerCmd.Flags().BoolVar(&options.daemon, "daemon", false, "Run the worker in the background (not implemented)")
	workerCmd.Flags().StringVar(&options.sloFile, "slo-file", "", "Path to the SLO definitions file, overrides worker.slo-file")
	return workerCmd
}

// handleSignals cancels the returned context on SIGINT or SIGTERM.
func handleSignals(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(
		signals,
		syscall.SIGINT,
		syscall.SIGTERM)
	go func() {
		select {
		case sig := <-signals:
			logger.Info(fmt.Sprintf("received signal %s, starting shutdown", sig))
		case <-ctx.Done():
		}
		signal.Stop(signals)
		cancel()
	}()
	return ctx, cancel
}

func runWorker(logger *slog.Logger, options workerOptions) error {
	if options.daemon {
		return slo.ErrDaemonNotImplemented
	}
	appConfig, err := config.Load(logger, configFile, os.Getenv)
	if err != nil {
		return err
	}
	if options.sloFile != "" {
		appConfig.Worker.SLOFile = options.sloFile
	}

	ctx, cancel := handleSignals(logger)
	defer cancel()

	shutdownTracing, err := tracing.Setup(ctx, "sloworker", appConfig.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		err := shutdownTracing(context.Background())
		if err != nil {
			logger.Error(fmt.Sprintf("fail to stop tracing: %s", err.Error()))
		}
	}()

	store, err := openStore(ctx, logger, appConfig)
	if err != nil {
		return err
	}
	defer closeStore(logger, store)

	registry := prometheus.DefaultRegisterer.(*prometheus.Registry)
	service := slo.New(logger, store)
	prober, err := probe.New(logger, appConfig.Worker.Probe, registry)
	if err != nil {
		return err
	}
	definitions := slo.NewConfigStore(appConfig.Worker.SLOFile)
	sloWorker, err := worker.New(logger, appConfig.Worker, definitions, prober, service, registry)
	if err != nil {
		return err
	}
	err = sloWorker.WatchDefinitions(ctx)
	if err != nil {
		logger.Warn(fmt.Sprintf("SLO file changes will only be detected every %s: %s", appConfig.Worker.Interval, err.Error()))
	}

	if appConfig.HTTP.Port != 0 {
		server, err := newServer(logger, appConfig, service, registry)
		if err != nil {
			return err
		}
		server.Start()
		defer func() {
			err := server.Stop()
			if err != nil {
				logger.Error(fmt.Sprintf("fail to stop the http server: %s", err.Error()))
			}
		}()
	}

	err = sloWorker.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("worker stopped cleanly")
	return nil
}
