package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/appclacks/sloworker/config"
	"github.com/appclacks/sloworker/internal/http"
	"github.com/appclacks/sloworker/internal/http/handlers"
	"github.com/appclacks/sloworker/pkg/slo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func buildServerCmd() *cobra.Command {
	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Runs the HTTP server exposing the SLIs",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := buildLogger(logLevel, logFormat)
			return logError(logger, runServer(logger))
		},
	}
	return serverCmd
}

// newServer builds the read surface. It reads the SLO file through its own
// ConfigStore so that its reloads never hide a change from the worker.
func newServer(logger *slog.Logger, appConfig *config.Configuration, service *slo.Service, registry *prometheus.Registry) (*http.Server, error) {
	handlersBuilder := handlers.NewBuilder(logger, service, slo.NewConfigStore(appConfig.Worker.SLOFile))
	return http.NewServer(logger, appConfig.HTTP, registry, handlersBuilder)
}

func runServer(logger *slog.Logger) error {
	appConfig, err := config.Load(logger, configFile, os.Getenv)
	if err != nil {
		return err
	}
	ctx, cancel := handleSignals(logger)
	defer cancel()

	store, err := openStore(ctx, logger, appConfig)
	if err != nil {
		return err
	}
	defer closeStore(logger, store)
	server, err := newServer(logger, appConfig, slo.New(logger, store), prometheus.DefaultRegisterer.(*prometheus.Registry))
	if err != nil {
		return err
	}
	server.Start()
	<-ctx.Done()
	err = server.Stop()
	if err != nil {
		return fmt.Errorf("fail to stop the http server: %w", err)
	}
	return nil
}
