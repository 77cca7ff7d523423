package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var configFile string
var logLevel string
var logFormat string

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sloworker",
		Short:         "Probes HTTP endpoints and tracks their service level objectives",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to the YAML configuration file, SLIs are kept in memory when absent")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "v", "info", "Logger log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Logger logs format (text, json)")

	rootCmd.AddCommand(buildWorkerCmd())
	rootCmd.AddCommand(buildServerCmd())
	return rootCmd
}

// loggedError is an error already reported through the logger.
type loggedError struct {
	err error
}

func (e *loggedError) Error() string {
	return e.err.Error()
}

func (e *loggedError) Unwrap() error {
	return e.err
}

func logError(logger *slog.Logger, err error) error {
	if err == nil {
		return nil
	}
	logger.Error(err.Error())
	return &loggedError{err: err}
}

func Run() error {
	err := buildRootCmd().Execute()
	var logged *loggedError
	if err != nil && !errors.As(err, &logged) {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
	}
	return err
}
