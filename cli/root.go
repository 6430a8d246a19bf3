// Package cli wires the simulation's command-line surface.
package cli

import (
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fedsim",
		Short: "Federated learning simulation orchestrator",
		Long:  ``,
	}

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewInitCmd())

	return cmd
}

func configureLogger(level string) *slog.Logger {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		log.Printf("Invalid log level: %s. Defaulting to info.\n", level)
		logLevel = slog.LevelInfo
	}

	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(logHandler)
}
