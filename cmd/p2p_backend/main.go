package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	rootCmd := &cobra.Command{
		Use:           "p2p_backend",
		Short:         "Procure-to-pay backend: budgets, requisitions, invoices and payments",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		// Running the binary without a subcommand starts the API server.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), logger, serveOptions{migrate: true})
		},
	}

	rootCmd.AddCommand(serveCmd(logger))
	rootCmd.AddCommand(migrateCmd(logger))
	rootCmd.AddCommand(closeFiscalYearCmd(logger))
	rootCmd.AddCommand(createAdminCmd(logger))

	if err := rootCmd.Execute(); err != nil {
		logger.Error("Command failed", slog.String("error", err.Error()))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
