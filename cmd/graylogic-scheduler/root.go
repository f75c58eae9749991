package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree. Without a subcommand it serves.
func newRootCmd() *cobra.Command {
	var configPath string

	serve := func(_ *cobra.Command, _ []string) error {
		// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, configPath)
	}

	root := &cobra.Command{
		Use:   "graylogic-scheduler",
		Short: "Run the device command scheduler.",
		Long: `Runs the scheduler service: an in-memory device registry, a durable
SQLite schedule store, a background loop executing due commands, and the
HTTP, WebSocket and MQTT interfaces.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          serve,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", getConfigPath(), "path to configuration file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler service (default).",
		Args:  cobra.NoArgs,
		RunE:  serve,
	})

	root.AddCommand(&cobra.Command{
		Use:   "devices",
		Short: "Print the configured device catalog (initial state, not live).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listDevices(cmd.Context(), configPath, cmd.OutOrStdout())
		},
	})

	schedules := &cobra.Command{
		Use:   "schedules",
		Short: "Inspect and cancel stored schedule entries.",
	}
	schedules.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print pending entries in execution order.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listSchedules(cmd.Context(), configPath, cmd.OutOrStdout())
		},
	})
	schedules.AddCommand(&cobra.Command{
		Use:   "cancel <id>",
		Short: "Delete an entry. Unknown IDs succeed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid schedule id %q", args[0])
			}
			return cancelSchedule(cmd.Context(), configPath, id, cmd.OutOrStdout())
		},
	})
	root.AddCommand(schedules)

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information.",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "graylogic-scheduler %s (commit %s, built %s)\n", version, commit, date)
		},
	})

	return root
}
