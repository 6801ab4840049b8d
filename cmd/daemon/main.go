// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ManuGH/camsync/internal/app/bootstrap"
	xglog "github.com/ManuGH/camsync/internal/log"
	"github.com/ManuGH/camsync/internal/version"
)

type rootOptions struct {
	configPath string
	envFile    string
}

func (o *rootOptions) bootstrap() bootstrap.Options {
	return bootstrap.Options{
		ConfigPath: o.configPath,
		EnvFile:    o.envFile,
		Version:    version.Version,
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "camsync",
		Short: "Mirror an IP camera's recordings and publish its state",
		Long: `camsync polls an IP camera's alarm state, catalogs the snapshots and
recordings on its storage, mirrors settled recordings into a local MP4 cache
and serves the result over HTTP, websocket and MQTT.`,
		SilenceUsage: true,
		// Without a subcommand the daemon runs.
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), opts)
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (YAML)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional dotenv file loaded before environment parsing")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the daemon",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runDaemon(cmd.Context(), opts)
			},
		},
		newSnapshotCmd(opts),
		newHealthcheckCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
			},
		},
	)
	return root
}

func runDaemon(ctx context.Context, opts *rootOptions) error {
	container, err := bootstrap.WireServices(ctx, opts.bootstrap())
	if err != nil {
		return err
	}
	if err := container.Run(ctx); err != nil {
		return fmt.Errorf("daemon: %w", err)
	}
	logger := xglog.WithComponent("daemon")
	logger.Info().Msg("server exiting")
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		logger := xglog.WithComponent("daemon")
		logger.Error().Err(err).Msg("fatal")
		stop()
		os.Exit(1)
	}
}
