package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

func newHealthcheckCmd() *cobra.Command {
	var (
		mode    string
		addr    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe a running daemon's health endpoint (for container HEALTHCHECK)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/healthz"
			if mode == "ready" {
				path = "/readyz"
			}

			client := http.Client{Timeout: timeout}
			resp, err := client.Get("http://" + addr + path)
			if err != nil {
				return fmt.Errorf("healthcheck failed (network): %w", err)
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("healthcheck failed (status): %s", resp.Status)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Healthcheck successful (%s)\n", mode)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "ready", "healthcheck mode: ready or live")
	cmd.Flags().StringVar(&addr, "addr", "localhost:8088", "API host:port to check")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "check timeout")
	return cmd
}
