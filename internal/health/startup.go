// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ManuGH/camsync/internal/config"
	"github.com/ManuGH/camsync/internal/log"
)

var lookPath = exec.LookPath

// PerformStartupChecks validates the environment before the daemon starts
// polling.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := ensureDir(logger, cfg.Sync.CacheDir); err != nil {
		return fmt.Errorf("cache directory check failed: %w", err)
	}
	if err := ensureDir(logger, filepath.Dir(cfg.Sync.StagingPath)); err != nil {
		return fmt.Errorf("staging directory check failed: %w", err)
	}
	if err := checkListenAddr("api", cfg.API.ListenAddr); err != nil {
		return err
	}
	if err := checkListenAddr("metrics", cfg.Metrics.ListenAddr); err != nil {
		return err
	}

	for _, bin := range []string{cfg.FFmpeg.Bin, cfg.FFmpeg.FFprobeBin} {
		if _, err := lookPath(bin); err != nil {
			return fmt.Errorf("binary not found (%s): %w", bin, err)
		}
	}
	logger.Info().Str("ffmpeg", cfg.FFmpeg.Bin).Str("ffprobe", cfg.FFmpeg.FFprobeBin).Msg("transcode tools available")

	logger.Info().Msg("all startup checks passed")
	return nil
}

func ensureDir(logger zerolog.Logger, path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return err
	}
	if err := probeWritable(path); err != nil {
		return err
	}
	logger.Info().Str(log.FieldPath, path).Msg("directory is writable")
	return nil
}

func checkListenAddr(name, addr string) error {
	if addr == "" {
		return nil
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid %s listen address %q: %w", name, addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid %s listen port %q in %q", name, port, addr)
	}
	return nil
}
