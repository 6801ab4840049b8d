// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup starts external tools in their own process group so
// that cancelling a transcode also reaps anything ffmpeg spawned.
package procgroup

import (
	"os/exec"
	"time"
)

// DefaultGrace is how long Wait lets a killed group hold the output pipes
// open before closing them.
const DefaultGrace = 2 * time.Second

// Bind places cmd in a new process group and makes context cancellation
// SIGKILL the whole group. It must be called before cmd.Start, and cmd must
// come from exec.CommandContext: Start rejects a Cancel func on a command
// without a context.
func Bind(cmd *exec.Cmd, grace time.Duration) {
	if grace <= 0 {
		grace = DefaultGrace
	}
	set(cmd)
	cmd.Cancel = func() error { return terminate(cmd) }
	cmd.WaitDelay = grace
}
