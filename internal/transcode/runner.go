// SPDX-License-Identifier: MIT

// Package transcode converts device recordings with ffmpeg and measures
// them with ffprobe.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/camsync/internal/log"
	"github.com/ManuGH/camsync/internal/procgroup"
)

// ErrFailed marks a transcode that did not produce an output file.
var ErrFailed = errors.New("transcode failed")

// Profile selects the ffmpeg codec arguments.
type Profile string

const (
	// ProfileCopy remuxes without re-encoding.
	ProfileCopy Profile = "copy"
	// ProfileDefault re-encodes to H.264/AAC.
	ProfileDefault Profile = "default"
)

func (p Profile) args() []string {
	if p == ProfileCopy {
		return []string{"-c", "copy"}
	}
	return []string{
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "23", "-pix_fmt", "yuv420p",
		"-c:a", "aac", "-b:a", "64k",
	}
}

// Error carries the exit status and the tail of ffmpeg's stderr.
type Error struct {
	Input    string
	Output   string
	ExitCode int
	Stderr   []string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%v: %s -> %s: %v", ErrFailed, e.Input, e.Output, e.Err)
	if n := len(e.Stderr); n > 0 {
		msg += ": " + e.Stderr[n-1]
	}
	return msg
}

func (e *Error) Unwrap() []error { return []error{ErrFailed, e.Err} }

// Runner runs ffmpeg. The zero value is not usable; use NewRunner.
type Runner struct {
	bin     string
	profile Profile
	grace   time.Duration
	logger  zerolog.Logger
}

func NewRunner(bin string, profile Profile) *Runner {
	if bin == "" {
		bin = "ffmpeg"
	}
	if profile == "" {
		profile = ProfileDefault
	}
	return &Runner{
		bin:     bin,
		profile: profile,
		grace:   procgroup.DefaultGrace,
		logger:  xglog.WithComponent("transcode"),
	}
}

// Args returns the ffmpeg arguments used to write out from in.
func (r *Runner) Args(in, out string) []string {
	args := []string{"-y", "-nostdin", "-hide_banner", "-loglevel", "error", "-i", in}
	args = append(args, r.profile.args()...)
	return append(args, "-movflags", "+faststart", "-f", "mp4", out)
}

// Transcode converts in to an MP4 at out. ffmpeg writes to out+".part",
// which is renamed into place only on success; on failure neither file is
// left behind.
func (r *Runner) Transcode(ctx context.Context, in, out string) error {
	part := out + ".part"
	if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	_ = os.Remove(part)

	stderr := newRingBuffer(50)
	// #nosec G204 -- binary comes from operator config; paths are derived internally
	cmd := exec.CommandContext(ctx, r.bin, r.Args(in, part)...)
	cmd.Stderr = stderr
	procgroup.Bind(cmd, r.grace)

	start := time.Now()
	err := cmd.Run()
	if err == nil {
		err = os.Rename(part, out)
	}
	if err != nil {
		_ = os.Remove(part)
		_ = os.Remove(out)

		terr := &Error{Input: in, Output: out, ExitCode: -1, Stderr: stderr.Lines(), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			terr.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			terr.Err = ctxErr
		}
		return terr
	}

	r.logger.Debug().
		Str(xglog.FieldLocalPath, out).
		Dur("duration", time.Since(start)).
		Str("profile", string(r.profile)).
		Msg("transcode finished")
	return nil
}

// String is for logs.
func (r *Runner) String() string {
	return r.bin + " " + strings.Join(r.profile.args(), " ")
}
