// SPDX-License-Identifier: MIT

package transcode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"

	"github.com/ManuGH/camsync/internal/procgroup"
)

// Prober measures media files with ffprobe.
type Prober struct {
	bin string
}

func NewProber(bin string) *Prober {
	if bin == "" {
		bin = "ffprobe"
	}
	return &Prober{bin: bin}
}

type probeFormat struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration returns the container duration rounded to whole seconds.
func (p *Prober) Duration(ctx context.Context, path string) (int, error) {
	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_entries", "format=duration",
		path,
	}

	// #nosec G204 -- binary comes from operator config; path is derived internally
	cmd := exec.CommandContext(ctx, p.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	procgroup.Bind(cmd, 0)

	out, err := cmd.Output()
	if err != nil {
		errStr := stderr.String()
		if len(errStr) > 4096 {
			errStr = errStr[:4096] + "..."
		}
		return 0, fmt.Errorf("ffprobe failed: %w (stderr: %s)", err, errStr)
	}

	var data probeFormat
	if err := json.Unmarshal(out, &data); err != nil {
		return 0, fmt.Errorf("json decode: %w", err)
	}
	d, err := strconv.ParseFloat(data.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration %q: %w", data.Format.Duration, err)
	}
	return int(math.Round(d)), nil
}
