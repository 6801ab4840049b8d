// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/camsync/internal/resilience"
)

// DirWritableChecker verifies that a directory accepts new files.
type DirWritableChecker struct {
	name string
	path string
}

func NewDirWritableChecker(name, path string) *DirWritableChecker {
	return &DirWritableChecker{name: name, path: path}
}

func (c *DirWritableChecker) Name() string { return c.name }

func (c *DirWritableChecker) Check(context.Context) CheckResult {
	if err := probeWritable(c.path); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: c.path}
	}
	return CheckResult{Status: StatusHealthy, Message: "writable"}
}

func probeWritable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", dir)
	}
	f, err := os.CreateTemp(dir, ".write_test-*")
	if err != nil {
		return fmt.Errorf("directory is not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name))
}

// PollChecker fails when the last successful device poll is older than
// maxAge, or when there has not been one yet.
type PollChecker struct {
	lastSuccess func() time.Time
	maxAge      time.Duration
	now         func() time.Time
}

func NewPollChecker(lastSuccess func() time.Time, maxAge time.Duration) *PollChecker {
	return &PollChecker{lastSuccess: lastSuccess, maxAge: maxAge, now: time.Now}
}

func (c *PollChecker) Name() string { return "device_poll" }

func (c *PollChecker) Check(context.Context) CheckResult {
	last := c.lastSuccess()
	if last.IsZero() {
		return CheckResult{Status: StatusUnhealthy, Message: "no successful poll yet"}
	}
	age := c.now().Sub(last)
	if age > c.maxAge {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("last successful poll %s ago", age.Truncate(time.Second)),
		}
	}
	return CheckResult{Status: StatusHealthy, Message: "last poll " + last.UTC().Format(time.RFC3339)}
}

// BreakerChecker reports an open circuit breaker as unhealthy and a
// half-open one as degraded.
type BreakerChecker struct {
	name  string
	state func() resilience.State
}

func NewBreakerChecker(name string, state func() resilience.State) *BreakerChecker {
	return &BreakerChecker{name: name, state: state}
}

func (c *BreakerChecker) Name() string { return c.name }

func (c *BreakerChecker) Check(context.Context) CheckResult {
	switch st := c.state(); st {
	case resilience.StateOpen:
		return CheckResult{Status: StatusUnhealthy, Message: "circuit open"}
	case resilience.StateHalfOpen:
		return CheckResult{Status: StatusDegraded, Message: "circuit half-open"}
	default:
		return CheckResult{Status: StatusHealthy, Message: string(st)}
	}
}

// PingChecker reports an unreachable optional backend as degraded.
type PingChecker struct {
	name string
	ping func(ctx context.Context) error
}

func NewPingChecker(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if err := c.ping(ctx); err != nil {
		return CheckResult{Status: StatusDegraded, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "reachable"}
}
