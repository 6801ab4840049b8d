// SPDX-License-Identifier: MIT

package poller

import (
	"context"
	"time"

	xglog "github.com/ManuGH/camsync/internal/log"
)

// Trigger asks the run loop for an extra tick. Requests made while one is
// already pending are coalesced; the return value reports whether this call
// queued a new one. A triggered tick waits out MinTickSpacing instead of
// being throttled.
func (c *Coordinator) Trigger() bool {
	select {
	case c.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run ticks immediately, then every PollInterval and on Trigger, until ctx
// is done. Tick failures are logged and never stop the loop.
func (c *Coordinator) Run(ctx context.Context) error {
	logger := xglog.WithComponentFromContext(ctx, "poller")
	logger.Info().
		Str(xglog.FieldEvent, "poll.loop.start").
		Dur("interval", c.cfg.PollInterval).
		Dur("catalog_interval", c.cfg.CatalogInterval).
		Msg("poll loop started")

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	c.runTick(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Str(xglog.FieldEvent, "poll.loop.stop").Msg("poll loop stopped")
			return nil
		case <-ticker.C:
			c.runTick(ctx)
		case <-c.trigger:
			if c.waitSpacing(ctx) {
				c.runTick(ctx)
			}
		}
	}
}

// waitSpacing blocks until the tick limiter has a token. It reports false
// when ctx ends first.
func (c *Coordinator) waitSpacing(ctx context.Context) bool {
	tokens := c.limiter.TokensAt(c.deps.Clock())
	if tokens >= 1 {
		return true
	}
	delay := time.Duration((1-tokens)*float64(c.cfg.MinTickSpacing)) + time.Millisecond
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Coordinator) runTick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	// Tick logs its own failures.
	_, _ = c.Tick(ctx)
}
