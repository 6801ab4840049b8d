// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const pruneInterval = time.Hour

// Poller is the long-running refresh loop.
type Poller interface {
	Run(ctx context.Context) error
}

// HistoryPruner drops sync history older than a cutoff.
type HistoryPruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// App owns the long-lived runtime (poll loop, history retention) and
// delegates server management to Manager.
type App struct {
	logger    zerolog.Logger
	manager   Manager
	poller    Poller
	history   HistoryPruner
	retention time.Duration
	now       func() time.Time
}

// NewApp creates a new App orchestrator. history may be nil; a zero
// retention keeps all history.
func NewApp(logger zerolog.Logger, manager Manager, poller Poller, history HistoryPruner, retention time.Duration) *App {
	return &App{
		logger:    logger,
		manager:   manager,
		poller:    poller,
		history:   history,
		retention: retention,
		now:       time.Now,
	}
}

// Run starts all owned subsystems and blocks until ctx is cancelled or a
// server fails.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}
	if a.poller == nil {
		return ErrMissingPoller
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.poller.Run(ctx)
	})

	if a.history != nil && a.retention > 0 {
		g.Go(func() error {
			a.pruneLoop(ctx)
			return nil
		})
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}

func (a *App) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		a.pruneOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *App) pruneOnce(ctx context.Context) {
	cutoff := a.now().Add(-a.retention)
	n, err := a.history.Prune(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.Warn().Err(err).Str("event", "history.prune.failed").Msg("history prune failed")
		}
		return
	}
	if n > 0 {
		a.logger.Info().
			Int64("removed", n).
			Time("before", cutoff).
			Str("event", "history.pruned").
			Msg("pruned sync history")
	}
}
