// SPDX-License-Identifier: MIT

package recordings

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/camsync/internal/cache"
	xglog "github.com/ManuGH/camsync/internal/log"
)

// DurationProber measures a local media file in whole seconds.
type DurationProber interface {
	Duration(ctx context.Context, path string) (int, error)
}

// Durations resolves recording lengths through a shared cache so that
// rebuilt catalogs do not re-probe files that were already measured.
type Durations struct {
	prober DurationProber
	cache  cache.Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewDurations returns a resolver. c may be nil.
func NewDurations(prober DurationProber, c cache.Cache, ttl time.Duration) *Durations {
	return &Durations{
		prober: prober,
		cache:  c,
		ttl:    ttl,
		logger: xglog.WithComponent("durations"),
	}
}

func cacheKey(localPath string) string { return "duration:" + localPath }

// Resolve returns a positive duration or ok=false.
func (d *Durations) Resolve(ctx context.Context, localPath string) (int, bool) {
	if d == nil {
		return 0, false
	}
	key := cacheKey(localPath)
	if d.cache != nil {
		if raw, ok := d.cache.Get(ctx, key); ok {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				return n, true
			}
		}
	}
	if d.prober == nil {
		return 0, false
	}

	n, err := d.prober.Duration(ctx, localPath)
	if err != nil {
		d.logger.Warn().Err(err).Str(xglog.FieldLocalPath, localPath).Msg("probe duration failed")
		return 0, false
	}
	if n <= 0 {
		return 0, false
	}
	if d.cache != nil {
		d.cache.Set(ctx, key, strconv.Itoa(n), d.ttl)
	}
	return n, true
}
