package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/camsync/internal/cache"
	"github.com/ManuGH/camsync/internal/config"
	"github.com/ManuGH/camsync/internal/device"
	"github.com/ManuGH/camsync/internal/history"
	"github.com/ManuGH/camsync/internal/jobs"
	xglog "github.com/ManuGH/camsync/internal/log"
	"github.com/ManuGH/camsync/internal/poller"
	"github.com/ManuGH/camsync/internal/recordings"
	"github.com/ManuGH/camsync/internal/transcode"
)

const (
	memoryCacheJanitor = 10 * time.Minute
	redisKeyPrefix     = "camsync:"
)

// Engine is the polling core without any network listeners. The daemon
// and the one-shot snapshot command both build one.
type Engine struct {
	Config      config.AppConfig
	Device      *device.Client
	Coordinator *poller.Coordinator
	// History is nil when store.historyPath is empty.
	History *history.Store
	// CachePing is set for the redis duration cache only.
	CachePing func(ctx context.Context) error

	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// BuildEngine wires device access, catalog building, recording sync and
// the coordinator from cfg.
func BuildEngine(ctx context.Context, cfg config.AppConfig) (*Engine, error) {
	logger := xglog.WithComponent("bootstrap")
	e := &Engine{Config: cfg}

	e.Device = device.New(device.Config{
		Host:             cfg.Device.Host,
		Port:             cfg.Device.Port,
		Username:         cfg.Device.Username,
		Password:         cfg.Device.Password,
		Timeout:          cfg.Device.Timeout,
		FTPPort:          cfg.Device.FTPPort,
		Location:         cfg.Device.Location(),
		BreakerThreshold: cfg.Device.BreakerThreshold,
		BreakerReset:     cfg.Device.BreakerReset,
	})

	durationCache, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, namedCloser{"cache", durationCache.Close})
	if rc, ok := durationCache.(*cache.RedisCache); ok {
		e.CachePing = rc.HealthCheck
	}

	prober := transcode.NewProber(cfg.FFmpeg.FFprobeBin)
	runner := transcode.NewRunner(cfg.FFmpeg.Bin, transcode.Profile(cfg.FFmpeg.Profile))

	builder := recordings.NewBuilder(recordings.BuilderConfig{
		Root:     cfg.Device.FTPRoot,
		CacheDir: cfg.Sync.CacheDir,
		ImageExt: cfg.Sync.ImageExt,
		VideoExt: cfg.Sync.VideoExt,
		Location: cfg.Device.Location(),
	}, e.Device, e.Device, recordings.NewDurations(prober, durationCache, cfg.Cache.TTL))

	syncDeps := jobs.Deps{
		Transfer:   e.Device,
		Transcoder: runner,
	}
	if cfg.Store.HistoryPath != "" {
		store, err := history.Open(cfg.Store.HistoryPath)
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("open sync history: %w", err)
		}
		e.History = store
		syncDeps.History = store
		e.closers = append(e.closers, namedCloser{"history", store.Close})
	}
	syncer := jobs.NewSyncer(jobs.Config{
		StagingPath:  cfg.Sync.StagingPath,
		SettleCutoff: cfg.Sync.SettleCutoff,
	}, syncDeps)

	e.Coordinator = poller.New(poller.Config{
		PollInterval:    cfg.Sync.PollInterval,
		MinTickSpacing:  cfg.Sync.MinTickSpacing,
		CatalogInterval: cfg.Sync.CatalogInterval,
		Hysteresis:      cfg.Sync.Hysteresis,
	}, poller.Deps{
		Status:  e.Device,
		Builder: builder,
		Syncer:  syncer,
	})

	logger.Info().
		Str("device", cfg.Device.Host).
		Str("transcoder", runner.String()).
		Str("cache_backend", cfg.Cache.Backend).
		Bool("history", e.History != nil).
		Msg("engine wired")
	return e, nil
}

// Close releases the engine resources in reverse order.
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", e.closers[i].name, err))
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

func openCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Backend {
	case "redis":
		rc, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   redisKeyPrefix,
		}, xglog.WithComponent("cache"))
		if err != nil {
			return nil, fmt.Errorf("connect duration cache: %w", err)
		}
		return rc, nil
	default:
		return cache.NewMemory(memoryCacheJanitor), nil
	}
}
