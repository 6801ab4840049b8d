package bootstrap

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/camsync/internal/api"
	"github.com/ManuGH/camsync/internal/config"
	"github.com/ManuGH/camsync/internal/daemon"
	"github.com/ManuGH/camsync/internal/health"
	xglog "github.com/ManuGH/camsync/internal/log"
	"github.com/ManuGH/camsync/internal/mqtt"
	"github.com/ManuGH/camsync/internal/telemetry"
)

const readyPollFactor = 3

// Options are the command-line inputs to wiring.
type Options struct {
	ConfigPath string
	EnvFile    string
	Version    string
}

// Container is the production composition root output.
type Container struct {
	Config    config.AppConfig
	Logger    zerolog.Logger
	Engine    *Engine
	Server    *api.Server
	Health    *health.Manager
	Manager   daemon.Manager
	App       *daemon.App
	Telemetry *telemetry.Provider
	MQTT      *mqtt.Publisher

	hooksOnce sync.Once
}

// LoadConfig resolves the configuration and reconfigures logging from it.
func LoadConfig(opts Options) (config.AppConfig, error) {
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "camsync",
		Version: opts.Version,
	})

	cfg, err := config.NewLoader(opts.ConfigPath, opts.EnvFile, opts.Version).Load()
	if err != nil {
		return cfg, fmt.Errorf("failed to load configuration: %w", err)
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: "camsync",
		Version: cfg.Version,
	})
	return cfg, nil
}

// WireServices builds the production dependency graph and returns a runnable container.
func WireServices(ctx context.Context, opts Options) (*Container, error) {
	if ctx == nil {
		return nil, fmt.Errorf("wire services context is nil")
	}

	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := xglog.WithComponent("bootstrap")

	source := "env+defaults"
	if opts.ConfigPath != "" {
		source = "file"
	}
	logger.Info().
		Str("event", "config.loaded").
		Str("source", source).
		Str("path", opts.ConfigPath).
		Msg("loaded configuration")

	if configBytes, marshalErr := json.Marshal(cfg.Masked()); marshalErr == nil {
		hash := sha256.Sum256(configBytes)
		logger.Info().
			Str("event", "config.snapshot").
			Str("sha256", fmt.Sprintf("%x", hash)).
			Msg("configuration snapshot fingerprint")
	}

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return nil, fmt.Errorf("startup checks failed: %w", err)
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "camsync",
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}

	engine, err := BuildEngine(ctx, cfg)
	if err != nil {
		_ = tp.Shutdown(context.Background())
		return nil, err
	}
	coord := engine.Coordinator

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewDirWritableChecker("cache_dir", cfg.Sync.CacheDir))
	hm.RegisterChecker(health.NewPollChecker(coord.LastSuccess, readyPollFactor*coord.PollInterval()))
	hm.RegisterChecker(health.NewBreakerChecker("device_breaker", engine.Device.BreakerState))
	if engine.CachePing != nil {
		hm.RegisterChecker(health.NewPingChecker("duration_cache", engine.CachePing))
	}

	apiDeps := api.Deps{
		Snapshots: coord,
		Device:    engine.Device,
		Health:    hm,
	}
	if engine.History != nil {
		apiDeps.History = engine.History
	}
	srv := api.New(api.Config{
		RateLimit: cfg.API.RateLimit,
		Tracing:   cfg.Telemetry.Enabled,
	}, apiDeps)
	coord.Subscribe(srv.Hub().Broadcast)

	var publisher *mqtt.Publisher
	if cfg.MQTT.Broker != "" {
		publisher, err = mqtt.Connect(ctx, mqtt.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         byte(cfg.MQTT.QoS),
			Retain:      cfg.MQTT.Retain,
		})
		if err != nil {
			_ = engine.Close()
			_ = tp.Shutdown(context.Background())
			return nil, fmt.Errorf("initialize mqtt: %w", err)
		}
		coord.Subscribe(publisher.Publish)
	} else {
		logger.Info().Msg("MQTT broker not configured, state publishing disabled")
	}

	mgr, err := daemon.NewManager(cfg.API, daemon.Deps{
		Logger:         logger,
		APIHandler:     srv.Handler(),
		MetricsHandler: promhttp.Handler(),
		MetricsAddr:    cfg.Metrics.ListenAddr,
	})
	if err != nil {
		if publisher != nil {
			publisher.Close()
		}
		_ = engine.Close()
		_ = tp.Shutdown(context.Background())
		return nil, fmt.Errorf("create daemon manager: %w", err)
	}

	var pruner daemon.HistoryPruner
	if engine.History != nil {
		pruner = engine.History
	}
	app := daemon.NewApp(logger, mgr, coord, pruner, cfg.Store.Retention)

	logger.Info().
		Str("event", "startup").
		Str("version", cfg.Version).
		Str("addr", cfg.API.ListenAddr).
		Str("metrics_addr", cfg.Metrics.ListenAddr).
		Bool("mqtt", publisher != nil).
		Bool("telemetry", cfg.Telemetry.Enabled).
		Msg("starting camsync")

	return &Container{
		Config:    cfg,
		Logger:    logger,
		Engine:    engine,
		Server:    srv,
		Health:    hm,
		Manager:   mgr,
		App:       app,
		Telemetry: tp,
		MQTT:      publisher,
	}, nil
}

// Run registers the shutdown hooks, blocks in the daemon app loop and
// releases the engine once it returns.
func (c *Container) Run(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("run context is nil")
	}
	if c == nil || c.App == nil || c.Manager == nil || c.Engine == nil {
		return fmt.Errorf("container is not fully initialized")
	}

	c.hooksOnce.Do(func() {
		// LIFO: the hub and MQTT go first, telemetry flushes last.
		c.Manager.RegisterShutdownHook("telemetry", func(ctx context.Context) error {
			return c.Telemetry.Shutdown(ctx)
		})
		if c.MQTT != nil {
			c.Manager.RegisterShutdownHook("mqtt", func(context.Context) error {
				c.MQTT.Close()
				return nil
			})
		}
		c.Manager.RegisterShutdownHook("websocket_hub", func(context.Context) error {
			c.Server.Hub().Close()
			return nil
		})
	})

	err := c.App.Run(ctx)
	// The poll loop has returned, so no tick is using the history store.
	if closeErr := c.Engine.Close(); closeErr != nil {
		c.Logger.Error().Err(closeErr).Msg("engine close failed")
	}
	return err
}
