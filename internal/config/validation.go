// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks cross-field invariants and returns all problems at once.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(cfg.Device.Host) == "" {
		add("device.host is required")
	}
	if cfg.Device.Port <= 0 || cfg.Device.Port > 65535 {
		add("device.port %d out of range", cfg.Device.Port)
	}
	if cfg.Device.FTPPort <= 0 || cfg.Device.FTPPort > 65535 {
		add("device.ftpPort %d out of range", cfg.Device.FTPPort)
	}
	if cfg.Device.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Device.Timezone); err != nil {
			add("device.timezone %q: %v", cfg.Device.Timezone, err)
		}
	}

	if cfg.Sync.CacheDir == "" {
		add("sync.cacheDir is required")
	}
	if cfg.Sync.StagingPath == "" {
		add("sync.stagingPath is required")
	} else if cfg.Sync.CacheDir != "" && filepath.Dir(cfg.Sync.StagingPath) == filepath.Clean(cfg.Sync.CacheDir) &&
		strings.EqualFold(filepath.Ext(cfg.Sync.StagingPath), ".mp4") {
		add("sync.stagingPath must not collide with cached recordings")
	}
	positive := map[string]time.Duration{
		"sync.pollInterval":    cfg.Sync.PollInterval,
		"sync.catalogInterval": cfg.Sync.CatalogInterval,
		"sync.settleCutoff":    cfg.Sync.SettleCutoff,
		"sync.hysteresis":      cfg.Sync.Hysteresis,
	}
	for name, d := range positive {
		if d <= 0 {
			add("%s must be positive", name)
		}
	}
	if cfg.Sync.MinTickSpacing < 0 {
		add("sync.minTickSpacing must not be negative")
	}
	if cfg.Store.Retention < 0 {
		add("store.retention must not be negative")
	}
	if len(cfg.Sync.VideoExt) == 0 {
		add("sync.videoExt must list at least one extension")
	}

	switch cfg.FFmpeg.Profile {
	case "copy", "default":
	default:
		add("ffmpeg.profile %q unsupported (copy|default)", cfg.FFmpeg.Profile)
	}

	if cfg.MQTT.Broker != "" && (cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2) {
		add("mqtt.qos %d out of range", cfg.MQTT.QoS)
	}

	switch cfg.Cache.Backend {
	case "memory":
	case "redis":
		if cfg.Cache.RedisAddr == "" {
			add("cache.redisAddr is required for the redis backend")
		}
	default:
		add("cache.backend %q unsupported (memory|redis)", cfg.Cache.Backend)
	}

	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.Exporter != "grpc" && cfg.Telemetry.Exporter != "http" {
			add("telemetry.exporter %q unsupported (grpc|http)", cfg.Telemetry.Exporter)
		}
		if cfg.Telemetry.Endpoint == "" {
			add("telemetry.endpoint is required when telemetry is enabled")
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
