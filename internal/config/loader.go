// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath string
	envFile    string
	version    string
}

// NewLoader creates a new configuration loader. envFile is an optional
// dotenv file whose values are exported before environment parsing; a
// missing file is not an error.
func NewLoader(configPath, envFile, version string) *Loader {
	return &Loader{
		configPath: configPath,
		envFile:    envFile,
		version:    version,
	}
}

// Load resolves the configuration: Defaults -> strict file parse -> env -> validate.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	cfg.Version = l.version

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	if l.envFile != "" {
		// Existing process env wins over the dotenv file.
		if err := godotenv.Load(l.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("load env file %s: %w", l.envFile, err)
		}
	}
	mergeEnv(&cfg)

	if abs, err := filepath.Abs(cfg.Sync.CacheDir); err == nil {
		cfg.Sync.CacheDir = abs
	}
	if abs, err := filepath.Abs(cfg.Sync.StagingPath); err == nil {
		cfg.Sync.StagingPath = abs
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

// mergeEnv overrides cfg with CAMSYNC_* environment variables.
func mergeEnv(cfg *AppConfig) {
	p := EnvPrefix
	cfg.LogLevel = ParseString(p+"LOG_LEVEL", cfg.LogLevel)

	d := &cfg.Device
	d.Host = ParseString(p+"DEVICE_HOST", d.Host)
	d.Port = ParseInt(p+"DEVICE_PORT", d.Port)
	d.Username = ParseString(p+"DEVICE_USERNAME", d.Username)
	d.Password = ParseString(p+"DEVICE_PASSWORD", d.Password)
	d.FTPPort = ParseInt(p+"DEVICE_FTP_PORT", d.FTPPort)
	d.FTPRoot = ParseString(p+"DEVICE_FTP_ROOT", d.FTPRoot)
	d.Timezone = ParseString(p+"DEVICE_TIMEZONE", d.Timezone)
	d.Timeout = ParseDuration(p+"DEVICE_TIMEOUT", d.Timeout)
	d.BreakerThreshold = ParseInt(p+"DEVICE_BREAKER_THRESHOLD", d.BreakerThreshold)
	d.BreakerReset = ParseDuration(p+"DEVICE_BREAKER_RESET", d.BreakerReset)

	s := &cfg.Sync
	s.CacheDir = ParseString(p+"CACHE_DIR", s.CacheDir)
	s.StagingPath = ParseString(p+"STAGING_PATH", s.StagingPath)
	s.PollInterval = ParseDuration(p+"POLL_INTERVAL", s.PollInterval)
	s.MinTickSpacing = ParseDuration(p+"MIN_TICK_SPACING", s.MinTickSpacing)
	s.CatalogInterval = ParseDuration(p+"CATALOG_INTERVAL", s.CatalogInterval)
	s.SettleCutoff = ParseDuration(p+"SETTLE_CUTOFF", s.SettleCutoff)
	s.Hysteresis = ParseDuration(p+"HYSTERESIS", s.Hysteresis)
	s.ImageExt = ParseList(p+"IMAGE_EXT", s.ImageExt)
	s.VideoExt = ParseList(p+"VIDEO_EXT", s.VideoExt)

	f := &cfg.FFmpeg
	f.Bin = ParseString(p+"FFMPEG_BIN", f.Bin)
	f.FFprobeBin = ParseString(p+"FFPROBE_BIN", f.FFprobeBin)
	f.Profile = ParseString(p+"FFMPEG_PROFILE", f.Profile)

	a := &cfg.API
	a.ListenAddr = ParseString(p+"LISTEN", a.ListenAddr)
	a.RateLimit = ParseInt(p+"API_RATE_LIMIT", a.RateLimit)
	cfg.Metrics.ListenAddr = ParseString(p+"METRICS_LISTEN", cfg.Metrics.ListenAddr)

	m := &cfg.MQTT
	m.Broker = ParseString(p+"MQTT_BROKER", m.Broker)
	m.ClientID = ParseString(p+"MQTT_CLIENT_ID", m.ClientID)
	m.Username = ParseString(p+"MQTT_USERNAME", m.Username)
	m.Password = ParseString(p+"MQTT_PASSWORD", m.Password)
	m.TopicPrefix = ParseString(p+"MQTT_TOPIC_PREFIX", m.TopicPrefix)
	m.QoS = ParseInt(p+"MQTT_QOS", m.QoS)
	m.Retain = ParseBool(p+"MQTT_RETAIN", m.Retain)

	cfg.Store.HistoryPath = ParseString(p+"HISTORY_PATH", cfg.Store.HistoryPath)
	cfg.Store.Retention = ParseDuration(p+"HISTORY_RETENTION", cfg.Store.Retention)

	c := &cfg.Cache
	c.Backend = ParseString(p+"CACHE_BACKEND", c.Backend)
	c.RedisAddr = ParseString(p+"REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = ParseString(p+"REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = ParseInt(p+"REDIS_DB", c.RedisDB)
	c.TTL = ParseDuration(p+"CACHE_TTL", c.TTL)

	t := &cfg.Telemetry
	t.Enabled = ParseBool(p+"TELEMETRY_ENABLED", t.Enabled)
	t.Exporter = ParseString(p+"TELEMETRY_EXPORTER", t.Exporter)
	t.Endpoint = ParseString(p+"TELEMETRY_ENDPOINT", t.Endpoint)
	t.SamplingRate = ParseFloat(p+"TELEMETRY_SAMPLING_RATE", t.SamplingRate)
}
