// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// AppConfig is the fully resolved runtime configuration.
// The same struct is used to decode the YAML file; defaults and
// environment overrides are applied around it by the Loader.
type AppConfig struct {
	Version  string `yaml:"-"`
	LogLevel string `yaml:"logLevel"`

	Device    DeviceConfig    `yaml:"device"`
	Sync      SyncConfig      `yaml:"sync"`
	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
	API       APIConfig       `yaml:"api"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Store     StoreConfig     `yaml:"store"`
	Cache     CacheConfig     `yaml:"cache"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// DeviceConfig describes how to reach the camera's CGI and FTP services.
type DeviceConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	FTPPort  int           `yaml:"ftpPort"`
	FTPRoot  string        `yaml:"ftpRoot"`
	Timezone string        `yaml:"timezone"` // IANA name; empty = host local time
	Timeout  time.Duration `yaml:"timeout"`

	// Circuit breaker around status/identity queries
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
}

// SyncConfig holds the polling cadence and local cache layout.
type SyncConfig struct {
	CacheDir        string        `yaml:"cacheDir"`
	StagingPath     string        `yaml:"stagingPath"`
	PollInterval    time.Duration `yaml:"pollInterval"`
	MinTickSpacing  time.Duration `yaml:"minTickSpacing"`
	CatalogInterval time.Duration `yaml:"catalogInterval"`
	SettleCutoff    time.Duration `yaml:"settleCutoff"`
	Hysteresis      time.Duration `yaml:"hysteresis"`
	ImageExt        []string      `yaml:"imageExt"`
	VideoExt        []string      `yaml:"videoExt"`
}

// FFmpegConfig selects the transcoder binaries and profile.
type FFmpegConfig struct {
	Bin        string `yaml:"bin"`
	FFprobeBin string `yaml:"ffprobeBin"`
	Profile    string `yaml:"profile"` // copy|default
}

// APIConfig configures the HTTP API server.
type APIConfig struct {
	ListenAddr      string        `yaml:"listenAddr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RateLimit       int           `yaml:"rateLimit"` // requests per minute per IP, 0 disables
}

// MetricsConfig configures the Prometheus listener. Empty address disables it.
type MetricsConfig struct {
	ListenAddr string `yaml:"listenAddr"`
}

// MQTTConfig configures snapshot publishing. Empty broker disables it.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"clientID"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topicPrefix"`
	QoS         int    `yaml:"qos"`
	Retain      bool   `yaml:"retain"`
}

// StoreConfig configures the sync history database. Empty path disables it.
type StoreConfig struct {
	HistoryPath string        `yaml:"historyPath"`
	Retention   time.Duration `yaml:"retention"` // 0 keeps everything
}

// CacheConfig selects the backend for probed recording durations.
type CacheConfig struct {
	Backend       string        `yaml:"backend"` // memory|redis
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDB"`
	TTL           time.Duration `yaml:"ttl"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // grpc|http
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// Location resolves the device timezone. Unknown names fall back to local time.
func (d DeviceConfig) Location() *time.Location {
	if d.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
