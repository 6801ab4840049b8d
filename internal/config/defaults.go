// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// Defaults mirror the cadence the camera firmware tolerates: one status
// query every few seconds and a directory walk about once a minute.
const (
	DefaultDevicePort       = 88
	DefaultFTPPort          = 50021
	DefaultFTPRoot          = "/IPCamera"
	DefaultDeviceTimeout    = 10 * time.Second
	DefaultPollInterval     = 5 * time.Second
	DefaultMinTickSpacing   = 2 * time.Second
	DefaultCatalogInterval  = 60 * time.Second
	DefaultSettleCutoff     = 10 * time.Second
	DefaultHysteresis       = 30 * time.Second
	DefaultBreakerThreshold = 5
	DefaultBreakerReset     = 30 * time.Second
	DefaultHistoryRetention = 30 * 24 * time.Hour
)

// Defaults returns a configuration populated with default values.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel: "info",
		Device: DeviceConfig{
			Port:             DefaultDevicePort,
			FTPPort:          DefaultFTPPort,
			FTPRoot:          DefaultFTPRoot,
			Timeout:          DefaultDeviceTimeout,
			BreakerThreshold: DefaultBreakerThreshold,
			BreakerReset:     DefaultBreakerReset,
		},
		Sync: SyncConfig{
			CacheDir:        "/var/lib/camsync/cache",
			StagingPath:     "/var/lib/camsync/in.avi",
			PollInterval:    DefaultPollInterval,
			MinTickSpacing:  DefaultMinTickSpacing,
			CatalogInterval: DefaultCatalogInterval,
			SettleCutoff:    DefaultSettleCutoff,
			Hysteresis:      DefaultHysteresis,
			ImageExt:        []string{".jpg"},
			VideoExt:        []string{".avi"},
		},
		FFmpeg: FFmpegConfig{
			Bin:        "ffmpeg",
			FFprobeBin: "ffprobe",
			Profile:    "default",
		},
		API: APIConfig{
			ListenAddr:      ":8088",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       600,
		},
		Metrics: MetricsConfig{ListenAddr: ":9488"},
		MQTT: MQTTConfig{
			ClientID:    "camsync",
			TopicPrefix: "camsync",
			QoS:         1,
			Retain:      true,
		},
		Store: StoreConfig{Retention: DefaultHistoryRetention},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     24 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}
