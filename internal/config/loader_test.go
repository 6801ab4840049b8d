// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoader_DefaultsAndFile(t *testing.T) {
	path := writeFile(t, "config.yaml", `
device:
  host: 192.168.1.20
  username: admin
  password: secret
sync:
  cacheDir: /tmp/camsync-cache
  catalogInterval: 2m
`)

	cfg, err := NewLoader(path, "", "v1").Load()
	require.NoError(t, err)

	assert.Equal(t, "v1", cfg.Version)
	assert.Equal(t, "192.168.1.20", cfg.Device.Host)
	assert.Equal(t, DefaultFTPPort, cfg.Device.FTPPort)
	assert.Equal(t, 2*time.Minute, cfg.Sync.CatalogInterval)
	assert.Equal(t, DefaultHysteresis, cfg.Sync.Hysteresis)
	assert.Equal(t, "/tmp/camsync-cache", cfg.Sync.CacheDir)
}

func TestLoader_ExampleConfig(t *testing.T) {
	cfg, err := NewLoader(filepath.Join("..", "..", "config.example.yaml"), "", "").Load()
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))

	want := Defaults()
	assert.Equal(t, want.Sync.PollInterval, cfg.Sync.PollInterval)
	assert.Equal(t, want.Store.Retention, cfg.Store.Retention)
	assert.Equal(t, "/var/lib/camsync/history.db", cfg.Store.HistoryPath)
	assert.Empty(t, cfg.MQTT.Broker)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.yaml", "device:\n  host: from-file\n")
	t.Setenv("CAMSYNC_DEVICE_HOST", "from-env")
	t.Setenv("CAMSYNC_POLL_INTERVAL", "7s")
	t.Setenv("CAMSYNC_VIDEO_EXT", ".avi, .mkv")

	cfg, err := NewLoader(path, "", "").Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Device.Host)
	assert.Equal(t, 7*time.Second, cfg.Sync.PollInterval)
	assert.Equal(t, []string{".avi", ".mkv"}, cfg.Sync.VideoExt)
}

func TestLoader_DotEnvFile(t *testing.T) {
	envPath := writeFile(t, ".env", "CAMSYNC_DEVICE_HOST=dotenv-host\n")
	t.Setenv("CAMSYNC_DEVICE_HOST", "")
	require.NoError(t, os.Unsetenv("CAMSYNC_DEVICE_HOST"))
	t.Cleanup(func() { _ = os.Unsetenv("CAMSYNC_DEVICE_HOST") })

	cfg, err := NewLoader("", envPath, "").Load()
	require.NoError(t, err)
	assert.Equal(t, "dotenv-host", cfg.Device.Host)
}

func TestLoader_MissingDotEnvIsIgnored(t *testing.T) {
	t.Setenv("CAMSYNC_DEVICE_HOST", "cam")
	_, err := NewLoader("", filepath.Join(t.TempDir(), "absent.env"), "").Load()
	require.NoError(t, err)
}

func TestLoader_UnknownFieldRejected(t *testing.T) {
	path := writeFile(t, "config.yaml", "device:\n  host: cam\n  bogus: 1\n")
	_, err := NewLoader(path, "", "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strict config parse error")
}

func TestLoader_InvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("CAMSYNC_DEVICE_HOST", "cam")
	t.Setenv("CAMSYNC_DEVICE_PORT", "not-a-number")

	cfg, err := NewLoader("", "", "").Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultDevicePort, cfg.Device.Port)
}

func TestValidate(t *testing.T) {
	valid := Defaults()
	valid.Device.Host = "cam"

	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*AppConfig) {}},
		{name: "missing host", mutate: func(c *AppConfig) { c.Device.Host = "" }, wantErr: "device.host"},
		{name: "bad profile", mutate: func(c *AppConfig) { c.FFmpeg.Profile = "ultra" }, wantErr: "ffmpeg.profile"},
		{name: "redis without addr", mutate: func(c *AppConfig) { c.Cache.Backend = "redis" }, wantErr: "cache.redisAddr"},
		{name: "bad timezone", mutate: func(c *AppConfig) { c.Device.Timezone = "Mars/Olympus" }, wantErr: "device.timezone"},
		{name: "zero hysteresis", mutate: func(c *AppConfig) { c.Sync.Hysteresis = 0 }, wantErr: "sync.hysteresis"},
		{
			name: "telemetry without endpoint",
			mutate: func(c *AppConfig) {
				c.Telemetry.Enabled = true
				c.Telemetry.Endpoint = ""
			},
			wantErr: "telemetry.endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMasked(t *testing.T) {
	cfg := Defaults()
	cfg.Device.Password = "hunter2"
	cfg.MQTT.Password = ""

	m := cfg.Masked()
	assert.Equal(t, "***", m.Device.Password)
	assert.Equal(t, "", m.MQTT.Password)
	assert.Equal(t, "hunter2", cfg.Device.Password)
}

func TestDeviceLocation(t *testing.T) {
	assert.Equal(t, time.Local, DeviceConfig{}.Location())
	assert.Equal(t, "UTC", DeviceConfig{Timezone: "UTC"}.Location().String())
}
