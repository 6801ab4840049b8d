package bootstrap

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/camsync/internal/config"
	"github.com/ManuGH/camsync/internal/devstate"
)

func testConfig(t *testing.T, cameraURL string) config.AppConfig {
	t.Helper()
	host, portStr, err := net.SplitHostPort(cameraURL[len("http://"):])
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Device.Host = host
	cfg.Device.Port = port
	cfg.Device.Username = "admin"
	cfg.Device.Password = "secret"
	cfg.Device.Timeout = time.Second
	cfg.Sync.CacheDir = filepath.Join(dir, "cache")
	cfg.Sync.StagingPath = filepath.Join(dir, "in.avi")
	cfg.Store.HistoryPath = filepath.Join(dir, "history.db")
	return cfg
}

// cameraStub answers getDevState and rejects everything else, so catalog
// rebuilds fail at the identity query.
func cameraStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cmd") == "getDevState" {
			_, _ = fmt.Fprint(w, `<CGI_Result><result>0</result><IOAlarm>0</IOAlarm>`+
				`<motionDetectAlarm>2</motionDetectAlarm><soundAlarm>0</soundAlarm><record>0</record></CGI_Result>`)
			return
		}
		_, _ = fmt.Fprint(w, "<CGI_Result><result>-1</result></CGI_Result>")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBuildEngine_TickPublishesSnapshot(t *testing.T) {
	cam := cameraStub(t)
	cfg := testConfig(t, cam.URL)

	engine, err := BuildEngine(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, engine.Close()) }()

	require.NotNil(t, engine.History)

	snap, err := engine.Coordinator.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, devstate.StateMotion, snap.OperatingState)
	assert.True(t, snap.Motion)
	assert.False(t, snap.Sound)
	assert.False(t, snap.IO)
	assert.Equal(t, 0, snap.CapturedTotal)
	assert.False(t, engine.Coordinator.LastSuccess().IsZero())
}

func TestBuildEngine_WithoutHistory(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:9")
	cfg.Store.HistoryPath = ""

	engine, err := BuildEngine(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, engine.History)
	assert.Nil(t, engine.CachePing, "memory cache has nothing to ping")
	require.NoError(t, engine.Close())
	// Second close is a no-op.
	require.NoError(t, engine.Close())
}

func TestOpenCache_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := openCache(context.Background(), config.CacheConfig{
		Backend:   "redis",
		RedisAddr: mr.Addr(),
		TTL:       time.Hour,
	})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	c.Set(context.Background(), "duration:/cache/a.mp4", "42", time.Hour)
	assert.True(t, mr.Exists(redisKeyPrefix+"duration:/cache/a.mp4"))
}

func TestBuildEngine_RedisCachePing(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, "http://127.0.0.1:9")
	cfg.Store.HistoryPath = ""
	cfg.Cache.Backend = "redis"
	cfg.Cache.RedisAddr = mr.Addr()

	engine, err := BuildEngine(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = engine.Close() }()

	require.NotNil(t, engine.CachePing)
	require.NoError(t, engine.CachePing(context.Background()))

	mr.Close()
	assert.Error(t, engine.CachePing(context.Background()))
}

func TestOpenCache_RedisUnreachable(t *testing.T) {
	_, err := openCache(context.Background(), config.CacheConfig{
		Backend:   "redis",
		RedisAddr: "127.0.0.1:1",
	})
	require.Error(t, err)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("CAMSYNC_DEVICE_HOST", "192.168.1.20")
	t.Setenv("CAMSYNC_CACHE_DIR", t.TempDir())
	t.Setenv("CAMSYNC_MQTT_BROKER", "tcp://broker:1883")

	cfg, err := LoadConfig(Options{Version: "v1.2.3"})
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.20", cfg.Device.Host)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, "v1.2.3", cfg.Version)
}

func TestLoadConfig_MissingHost(t *testing.T) {
	t.Setenv("CAMSYNC_DEVICE_HOST", "")
	_, err := LoadConfig(Options{})
	require.Error(t, err)
}
