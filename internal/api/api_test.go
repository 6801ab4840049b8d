// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/camsync/internal/device"
	"github.com/ManuGH/camsync/internal/devstate"
	"github.com/ManuGH/camsync/internal/history"
	"github.com/ManuGH/camsync/internal/poller"
	"github.com/ManuGH/camsync/internal/recordings"
)

type fakeSnapshots struct {
	mu       sync.Mutex
	snap     *poller.Snapshot
	triggers int
	busy     bool
}

func (f *fakeSnapshots) Latest() *poller.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSnapshots) Trigger() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers++
	return f.triggers == 1
}

func (f *fakeSnapshots) Busy() bool { return f.busy }

type fakeHistory struct {
	events []history.Event
	limit  int
	err    error
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]history.Event, error) {
	f.limit = limit
	return f.events, f.err
}

func (f *fakeHistory) CountByOutcome(context.Context) (map[string]int, error) {
	counts := map[string]int{}
	for _, ev := range f.events {
		counts[ev.Outcome]++
	}
	return counts, f.err
}

type fakeDevice struct {
	enabled []bool
	err     error
	image   []byte
}

func (f *fakeDevice) SetMotionDetection(_ context.Context, enabled bool) error {
	f.enabled = append(f.enabled, enabled)
	return f.err
}

func (f *fakeDevice) SnapPicture(context.Context) ([]byte, error) {
	return f.image, f.err
}

type fixture struct {
	snaps   *fakeSnapshots
	hist    *fakeHistory
	dev     *fakeDevice
	server  *Server
	handler http.Handler
	entries []*recordings.Entry
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	dir := t.TempDir()
	var entries []*recordings.Entry
	for _, m := range []int{30, 20} {
		at := time.Date(2024, 3, 1, 10, m, 0, 0, time.UTC)
		entries = append(entries, recordings.NewEntry(at, fmt.Sprintf("/rec/%d.avi", m), fmt.Sprintf("/snap/%d.jpg", m), 10, dir))
	}
	require.NoError(t, os.WriteFile(entries[0].LocalRecordingPath, []byte("mp4-bytes"), 0o600))
	require.NoError(t, os.WriteFile(entries[0].LocalThumbnailPath, []byte("jpg-bytes"), 0o600))

	cat := recordings.NewCatalog("00626E000001", entries, 2, time.Now())
	st := devstate.ParseStatus(map[string]string{"motionDetectAlarm": "2", "soundAlarm": "1", "IOAlarm": "0", "record": "1"})
	f := &fixture{
		snaps:   &fakeSnapshots{snap: poller.NewSnapshot(context.Background(), devstate.StateRecording, st, cat, time.Now())},
		hist:    &fakeHistory{events: []history.Event{{ID: 1, Outcome: "synced"}}},
		dev:     &fakeDevice{image: []byte{0xff, 0xd8, 0xff}},
		entries: entries,
	}
	f.server = New(cfg, Deps{Snapshots: f.snaps, History: f.hist, Device: f.dev})
	f.handler = f.server.Handler()
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.do(http.MethodGet, "/api/v1/snapshot", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	body := decode(t, rec)
	assert.Equal(t, "recording", body["operating_state"])
	assert.Equal(t, true, body["motion"])
	assert.Equal(t, true, body["sound_status"])
	assert.Equal(t, false, body["sound"])
	assert.Equal(t, false, body["io_status"])
	assert.Equal(t, "2024-03-01T10:30:00", body["last"])
	assert.Equal(t, float64(2), body["captured_total"])
	assert.Equal(t, "00626E000001", body["device_id"])
}

func TestRecordings(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.do(http.MethodGet, "/api/v1/recordings?at_most=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var lib libraryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lib))
	require.Len(t, lib.Videos, 1)
	assert.Equal(t, "/api/v1/recordings/0/video", lib.Videos[0].URL)
	assert.Equal(t, "video/mp4", lib.Videos[0].URLType)
	assert.Equal(t, "/api/v1/recordings/0/thumbnail", lib.Videos[0].Thumbnail)
	assert.True(t, lib.Videos[0].Cached)

	rec = f.do(http.MethodGet, "/api/v1/recordings", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lib))
	assert.Len(t, lib.Videos, 2)

	for _, q := range []string{"0", "-1", "abc"} {
		rec = f.do(http.MethodGet, "/api/v1/recordings?at_most="+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestRecordingFiles(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.do(http.MethodGet, "/api/v1/recordings/0/video", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "mp4-bytes", rec.Body.String())

	rec = f.do(http.MethodGet, "/api/v1/recordings/0/thumbnail", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "jpg-bytes", rec.Body.String())

	tests := []struct {
		target string
		code   int
	}{
		{"/api/v1/recordings/1/video", http.StatusNotFound},
		{"/api/v1/recordings/1/thumbnail", http.StatusNotFound},
		{"/api/v1/recordings/7/video", http.StatusNotFound},
		{"/api/v1/recordings/x/video", http.StatusBadRequest},
		{"/api/v1/recordings/-1/video", http.StatusBadRequest},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, f.do(http.MethodGet, tt.target, "").Code, tt.target)
	}
}

func TestHistory(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.do(http.MethodGet, "/api/v1/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, history.DefaultLimit, f.hist.limit)
	body := decode(t, rec)
	assert.Len(t, body["events"], 1)
	assert.Equal(t, map[string]any{"synced": float64(1)}, body["totals"])

	f.do(http.MethodGet, "/api/v1/history?limit=10000", "")
	assert.Equal(t, maxHistoryLimit, f.hist.limit)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/history?limit=x", "").Code)

	f.hist.err = errors.New("disk I/O error")
	rec = f.do(http.MethodGet, "/api/v1/history", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "internal_error", body["error"])
	assert.Equal(t, rec.Header().Get("X-Request-ID"), body["request_id"])
	assert.NotEmpty(t, body["request_id"])
}

func TestHistory_Disabled(t *testing.T) {
	snaps := &fakeSnapshots{snap: poller.NewSnapshot(context.Background(), devstate.StateIdle, devstate.Status{}, nil, time.Now())}
	h := New(Config{}, Deps{Snapshots: snaps}).Handler()

	for _, target := range []string{"/api/v1/history", "/api/v1/live.jpg"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
	}
}

func TestRefresh(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.do(http.MethodPost, "/api/v1/refresh", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, true, decode(t, rec)["queued"])

	rec = f.do(http.MethodPost, "/api/v1/refresh", "")
	assert.Equal(t, false, decode(t, rec)["queued"])
	assert.Equal(t, 2, f.snaps.triggers)
}

func TestMotion(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.do(http.MethodPost, "/api/v1/motion", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []bool{false}, f.dev.enabled)
	body := decode(t, rec)
	assert.Equal(t, false, body["enabled"])
	assert.Equal(t, true, body["refresh_queued"])

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/motion", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/motion", `{"enabled":true,"x":1}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/motion", `nope`).Code)
	assert.Len(t, f.dev.enabled, 1)
}

func TestMotion_DeviceErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"unavailable", &device.Error{Sentinel: device.ErrUnavailable, Cmd: "getMotionDetectConfig"}, http.StatusServiceUnavailable},
		{"auth", &device.Error{Sentinel: device.ErrAuth, Cmd: "setMotionDetectConfig", Code: -2}, http.StatusBadGateway},
		{"result", &device.Error{Sentinel: device.ErrDeviceResult, Cmd: "setMotionDetectConfig", Code: -1}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			f.dev.err = tt.err
			rec := f.do(http.MethodPost, "/api/v1/motion", `{"enabled":true}`)
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, 0, f.snaps.triggers)
		})
	}
}

func TestLiveImage(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.do(http.MethodGet, "/api/v1/live.jpg", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, rec.Body.Bytes())
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, Config{RateLimit: 2})
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/snapshot", "").Code)
	}
	rec := f.do(http.MethodGet, "/api/v1/snapshot", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Probes are outside the limited group.
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/healthz", "").Code)
}
