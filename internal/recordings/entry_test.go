// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recordings

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/camsync/internal/cache"
)

func TestNewEntry_LocalPathsFromCaptureTime(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 15, 30, 0, time.UTC)
	a := NewEntry(at, "/IPCamera/x/record/a/b/MDalarm_20240301_101530.avi", "", 5, "/cache")
	b := NewEntry(at, "/IPCamera/y/record/c/d/schedule_20240301-101530.avi", "/snap.jpg", 9, "/cache")

	assert.Equal(t, filepath.Join("/cache", "20240301_101530.mp4"), a.LocalRecordingPath)
	assert.Equal(t, filepath.Join("/cache", "20240301_101530.jpg"), a.LocalThumbnailPath)
	assert.Equal(t, a.LocalRecordingPath, b.LocalRecordingPath)
	assert.False(t, a.HasThumbnail())
	assert.True(t, b.HasThumbnail())
}

func TestEntry_ObserveRemoteSizeConcurrent(t *testing.T) {
	e := NewEntry(time.Now(), "/r.avi", "", 100, t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.ObserveRemoteSize(150)
			_ = e.RemoteSize()
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(150), e.RemoteSize())
}

func TestEntry_DurationSentinelUntilCached(t *testing.T) {
	prober := &fakeProber{dur: 42}
	e := NewEntry(time.Now(), "/r.avi", "", 1, t.TempDir())
	e.durations = NewDurations(prober, nil, 0)
	ctx := context.Background()

	assert.Equal(t, UnknownDuration, e.Duration(ctx))
	assert.Equal(t, 0, prober.Calls())

	require.NoError(t, os.WriteFile(e.LocalRecordingPath, []byte("mp4"), 0o600))
	assert.Equal(t, 42, e.Duration(ctx))
	assert.Equal(t, 42, e.Duration(ctx))
	assert.Equal(t, 1, prober.Calls())
}

func TestEntry_DurationProbeFailureProbesOnce(t *testing.T) {
	prober := &fakeProber{err: errors.New("ffprobe: invalid data")}
	e := NewEntry(time.Now(), "/r.avi", "", 1, t.TempDir())
	e.durations = NewDurations(prober, nil, 0)
	require.NoError(t, os.WriteFile(e.LocalRecordingPath, []byte("x"), 0o600))

	ctx := context.Background()
	assert.Equal(t, UnknownDuration, e.Duration(ctx))
	assert.Equal(t, UnknownDuration, e.Duration(ctx))
	assert.Equal(t, 1, prober.Calls())
}

func TestDurations_SharedCacheSurvivesRebuild(t *testing.T) {
	prober := &fakeProber{dur: 7}
	c := cache.NewMemory(0)
	durations := NewDurations(prober, c, time.Hour)
	dir := t.TempDir()
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	first := NewEntry(at, "/r.avi", "", 1, dir)
	first.durations = durations
	require.NoError(t, os.WriteFile(first.LocalRecordingPath, []byte("x"), 0o600))
	assert.Equal(t, 7, first.Duration(ctx))

	rebuilt := NewEntry(at, "/r.avi", "", 1, dir)
	rebuilt.durations = durations
	assert.Equal(t, 7, rebuilt.Duration(ctx))
	assert.Equal(t, 1, prober.Calls())
}

func TestEntry_View(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 15, 30, 0, time.UTC)
	e := NewEntry(at, "/r.avi", "/s.jpg", 1, t.TempDir())

	v := e.View(context.Background(), 3)
	assert.Equal(t, EntryView{
		Index:           3,
		CreatedAt:       at,
		CreatedAtPretty: "2024-03-01T10:15:30",
		Duration:        UnknownDuration,
		URL:             "/api/v1/recordings/3/video",
		URLType:         "video/mp4",
		Thumbnail:       "/api/v1/recordings/3/thumbnail",
		ThumbnailType:   "image/jpeg",
	}, v)

	raw, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"index": 3,
		"created_at": "2024-03-01T10:15:30Z",
		"created_at_pretty": "2024-03-01T10:15:30",
		"duration": 1,
		"url": "/api/v1/recordings/3/video",
		"url_type": "video/mp4",
		"thumbnail": "/api/v1/recordings/3/thumbnail",
		"thumbnail_type": "image/jpeg",
		"cached": false
	}`, string(raw))
}
