// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "history.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	captured := time.Date(2024, 3, 1, 11, 0, 0, 0, time.FixedZone("CET", 3600))

	require.NoError(t, s.Record(ctx, Event{
		At: base, CapturedAt: captured, RemotePath: "/r/1.avi", LocalPath: "/c/1.mp4",
		Outcome: "transcode_failed", Error: "exit status 1",
	}))
	require.NoError(t, s.Record(ctx, Event{
		At: base.Add(time.Minute), CapturedAt: captured, RemotePath: "/r/1.avi", LocalPath: "/c/1.mp4",
		Outcome: "synced", Bytes: 2048, Elapsed: 3 * time.Second,
	}))

	events, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "synced", events[0].Outcome)
	assert.Equal(t, int64(2048), events[0].Bytes)
	assert.Equal(t, 3*time.Second, events[0].Elapsed)
	assert.True(t, events[0].At.Equal(base.Add(time.Minute)))
	assert.True(t, events[0].CapturedAt.Equal(captured))
	assert.Equal(t, "exit status 1", events[1].Error)

	one, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestStore_RecentEmpty(t *testing.T) {
	events, err := openTestStore(t).Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestStore_RejectsUnknownOutcome(t *testing.T) {
	err := openTestStore(t).Record(context.Background(), Event{At: time.Now(), Outcome: "bogus"})
	assert.Error(t, err)
}

func TestStore_CountAndPrune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, outcome := range []string{"synced", "synced", "transfer_failed"} {
		require.NoError(t, s.Record(ctx, Event{At: base.Add(time.Duration(i) * time.Hour), Outcome: outcome}))
	}

	counts, err := s.CountByOutcome(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"synced": 2, "transfer_failed": 1}, counts)

	n, err := s.Prune(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	events, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "transfer_failed", events[0].Outcome)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.sqlite")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, Event{At: time.Now(), Outcome: "synced"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	events, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
