// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recordings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// UnknownDuration is reported until a cached file has been probed.
const UnknownDuration = 1

// MIME types of cached artifacts.
const (
	VideoMIME = "video/mp4"
	ImageMIME = "image/jpeg"
)

// PrettyLayout formats capture times for display.
const PrettyLayout = "2006-01-02T15:04:05"

// Entry is one recording on the device plus where its cached artifacts
// live. Everything except the observed remote size is fixed at build time.
type Entry struct {
	CapturedAt          time.Time
	RemoteRecordingPath string
	RemoteThumbnailPath string
	LocalRecordingPath  string
	LocalThumbnailPath  string

	remoteSize atomic.Int64
	duration   atomic.Int64
	probed     atomic.Bool
	durations  *Durations
}

// NewEntry derives local paths from capturedAt alone, so rebuilding the
// catalog maps a recording to the same cache files every time.
func NewEntry(capturedAt time.Time, remoteRecording, remoteThumbnail string, size int64, cacheDir string) *Entry {
	base := capturedAt.Format(LocalBaseLayout)
	e := &Entry{
		CapturedAt:          capturedAt,
		RemoteRecordingPath: remoteRecording,
		RemoteThumbnailPath: remoteThumbnail,
		LocalRecordingPath:  filepath.Join(cacheDir, base+".mp4"),
		LocalThumbnailPath:  filepath.Join(cacheDir, base+".jpg"),
	}
	e.remoteSize.Store(size)
	return e
}

// RemoteSize is the last size observed on the device.
func (e *Entry) RemoteSize() int64 { return e.remoteSize.Load() }

// ObserveRemoteSize records a fresher remote size.
func (e *Entry) ObserveRemoteSize(n int64) { e.remoteSize.Store(n) }

// HasThumbnail reports whether a snapshot was matched on the device.
func (e *Entry) HasThumbnail() bool { return e.RemoteThumbnailPath != "" }

// Cached checks the local recording on every call.
func (e *Entry) Cached() bool {
	return fileExists(e.LocalRecordingPath)
}

// ThumbnailCached checks the local thumbnail on every call.
func (e *Entry) ThumbnailCached() bool {
	return fileExists(e.LocalThumbnailPath)
}

// Duration returns the cached recording's length in seconds, probing it at
// most once per entry. It returns UnknownDuration until the file exists or
// when probing fails.
func (e *Entry) Duration(ctx context.Context) int {
	if d := e.duration.Load(); d > 0 {
		return int(d)
	}
	if e.durations == nil || !e.Cached() {
		return UnknownDuration
	}
	if !e.probed.CompareAndSwap(false, true) {
		return UnknownDuration
	}
	d, ok := e.durations.Resolve(ctx, e.LocalRecordingPath)
	if !ok {
		return UnknownDuration
	}
	e.duration.Store(int64(d))
	return d
}

// EntryView is the JSON shape handed to media library clients.
type EntryView struct {
	Index           int       `json:"index"`
	CreatedAt       time.Time `json:"created_at"`
	CreatedAtPretty string    `json:"created_at_pretty"`
	Duration        int       `json:"duration"`
	URL             string    `json:"url"`
	URLType         string    `json:"url_type"`
	Thumbnail       string    `json:"thumbnail,omitempty"`
	ThumbnailType   string    `json:"thumbnail_type,omitempty"`
	Cached          bool      `json:"cached"`
}

// View renders the entry at position index of its catalog.
func (e *Entry) View(ctx context.Context, index int) EntryView {
	v := EntryView{
		Index:           index,
		CreatedAt:       e.CapturedAt,
		CreatedAtPretty: e.CapturedAt.Format(PrettyLayout),
		Duration:        e.Duration(ctx),
		URL:             fmt.Sprintf("/api/v1/recordings/%d/video", index),
		URLType:         VideoMIME,
		Cached:          e.Cached(),
	}
	if e.HasThumbnail() {
		v.Thumbnail = fmt.Sprintf("/api/v1/recordings/%d/thumbnail", index)
		v.ThumbnailType = ImageMIME
	}
	return v
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
