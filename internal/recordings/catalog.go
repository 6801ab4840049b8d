// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recordings

import (
	"context"
	"sort"
	"time"
)

// Catalog is an immutable, strictly descending list of recordings. A new
// Catalog replaces the old one wholesale; it is never edited in place.
type Catalog struct {
	deviceID    string
	entries     []*Entry
	lastCapture time.Time
	today       int
	builtAt     time.Time
}

// NewCatalog sorts entries newest first. Callers must not pass duplicate
// capture times.
func NewCatalog(deviceID string, entries []*Entry, today int, builtAt time.Time) *Catalog {
	sorted := append([]*Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CapturedAt.After(sorted[j].CapturedAt)
	})

	c := &Catalog{
		deviceID: deviceID,
		entries:  sorted,
		today:    today,
		builtAt:  builtAt,
	}
	if len(sorted) > 0 {
		c.lastCapture = sorted[0].CapturedAt
	}
	return c
}

// Empty is the catalog before the first successful build.
func Empty() *Catalog { return &Catalog{} }

func (c *Catalog) DeviceID() string       { return c.deviceID }
func (c *Catalog) Len() int               { return len(c.entries) }
func (c *Catalog) CapturedToday() int     { return c.today }
func (c *Catalog) BuiltAt() time.Time     { return c.builtAt }
func (c *Catalog) LastCapture() time.Time { return c.lastCapture }

// Entries returns a copy of the entry list. The entries themselves are
// shared.
func (c *Catalog) Entries() []*Entry {
	return append([]*Entry(nil), c.entries...)
}

// Head returns at most n newest entries; n <= 0 means all.
func (c *Catalog) Head(n int) []*Entry {
	if n <= 0 || n > len(c.entries) {
		n = len(c.entries)
	}
	return append([]*Entry(nil), c.entries[:n]...)
}

// At returns the entry at index, newest being 0.
func (c *Catalog) At(index int) (*Entry, bool) {
	if index < 0 || index >= len(c.entries) {
		return nil, false
	}
	return c.entries[index], true
}

// Views renders at most n newest entries.
func (c *Catalog) Views(ctx context.Context, n int) []EntryView {
	head := c.Head(n)
	out := make([]EntryView, len(head))
	for i, e := range head {
		out[i] = e.View(ctx, i)
	}
	return out
}

// Equal compares catalogs element-wise by capture time, paths and local
// cache state. Entry identity is ignored.
func (c *Catalog) Equal(other *Catalog) bool {
	if c == nil || other == nil {
		return c == other
	}
	if len(c.entries) != len(other.entries) {
		return false
	}
	for i, a := range c.entries {
		b := other.entries[i]
		if !a.CapturedAt.Equal(b.CapturedAt) ||
			a.RemoteRecordingPath != b.RemoteRecordingPath ||
			a.RemoteThumbnailPath != b.RemoteThumbnailPath ||
			a.LocalRecordingPath != b.LocalRecordingPath ||
			a.LocalThumbnailPath != b.LocalThumbnailPath ||
			a.Cached() != b.Cached() {
			return false
		}
	}
	return true
}
