// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recordings

import "time"

// Settle is the outcome of checking whether a remote file has stopped
// changing.
type Settle string

const (
	SettleReady   Settle = "ready"
	SettleTooNew  Settle = "too_new" // modified within the cutoff
	SettleEmpty   Settle = "empty"
	SettleGrowing Settle = "growing" // size differs from the catalog
)

// DefaultSettleCutoff is how recently a file may have been modified and
// still be considered in progress.
const DefaultSettleCutoff = 10 * time.Second

// RemoteInfo is what a fresh stat of the remote file reports.
type RemoteInfo struct {
	Size    int64
	ModTime time.Time
}

// ClassifyRemote decides whether a remote recording may be fetched.
// Checks run in order: modification time, zero size, size change.
func ClassifyRemote(info RemoteInfo, recordedSize int64, now time.Time, cutoff time.Duration) Settle {
	if info.ModTime.After(now.Add(-cutoff)) {
		return SettleTooNew
	}
	if info.Size == 0 {
		return SettleEmpty
	}
	if info.Size != recordedSize {
		return SettleGrowing
	}
	return SettleReady
}
