// SPDX-License-Identifier: MIT

// Package jobs mirrors settled device recordings into the local cache.
package jobs

import (
	"context"
	"time"

	"github.com/ManuGH/camsync/internal/device"
	"github.com/ManuGH/camsync/internal/history"
	"github.com/ManuGH/camsync/internal/recordings"
)

// Transcoder converts a staged device file into the cached MP4.
type Transcoder interface {
	Transcode(ctx context.Context, in, out string) error
}

// HistoryRecorder persists sync attempts.
type HistoryRecorder interface {
	Record(ctx context.Context, ev history.Event) error
}

// Outcome of one SyncOne call.
type Outcome string

const (
	OutcomeNone            Outcome = "none"
	OutcomeSynced          Outcome = "synced"
	OutcomeTransferFailed  Outcome = "transfer_failed"
	OutcomeTranscodeFailed Outcome = "transcode_failed"
	OutcomeSessionFailed   Outcome = "session_failed"
)

// Result describes what SyncOne did. Entry is nil for OutcomeNone.
type Result struct {
	Outcome Outcome
	Entry   *recordings.Entry
	Bytes   int64
	Elapsed time.Duration
	Err     error
	// Skipped counts entries passed over by the stability gate.
	Skipped int
}

// Config controls the syncer.
type Config struct {
	StagingPath  string
	SettleCutoff time.Duration
}

// Deps holds the syncer's collaborators. History may be nil.
type Deps struct {
	Transfer   device.TransferOpener
	Transcoder Transcoder
	History    HistoryRecorder
	Clock      func() time.Time
}
