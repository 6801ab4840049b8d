// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/camsync/internal/device"
	"github.com/ManuGH/camsync/internal/history"
	xglog "github.com/ManuGH/camsync/internal/log"
	"github.com/ManuGH/camsync/internal/metrics"
	"github.com/ManuGH/camsync/internal/recordings"
)

// Syncer materializes at most one recording per call. It shares a single
// staging file and must not be called concurrently; the poller guarantees
// that.
type Syncer struct {
	cfg  Config
	deps Deps
}

func NewSyncer(cfg Config, deps Deps) *Syncer {
	if cfg.SettleCutoff <= 0 {
		cfg.SettleCutoff = recordings.DefaultSettleCutoff
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Syncer{cfg: cfg, deps: deps}
}

// SyncOne walks entries newest first and fetches the first settled one
// that is not cached yet. Entries whose remote size changed get the new
// size recorded and are retried on a later call.
func (s *Syncer) SyncOne(ctx context.Context, entries []*recordings.Entry) Result {
	logger := xglog.WithComponentFromContext(ctx, "sync")

	var session device.TransferSession
	defer func() {
		if session != nil {
			if err := session.Close(); err != nil {
				logger.Debug().Err(err).Msg("close transfer session")
			}
		}
	}()

	skipped := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return Result{Outcome: OutcomeNone, Err: err, Skipped: skipped}
		}
		if e.Cached() {
			continue
		}

		if session == nil {
			sess, err := s.deps.Transfer.OpenTransfer(ctx)
			if err != nil {
				return s.finish(ctx, logger, Result{
					Outcome: OutcomeSessionFailed,
					Entry:   e,
					Err:     fmt.Errorf("open transfer session: %w", err),
					Skipped: skipped,
				})
			}
			session = sess
		}

		info, ok, err := session.Stat(ctx, e.RemoteRecordingPath)
		if err != nil {
			return s.finish(ctx, logger, Result{
				Outcome: OutcomeTransferFailed,
				Entry:   e,
				Err:     fmt.Errorf("stat %s: %w", e.RemoteRecordingPath, err),
				Skipped: skipped,
			})
		}
		if !ok {
			skipped++
			metrics.IncSyncSkip("missing")
			logger.Debug().Str(xglog.FieldRemotePath, e.RemoteRecordingPath).Msg("remote file disappeared")
			continue
		}

		remote := recordings.RemoteInfo{Size: info.Size, ModTime: info.ModTime}
		switch st := recordings.ClassifyRemote(remote, e.RemoteSize(), s.deps.Clock(), s.cfg.SettleCutoff); st {
		case recordings.SettleReady:
		case recordings.SettleGrowing:
			e.ObserveRemoteSize(info.Size)
			fallthrough
		default:
			skipped++
			metrics.IncSyncSkip(string(st))
			logger.Debug().
				Str(xglog.FieldRemotePath, e.RemoteRecordingPath).
				Int64(xglog.FieldSize, info.Size).
				Str("settle", string(st)).
				Msg("remote file not settled")
			continue
		}

		return s.finish(ctx, logger, s.fetch(ctx, logger, session, e, skipped))
	}

	return Result{Outcome: OutcomeNone, Skipped: skipped}
}

// fetch pulls the thumbnail and the recording, then transcodes.
func (s *Syncer) fetch(ctx context.Context, logger zerolog.Logger, session device.TransferSession, e *recordings.Entry, skipped int) Result {
	start := s.deps.Clock()
	res := Result{Entry: e, Skipped: skipped}

	if e.HasThumbnail() && !e.ThumbnailCached() {
		n, err := session.Get(ctx, e.RemoteThumbnailPath, e.LocalThumbnailPath)
		if err != nil {
			logger.Warn().Err(err).
				Str(xglog.FieldEvent, "sync.thumbnail.failed").
				Str(xglog.FieldRemotePath, e.RemoteThumbnailPath).
				Msg("thumbnail fetch failed")
		} else {
			metrics.AddTransferBytes("thumbnail", n)
		}
	}

	staging := s.cfg.StagingPath
	_ = os.Remove(staging)
	defer func() {
		if err := os.Remove(staging); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn().Err(err).Str(xglog.FieldPath, staging).Msg("remove staging file")
		}
	}()

	n, err := session.Get(ctx, e.RemoteRecordingPath, staging)
	res.Bytes = n
	if err != nil {
		res.Outcome = OutcomeTransferFailed
		res.Err = fmt.Errorf("fetch %s: %w", e.RemoteRecordingPath, err)
		res.Elapsed = s.deps.Clock().Sub(start)
		return res
	}
	metrics.AddTransferBytes("recording", n)

	tcStart := s.deps.Clock()
	if err := s.deps.Transcoder.Transcode(ctx, staging, e.LocalRecordingPath); err != nil {
		// The transcoder cleans its own output; make sure nothing half-written
		// masquerades as cached.
		_ = os.Remove(e.LocalRecordingPath)
		res.Outcome = OutcomeTranscodeFailed
		res.Err = err
		res.Elapsed = s.deps.Clock().Sub(start)
		return res
	}
	metrics.ObserveTranscode(s.deps.Clock().Sub(tcStart))

	res.Outcome = OutcomeSynced
	res.Elapsed = s.deps.Clock().Sub(start)
	return res
}

func (s *Syncer) finish(ctx context.Context, logger zerolog.Logger, res Result) Result {
	metrics.IncSync(string(res.Outcome))

	ev := logger.Info()
	if res.Err != nil {
		ev = logger.Warn().Err(res.Err)
	}
	ev = ev.Str(xglog.FieldEvent, "sync."+string(res.Outcome))
	if res.Entry != nil {
		ev = ev.
			Time(xglog.FieldCapturedAt, res.Entry.CapturedAt).
			Str(xglog.FieldRemotePath, res.Entry.RemoteRecordingPath).
			Str(xglog.FieldLocalPath, res.Entry.LocalRecordingPath)
	}
	ev.Int64(xglog.FieldSize, res.Bytes).Dur("elapsed", res.Elapsed).Msg("recording sync attempt")

	if s.deps.History != nil && res.Entry != nil {
		hev := history.Event{
			At:         s.deps.Clock(),
			CapturedAt: res.Entry.CapturedAt,
			RemotePath: res.Entry.RemoteRecordingPath,
			LocalPath:  res.Entry.LocalRecordingPath,
			Outcome:    string(res.Outcome),
			Bytes:      res.Bytes,
			Elapsed:    res.Elapsed,
		}
		if res.Err != nil {
			hev.Error = res.Err.Error()
		}
		if err := s.deps.History.Record(context.WithoutCancel(ctx), hev); err != nil {
			logger.Warn().Err(err).Msg("record sync history")
		}
	}
	return res
}
