// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recordings

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/camsync/internal/device"
	"github.com/ManuGH/camsync/internal/ftpx"
	xglog "github.com/ManuGH/camsync/internal/log"
	"github.com/ManuGH/camsync/internal/metrics"
)

// Device storage layout: <root>/<dir containing MAC>/{snap,record}/<d1>/<d2>/<file>.
const (
	DefaultRoot = "/IPCamera"
	snapDir     = "snap"
	recordDir   = "record"
)

// BuilderConfig describes the remote layout and the local cache.
type BuilderConfig struct {
	Root     string
	CacheDir string
	ImageExt []string
	VideoExt []string
	// Location is the device's time zone; filenames and "today" use it.
	Location *time.Location
}

// Builder enumerates the device storage into a fresh Catalog.
type Builder struct {
	cfg       BuilderConfig
	identity  device.IdentitySource
	transfer  device.TransferOpener
	durations *Durations
	now       func() time.Time
}

// NewBuilder creates a Builder. durations may be nil.
func NewBuilder(cfg BuilderConfig, identity device.IdentitySource, transfer device.TransferOpener, durations *Durations) *Builder {
	if cfg.Root == "" {
		cfg.Root = DefaultRoot
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if len(cfg.ImageExt) == 0 {
		cfg.ImageExt = []string{".jpg"}
	}
	if len(cfg.VideoExt) == 0 {
		cfg.VideoExt = []string{".avi"}
	}
	return &Builder{
		cfg:       cfg,
		identity:  identity,
		transfer:  transfer,
		durations: durations,
		now:       time.Now,
	}
}

type remoteFile struct {
	at   time.Time
	path string
	size int64
}

// Build returns a complete new Catalog or an error; it never returns a
// partial catalog.
func (b *Builder) Build(ctx context.Context) (*Catalog, error) {
	logger := xglog.WithComponentFromContext(ctx, "catalog")

	info, err := b.identity.DevInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("read device identity: %w", err)
	}
	if info.MAC == "" {
		return nil, fmt.Errorf("read device identity: %w", device.ErrNoIdentity)
	}

	session, err := b.transfer.OpenTransfer(ctx)
	if err != nil {
		return nil, fmt.Errorf("open transfer session: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Debug().Err(cerr).Msg("close transfer session")
		}
	}()

	top, err := session.List(ctx, b.cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", b.cfg.Root, err)
	}

	var snaps, recs []remoteFile
	mac := strings.ToUpper(info.MAC)
	for _, dir := range top {
		if !dir.Dir || !strings.Contains(strings.ToUpper(dir.Name), mac) {
			continue
		}
		s, err := b.walk(ctx, session, path.Join(dir.Path, snapDir), b.cfg.ImageExt, logger)
		if err != nil {
			return nil, err
		}
		r, err := b.walk(ctx, session, path.Join(dir.Path, recordDir), b.cfg.VideoExt, logger)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, s...)
		recs = append(recs, r...)
	}

	cat := b.assemble(info.MAC, snaps, recs, logger)
	logger.Debug().
		Str(xglog.FieldEvent, "catalog.build.listed").
		Int("recordings", cat.Len()).
		Int("snapshots", len(snaps)).
		Msg("device storage listed")
	return cat, nil
}

// walk collects matching files two directory levels below subtree. A
// missing subtree or a directory that vanished mid-walk is empty.
func (b *Builder) walk(ctx context.Context, s device.TransferSession, subtree string, exts []string, logger zerolog.Logger) ([]remoteFile, error) {
	var out []remoteFile

	level1, err := listDirs(ctx, s, subtree)
	if err != nil {
		return nil, err
	}
	for _, d1 := range level1 {
		level2, err := listDirs(ctx, s, d1.Path)
		if err != nil {
			return nil, err
		}
		for _, d2 := range level2 {
			files, err := s.List(ctx, d2.Path)
			if errors.Is(err, ftpx.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("list %s: %w", d2.Path, err)
			}
			for _, f := range files {
				if f.Dir || !hasExt(f.Name, exts) {
					continue
				}
				at, err := ParseCaptureTime(f.Name, b.cfg.Location)
				if err != nil {
					metrics.IncCatalogSkippedFile("unparseable")
					logger.Warn().
						Str(xglog.FieldEvent, "catalog.skip.unparseable").
						Str(xglog.FieldRemotePath, f.Path).
						Msg("skipping file without capture timestamp")
					continue
				}
				out = append(out, remoteFile{at: at, path: f.Path, size: f.Size})
			}
		}
	}
	return out, nil
}

func listDirs(ctx context.Context, s device.TransferSession, dir string) ([]ftpx.Entry, error) {
	entries, err := s.List(ctx, dir)
	if errors.Is(err, ftpx.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	dirs := entries[:0]
	for _, e := range entries {
		if e.Dir {
			dirs = append(dirs, e)
		}
	}
	return dirs, nil
}

func (b *Builder) assemble(deviceID string, snaps, recs []remoteFile, logger zerolog.Logger) *Catalog {
	// Snapshot index: first seen wins on equal timestamps.
	snapAt := make(map[time.Time]string, len(snaps))
	times := make([]time.Time, 0, len(snaps))
	for _, s := range snaps {
		if _, dup := snapAt[s.at]; dup {
			continue
		}
		snapAt[s.at] = s.path
		times = append(times, s.at)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	now := b.now().In(b.cfg.Location)
	y, m, d := now.Date()

	seen := make(map[time.Time]bool, len(recs))
	entries := make([]*Entry, 0, len(recs))
	today := 0
	for _, r := range recs {
		if seen[r.at] {
			metrics.IncCatalogSkippedFile("duplicate")
			logger.Warn().
				Str(xglog.FieldEvent, "catalog.skip.duplicate").
				Str(xglog.FieldRemotePath, r.path).
				Time(xglog.FieldCapturedAt, r.at).
				Msg("skipping recording with duplicate capture time")
			continue
		}
		seen[r.at] = true

		if ry, rm, rd := r.at.In(b.cfg.Location).Date(); ry == y && rm == m && rd == d {
			today++
		}

		thumb := ""
		if i := sort.Search(len(times), func(i int) bool { return times[i].After(r.at) }); i < len(times) {
			thumb = snapAt[times[i]]
		}

		e := NewEntry(r.at, r.path, thumb, r.size, b.cfg.CacheDir)
		e.durations = b.durations
		entries = append(entries, e)
	}

	return NewCatalog(deviceID, entries, today, b.now())
}
