// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recordings

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// ErrUnparseableName is returned when a remote filename carries no
// recognizable capture timestamp.
var ErrUnparseableName = errors.New("recordings: filename has no capture timestamp")

// Timestamp layouts seen across firmware variants.
const (
	layoutUnderscore = "20060102_150405"
	layoutDash       = "20060102-150405"
)

// LocalBaseLayout names cached artifacts.
const LocalBaseLayout = layoutUnderscore

// ParseCaptureTime extracts the capture time encoded in a device filename
// such as "MDalarm_20240301_101500.avi" or "MDAlarm_20240301-101500.jpg".
// The first '-' is treated as '_', the prefix token up to the first '_' is
// dropped, and the remainder must be a timestamp in loc.
func ParseCaptureTime(name string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	base := path.Base(name)
	base = strings.TrimSuffix(base, path.Ext(base))

	_, stamp, ok := strings.Cut(strings.Replace(base, "-", "_", 1), "_")
	if !ok || stamp == "" {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableName, name)
	}

	for _, layout := range []string{layoutUnderscore, layoutDash} {
		if t, err := time.ParseInLocation(layout, stamp, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableName, name)
}

// hasExt reports whether name ends in one of exts, case-insensitively.
func hasExt(name string, exts []string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, allowed := range exts {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}
