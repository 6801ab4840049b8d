// SPDX-License-Identifier: MIT

package poller

import (
	"context"
	"time"

	"github.com/ManuGH/camsync/internal/devstate"
	xglog "github.com/ManuGH/camsync/internal/log"
	"github.com/ManuGH/camsync/internal/recordings"
)

// Snapshot is the read-only view published after every successful tick.
// Consumers must not modify it.
type Snapshot struct {
	OperatingState devstate.OperatingState `json:"operating_state"`

	MotionStatus bool `json:"motion_status"`
	Motion       bool `json:"motion"`
	SoundStatus  bool `json:"sound_status"`
	Sound        bool `json:"sound"`
	IOStatus     bool `json:"io_status"`
	IO           bool `json:"io"`
	Recording    bool `json:"recording"`

	Recordings    []recordings.EntryView `json:"recordings"`
	Last          string                 `json:"last"`
	CapturedToday int                    `json:"captured_today"`
	CapturedTotal int                    `json:"captured_total"`

	UpdatedAt time.Time `json:"updated_at"`
	DeviceID  string    `json:"device_id,omitempty"`

	// TickID matches the tick_id field of the poll's log lines.
	TickID string `json:"tick_id,omitempty"`

	// Status and Catalog back the flags and views above.
	Status  devstate.Status     `json:"-"`
	Catalog *recordings.Catalog `json:"-"`
}

// NewSnapshot assembles a snapshot from the coordinator's current state.
func NewSnapshot(ctx context.Context, state devstate.OperatingState, st devstate.Status, cat *recordings.Catalog, at time.Time) *Snapshot {
	if cat == nil {
		cat = recordings.Empty()
	}
	s := &Snapshot{
		OperatingState: state,
		MotionStatus:   st.Motion.Enabled(),
		Motion:         st.Motion.Triggered(),
		SoundStatus:    st.Sound.Enabled(),
		Sound:          st.Sound.Triggered(),
		IOStatus:       st.IO.Enabled(),
		IO:             st.IO.Triggered(),
		Recording:      st.Recording,
		Recordings:     cat.Views(ctx, 0),
		CapturedToday:  cat.CapturedToday(),
		CapturedTotal:  cat.Len(),
		UpdatedAt:      at,
		DeviceID:       cat.DeviceID(),
		TickID:         xglog.TickIDFromContext(ctx),
		Status:         st,
		Catalog:        cat,
	}
	if last := cat.LastCapture(); !last.IsZero() {
		s.Last = last.Format(recordings.PrettyLayout)
	}
	return s
}

// Library returns at most n newest entries; n <= 0 means all.
func (s *Snapshot) Library(n int) []recordings.EntryView {
	if n <= 0 || n >= len(s.Recordings) {
		return append([]recordings.EntryView(nil), s.Recordings...)
	}
	return append([]recordings.EntryView(nil), s.Recordings[:n]...)
}
