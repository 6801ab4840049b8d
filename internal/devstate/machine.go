// SPDX-License-Identifier: MIT

package devstate

import "time"

// OperatingState is the coarse state consumers display.
type OperatingState string

const (
	StateIdle           OperatingState = "idle"
	StateRecording      OperatingState = "recording"
	StateMotion         OperatingState = "motion"
	StateRecentlyActive OperatingState = "recently-active"
)

// DefaultHysteresis is how long recently-active is held after activity ends.
const DefaultHysteresis = 30 * time.Second

// Machine is not safe for concurrent use; the poller owns it.
type Machine struct {
	Hysteresis time.Duration

	state        OperatingState
	lastActivity time.Time
}

// NewMachine returns a machine in the idle state.
func NewMachine(hysteresis time.Duration) *Machine {
	if hysteresis <= 0 {
		hysteresis = DefaultHysteresis
	}
	return &Machine{Hysteresis: hysteresis, state: StateIdle}
}

// Next feeds one poll's flags and returns the resulting state.
func (m *Machine) Next(st Status, now time.Time) OperatingState {
	if m.state == "" {
		m.state = StateIdle
	}

	switch {
	case st.Recording:
		m.state = StateRecording
	case st.Motion.Triggered():
		m.state = StateMotion
	case m.state == StateIdle:
	case m.state != StateRecentlyActive:
		m.state = StateRecentlyActive
		m.lastActivity = now
	case now.Before(m.lastActivity.Add(m.Hysteresis)):
	default:
		m.state = StateIdle
		m.lastActivity = time.Time{}
	}
	return m.state
}

func (m *Machine) State() OperatingState {
	if m.state == "" {
		return StateIdle
	}
	return m.state
}

// LastActivity is zero unless the machine is recently-active.
func (m *Machine) LastActivity() time.Time { return m.lastActivity }
