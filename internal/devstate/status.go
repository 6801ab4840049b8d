// SPDX-License-Identifier: MIT

// Package devstate turns raw device alarm flags into a coarse operating
// state with a cool-down window after activity ends.
package devstate

// AlarmLevel is the string-valued alarm enumeration the device reports.
type AlarmLevel string

const (
	AlarmOff       AlarmLevel = "0"
	AlarmArmed     AlarmLevel = "1"
	AlarmTriggered AlarmLevel = "2"
)

// ParseAlarmLevel maps unknown or missing values to AlarmOff.
func ParseAlarmLevel(s string) AlarmLevel {
	switch AlarmLevel(s) {
	case AlarmArmed:
		return AlarmArmed
	case AlarmTriggered:
		return AlarmTriggered
	default:
		return AlarmOff
	}
}

// Enabled reports whether the detector is armed or firing.
func (l AlarmLevel) Enabled() bool { return l != AlarmOff }

// Triggered reports whether the detector is firing.
func (l AlarmLevel) Triggered() bool { return l == AlarmTriggered }

// Int returns the numeric level (0, 1 or 2).
func (l AlarmLevel) Int() int {
	switch l {
	case AlarmArmed:
		return 1
	case AlarmTriggered:
		return 2
	default:
		return 0
	}
}

// Device state keys as returned by getDevState.
const (
	KeyMotion    = "motionDetectAlarm"
	KeySound     = "soundAlarm"
	KeyIO        = "IOAlarm"
	KeyRecording = "recording"
	keyRecord    = "record"
)

// Status is one poll's worth of raw device flags.
type Status struct {
	Motion    AlarmLevel
	Sound     AlarmLevel
	IO        AlarmLevel
	Recording bool
}

// ParseStatus builds a Status from the device's key/value state reply.
func ParseStatus(kv map[string]string) Status {
	rec, ok := kv[KeyRecording]
	if !ok {
		rec = kv[keyRecord]
	}
	return Status{
		Motion:    ParseAlarmLevel(kv[KeyMotion]),
		Sound:     ParseAlarmLevel(kv[KeySound]),
		IO:        ParseAlarmLevel(kv[KeyIO]),
		Recording: rec == "1",
	}
}
