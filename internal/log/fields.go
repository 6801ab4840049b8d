// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldTickID    = "tick_id"
	FieldDeviceID  = "device_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Recording fields
	FieldCapturedAt = "captured_at"
	FieldRemotePath = "remote_path"
	FieldLocalPath  = "local_path"
	FieldSize       = "size"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"
)
