// SPDX-License-Identifier: MIT

package device

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrUnavailable  = errors.New("device: host unreachable or transport failure")
	ErrDeviceResult = errors.New("device: command returned non-zero result")
	ErrAuth         = errors.New("device: credentials rejected")
	ErrBadResponse  = errors.New("device: malformed response")
	ErrNoIdentity   = errors.New("device: identity has no hardware address")
)

// CGI result codes.
const (
	ResultOK          = 0
	ResultBadFormat   = -1
	ResultBadAuth     = -2
	ResultAccessDeny  = -3
	ResultExecFailed  = -4
	ResultTimeout     = -5
	ResultUnknownCode = -7
)

// Error carries the failing CGI command and whatever the device said.
type Error struct {
	Sentinel error
	Cmd      string
	Code     int
	Status   int
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("device: %s: %v", e.Cmd, e.Sentinel)
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (result %d)", msg, e.Code)
	}
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}

func resultError(cmd string, code int) error {
	sentinel := ErrDeviceResult
	if code == ResultBadAuth || code == ResultAccessDeny {
		sentinel = ErrAuth
	}
	return &Error{Sentinel: sentinel, Cmd: cmd, Code: code}
}
