// SPDX-License-Identifier: MIT

package device

import (
	"context"

	"github.com/ManuGH/camsync/internal/ftpx"
)

// StatusSource returns the raw alarm/recording flags.
type StatusSource interface {
	DevState(ctx context.Context) (map[string]string, error)
}

// IdentitySource returns the device identity.
type IdentitySource interface {
	DevInfo(ctx context.Context) (Info, error)
}

// TransferSession browses and fetches files on the device storage. It
// must be closed by whoever opened it.
type TransferSession interface {
	List(ctx context.Context, dir string) ([]ftpx.Entry, error)
	Stat(ctx context.Context, path string) (ftpx.Entry, bool, error)
	Get(ctx context.Context, remote, local string) (int64, error)
	Close() error
}

// TransferOpener starts the device's file service and opens a session.
type TransferOpener interface {
	OpenTransfer(ctx context.Context) (TransferSession, error)
}

// Info is the identity reported by getDevInfo.
type Info struct {
	MAC         string `json:"mac"`
	Name        string `json:"devName"`
	Firmware    string `json:"firmwareVer"`
	Hardware    string `json:"hardwareVer"`
	ProductName string `json:"productName,omitempty"`
}

var (
	_ StatusSource   = (*Client)(nil)
	_ IdentitySource = (*Client)(nil)
	_ TransferOpener = (*Client)(nil)

	_ TransferSession = (*ftpx.Session)(nil)
)
