// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ftpx wraps the camera's embedded FTP server.
package ftpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/jlaffaye/ftp"
)

var (
	// ErrNotFound is returned for 550 replies.
	ErrNotFound = errors.New("ftp: remote path not found")
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("ftp: session closed")
)

// DefaultPort is the camera's FTP port.
const DefaultPort = 50021

// Entry is one listed remote file or directory.
type Entry struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
	Dir     bool
}

// Config holds connection parameters.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
	// Location interprets listing timestamps; the camera reports local time.
	Location *time.Location
}

func (c Config) addr() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// Session is one logged-in FTP control connection. The camera serves a
// single transfer at a time, so a Session serializes its operations.
type Session struct {
	mu     sync.Mutex
	closed bool

	list func(string) ([]*ftp.Entry, error)
	retr func(string) (io.ReadCloser, error)
	quit func() error
}

// Dial connects and logs in.
func Dial(ctx context.Context, cfg Config) (*Session, error) {
	opts := []ftp.DialOption{ftp.DialWithContext(ctx)}
	if cfg.Timeout > 0 {
		opts = append(opts, ftp.DialWithTimeout(cfg.Timeout))
	}
	if cfg.Location != nil {
		opts = append(opts, ftp.DialWithLocation(cfg.Location))
	}

	conn, err := ftp.Dial(cfg.addr(), opts...)
	if err != nil {
		return nil, fmt.Errorf("ftp dial %s: %w", cfg.addr(), err)
	}
	if err := conn.Login(cfg.Username, cfg.Password); err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	return newSession(
		conn.List,
		func(p string) (io.ReadCloser, error) { return conn.Retr(p) },
		conn.Quit,
	), nil
}

func newSession(
	list func(string) ([]*ftp.Entry, error),
	retr func(string) (io.ReadCloser, error),
	quit func() error,
) *Session {
	return &Session{list: list, retr: retr, quit: quit}
}

// List returns the entries of dir, skipping "." and "..".
func (s *Session) List(ctx context.Context, dir string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(ctx); err != nil {
		return nil, err
	}

	raw, err := s.list(dir)
	if err != nil {
		return nil, mapError("list "+dir, err)
	}

	out := make([]Entry, 0, len(raw))
	for _, e := range raw {
		if e == nil || e.Name == "." || e.Name == ".." {
			continue
		}
		name := path.Base(e.Name)
		out = append(out, Entry{
			Name:    name,
			Path:    path.Join(dir, name),
			Size:    int64(e.Size),
			ModTime: e.Time,
			Dir:     e.Type == ftp.EntryTypeFolder,
		})
	}
	return out, nil
}

// Stat lists the parent of p and returns the matching entry. A missing
// file or parent reports ok=false with a nil error.
func (s *Session) Stat(ctx context.Context, p string) (Entry, bool, error) {
	entries, err := s.List(ctx, path.Dir(p))
	if errors.Is(err, ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}

	name := path.Base(p)
	for _, e := range entries {
		if e.Name == name {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

// Get downloads remote into local atomically and returns the byte count.
// local is only replaced once the whole file has been received.
func (s *Session) Get(ctx context.Context, remote, local string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(ctx); err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(local), 0o750); err != nil {
		return 0, fmt.Errorf("create %s: %w", filepath.Dir(local), err)
	}

	body, err := s.retr(remote)
	if err != nil {
		return 0, mapError("retr "+remote, err)
	}
	defer func() { _ = body.Close() }()

	pending, err := renameio.NewPendingFile(local, renameio.WithPermissions(0o644))
	if err != nil {
		return 0, fmt.Errorf("create pending %s: %w", local, err)
	}
	defer func() { _ = pending.Cleanup() }()

	n, err := io.Copy(pending, readerWithContext(ctx, body))
	if err != nil {
		return n, fmt.Errorf("retr %s: %w", remote, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return n, fmt.Errorf("replace %s: %w", local, err)
	}
	return n, nil
}

// Close ends the session. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.quit()
}

func (s *Session) usable(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	return ctx.Err()
}

func mapError(op string, err error) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) && tpErr.Code == ftp.StatusFileUnavailable {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
