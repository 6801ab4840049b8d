// SPDX-License-Identifier: MIT

package recordings

import (
	"context"
	"errors"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/ManuGH/camsync/internal/device"
	"github.com/ManuGH/camsync/internal/ftpx"
)

// fakeStorage is an in-memory device storage tree.
type fakeStorage struct {
	mu      sync.Mutex
	files   map[string]ftpx.Entry
	listErr map[string]error
	opens   int
	closes  int
	openErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{files: map[string]ftpx.Entry{}, listErr: map[string]error{}}
}

func (f *fakeStorage) add(p string, size int64, mod time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[p] = ftpx.Entry{Name: path.Base(p), Path: p, Size: size, ModTime: mod}
}

func (f *fakeStorage) OpenTransfer(context.Context) (device.TransferSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opens++
	return &fakeSession{fs: f}, nil
}

type fakeSession struct {
	fs     *fakeStorage
	closed bool
}

func (s *fakeSession) List(_ context.Context, dir string) ([]ftpx.Entry, error) {
	s.fs.mu.Lock()
	defer s.fs.mu.Unlock()
	if err := s.fs.listErr[dir]; err != nil {
		return nil, err
	}

	children := map[string]ftpx.Entry{}
	prefix := dir + "/"
	for p, e := range s.fs.files {
		if len(p) <= len(prefix) || p[:len(prefix)] != prefix {
			continue
		}
		rest := p[len(prefix):]
		name, _, nested := cut(rest)
		if nested {
			children[name] = ftpx.Entry{Name: name, Path: path.Join(dir, name), Dir: true}
		} else {
			children[name] = e
		}
	}
	if len(children) == 0 {
		return nil, ftpx.ErrNotFound
	}
	out := make([]ftpx.Entry, 0, len(children))
	for _, e := range children {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func cut(s string) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

func (s *fakeSession) Stat(ctx context.Context, p string) (ftpx.Entry, bool, error) {
	s.fs.mu.Lock()
	defer s.fs.mu.Unlock()
	e, ok := s.fs.files[p]
	return e, ok, nil
}

func (s *fakeSession) Get(context.Context, string, string) (int64, error) {
	return 0, errors.New("not used")
}

func (s *fakeSession) Close() error {
	s.fs.mu.Lock()
	defer s.fs.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.fs.closes++
	}
	return nil
}

type fakeIdentity struct {
	info device.Info
	err  error
}

func (f fakeIdentity) DevInfo(context.Context) (device.Info, error) { return f.info, f.err }

type fakeProber struct {
	mu    sync.Mutex
	calls int
	dur   int
	err   error
}

func (p *fakeProber) Duration(context.Context, string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.dur, p.err
}

func (p *fakeProber) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
