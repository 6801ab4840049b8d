// SPDX-License-Identifier: MIT

package transcode

import (
	"bytes"
	"sync"
)

// ringBuffer keeps the last N complete lines written to it.
type ringBuffer struct {
	mu      sync.Mutex
	lines   []string
	pos     int
	full    bool
	partial []byte
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{lines: make([]string, size)}
}

func (r *ringBuffer) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := append(r.partial, p...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		r.add(string(bytes.TrimRight(data[:i], "\r")))
		data = data[i+1:]
	}
	r.partial = append(r.partial[:0], data...)
	return len(p), nil
}

// Caller must hold lock.
func (r *ringBuffer) add(line string) {
	if line == "" {
		return
	}
	r.lines[r.pos] = line
	r.pos = (r.pos + 1) % len(r.lines)
	if r.pos == 0 {
		r.full = true
	}
}

// Lines returns buffered lines oldest first, including an unterminated tail.
func (r *ringBuffer) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	if r.full {
		out = append(out, r.lines[r.pos:]...)
	}
	out = append(out, r.lines[:r.pos]...)
	if len(r.partial) > 0 {
		out = append(out, string(r.partial))
	}
	return out
}
