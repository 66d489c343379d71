package gfs

import (
	"io"
	"sync"

	"github.com/basaltfs/gfs/pkg/core"
)

// memChannel is the in-memory growable byte buffer backing an open
// writable file before its blob is persisted (spec.md §3's "Memory
// channel"). The buffer lock (mu) is distinct from the filesystem
// lock: per §5, it is acquired only around reads/writes of the raw
// bytes so that Channel operations can run without holding the
// filesystem lock, while the filesystem lock is always acquired first
// by any staging-engine method that reaches in here.
type memChannel struct {
	path     string
	mu       sync.Mutex
	buf      []byte
	modified bool
	attached int
}

func newMemChannel(path string, initial []byte) *memChannel {
	buf := make([]byte, len(initial))
	copy(buf, initial)
	return &memChannel{path: path, buf: buf}
}

func (c *memChannel) size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.buf))
}

// Channel is the user-facing seekable handle returned by
// NewByteChannel. It implements io.ReadWriteSeeker and io.Closer.
// Each Channel has its own cursor but shares its memChannel's buffer
// with every other Channel open on the same path.
type Channel struct {
	fs       *Filesystem // non-owning back-reference, valid only while the handle table holds ch
	ch       *memChannel
	offset   int64
	readable bool
	writable bool
	closed   bool
}

func (c *Channel) Read(p []byte) (int, error) {
	if c.closed {
		return 0, core.NewOpError("Read", c.ch.path, core.ErrClosed, nil)
	}
	if !c.readable {
		return 0, core.NewOpError("Read", c.ch.path, core.ErrAccessDenied, nil)
	}
	c.ch.mu.Lock()
	defer c.ch.mu.Unlock()
	if c.offset >= int64(len(c.ch.buf)) {
		return 0, io.EOF
	}
	n := copy(p, c.ch.buf[c.offset:])
	c.offset += int64(n)
	return n, nil
}

func (c *Channel) Write(p []byte) (int, error) {
	if c.closed {
		return 0, core.NewOpError("Write", c.ch.path, core.ErrClosed, nil)
	}
	if !c.writable {
		return 0, core.NewOpError("Write", c.ch.path, core.ErrAccessDenied, nil)
	}
	c.ch.mu.Lock()
	defer c.ch.mu.Unlock()
	end := c.offset + int64(len(p))
	if end > int64(len(c.ch.buf)) {
		grown := make([]byte, end)
		copy(grown, c.ch.buf)
		c.ch.buf = grown
	}
	n := copy(c.ch.buf[c.offset:end], p)
	c.offset += int64(n)
	c.ch.modified = true
	return n, nil
}

func (c *Channel) Seek(offset int64, whence int) (int64, error) {
	if c.closed {
		return 0, core.NewOpError("Seek", c.ch.path, core.ErrClosed, nil)
	}
	c.ch.mu.Lock()
	size := int64(len(c.ch.buf))
	c.ch.mu.Unlock()

	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = c.offset + offset
	case io.SeekEnd:
		abs = size + offset
	default:
		return 0, core.NewOpError("Seek", c.ch.path, core.ErrUnsupported, nil)
	}
	if abs < 0 {
		return 0, core.NewOpError("Seek", c.ch.path, core.ErrIllegalState, nil)
	}
	c.offset = abs
	return abs, nil
}

// Close detaches the handle and, if its channel is now both unmodified
// and unreferenced, garbage-collects it from the filesystem's handle
// table.
func (c *Channel) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.fs.releaseChannel(c.ch)
	return nil
}
