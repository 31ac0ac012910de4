// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for api.NetConn.

package fake

import (
	"io"
	"sync"

	"github.com/momentics/hioload-livereload/api"
)

// Conn is a fake implementation of api.NetConn for testing. Writes are
// recorded; reads are served from chunks queued with Push.
type Conn struct {
	mu         sync.Mutex
	cond       *sync.Cond
	writes     [][]byte
	inbound    [][]byte
	closed     bool
	closeCount int
	writeError error
	closeError error
	remote     string
}

var _ api.NetConn = (*Conn)(nil)

// NewConn creates a new fake connection.
func NewConn() *Conn {
	c := &Conn{remote: "fake:0"}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Read implements api.NetConn.Read. It blocks until a chunk is pushed or
// the connection is closed.
func (c *Conn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.inbound) == 0 && !c.closed {
		c.cond.Wait()
	}
	if len(c.inbound) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.inbound[0])
	if n < len(c.inbound[0]) {
		c.inbound[0] = c.inbound[0][n:]
	} else {
		c.inbound = c.inbound[1:]
	}
	return n, nil
}

// Write implements api.NetConn.Write.
func (c *Conn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, api.ErrTransportClosed
	}
	if c.writeError != nil {
		return 0, c.writeError
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	c.writes = append(c.writes, buf)
	return len(p), nil
}

// Close implements api.NetConn.Close.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeCount++
	if c.closeError != nil {
		return c.closeError
	}
	c.closed = true
	c.cond.Broadcast()
	return nil
}

// RemoteAddr implements api.NetConn.RemoteAddr.
func (c *Conn) RemoteAddr() string {
	return c.remote
}

// Push queues bytes to be returned by Read.
func (c *Conn) Push(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, len(p))
	copy(buf, p)
	c.inbound = append(c.inbound, buf)
	c.cond.Broadcast()
}

// SetWriteError configures the connection to fail every Write with err.
func (c *Conn) SetWriteError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeError = err
}

// SetCloseError configures the connection to return an error on Close.
func (c *Conn) SetCloseError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeError = err
}

// Writes returns a copy of every recorded write.
func (c *Conn) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

// WriteCount returns the number of successful writes.
func (c *Conn) WriteCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

// CountWrites returns how many recorded writes equal frame.
func (c *Conn) CountWrites(frame []byte) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, w := range c.writes {
		if string(w) == string(frame) {
			n++
		}
	}
	return n
}

// IsClosed reports whether Close succeeded.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// CloseCount returns how many times Close was called.
func (c *Conn) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCount
}

// Reset clears recorded writes and injected errors.
func (c *Conn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = nil
	c.writeError = nil
	c.closeError = nil
}
