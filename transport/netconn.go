// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

// Package transport adapts hijacked net.Conn sockets to api.NetConn.
package transport

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/momentics/hioload-livereload/api"
	"github.com/momentics/hioload-livereload/pool"
)

// NetConn implements api.NetConn over a net.Conn with serialized writes,
// an optional per-write deadline and pooled read buffers.
type NetConn struct {
	conn         net.Conn
	pool         *pool.BytePool
	writeMu      sync.Mutex
	writeTimeout time.Duration
}

var _ api.NetConn = (*NetConn)(nil)

// NewNetConn initializes a new NetConn. writeTimeout <= 0 disables the
// write deadline.
func NewNetConn(conn net.Conn, bp *pool.BytePool, writeTimeout time.Duration) *NetConn {
	return &NetConn{
		conn:         conn,
		pool:         bp,
		writeTimeout: writeTimeout,
	}
}

// Read fills buf from the socket.
func (n *NetConn) Read(buf []byte) (int, error) {
	return n.conn.Read(buf)
}

// Write sends buf in full, bounded by the write deadline.
func (n *NetConn) Write(buf []byte) (int, error) {
	n.writeMu.Lock()
	defer n.writeMu.Unlock()
	if n.writeTimeout > 0 {
		if err := n.conn.SetWriteDeadline(time.Now().Add(n.writeTimeout)); err != nil {
			return 0, mapClosed(err)
		}
	}
	w, err := n.conn.Write(buf)
	return w, mapClosed(err)
}

// Close the connection.
func (n *NetConn) Close() error {
	return mapClosed(n.conn.Close())
}

// RemoteAddr returns the peer address.
func (n *NetConn) RemoteAddr() string {
	if a := n.conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

// ReadLoop reads until the socket fails, passing each chunk to fn. The
// chunk is only valid during the call. It returns the terminating error,
// nil on a clean EOF.
func (n *NetConn) ReadLoop(fn func(chunk []byte)) error {
	buf := n.pool.GetBuffer()
	defer n.pool.PutBuffer(buf)
	for {
		r, err := n.conn.Read(buf)
		if r > 0 {
			fn(buf[:r])
		}
		if err != nil {
			if isEOF(err) {
				return nil
			}
			return mapClosed(err)
		}
	}
}

func mapClosed(err error) error {
	if err != nil && (errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)) {
		return api.ErrTransportClosed
	}
	return err
}

// isEOF covers both the peer hanging up and a local Close.
func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
