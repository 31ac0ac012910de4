// File: internal/session/session.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session state, identity and the cancel-once token.

package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/momentics/hioload-livereload/api"
	"github.com/momentics/hioload-livereload/protocol"
)

// State is the lifecycle position of a Session.
type State int32

const (
	StateHandshaking State = iota
	StateConnected
	StateClosing
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session holds per-connection state, the inbound frame buffer and the
// cancellation token of its liveness timer.
type Session struct {
	id        string
	conn      api.NetConn
	reader    *protocol.FrameReader
	state     atomic.Int32
	createdAt time.Time
	done      chan struct{}
	once      sync.Once
	closeOnce sync.Once
	closeErr  error
}

// New wraps an upgraded connection in a Session in the Handshaking state.
func New(conn api.NetConn) *Session {
	return &Session{
		id:        ulid.Make().String(),
		conn:      conn,
		reader:    protocol.NewFrameReader(protocol.ClientToServer),
		createdAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// ID returns the unique session identifier.
func (s *Session) ID() string {
	return s.id
}

// Conn returns the underlying transport.
func (s *Session) Conn() api.NetConn {
	return s.conn
}

// Reader returns the inbound frame reassembly buffer.
func (s *Session) Reader() *protocol.FrameReader {
	return s.reader
}

// Age reports how long the session has existed.
func (s *Session) Age() time.Duration {
	return time.Since(s.createdAt)
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// SetState moves the session to st.
func (s *Session) SetState(st State) {
	s.state.Store(int32(st))
}

// Write sends raw bytes to the peer. Failures are reported as WriteFailure.
func (s *Session) Write(p []byte) error {
	if _, err := s.conn.Write(p); err != nil {
		return api.Wrap(api.ErrCodeWriteFailure, "write to session "+s.id, err)
	}
	return nil
}

// Close cancels the session, closes the underlying socket once and marks
// the session Disconnected.
func (s *Session) Close() error {
	s.Cancel()
	s.closeOnce.Do(func() {
		s.SetState(StateDisconnected)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// Cancel signals session teardown; idempotent.
func (s *Session) Cancel() {
	s.once.Do(func() {
		close(s.done)
	})
}

// Done returns a channel closed upon cancellation.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Cancelled reports whether Cancel has been called.
func (s *Session) Cancelled() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
