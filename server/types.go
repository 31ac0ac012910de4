// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Events carried by the server's event loop.

package server

import (
	"github.com/momentics/hioload-livereload/api"
	"github.com/momentics/hioload-livereload/internal/session"
)

// openEvent asks the loop to install a freshly upgraded connection.
type openEvent struct {
	conn  api.NetConn
	reply chan<- *session.Session
}

// dataEvent carries bytes read from a session's socket.
type dataEvent struct {
	s    *session.Session
	data []byte
}

// closedEvent reports that a session's read loop has ended.
type closedEvent struct {
	s   *session.Session
	err error
}

// changeEvent carries a debounced file change.
type changeEvent struct {
	ev api.ChangeEvent
}

// shutdownEvent closes every open session from inside the loop.
type shutdownEvent struct {
	done chan struct{}
}
