// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Defines transport socket abstraction (NetConn) shared by the session
// registry, the liveness monitor and the reload broadcaster.

package api

// NetConn abstracts a full-duplex, already upgraded client socket.
type NetConn interface {
	// Read reads into a preallocated buffer
	Read(p []byte) (n int, err error)

	// Write writes buffer contents into the connection
	Write(p []byte) (n int, err error)

	// Close shuts down the connection
	Close() error

	// RemoteAddr returns the peer address for logging
	RemoteAddr() string
}
