// Package session
// Author: momentics <momentics@gmail.com>
//
// Single-slot connection registry for the live-reload agent.
// Each Session maps to one upgraded browser socket. The Registry holds at
// most one active session; installing a new one replaces the old and fires
// the old session's cancellation token, which stops its liveness timer.

package session
