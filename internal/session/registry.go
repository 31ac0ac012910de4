// File: internal/session/registry.go
// Package session
// Author: momentics <momentics@gmail.com>
//
// Registry holding at most one active Session.

package session

import (
	"log/slog"
	"sync"

	"github.com/momentics/hioload-livereload/api"
	"github.com/momentics/hioload-livereload/control"
)

// Option customizes a Registry.
type Option func(*Registry)

// WithCloseReplaced closes the previous socket when a new one is installed.
func WithCloseReplaced(on bool) Option {
	return func(r *Registry) {
		r.closeReplaced = on
	}
}

// WithLogger sets the registry logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Registry) {
		r.log = log
	}
}

// WithMetrics attaches a metrics registry.
func WithMetrics(m *control.MetricsRegistry) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// Registry is the single connection slot. All methods are safe for
// concurrent use and atomic with respect to each other.
type Registry struct {
	mu            sync.Mutex
	active        *Session
	closeReplaced bool
	log           *slog.Logger
	metrics       *control.MetricsRegistry
}

// NewRegistry constructs an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Install registers conn as the active connection, unconditionally
// replacing any previous one. The previous session is cancelled so its
// liveness timer stops.
func (r *Registry) Install(conn api.NetConn) *Session {
	s := New(conn)
	s.SetState(StateConnected)

	r.mu.Lock()
	prev := r.active
	r.active = s
	r.mu.Unlock()

	r.log.Info("connection installed", "session", s.ID(), "remote", conn.RemoteAddr())
	if prev != nil {
		prev.Cancel()
		r.metrics.Inc(control.MetricSessionsReplaced)
		r.log.Info("connection replaced", "old", prev.ID(), "new", s.ID(), "closed", r.closeReplaced)
		if r.closeReplaced {
			if err := prev.Close(); err != nil {
				r.log.Debug("close replaced connection", "session", prev.ID(), "err", err)
			}
		}
	}
	return s
}

// ActiveConnection returns the active session or nil.
func (r *Registry) ActiveConnection() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// IsActive reports whether s is the active session.
func (r *Registry) IsActive(s *Session) bool {
	if s == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active == s
}

// Clear empties the slot and cancels the removed session.
func (r *Registry) Clear() {
	r.mu.Lock()
	prev := r.active
	r.active = nil
	r.mu.Unlock()

	if prev != nil {
		prev.Cancel()
		prev.SetState(StateDisconnected)
		r.log.Info("connection cleared", "session", prev.ID(), "age", prev.Age())
	}
}

// Release cancels s and clears the slot only if s is still active, so a
// replaced socket closing late never evicts its successor.
func (r *Registry) Release(s *Session) bool {
	s.Cancel()

	r.mu.Lock()
	released := r.active == s
	if released {
		r.active = nil
	}
	r.mu.Unlock()

	s.SetState(StateDisconnected)
	if released {
		r.log.Info("connection released", "session", s.ID(), "age", s.Age())
	}
	return released
}
