// File: internal/reload/broadcaster.go
// Package reload turns file change notifications into reload frames.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reload

import (
	"context"
	"log/slog"

	"github.com/momentics/hioload-livereload/api"
	"github.com/momentics/hioload-livereload/control"
	"github.com/momentics/hioload-livereload/internal/session"
	"github.com/momentics/hioload-livereload/internal/tracer"
	"github.com/momentics/hioload-livereload/protocol"
)

// Broadcaster writes the reload frame to the active connection.
type Broadcaster struct {
	reg     *session.Registry
	log     *slog.Logger
	metrics *control.MetricsRegistry
}

var _ api.ChangeHandler = (*Broadcaster)(nil)

// NewBroadcaster constructs a Broadcaster. metrics may be nil.
func NewBroadcaster(reg *session.Registry, log *slog.Logger, metrics *control.MetricsRegistry) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{reg: reg, log: log, metrics: metrics}
}

// OnChange sends 81 02 3A 29 to the active connection. Without one the
// notification is dropped; nothing is buffered for a later client. A write
// failure is returned and leaves the registry untouched.
func (b *Broadcaster) OnChange(ctx context.Context, ev api.ChangeEvent) (err error) {
	_, op := tracer.StartBroadcast(ctx, ev.Name)
	defer func() { op.End(err) }()

	s := b.reg.ActiveConnection()
	if s == nil {
		b.metrics.Inc(control.MetricReloadsDropped)
		b.log.Info("no client connected, reload dropped", "file", ev.Name)
		op.Delivered(false)
		return nil
	}
	op.Session(s.ID())

	if err := s.Write(protocol.ReloadFrame()); err != nil {
		b.metrics.Inc(control.MetricWriteFailures)
		b.log.Error("reload message failed", "session", s.ID(), "file", ev.Name, "err", err)
		op.Delivered(false)
		return err
	}
	b.metrics.Inc(control.MetricReloadsSent)
	b.log.Info("Reload message sent to client.", "session", s.ID(), "file", ev.Name, "modified", ev.ModTime)
	op.Delivered(true)
	return nil
}
