// File: internal/liveness/monitor.go
// Package liveness pings the active browser connection and classifies
// the frames it sends back.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package liveness

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/momentics/hioload-livereload/api"
	"github.com/momentics/hioload-livereload/control"
	"github.com/momentics/hioload-livereload/internal/concurrency"
	"github.com/momentics/hioload-livereload/internal/session"
	"github.com/momentics/hioload-livereload/protocol"
)

// DefaultInterval is the ping cadence when none is configured.
const DefaultInterval = 5000 * time.Millisecond

// Tick is posted to the event loop each time a session's timer fires.
type Tick struct {
	Session *session.Session
}

// Poster accepts events for serialized handling.
type Poster interface {
	Post(ev concurrency.Event) bool
}

// PosterFunc adapts a function to Poster.
type PosterFunc func(ev concurrency.Event) bool

// Post calls f(ev).
func (f PosterFunc) Post(ev concurrency.Event) bool { return f(ev) }

// Option customizes a Monitor.
type Option func(*Monitor)

// WithInterval overrides the ping interval.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithLogger sets the monitor logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Monitor) {
		m.log = log
	}
}

// WithMetrics attaches a metrics registry.
func WithMetrics(mr *control.MetricsRegistry) Option {
	return func(m *Monitor) {
		m.metrics = mr
	}
}

// Monitor runs one timer per session and handles inbound frames.
// Tick, HandleFrame and Consume are meant to be called from the event loop.
type Monitor struct {
	reg      *session.Registry
	poster   Poster
	interval time.Duration
	log      *slog.Logger
	metrics  *control.MetricsRegistry
	wg       sync.WaitGroup
}

// New constructs a Monitor posting ticks through poster.
func New(reg *session.Registry, poster Poster, opts ...Option) *Monitor {
	m := &Monitor{
		reg:      reg,
		poster:   poster,
		interval: DefaultInterval,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Interval returns the configured ping interval.
func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// Start arms the timer for s. It stops when s is cancelled.
func (m *Monitor) Start(s *session.Session) {
	m.wg.Add(1)
	go m.run(s)
}

// Wait blocks until every timer goroutine has exited.
func (m *Monitor) Wait() {
	m.wg.Wait()
}

func (m *Monitor) run(s *session.Session) {
	defer m.wg.Done()
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-s.Done():
			return
		case <-t.C:
			if !m.poster.Post(concurrency.Event{Data: Tick{Session: s}}) {
				return
			}
		}
	}
}

// Tick sends a ping through s if it is still the active connection.
// A failed write is reported and leaves the connection registered.
func (m *Monitor) Tick(s *session.Session) error {
	if s.Cancelled() || !m.reg.IsActive(s) {
		return nil
	}
	if err := s.Write(protocol.PingFrame()); err != nil {
		m.metrics.Inc(control.MetricWriteFailures)
		m.log.Error("ping failed", "session", s.ID(), "err", err)
		return err
	}
	m.metrics.Inc(control.MetricPingsSent)
	m.log.Debug("ping sent", "session", s.ID())
	return nil
}

// Consume feeds raw socket bytes for s and handles every complete frame.
func (m *Monitor) Consume(s *session.Session, p []byte) {
	r := s.Reader()
	r.Feed(p)
	for {
		f, err := r.Next()
		if err != nil {
			m.HandleDecodeError(s, err)
			return
		}
		if f == nil {
			return
		}
		_ = m.HandleFrame(s, f)
		if s.State() == session.StateDisconnected {
			return
		}
	}
}

// HandleFrame classifies one inbound frame. Pong anomalies and unclassified
// frames are returned for inspection but never tear the connection down.
func (m *Monitor) HandleFrame(s *session.Session, f *protocol.WSFrame) error {
	m.log.Debug("frame received", "session", s.ID(), "frame", f.String())
	switch {
	case f.Opcode == protocol.OpcodePong:
		m.metrics.Inc(control.MetricPongsReceived)
		if f.WireLen != protocol.PongWireLen {
			return m.anomaly(s, api.NewError(api.ErrCodeUnexpectedPongShape,
				fmt.Sprintf("pong occupies %d bytes, want %d", f.WireLen, protocol.PongWireLen)))
		}
		if string(f.Payload) != protocol.PingPayload {
			return m.anomaly(s, api.NewError(api.ErrCodeUnexpectedPongPayload,
				fmt.Sprintf("pong payload %q, want %q", f.Payload, protocol.PingPayload)))
		}
		return nil
	case isCanonicalClose(f):
		m.closeByPeer(s)
		return nil
	default:
		return m.anomaly(s, api.NewError(api.ErrCodeUnclassifiedFrame,
			fmt.Sprintf("ignoring %s", f.String())))
	}
}

// HandleDecodeError reports a frame the codec rejected. The frame is
// dropped and the connection stays open.
func (m *Monitor) HandleDecodeError(s *session.Session, err error) {
	m.metrics.Inc(control.MetricMalformedFrames)
	m.log.Warn("malformed frame discarded", "session", s.ID(), "err", err)
}

func (m *Monitor) anomaly(s *session.Session, err *api.Error) error {
	err.WithContext("session", s.ID())
	m.metrics.Inc(control.MetricAnomalies)
	m.log.Warn("connection anomaly", "session", s.ID(), "kind", err.Code.String(), "err", err.Message)
	return err
}

func (m *Monitor) closeByPeer(s *session.Session) {
	s.SetState(session.StateClosing)
	if err := s.Write(protocol.CloseFrame()); err != nil {
		m.log.Debug("close echo failed", "session", s.ID(), "err", err)
	}
	released := m.reg.Release(s)
	if err := s.Close(); err != nil {
		m.log.Debug("close socket", "session", s.ID(), "err", err)
	}
	m.metrics.Inc(control.MetricCloses)
	m.log.Info("connection closed by peer", "session", s.ID(), "was_active", released)
}

// isCanonicalClose matches the empty masked close a browser sends: 88 80
// followed by the mask key.
func isCanonicalClose(f *protocol.WSFrame) bool {
	return f.Opcode == protocol.OpcodeClose &&
		f.IsFinal &&
		f.Masked &&
		f.PayloadLen == 0
}
