// File: server/server.go
// Package server ties the HTTP collaborator, the WebSocket upgrade path,
// the event loop and the file watcher together.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-livereload/api"
	"github.com/momentics/hioload-livereload/control"
	"github.com/momentics/hioload-livereload/internal/concurrency"
	"github.com/momentics/hioload-livereload/internal/liveness"
	"github.com/momentics/hioload-livereload/internal/reload"
	"github.com/momentics/hioload-livereload/internal/session"
	"github.com/momentics/hioload-livereload/internal/tracer"
	"github.com/momentics/hioload-livereload/pool"
	"github.com/momentics/hioload-livereload/protocol"
	"github.com/momentics/hioload-livereload/transport"
)

const defaultShutdownTimeout = 5 * time.Second

// Server serves the watched document and pushes reloads to one browser.
type Server struct {
	cfg             *control.Config
	log             *slog.Logger
	metrics         *control.MetricsRegistry
	listener        net.Listener
	shutdownTimeout time.Duration

	loop        *concurrency.EventLoop
	reg         *session.Registry
	monitor     *liveness.Monitor
	broadcaster *reload.Broadcaster
	bufPool     *pool.BytePool

	// open holds every installed session whose socket is still up,
	// including replaced ones. Only touched from the loop.
	open map[*session.Session]struct{}

	baseCtx context.Context
	started atomic.Bool

	// connMu orders conns.Add against the teardown Wait; hijacked sockets
	// are invisible to http.Server.Shutdown.
	connMu   sync.Mutex
	conns    sync.WaitGroup
	draining bool
}

// New builds a Server from cfg.
func New(cfg *control.Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = control.Defaults()
	}
	s := &Server{
		cfg:             cfg,
		log:             slog.Default(),
		metrics:         control.NewMetricsRegistry(),
		shutdownTimeout: defaultShutdownTimeout,
		open:            make(map[*session.Session]struct{}),
		baseCtx:         context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.loop = concurrency.NewEventLoop(0)
	s.reg = session.NewRegistry(
		session.WithCloseReplaced(cfg.Server.CloseReplaced),
		session.WithLogger(s.log),
		session.WithMetrics(s.metrics),
	)
	s.monitor = liveness.New(s.reg, s.loop,
		liveness.WithInterval(cfg.Liveness.PingInterval),
		liveness.WithLogger(s.log),
		liveness.WithMetrics(s.metrics),
	)
	s.broadcaster = reload.NewBroadcaster(s.reg, s.log, s.metrics)
	s.bufPool = pool.NewBytePool(cfg.Server.ReadBufferSize)
	s.loop.RegisterHandler(concurrency.EventHandlerFunc(s.handleEvent))
	return s
}

// Metrics returns the server's metrics registry.
func (s *Server) Metrics() *control.MetricsRegistry {
	return s.metrics
}

// Registry returns the connection registry.
func (s *Server) Registry() *session.Registry {
	return s.reg
}

// ServeHTTP routes upgrades to the handshake and everything else to the
// static document handlers.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if protocol.IsUpgradeRequest(r) {
		s.handleUpgrade(w, r)
		return
	}
	switch r.URL.Path {
	case "/":
		s.serveDocument(w, r)
	case "/favicon.ico":
		// Browsers ask for it on every load; answer without a body.
		w.Header().Set("Content-Type", "image/x-icon")
		w.WriteHeader(http.StatusOK)
	default:
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "%s not found.", r.URL.RequestURI())
	}
}

func (s *Server) serveDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	content, err := os.ReadFile(s.cfg.Watch.File)
	if err != nil {
		s.log.Error("read document", "file", s.cfg.Watch.File, "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Info("Serving "+s.cfg.Watch.File, "remote", r.RemoteAddr)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(content)
	}
}

// errShuttingDown rejects upgrades that race with teardown.
var errShuttingDown = errors.New("server shutting down")

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	_, op := tracer.StartHandshake(r.Context(), r.RemoteAddr)
	op.End(s.upgrade(w, r))
}

// upgrade completes the handshake and hands the socket to the loop. The
// returned error only feeds the trace; replies are written here.
func (s *Server) upgrade(w http.ResponseWriter, r *http.Request) error {
	resp, err := protocol.ProcessUpgrade(r.Header)
	if err != nil {
		s.metrics.Inc(control.MetricHandshakeErrors)
		s.log.Warn("handshake rejected", "remote", r.RemoteAddr, "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return err
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		err := fmt.Errorf("response writer %T cannot hijack", w)
		s.log.Error("handshake failed", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return err
	}
	raw, brw, err := hj.Hijack()
	if err != nil {
		s.log.Error("hijack connection", "remote", r.RemoteAddr, "err", err)
		return err
	}
	// http.Server deadlines no longer apply to the upgraded socket.
	_ = raw.SetDeadline(time.Time{})

	if _, err := resp.WriteTo(raw); err != nil {
		s.log.Error("handshake failed", "remote", r.RemoteAddr, "err", err)
		_ = raw.Close()
		return err
	}

	var pending []byte
	if n := brw.Reader.Buffered(); n > 0 {
		peeked, _ := brw.Reader.Peek(n)
		pending = append([]byte(nil), peeked...)
	}

	conn := transport.NewNetConn(raw, s.bufPool, s.cfg.Server.WriteTimeout)
	if !s.trackConn() {
		_ = conn.Close()
		return errShuttingDown
	}
	reply := make(chan *session.Session, 1)
	if !s.loop.Post(concurrency.Event{Data: openEvent{conn: conn, reply: reply}}) {
		s.conns.Done()
		_ = conn.Close()
		return errShuttingDown
	}
	s.metrics.Inc(control.MetricHandshakes)

	go s.serveConn(conn, reply, pending)
	return nil
}

// trackConn reserves a slot in conns unless teardown has begun.
func (s *Server) trackConn() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.draining {
		return false
	}
	s.conns.Add(1)
	return true
}

// drainConns refuses new connections and waits for the tracked ones.
func (s *Server) drainConns() {
	s.connMu.Lock()
	s.draining = true
	s.connMu.Unlock()
	s.conns.Wait()
}

// serveConn pumps socket bytes into the loop until the socket ends.
func (s *Server) serveConn(conn *transport.NetConn, reply <-chan *session.Session, pending []byte) {
	defer s.conns.Done()

	var sess *session.Session
	select {
	case sess = <-reply:
	case <-s.loop.Done():
		_ = conn.Close()
		return
	}

	post := func(data []byte) {
		if !s.loop.Post(concurrency.Event{Data: dataEvent{s: sess, data: data}}) {
			_ = conn.Close()
		}
	}
	if len(pending) > 0 {
		post(pending)
	}
	err := conn.ReadLoop(func(chunk []byte) {
		post(append([]byte(nil), chunk...))
	})
	if !s.loop.Post(concurrency.Event{Data: closedEvent{s: sess, err: err}}) {
		_ = sess.Close()
	}
}

// postChange routes watcher notifications through the loop.
func (s *Server) postChange(_ context.Context, ev api.ChangeEvent) error {
	if !s.loop.Post(concurrency.Event{Data: changeEvent{ev: ev}}) {
		return fmt.Errorf("post change for %s: event loop stopped", ev.Name)
	}
	return nil
}

// handleEvent is the single consumer of every event.
func (s *Server) handleEvent(ev concurrency.Event) {
	switch e := ev.Data.(type) {
	case openEvent:
		sess := s.reg.Install(e.conn)
		s.open[sess] = struct{}{}
		s.monitor.Start(sess)
		e.reply <- sess
	case dataEvent:
		s.monitor.Consume(e.s, e.data)
	case liveness.Tick:
		_ = s.monitor.Tick(e.Session)
	case changeEvent:
		_ = s.broadcaster.OnChange(s.baseCtx, e.ev)
	case closedEvent:
		delete(s.open, e.s)
		if s.reg.Release(e.s) {
			s.log.Info("client disconnected", "session", e.s.ID(), "err", e.err)
		}
		_ = e.s.Close()
	case shutdownEvent:
		for sess := range s.open {
			if sess.State() != session.StateDisconnected {
				_ = sess.Write(protocol.CloseFrame())
			}
			s.reg.Release(sess)
			_ = sess.Close()
			delete(s.open, sess)
		}
		close(e.done)
	default:
		s.log.Warn("unknown event", "type", fmt.Sprintf("%T", ev.Data))
	}
}
