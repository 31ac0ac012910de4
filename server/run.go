// File: server/run.go
// Package server implements server startup, the accept loop and graceful
// shutdown.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/momentics/hioload-livereload/api"
	"github.com/momentics/hioload-livereload/internal/concurrency"
	"github.com/momentics/hioload-livereload/internal/watch"
)

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("server already running")

// Run starts the event loop, the file watcher and the HTTP server, and
// blocks until ctx is cancelled or a component fails. It then tears
// everything down.
func (s *Server) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	w, err := watch.New(s.cfg.Watch.File, s.cfg.Watch.Debounce, s.cfg.Watch.PollInterval,
		api.ChangeHandlerFunc(s.postChange), s.log)
	if err != nil {
		// An injected listener would otherwise keep accepting connections
		// nobody serves.
		if s.listener != nil {
			_ = s.listener.Close()
		}
		return err
	}

	ln := s.listener
	if ln == nil {
		ln, err = net.Listen("tcp", s.cfg.ListenAddr())
		if err != nil {
			return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr(), err)
		}
	}
	s.baseCtx = ctx

	// 1. Event loop.
	go s.loop.Run()

	// 2. File watcher.
	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	watchDone := make(chan error, 1)
	go func() { watchDone <- w.Run(watchCtx) }()

	// 3. HTTP server.
	httpSrv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveDone := make(chan error, 1)
	go func() { serveDone <- httpSrv.Serve(ln) }()

	port := s.cfg.Server.Port
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		port = tcp.Port
	}
	s.log.Info(fmt.Sprintf("%s is being served on localhost:%d.", w.Path(), port))

	// 4. Block until cancelled or a component fails.
	var runErr error
	watchExited, serveExited := false, false
	select {
	case <-ctx.Done():
	case err := <-serveDone:
		serveExited = true
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("serve http: %w", err)
		}
	case err := <-watchDone:
		watchExited = true
		if err != nil {
			runErr = fmt.Errorf("watch %s: %w", s.cfg.Watch.File, err)
		}
	}

	// 5. Graceful teardown.
	cancelWatch()
	if !watchExited {
		<-watchDone
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("http shutdown", "err", err)
	}
	if !serveExited {
		<-serveDone
	}

	s.closeSessions(shutdownCtx)
	s.loop.Stop()
	// The loop is stopped; sessions installed after the shutdown event are
	// closed here.
	for sess := range s.open {
		_ = sess.Close()
		delete(s.open, sess)
	}
	s.reg.Clear()
	s.monitor.Wait()
	s.drainConns()

	s.log.Info("server stopped", "metrics", s.metrics.GetSnapshot())
	return runErr
}

// closeSessions sends a close frame to every open socket from inside the
// loop and waits for it to finish.
func (s *Server) closeSessions(ctx context.Context) {
	done := make(chan struct{})
	if !s.loop.Post(concurrency.Event{Data: shutdownEvent{done: done}}) {
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("timed out closing sessions")
	}
}
