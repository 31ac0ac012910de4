// File: cmd/livereload/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// livereload serves one HTML file and tells the connected browser to
// reload whenever the file changes on disk.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/momentics/hioload-livereload/control"
	"github.com/momentics/hioload-livereload/internal/logger"
	"github.com/momentics/hioload-livereload/internal/tracer"
	"github.com/momentics/hioload-livereload/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:])
	stop()
	if err != nil {
		log.Fatalf("livereload: %v", err)
	}
}

// run serves until ctx is cancelled.
func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("livereload", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	port := fs.Int("port", 0, "HTTP listen port (overrides config)")
	file := fs.String("file", "", "HTML file to serve and watch (overrides config)")
	pingInterval := fs.Duration("ping-interval", 0, "WebSocket ping interval (overrides config)")
	debounce := fs.Duration("debounce", -1, "minimum modification-time advance per reload (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := control.Load(*configPath)
	if err != nil {
		return err
	}
	applyFlags(cfg, *port, *file, *pingInterval, *debounce)
	if err := control.Validate(cfg); err != nil {
		return err
	}

	lg, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closeLog()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("setup tracer: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			lg.Warn("tracer shutdown", "err", err)
		}
	}()

	return server.New(cfg, server.WithLogger(lg)).Run(ctx)
}

func applyFlags(cfg *control.Config, port int, file string, ping, debounce time.Duration) {
	if port > 0 {
		cfg.Server.Port = port
	}
	if file != "" {
		cfg.Watch.File = file
	}
	if ping > 0 {
		cfg.Liveness.PingInterval = ping
	}
	if debounce >= 0 {
		cfg.Watch.Debounce = debounce
	}
}
