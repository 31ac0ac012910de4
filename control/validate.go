package control

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// listing every problem found.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateServer(cfg, ve)
	validateWatch(cfg, ve)
	validateLiveness(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateServer(cfg *Config, ve *ValidationError) {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		ve.Add("server.port must be between 0 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.WriteTimeout < 0 {
		ve.Add("server.write_timeout must be >= 0")
	}
	if cfg.Server.ReadBufferSize <= 0 {
		ve.Add("server.read_buffer_size must be > 0")
	}
}

func validateWatch(cfg *Config, ve *ValidationError) {
	if strings.TrimSpace(cfg.Watch.File) == "" {
		ve.Add("watch.file is required")
	}
	if cfg.Watch.Debounce < 0 {
		ve.Add("watch.debounce must be >= 0")
	}
	if cfg.Watch.PollInterval < time.Millisecond {
		ve.Add("watch.poll_interval must be >= 1ms, got %s", cfg.Watch.PollInterval)
	}
}

func validateLiveness(cfg *Config, ve *ValidationError) {
	if cfg.Liveness.PingInterval <= 0 {
		ve.Add("liveness.ping_interval must be > 0")
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logger.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		ve.Add("logger.level %q is not one of debug, info, warn, error", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		ve.Add("logger.format %q is not one of text, json", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	default:
		ve.Add("tracer.exporter %q is not supported", cfg.Tracer.Exporter)
	}
}
