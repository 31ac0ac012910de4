// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Agent configuration: YAML file, defaults and environment overrides.

package control

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration of the agent.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Watch    WatchConfig    `yaml:"watch"`
	Liveness LivenessConfig `yaml:"liveness"`
	Logger   LoggerConfig   `yaml:"logger"`
	Tracer   TracerConfig   `yaml:"tracer"`
}

// ServerConfig covers the HTTP listener and the upgraded socket.
type ServerConfig struct {
	Port           int           `yaml:"port"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	CloseReplaced  bool          `yaml:"close_replaced"`
	ReadBufferSize int           `yaml:"read_buffer_size"`
}

// WatchConfig covers the watched document and debounce policy.
type WatchConfig struct {
	File         string        `yaml:"file"`
	Debounce     time.Duration `yaml:"debounce"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// LivenessConfig covers the ping cadence.
type LivenessConfig struct {
	PingInterval time.Duration `yaml:"ping_interval"`
}

// LoggerConfig selects level, format and sink of the structured logger.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig toggles OpenTelemetry tracing.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Defaults returns a config with every field set to its default.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8888,
			WriteTimeout:   5 * time.Second,
			CloseReplaced:  false,
			ReadBufferSize: 4096,
		},
		Watch: WatchConfig{
			File:         "index.html",
			Debounce:     50 * time.Millisecond,
			PollInterval: 100 * time.Millisecond,
		},
		Liveness: LivenessConfig{
			PingInterval: 5000 * time.Millisecond,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads the YAML file at path over Defaults, applies environment
// overrides and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	ApplyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies LIVERELOAD_* environment variables to cfg.
// Unparseable values are ignored.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LIVERELOAD_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("LIVERELOAD_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if v := os.Getenv("LIVERELOAD_CLOSE_REPLACED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Server.CloseReplaced = b
		}
	}
	if v := os.Getenv("LIVERELOAD_FILE"); v != "" {
		cfg.Watch.File = v
	}
	if v := os.Getenv("LIVERELOAD_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Watch.Debounce = d
		}
	}
	if v := os.Getenv("LIVERELOAD_PING_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Liveness.PingInterval = d
		}
	}
	if v := os.Getenv("LIVERELOAD_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("LIVERELOAD_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("LIVERELOAD_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("LIVERELOAD_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
}

// ListenAddr returns the TCP address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
