// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration and runtime metrics for the live-reload agent.
//
// Provides:
//   - YAML configuration with defaults, LIVERELOAD_* environment overrides
//     and whole-config validation
//   - A concurrent-safe metrics registry with counters and snapshots
package control
