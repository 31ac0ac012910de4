// File: api/events.go
// Package api defines core event types for hioload-livereload.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "time"

// ChangeEvent is raised by the file watcher when the watched document
// has been modified beyond the debounce window.
type ChangeEvent struct {
	Name    string    // watched file name
	ModTime time.Time // modification time that triggered the event
}
