// Package watch raises change events for one watched document.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package watch

import (
	"sync"
	"time"
)

// DefaultDebounce is the minimum modification-time advance that counts
// as a new change.
const DefaultDebounce = 50 * time.Millisecond

// Debouncer suppresses notifications whose modification time does not
// advance past the last accepted one by more than the threshold. Editors
// and the OS often report one save as several events.
type Debouncer struct {
	mu        sync.Mutex
	threshold time.Duration
	last      time.Time
}

// NewDebouncer seeds the debouncer with the file's current modification time.
func NewDebouncer(threshold time.Duration, initial time.Time) *Debouncer {
	return &Debouncer{threshold: threshold, last: initial}
}

// Observe reports whether mod is a new change. The last-seen time only
// advances when a change is accepted.
func (d *Debouncer) Observe(mod time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if mod.Sub(d.last) > d.threshold {
		d.last = mod
		return true
	}
	return false
}

// Last returns the last accepted modification time.
func (d *Debouncer) Last() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}
