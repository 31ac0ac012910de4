//go:build !linux

// File: internal/watch/watcher_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package watch

import "context"

func (w *Watcher) watch(ctx context.Context) error {
	return w.poll(ctx)
}
