// File: api/handler.go
// Package api defines the change handler contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "context"

// ChangeHandler consumes change notifications from a watcher.
type ChangeHandler interface {
	OnChange(ctx context.Context, ev ChangeEvent) error
}

// ChangeHandlerFunc adapts a plain function to ChangeHandler.
type ChangeHandlerFunc func(ctx context.Context, ev ChangeEvent) error

// OnChange calls f(ctx, ev).
func (f ChangeHandlerFunc) OnChange(ctx context.Context, ev ChangeEvent) error {
	return f(ctx, ev)
}
