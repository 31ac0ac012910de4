// Package pool
// Author: momentics <momentics@gmail.com>
//
// Reusable socket read buffers. Every upgraded connection borrows one
// buffer for its read loop and returns it when the socket closes.
package pool
