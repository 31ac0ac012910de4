// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Single-consumer event loop. Inbound socket bytes, connection open/close,
// liveness ticks and change notifications are all posted here and handled
// one at a time, in arrival order, by one goroutine.
package concurrency
