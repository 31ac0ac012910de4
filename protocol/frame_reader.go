// File: protocol/frame_reader.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// FrameReader reassembles frames that arrive split across several reads.

package protocol

import "fmt"

// FrameReader accumulates inbound bytes and yields complete frames in order.
// It is not safe for concurrent use; one reader belongs to one connection.
type FrameReader struct {
	dir Direction
	buf []byte
}

// NewFrameReader returns a reader decoding frames travelling in dir.
func NewFrameReader(dir Direction) *FrameReader {
	return &FrameReader{dir: dir}
}

// Feed appends p to the pending buffer. Pending bytes never outgrow one
// frame plus one read, because oversized headers are rejected by Next.
func (r *FrameReader) Feed(p []byte) {
	r.buf = append(r.buf, p...)
}

// Next returns the next complete frame. It returns (nil, nil) when more
// bytes are required. A malformed frame discards all pending bytes, since
// the frame boundary can no longer be trusted.
func (r *FrameReader) Next() (*WSFrame, error) {
	f, n, err := DecodeFrameFromBytes(r.buf, r.dir)
	if err != nil {
		r.Reset()
		return nil, err
	}
	if f == nil {
		return nil, nil
	}
	r.buf = r.buf[n:]
	if len(r.buf) == 0 {
		r.buf = nil
	}
	return f, nil
}

// Buffered reports how many undecoded bytes are pending.
func (r *FrameReader) Buffered() int {
	return len(r.buf)
}

// Reset drops pending bytes.
func (r *FrameReader) Reset() {
	r.buf = nil
}

// String is used in debug logs.
func (r *FrameReader) String() string {
	return fmt.Sprintf("FrameReader{%s, buffered=%d}", r.dir, len(r.buf))
}
