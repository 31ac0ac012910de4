// File: client/client.go
// Package client provides a minimal live-reload WebSocket client.
// Author: momentics <momentics.com>
// License: Apache-2.0
//
// The client speaks just enough RFC 6455 to talk to the reload server:
// - opening handshake over bare TCP with Sec-WebSocket-Accept verification
// - masked client frames (pong, close, arbitrary raw bytes)
// - incremental decoding of unmasked server frames

package client

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/momentics/hioload-livereload/protocol"
)

// ErrHandshakeRejected is returned when the server does not switch protocols
// or answers with a mismatching accept key.
var ErrHandshakeRejected = errors.New("handshake rejected")

// Config holds the dial parameters.
type Config struct {
	Addr             string        // ws:// URL or bare host:port
	Key              string        // Sec-WebSocket-Key; random when empty
	HandshakeTimeout time.Duration // 0 = no deadline
}

// Client is a connected live-reload client. It is not safe for concurrent
// readers; writes may happen from any goroutine.
type Client struct {
	conn   net.Conn
	br     *bufio.Reader
	frames *protocol.FrameReader
	resp   *http.Response
	chunk  []byte
}

// NewKey returns a random base64-encoded 16-byte handshake nonce.
func NewKey() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return base64.StdEncoding.EncodeToString(b[:])
}

// Dial connects and completes the opening handshake.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	host, path, err := splitAddr(cfg.Addr)
	if err != nil {
		return nil, err
	}
	key := cfg.Key
	if key == "" {
		key = NewKey()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return nil, err
	}
	if cfg.HandshakeTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(cfg.HandshakeTimeout))
	}

	req := fmt.Sprintf(
		"GET %s HTTP/1.1\r\nHost: %s\r\nUpgrade: websocket\r\nConnection: Upgrade\r\nSec-WebSocket-Key: %s\r\nSec-WebSocket-Version: 13\r\n\r\n",
		path, host, key,
	)
	if _, err := conn.Write([]byte(req)); err != nil {
		conn.Close()
		return nil, err
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake read error: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		conn.Close()
		return nil, fmt.Errorf("%w: status %d", ErrHandshakeRejected, resp.StatusCode)
	}
	if got, want := resp.Header.Get("Sec-WebSocket-Accept"), protocol.ComputeAcceptKey(key); got != want {
		conn.Close()
		return nil, fmt.Errorf("%w: accept key %q, want %q", ErrHandshakeRejected, got, want)
	}
	_ = conn.SetDeadline(time.Time{})

	return &Client{
		conn:   conn,
		br:     br,
		frames: protocol.NewFrameReader(protocol.ServerToClient),
		resp:   resp,
		chunk:  make([]byte, 512),
	}, nil
}

func splitAddr(addr string) (host, path string, err error) {
	if !strings.Contains(addr, "://") {
		return addr, "/", nil
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", "", err
	}
	return u.Host, u.RequestURI(), nil
}

// Response returns the server's 101 response.
func (c *Client) Response() *http.Response { return c.resp }

// Conn exposes the underlying socket.
func (c *Client) Conn() net.Conn { return c.conn }

// ReadFrame blocks until one complete server frame arrives or timeout
// elapses. A zero timeout clears the read deadline.
func (c *Client) ReadFrame(timeout time.Duration) (*protocol.WSFrame, error) {
	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	for {
		f, err := c.frames.Next()
		if err != nil || f != nil {
			return f, err
		}
		n, err := c.br.Read(c.chunk)
		if n > 0 {
			c.frames.Feed(c.chunk[:n])
		}
		if err != nil {
			return nil, err
		}
	}
}

// ReadByte reads a single raw byte, bypassing the frame decoder. It is used
// to observe socket state (timeout vs EOF).
func (c *Client) ReadByte(timeout time.Duration) (byte, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}
	return c.br.ReadByte()
}

// Send masks and writes one final frame.
func (c *Client) Send(opcode byte, payload []byte) error {
	raw, err := protocol.EncodeFrame(opcode, payload, true)
	if err != nil {
		return err
	}
	return c.SendRaw(raw)
}

// SendRaw writes bytes as-is.
func (c *Client) SendRaw(p []byte) error {
	_, err := c.conn.Write(p)
	return err
}

// Pong answers a server ping with the expected payload.
func (c *Client) Pong() error {
	return c.Send(protocol.OpcodePong, []byte(protocol.PingPayload))
}

// CloseHandshake sends the canonical masked close with an empty payload.
func (c *Client) CloseHandshake() error {
	return c.Send(protocol.OpcodeClose, nil)
}

// Close drops the socket without a closing handshake.
func (c *Client) Close() error {
	return c.conn.Close()
}
