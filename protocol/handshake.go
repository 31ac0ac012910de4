// File: protocol/handshake.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server side of the RFC 6455 opening handshake: validates the upgrade
// request, computes Sec-WebSocket-Accept and serializes the raw 101 reply.

package protocol

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/momentics/hioload-livereload/api"
)

const (
	WebSocketGUID         = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
	HeaderConnection      = "Connection"
	HeaderUpgrade         = "Upgrade"
	HeaderSecWebSocketKey = "Sec-WebSocket-Key"
	HeaderSecWebSocketAcc = "Sec-WebSocket-Accept"

	switchingProtocolsLine = "HTTP/1.1 101 Web Socket Protocol Handshake"
)

// ComputeAcceptKey computes the Sec-WebSocket-Accept value from the client's key.
// This implements the algorithm specified in RFC6455 Section 1.3.
func ComputeAcceptKey(clientKey string) string {
	hash := sha1.Sum([]byte(clientKey + WebSocketGUID))
	return base64.StdEncoding.EncodeToString(hash[:])
}

// HeaderField is one response header line.
type HeaderField struct {
	Name  string
	Value string
}

// HandshakeResponse is the 101 reply. Headers keep their wire order.
type HandshakeResponse struct {
	StatusCode int
	AcceptKey  string
	Headers    []HeaderField
}

// ProcessUpgrade validates the client key and builds the 101 reply.
func ProcessUpgrade(h http.Header) (*HandshakeResponse, error) {
	key := strings.TrimSpace(h.Get(HeaderSecWebSocketKey))
	if key == "" {
		return nil, api.ErrMissingHandshakeKey
	}
	accept := ComputeAcceptKey(key)
	return &HandshakeResponse{
		StatusCode: http.StatusSwitchingProtocols,
		AcceptKey:  accept,
		Headers: []HeaderField{
			{HeaderUpgrade, "WebSocket"},
			{HeaderConnection, "Upgrade"},
			{HeaderSecWebSocketAcc, accept},
		},
	}, nil
}

// Bytes renders the response exactly as written to the socket.
func (r *HandshakeResponse) Bytes() []byte {
	var sb strings.Builder
	sb.WriteString(switchingProtocolsLine)
	sb.WriteString("\r\n")
	for _, f := range r.Headers {
		sb.WriteString(f.Name)
		sb.WriteString(": ")
		sb.WriteString(f.Value)
		sb.WriteString("\r\n")
	}
	sb.WriteString("\r\n")
	return []byte(sb.String())
}

// WriteTo writes the serialized response to w.
func (r *HandshakeResponse) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.Bytes())
	if err != nil {
		return int64(n), fmt.Errorf("write handshake response: %w", err)
	}
	return int64(n), nil
}

// IsUpgradeRequest reports whether r asks for a WebSocket upgrade.
func IsUpgradeRequest(r *http.Request) bool {
	return headerContainsToken(r.Header, HeaderConnection, "upgrade") &&
		headerContainsToken(r.Header, HeaderUpgrade, "websocket")
}

// headerContainsToken checks for a comma-separated token, case-insensitive.
func headerContainsToken(h http.Header, headerName, token string) bool {
	for _, v := range h.Values(headerName) {
		for _, p := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(p), token) {
				return true
			}
		}
	}
	return false
}
