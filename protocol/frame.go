// Package protocol
// Author: momentics <momentics@gmail.com>
//
// WebSocket frame model and masking logic.

package protocol

import "fmt"

// Direction tells the decoder which masking rule applies.
type Direction uint8

const (
	// ClientToServer frames must be masked.
	ClientToServer Direction = iota
	// ServerToClient frames must not be masked.
	ServerToClient
)

func (d Direction) String() string {
	if d == ServerToClient {
		return "server-to-client"
	}
	return "client-to-server"
}

// WSFrame represents a decoded WebSocket frame.
type WSFrame struct {
	IsFinal    bool  // FIN bit
	Rsv        byte  // RSV1-3, shifted down; always 0 without extensions
	Opcode     byte  // Operation code
	Masked     bool  // Whether the frame was masked on the wire
	PayloadLen int64 // Actual payload length
	MaskKey    [4]byte
	Payload    []byte // Always unmasked
	WireLen    int    // Bytes the frame occupied on the wire
}

// IsControl reports whether the frame carries a control opcode.
func (f *WSFrame) IsControl() bool {
	return f.Opcode&0x08 != 0
}

// String renders a compact description for logs.
func (f *WSFrame) String() string {
	return fmt.Sprintf("%s fin=%t masked=%t len=%d wire=%d",
		OpcodeName(f.Opcode), f.IsFinal, f.Masked, f.PayloadLen, f.WireLen)
}

// OpcodeName returns a readable opcode name.
func OpcodeName(op byte) string {
	switch op {
	case OpcodeContinuation:
		return "continuation"
	case OpcodeText:
		return "text"
	case OpcodeBinary:
		return "binary"
	case OpcodeClose:
		return "close"
	case OpcodePing:
		return "ping"
	case OpcodePong:
		return "pong"
	default:
		return fmt.Sprintf("opcode(0x%X)", op)
	}
}

// maskBytes XORs src with key cyclically into dst. dst and src may alias.
func maskBytes(dst, src []byte, key [4]byte) {
	for i := range src {
		dst[i] = src[i] ^ key[i%4]
	}
}
