// File: protocol/frame_codec.go
// Package protocol implements the frame codec with frame size enforcement.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Implements WebSocket frame encoding/decoding with payload size limits
// and the RFC 6455 masking and length-encoding rules.

package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/momentics/hioload-livereload/api"
)

var (
	reloadFrame = mustEncode(OpcodeText, []byte(ReloadPayload))
	pingFrame   = mustEncode(OpcodePing, []byte(PingPayload))
	closeFrame  = mustEncode(OpcodeClose, nil)
)

// ReloadFrame returns the unmasked text frame 81 02 3A 29.
func ReloadFrame() []byte { return clone(reloadFrame) }

// PingFrame returns the unmasked ping frame 89 04 70 69 6E 67.
func PingFrame() []byte { return clone(pingFrame) }

// CloseFrame returns the unmasked empty close frame 88 00.
func CloseFrame() []byte { return clone(closeFrame) }

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", api.ErrMalformedFrame, fmt.Sprintf(format, args...))
}

// DecodeFrameFromBytes parses raw WebSocket frame into WSFrame,
// enforcing maximum payload size and the masking rule for dir.
// Returns frame, consumed bytes, and error.
// If frame is incomplete, returns (nil, 0, nil).
func DecodeFrameFromBytes(raw []byte, dir Direction) (*WSFrame, int, error) {
	if len(raw) < 2 {
		return nil, 0, nil // Incomplete
	}
	fin := raw[0]&FinBit != 0
	rsv := (raw[0] & RsvBits) >> 4
	opcode := raw[0] & OpcodeBits
	masked := raw[1]&MaskBit != 0
	length := int64(raw[1] & LenBits)
	offset := 2

	if rsv != 0 {
		return nil, 0, malformed("reserved bits 0x%X set without extension", rsv)
	}
	switch {
	case dir == ClientToServer && !masked:
		return nil, 0, malformed("unmasked %s frame from client", OpcodeName(opcode))
	case dir == ServerToClient && masked:
		return nil, 0, malformed("masked %s frame from server", OpcodeName(opcode))
	}
	if opcode&0x08 != 0 {
		if !fin {
			return nil, 0, malformed("fragmented %s frame", OpcodeName(opcode))
		}
		if length > MaxControlPayloadLen {
			return nil, 0, malformed("%s frame declares %d payload bytes", OpcodeName(opcode), length)
		}
	}

	switch length {
	case len16Marker:
		if len(raw) < offset+2 {
			return nil, 0, nil // Incomplete
		}
		length = int64(binary.BigEndian.Uint16(raw[offset:]))
		offset += 2
		if length <= MaxControlPayloadLen {
			return nil, 0, malformed("length %d not minimally encoded", length)
		}
	case len64Marker:
		if len(raw) < offset+8 {
			return nil, 0, nil // Incomplete
		}
		ext := binary.BigEndian.Uint64(raw[offset:])
		offset += 8
		if ext>>63 != 0 {
			return nil, 0, malformed("64-bit length has most significant bit set")
		}
		length = int64(ext)
		if length <= 0xFFFF {
			return nil, 0, malformed("length %d not minimally encoded", length)
		}
	}

	if length > MaxFramePayload {
		return nil, 0, malformed("payload of %d bytes exceeds limit %d", length, MaxFramePayload)
	}

	var maskKey [4]byte
	if masked {
		if len(raw) < offset+4 {
			return nil, 0, nil // Incomplete
		}
		copy(maskKey[:], raw[offset:offset+4])
		offset += 4
	}

	totalLen := offset + int(length)
	if len(raw) < totalLen {
		return nil, 0, nil // Incomplete
	}

	payload := make([]byte, length)
	if masked {
		maskBytes(payload, raw[offset:totalLen], maskKey)
	} else {
		copy(payload, raw[offset:totalLen])
	}

	return &WSFrame{
		IsFinal:    fin,
		Rsv:        rsv,
		Opcode:     opcode,
		Masked:     masked,
		PayloadLen: length,
		MaskKey:    maskKey,
		Payload:    payload,
		WireLen:    totalLen,
	}, totalLen, nil
}

// EncodeFrame builds a final frame for opcode. When masked is set a fresh
// random key is drawn and the payload is masked on the wire; payload itself
// is never modified.
func EncodeFrame(opcode byte, payload []byte, masked bool) ([]byte, error) {
	f := &WSFrame{
		IsFinal:    true,
		Opcode:     opcode,
		Masked:     masked,
		PayloadLen: int64(len(payload)),
		Payload:    payload,
	}
	if masked {
		if _, err := rand.Read(f.MaskKey[:]); err != nil {
			return nil, fmt.Errorf("generate mask key: %w", err)
		}
	}
	return EncodeFrameToBytes(f)
}

// EncodeFrameToBytes serializes WSFrame into []byte using f.MaskKey when
// f.Masked is set.
func EncodeFrameToBytes(f *WSFrame) ([]byte, error) {
	return EncodeFrameToBuffer(f, nil)
}

// EncodeFrameToBuffer serializes WSFrame into a caller-managed buffer,
// minimizing allocations. Returned slice aliases dst.
func EncodeFrameToBuffer(f *WSFrame, dst []byte) ([]byte, error) {
	plen := len(f.Payload)
	if f.Opcode > OpcodeBits {
		return nil, malformed("opcode 0x%X out of range", f.Opcode)
	}
	if plen > MaxFramePayload {
		return nil, malformed("payload of %d bytes exceeds limit %d", plen, MaxFramePayload)
	}
	if f.IsControl() {
		if plen > MaxControlPayloadLen {
			return nil, malformed("%s payload of %d bytes exceeds %d", OpcodeName(f.Opcode), plen, MaxControlPayloadLen)
		}
		if !f.IsFinal {
			return nil, malformed("fragmented %s frame", OpcodeName(f.Opcode))
		}
	}

	var b0 byte
	if f.IsFinal {
		b0 = FinBit
	}
	b0 |= f.Opcode & OpcodeBits

	var maskBit byte
	if f.Masked {
		maskBit = MaskBit
	}

	var hdr [MaxFrameHeaderLen]byte
	hdr[0] = b0
	n := 2
	switch {
	case plen <= MaxControlPayloadLen:
		hdr[1] = byte(plen) | maskBit
	case plen <= 0xFFFF:
		hdr[1] = len16Marker | maskBit
		binary.BigEndian.PutUint16(hdr[2:], uint16(plen))
		n += 2
	default:
		hdr[1] = len64Marker | maskBit
		binary.BigEndian.PutUint64(hdr[2:], uint64(plen))
		n += 8
	}
	if f.Masked {
		copy(hdr[n:], f.MaskKey[:])
		n += 4
	}

	dst = append(dst[:0], hdr[:n]...)
	start := len(dst)
	dst = append(dst, f.Payload...)
	if f.Masked {
		maskBytes(dst[start:], dst[start:], f.MaskKey)
	}
	return dst, nil
}

func mustEncode(opcode byte, payload []byte) []byte {
	b, err := EncodeFrameToBytes(&WSFrame{IsFinal: true, Opcode: opcode, Payload: payload, PayloadLen: int64(len(payload))})
	if err != nil {
		panic(err)
	}
	return b
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
