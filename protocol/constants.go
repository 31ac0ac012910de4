// Package protocol
// Author: momentics <momentics@gmail.com>
//
// WebSocket wire protocol constants

package protocol

const (
	// Data and control opcodes
	OpcodeContinuation = 0x0
	OpcodeText         = 0x1
	OpcodeBinary       = 0x2
	OpcodeClose        = 0x8
	OpcodePing         = 0x9
	OpcodePong         = 0xA

	// Frame limit settings
	MaxControlPayloadLen = 125
	MaxFrameHeaderLen    = 14 // for extended payloads with masking
	MaxFramePayload      = 1 << 20

	// Bit masks
	FinBit     = 0x80
	RsvBits    = 0x70
	OpcodeBits = 0x0F
	MaskBit    = 0x80
	LenBits    = 0x7F

	// Extended length markers
	len16Marker = 126
	len64Marker = 127
)

// Fixed application payloads.
const (
	// ReloadPayload is the text sent to the browser to request a reload.
	ReloadPayload = ":)"
	// PingPayload is carried by every liveness ping and must be echoed back.
	PingPayload = "ping"
	// PongWireLen is the only accepted size of a client pong on the wire:
	// two header bytes, four mask bytes and the echoed "ping".
	PongWireLen = 2 + 4 + len(PingPayload)
)
