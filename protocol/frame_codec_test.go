package protocol_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-livereload/api"
	"github.com/momentics/hioload-livereload/protocol"
)

func TestFixedFrames(t *testing.T) {
	assert.Equal(t, []byte{0x81, 0x02, 0x3A, 0x29}, protocol.ReloadFrame())
	assert.Equal(t, []byte{0x89, 0x04, 0x70, 0x69, 0x6E, 0x67}, protocol.PingFrame())
	assert.Equal(t, []byte{0x88, 0x00}, protocol.CloseFrame())

	// Callers get their own copy.
	b := protocol.ReloadFrame()
	b[0] = 0
	assert.Equal(t, byte(0x81), protocol.ReloadFrame()[0])
}

func TestUnmaskedRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		opcode  byte
		payload []byte
	}{
		{"text", protocol.OpcodeText, []byte("hello")},
		{"empty text", protocol.OpcodeText, nil},
		{"ping", protocol.OpcodePing, []byte("ping")},
		{"pong", protocol.OpcodePong, []byte("ping")},
		{"text 16-bit length", protocol.OpcodeText, bytes.Repeat([]byte{'a'}, 300)},
		{"binary 64-bit length", protocol.OpcodeBinary, bytes.Repeat([]byte{'b'}, 70000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := protocol.EncodeFrame(tt.opcode, tt.payload, false)
			require.NoError(t, err)

			f, n, err := protocol.DecodeFrameFromBytes(raw, protocol.ServerToClient)
			require.NoError(t, err)
			require.NotNil(t, f)
			assert.Equal(t, len(raw), n)
			assert.Equal(t, len(raw), f.WireLen)
			assert.True(t, f.IsFinal)
			assert.False(t, f.Masked)
			assert.Equal(t, tt.opcode, f.Opcode)
			assert.Equal(t, int64(len(tt.payload)), f.PayloadLen)
			assert.Equal(t, len(tt.payload), len(f.Payload))
			if len(tt.payload) > 0 {
				assert.Equal(t, tt.payload, f.Payload)
			}
		})
	}
}

func TestMaskedRoundTrip(t *testing.T) {
	payload := []byte("live reload payload")
	orig := append([]byte(nil), payload...)

	raw, err := protocol.EncodeFrame(protocol.OpcodeText, payload, true)
	require.NoError(t, err)
	assert.Equal(t, orig, payload, "input must not be mutated")
	assert.Equal(t, byte(0x80|len(payload)), raw[1])

	f, n, err := protocol.DecodeFrameFromBytes(raw, protocol.ClientToServer)
	require.NoError(t, err)
	assert.Equal(t, len(raw), n)
	assert.True(t, f.Masked)
	assert.Equal(t, orig, f.Payload)
}

func TestEncodeWithExplicitMaskKey(t *testing.T) {
	f := &protocol.WSFrame{
		IsFinal: true,
		Opcode:  protocol.OpcodePong,
		Masked:  true,
		MaskKey: [4]byte{0x01, 0x02, 0x03, 0x04},
		Payload: []byte("ping"),
	}
	raw, err := protocol.EncodeFrameToBytes(f)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x8A, 0x84, 0x01, 0x02, 0x03, 0x04, 'p' ^ 1, 'i' ^ 2, 'n' ^ 3, 'g' ^ 4}, raw)
	assert.Len(t, raw, protocol.PongWireLen)
}

func TestEncodeRejectsOversizedControl(t *testing.T) {
	_, err := protocol.EncodeFrame(protocol.OpcodePing, make([]byte, 126), false)
	assert.ErrorIs(t, err, api.ErrMalformedFrame)

	_, err = protocol.EncodeFrameToBytes(&protocol.WSFrame{Opcode: protocol.OpcodeClose})
	assert.ErrorIs(t, err, api.ErrMalformedFrame, "control frames must be final")
}

func TestDecodeIncomplete(t *testing.T) {
	raw, err := protocol.EncodeFrame(protocol.OpcodeText, bytes.Repeat([]byte{'x'}, 200), true)
	require.NoError(t, err)

	for _, cut := range []int{0, 1, 2, 3, 4, 7, len(raw) - 1} {
		f, n, err := protocol.DecodeFrameFromBytes(raw[:cut], protocol.ClientToServer)
		assert.NoError(t, err, "cut=%d", cut)
		assert.Nil(t, f, "cut=%d", cut)
		assert.Zero(t, n, "cut=%d", cut)
	}
}

func TestDecodeConsumesOnlyOneFrame(t *testing.T) {
	a := protocol.PingFrame()
	b := protocol.ReloadFrame()
	f, n, err := protocol.DecodeFrameFromBytes(append(a, b...), protocol.ServerToClient)
	require.NoError(t, err)
	assert.Equal(t, len(a), n)
	assert.Equal(t, byte(protocol.OpcodePing), f.Opcode)
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		dir  protocol.Direction
	}{
		{"rsv bits", []byte{0x81 | 0x40, 0x80, 0, 0, 0, 0}, protocol.ClientToServer},
		{"unmasked from client", []byte{0x81, 0x00}, protocol.ClientToServer},
		{"masked from server", []byte{0x81, 0x80, 0, 0, 0, 0}, protocol.ServerToClient},
		{"fragmented control", []byte{0x09, 0x80, 0, 0, 0, 0}, protocol.ClientToServer},
		{"oversized control", []byte{0x89, 0x80 | 126, 0x00, 0x7E}, protocol.ClientToServer},
		{"non-minimal 16-bit", []byte{0x81, 0x80 | 126, 0x00, 0x05}, protocol.ClientToServer},
		{"non-minimal 64-bit", []byte{0x81, 0x80 | 127, 0, 0, 0, 0, 0, 0, 0x01, 0x00}, protocol.ClientToServer},
		{"64-bit msb", []byte{0x81, 0x80 | 127, 0x80, 0, 0, 0, 0, 0, 0, 0}, protocol.ClientToServer},
		{"above limit", []byte{0x82, 0x80 | 127, 0, 0, 0, 0, 0, 0x20, 0, 0}, protocol.ClientToServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, n, err := protocol.DecodeFrameFromBytes(tt.raw, tt.dir)
			assert.ErrorIs(t, err, api.ErrMalformedFrame)
			assert.Nil(t, f)
			assert.Zero(t, n)
		})
	}
}

func TestCanonicalCloseDecodes(t *testing.T) {
	raw := []byte{0x88, 0x80, 0xAA, 0xBB, 0xCC, 0xDD}
	f, n, err := protocol.DecodeFrameFromBytes(raw, protocol.ClientToServer)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, byte(protocol.OpcodeClose), f.Opcode)
	assert.True(t, f.IsControl())
	assert.Empty(t, f.Payload)
	assert.Equal(t, [4]byte{0xAA, 0xBB, 0xCC, 0xDD}, f.MaskKey)
}
