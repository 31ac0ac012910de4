package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-livereload/api"
	"github.com/momentics/hioload-livereload/protocol"
)

func maskedPong(t *testing.T) []byte {
	t.Helper()
	raw, err := protocol.EncodeFrame(protocol.OpcodePong, []byte(protocol.PingPayload), true)
	require.NoError(t, err)
	return raw
}

func TestFrameReaderReassemblesSplitFrame(t *testing.T) {
	raw := maskedPong(t)
	r := protocol.NewFrameReader(protocol.ClientToServer)

	for i := 0; i < len(raw)-1; i++ {
		r.Feed(raw[i : i+1])
		f, err := r.Next()
		require.NoError(t, err)
		require.Nil(t, f, "frame yielded after %d bytes", i+1)
	}
	r.Feed(raw[len(raw)-1:])
	f, err := r.Next()
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, protocol.PongWireLen, f.WireLen)
	assert.Equal(t, []byte("ping"), f.Payload)
	assert.Zero(t, r.Buffered())
}

func TestFrameReaderYieldsCoalescedFramesInOrder(t *testing.T) {
	r := protocol.NewFrameReader(protocol.ClientToServer)
	r.Feed(append(maskedPong(t), 0x88, 0x80, 1, 2, 3, 4))

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, byte(protocol.OpcodePong), first.Opcode)

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, byte(protocol.OpcodeClose), second.Opcode)

	third, err := r.Next()
	require.NoError(t, err)
	assert.Nil(t, third)
}

func TestFrameReaderDiscardsOnMalformed(t *testing.T) {
	r := protocol.NewFrameReader(protocol.ClientToServer)
	r.Feed([]byte{0x81, 0x02, 'h', 'i'})

	f, err := r.Next()
	assert.ErrorIs(t, err, api.ErrMalformedFrame)
	assert.Nil(t, f)
	assert.Zero(t, r.Buffered())

	// The reader keeps working after the bad frame is dropped.
	r.Feed(maskedPong(t))
	f, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, byte(protocol.OpcodePong), f.Opcode)
}
