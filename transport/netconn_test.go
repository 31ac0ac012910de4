package transport

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-livereload/api"
	"github.com/momentics/hioload-livereload/pool"
)

func TestNetConnWriteAndReadLoop(t *testing.T) {
	server, client := net.Pipe()
	nc := NewNetConn(server, pool.NewBytePool(16), time.Second)

	var mu sync.Mutex
	var got []byte
	done := make(chan error, 1)
	go func() {
		done <- nc.ReadLoop(func(chunk []byte) {
			mu.Lock()
			got = append(got, chunk...)
			mu.Unlock()
		})
	}()

	_, err := client.Write([]byte("0123456789abcdefXYZ"))
	require.NoError(t, err)

	go func() {
		buf := make([]byte, 4)
		_, _ = client.Read(buf)
	}()
	n, err := nc.Write([]byte{0x81, 0x02, 0x3A, 0x29})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	require.NoError(t, client.Close())
	assert.NoError(t, <-done, "peer hang-up ends the loop cleanly")
	mu.Lock()
	assert.Equal(t, "0123456789abcdefXYZ", string(got))
	mu.Unlock()
}

func TestNetConnWriteTimeout(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	nc := NewNetConn(server, pool.NewBytePool(0), 20*time.Millisecond)

	_, err := nc.Write([]byte("nobody reads this"))
	var ne net.Error
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Timeout())
}

func TestNetConnClosed(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	nc := NewNetConn(server, pool.NewBytePool(0), 0)
	assert.Equal(t, "pipe", nc.RemoteAddr())

	require.NoError(t, nc.Close())
	_, err := nc.Write([]byte{1})
	assert.ErrorIs(t, err, api.ErrTransportClosed)
}
