package pool_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/momentics/hioload-livereload/pool"
)

func TestBytePoolSizes(t *testing.T) {
	bp := pool.NewBytePool(128)
	buf := bp.GetBuffer()
	assert.Len(t, buf, 128)
	bp.PutBuffer(buf[:10])
	assert.Len(t, bp.GetBuffer(), 128, "returned buffers are restored to full length")

	assert.Equal(t, pool.DefaultBufferSize, pool.NewBytePool(0).Size())
}

func TestBytePoolIgnoresForeignBuffers(t *testing.T) {
	bp := pool.NewBytePool(64)
	bp.PutBuffer(make([]byte, 32))
	assert.Len(t, bp.GetBuffer(), 64)
}
