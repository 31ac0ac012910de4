package session_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/momentics/hioload-livereload/api"
	"github.com/momentics/hioload-livereload/fake"
	"github.com/momentics/hioload-livereload/internal/session"
)

func TestSessionCancelIdempotent(t *testing.T) {
	s := session.New(fake.NewConn())
	assert.Equal(t, session.StateHandshaking, s.State())
	assert.False(t, s.Cancelled())

	s.Cancel()
	s.Cancel()
	assert.True(t, s.Cancelled())
	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed after Cancel")
	}
}

func TestSessionWriteFailure(t *testing.T) {
	conn := fake.NewConn()
	s := session.New(conn)

	assert.NoError(t, s.Write([]byte{0x89, 0x00}))
	assert.Equal(t, 1, conn.WriteCount())

	cause := errors.New("connection reset")
	conn.SetWriteError(cause)
	err := s.Write([]byte{0x89, 0x00})
	assert.ErrorIs(t, err, api.ErrWriteFailure)
	assert.ErrorIs(t, err, cause)
}

func TestSessionCloseOnce(t *testing.T) {
	conn := fake.NewConn()
	s := session.New(conn)

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.Equal(t, 1, conn.CloseCount())
	assert.Equal(t, session.StateDisconnected, s.State())
	assert.True(t, s.Cancelled(), "closing stops the liveness timer")
}

func TestSessionAge(t *testing.T) {
	s := session.New(fake.NewConn())
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, s.Age(), 5*time.Millisecond)
}
