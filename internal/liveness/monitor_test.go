package liveness_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-livereload/api"
	"github.com/momentics/hioload-livereload/control"
	"github.com/momentics/hioload-livereload/fake"
	"github.com/momentics/hioload-livereload/internal/concurrency"
	"github.com/momentics/hioload-livereload/internal/liveness"
	"github.com/momentics/hioload-livereload/internal/logger"
	"github.com/momentics/hioload-livereload/internal/session"
	"github.com/momentics/hioload-livereload/protocol"
)

type fixture struct {
	reg     *session.Registry
	mon     *liveness.Monitor
	metrics *control.MetricsRegistry
}

// newFixture wires a monitor whose ticks run on a real event loop.
func newFixture(t *testing.T, interval time.Duration) *fixture {
	t.Helper()
	log := logger.Discard()
	metrics := control.NewMetricsRegistry()
	reg := session.NewRegistry(session.WithLogger(log), session.WithMetrics(metrics))
	loop := concurrency.NewEventLoop(0)
	mon := liveness.New(reg, loop,
		liveness.WithInterval(interval),
		liveness.WithLogger(log),
		liveness.WithMetrics(metrics),
	)
	loop.RegisterHandler(concurrency.EventHandlerFunc(func(ev concurrency.Event) {
		if tick, ok := ev.Data.(liveness.Tick); ok {
			_ = mon.Tick(tick.Session)
		}
	}))
	go loop.Run()
	t.Cleanup(func() {
		reg.Clear()
		loop.Stop()
		mon.Wait()
	})
	return &fixture{reg: reg, mon: mon, metrics: metrics}
}

func pingCount(c *fake.Conn) int {
	return c.CountWrites(protocol.PingFrame())
}

func maskedFrame(t *testing.T, opcode byte, payload string) []byte {
	t.Helper()
	raw, err := protocol.EncodeFrameToBytes(&protocol.WSFrame{
		IsFinal: true,
		Opcode:  opcode,
		Masked:  true,
		MaskKey: [4]byte{0x11, 0x22, 0x33, 0x44},
		Payload: []byte(payload),
	})
	require.NoError(t, err)
	return raw
}

func TestDefaultInterval(t *testing.T) {
	mon := liveness.New(session.NewRegistry(), liveness.PosterFunc(func(concurrency.Event) bool { return true }))
	assert.Equal(t, 5000*time.Millisecond, mon.Interval())
}

func TestTimerSendsPings(t *testing.T) {
	f := newFixture(t, 10*time.Millisecond)
	conn := fake.NewConn()
	s := f.reg.Install(conn)
	f.mon.Start(s)

	require.Eventually(t, func() bool { return pingCount(conn) >= 3 }, time.Second, 5*time.Millisecond)
	for _, w := range conn.Writes() {
		assert.Equal(t, []byte{0x89, 0x04, 0x70, 0x69, 0x6E, 0x67}, w)
	}
	assert.GreaterOrEqual(t, f.metrics.Counter(control.MetricPingsSent), int64(3))
}

func TestValidPongAccepted(t *testing.T) {
	f := newFixture(t, time.Hour)
	s := f.reg.Install(fake.NewConn())

	raw := maskedFrame(t, protocol.OpcodePong, "ping")
	require.Len(t, raw, protocol.PongWireLen)
	frame, _, err := protocol.DecodeFrameFromBytes(raw, protocol.ClientToServer)
	require.NoError(t, err)

	assert.NoError(t, f.mon.HandleFrame(s, frame))
	assert.Same(t, s, f.reg.ActiveConnection())
	assert.Zero(t, f.metrics.Counter(control.MetricAnomalies))
}

func TestShortPongIsShapeAnomaly(t *testing.T) {
	f := newFixture(t, time.Hour)
	s := f.reg.Install(fake.NewConn())

	raw := maskedFrame(t, protocol.OpcodePong, "pin")
	require.Len(t, raw, 9)
	frame, _, err := protocol.DecodeFrameFromBytes(raw, protocol.ClientToServer)
	require.NoError(t, err)

	err = f.mon.HandleFrame(s, frame)
	assert.ErrorIs(t, err, api.ErrUnexpectedPongShape)
	assert.Same(t, s, f.reg.ActiveConnection(), "anomalies never tear down")
	assert.Equal(t, int64(1), f.metrics.Counter(control.MetricAnomalies))
}

func TestPongPayloadAnomaly(t *testing.T) {
	f := newFixture(t, time.Hour)
	s := f.reg.Install(fake.NewConn())

	frame, _, err := protocol.DecodeFrameFromBytes(maskedFrame(t, protocol.OpcodePong, "pong"), protocol.ClientToServer)
	require.NoError(t, err)

	err = f.mon.HandleFrame(s, frame)
	assert.ErrorIs(t, err, api.ErrUnexpectedPongPayload)
	assert.Same(t, s, f.reg.ActiveConnection())
}

func TestUnclassifiedFrames(t *testing.T) {
	f := newFixture(t, time.Hour)
	s := f.reg.Install(fake.NewConn())

	tests := []struct {
		name string
		raw  []byte
	}{
		{"text", maskedFrame(t, protocol.OpcodeText, "hello")},
		{"client ping", maskedFrame(t, protocol.OpcodePing, "x")},
		{"close with status", maskedFrame(t, protocol.OpcodeClose, "\x03\xe8")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, _, err := protocol.DecodeFrameFromBytes(tt.raw, protocol.ClientToServer)
			require.NoError(t, err)
			assert.ErrorIs(t, f.mon.HandleFrame(s, frame), api.ErrUnclassifiedFrame)
			assert.Same(t, s, f.reg.ActiveConnection())
		})
	}
}

func TestCanonicalCloseStopsPings(t *testing.T) {
	f := newFixture(t, 10*time.Millisecond)
	conn := fake.NewConn()
	s := f.reg.Install(conn)
	f.mon.Start(s)
	require.Eventually(t, func() bool { return pingCount(conn) >= 1 }, time.Second, 5*time.Millisecond)

	f.mon.Consume(s, []byte{0x88, 0x80, 0x01, 0x02, 0x03, 0x04})

	assert.Nil(t, f.reg.ActiveConnection())
	assert.True(t, s.Cancelled())
	assert.True(t, conn.IsClosed())
	assert.Equal(t, int64(1), f.metrics.Counter(control.MetricCloses))

	sent := pingCount(conn)
	assert.Never(t, func() bool { return pingCount(conn) > sent }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestCloseEchoesCloseFrame(t *testing.T) {
	f := newFixture(t, time.Hour)
	conn := fake.NewConn()
	s := f.reg.Install(conn)

	f.mon.Consume(s, []byte{0x88, 0x80, 0xAA, 0xBB, 0xCC, 0xDD})
	assert.Equal(t, 1, conn.CountWrites(protocol.CloseFrame()))
}

func TestReplacedSessionTimerGoesSilent(t *testing.T) {
	f := newFixture(t, 10*time.Millisecond)
	oldConn, newConn := fake.NewConn(), fake.NewConn()

	first := f.reg.Install(oldConn)
	f.mon.Start(first)
	require.Eventually(t, func() bool { return pingCount(oldConn) >= 1 }, time.Second, 5*time.Millisecond)

	second := f.reg.Install(newConn)
	f.mon.Start(second)
	// Let a tick already in flight for the old session drain.
	time.Sleep(30 * time.Millisecond)
	stale := pingCount(oldConn)

	require.Eventually(t, func() bool { return pingCount(newConn) >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, stale, pingCount(oldConn))
	assert.Same(t, second, f.reg.ActiveConnection())
}

func TestCloseOnReplacedSessionKeepsSuccessor(t *testing.T) {
	f := newFixture(t, time.Hour)
	oldConn := fake.NewConn()
	first := f.reg.Install(oldConn)
	second := f.reg.Install(fake.NewConn())

	f.mon.Consume(first, []byte{0x88, 0x80, 1, 2, 3, 4})
	assert.True(t, oldConn.IsClosed())
	assert.Same(t, second, f.reg.ActiveConnection())
}

func TestPingWriteFailureKeepsConnection(t *testing.T) {
	f := newFixture(t, time.Hour)
	conn := fake.NewConn()
	conn.SetWriteError(errors.New("broken pipe"))
	s := f.reg.Install(conn)

	err := f.mon.Tick(s)
	assert.ErrorIs(t, err, api.ErrWriteFailure)
	assert.Same(t, s, f.reg.ActiveConnection())
	assert.Equal(t, int64(1), f.metrics.Counter(control.MetricWriteFailures))
}

func TestTickIgnoresInactiveSession(t *testing.T) {
	f := newFixture(t, time.Hour)
	conn := fake.NewConn()
	s := f.reg.Install(conn)
	f.reg.Clear()

	assert.NoError(t, f.mon.Tick(s))
	assert.Zero(t, conn.WriteCount())
}

func TestConsumeSplitFrames(t *testing.T) {
	f := newFixture(t, time.Hour)
	s := f.reg.Install(fake.NewConn())

	raw := maskedFrame(t, protocol.OpcodePong, "ping")
	f.mon.Consume(s, raw[:3])
	f.mon.Consume(s, raw[3:])
	assert.Equal(t, int64(1), f.metrics.Counter(control.MetricPongsReceived))
	assert.Zero(t, f.metrics.Counter(control.MetricAnomalies))
}

func TestConsumeMalformedKeepsConnection(t *testing.T) {
	f := newFixture(t, time.Hour)
	conn := fake.NewConn()
	s := f.reg.Install(conn)

	f.mon.Consume(s, []byte{0x81, 0x02, 'h', 'i'})
	assert.Equal(t, int64(1), f.metrics.Counter(control.MetricMalformedFrames))
	assert.Same(t, s, f.reg.ActiveConnection())
	assert.False(t, conn.IsClosed())
	assert.Zero(t, s.Reader().Buffered())
}
