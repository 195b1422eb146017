package hub

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krissistrunk/restaurant-realtime/src/types"
)

const probePeriod = 30 * time.Second

func startMonitor(t *testing.T, h *Hub) *Monitor {
	t.Helper()
	m := NewMonitor(h, probePeriod, zerolog.Nop())
	m.Start()
	t.Cleanup(m.Stop)
	return m
}

func TestUnresponsiveClientEvictedWithinTwoCycles(t *testing.T) {
	h, fc := newTestHub(t)
	c, _ := registerClient(t, h)
	authenticate(t, h, c, 2, "t2")
	require.NoError(t, h.Subscribe(c, "restaurant:1:orders"))

	startMonitor(t, h)

	// First cycle: the client is probed but never evicted, even though it
	// has not sent anything yet.
	fc.BlockUntil(1)
	fc.Advance(probePeriod)

	probe := recvEnvelope(t, c)
	assert.Equal(t, types.TypePing, probe.Type)
	assert.Equal(t, 1, h.ClientCount())

	// Second cycle: still silent, so it is gone from both registries.
	fc.BlockUntil(1)
	fc.Advance(probePeriod)

	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, h.Channels())
	assert.Equal(t, 0, h.Stats().TotalConnections)
}

func TestResponsiveClientSurvivesIndefinitely(t *testing.T) {
	h, fc := newTestHub(t)
	c, conn := registerClient(t, h)
	go c.ReadPump()

	startMonitor(t, h)

	for cycle := 0; cycle < 3; cycle++ {
		fc.BlockUntil(1)
		fc.Advance(probePeriod)

		probe := recvEnvelope(t, c)
		require.Equal(t, types.TypePing, probe.Type)

		// Answer through the transport so the read pump records liveness.
		conn.readCh <- []byte(`{"type":"pong"}`)
		require.Eventually(t, func() bool { return c.alive.Load() }, time.Second, time.Millisecond)
	}

	assert.Equal(t, 1, h.ClientCount())
}

func TestAnyMessageCountsAsLiveness(t *testing.T) {
	h, fc := newTestHub(t)
	c, conn := registerClient(t, h)
	go c.ReadPump()

	startMonitor(t, h)

	fc.BlockUntil(1)
	fc.Advance(probePeriod)
	probe := recvEnvelope(t, c)
	require.Equal(t, types.TypePing, probe.Type)

	// An unrelated message, not a pong, resets the alive flag.
	conn.readCh <- []byte(`{"type":"ping","payload":{"n":1}}`)
	require.Eventually(t, func() bool { return c.alive.Load() }, time.Second, time.Millisecond)
	recvEnvelope(t, c) // the pong echo

	fc.BlockUntil(1)
	fc.Advance(probePeriod)
	probe = recvEnvelope(t, c)
	require.Equal(t, types.TypePing, probe.Type)
	assert.Equal(t, 1, h.ClientCount())
}

func TestMonitorStopIsIdempotent(t *testing.T) {
	h, _ := newTestHub(t)
	m := NewMonitor(h, probePeriod, zerolog.Nop())
	m.Start()

	m.Stop()
	m.Stop()
}

func TestMonitorStopBeforeStart(t *testing.T) {
	h, _ := newTestHub(t)
	m := NewMonitor(h, probePeriod, zerolog.Nop())

	// Stop on a never-started monitor returns immediately instead of
	// waiting on a cycle that does not exist.
	m.Stop()
}

func TestMonitorStartStopRace(t *testing.T) {
	h, _ := newTestHub(t)

	for i := 0; i < 100; i++ {
		m := NewMonitor(h, probePeriod, zerolog.Nop())
		m.Start()
		m.Stop()
	}
}
