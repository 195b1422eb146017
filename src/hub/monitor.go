package hub

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/krissistrunk/restaurant-realtime/src/metrics"
	"github.com/krissistrunk/restaurant-realtime/src/types"
)

// Monitor periodically probes every connection and evicts the ones that
// never answered the previous probe. A connection that stays silent is
// gone within two periods and never within the first, so one missed probe
// is tolerated.
type Monitor struct {
	hub    *Hub
	period time.Duration
	logger zerolog.Logger

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMonitor creates a liveness monitor for h. Call Start to start it.
func NewMonitor(h *Hub, period time.Duration, logger zerolog.Logger) *Monitor {
	return &Monitor{
		hub:    h,
		period: period,
		logger: logger.With().Str("component", "monitor").Logger(),
		done:   make(chan struct{}),
	}
}

// Start launches the probe cycle in its own goroutine. The wait group is
// armed before the goroutine exists so a Stop racing Start cannot return
// while the cycle is still coming up.
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.run()
}

func (m *Monitor) run() {
	defer m.wg.Done()

	ticker := m.hub.clock.NewTicker(m.period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			m.sweep()
		case <-m.done:
			return
		}
	}
}

// Stop halts the probe cycle and waits for the timer to drain.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
	m.wg.Wait()
}

// sweep evicts every connection still marked not-alive from the previous
// cycle, then resets the flag on the survivors and probes them.
func (m *Monitor) sweep() {
	m.hub.mu.RLock()
	snapshot := make([]*Client, 0, len(m.hub.clients))
	for _, c := range m.hub.clients {
		snapshot = append(snapshot, c)
	}
	m.hub.mu.RUnlock()

	probe := mustEnvelope(types.TypePing, "", nil)

	for _, c := range snapshot {
		if !c.alive.Load() {
			m.logger.Info().Str("client_id", c.ID).Msg("evicting unresponsive client")
			metrics.LivenessEvictionsTotal.Inc()
			m.hub.Teardown(c)
			continue
		}
		c.alive.Store(false)
		m.hub.sendTo(c, probe)
	}
}
