// Package hub tracks live connections and their channel subscriptions, and
// fans out envelopes to the right subset of them.
package hub

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/krissistrunk/restaurant-realtime/config"
	"github.com/krissistrunk/restaurant-realtime/src/identity"
	"github.com/krissistrunk/restaurant-realtime/src/metrics"
	"github.com/krissistrunk/restaurant-realtime/src/types"
)

var (
	// ErrHubClosed is returned by Register after Shutdown.
	ErrHubClosed = errors.New("hub closed")

	// ErrServerFull is returned by Register at the connection cap.
	ErrServerFull = errors.New("connection limit reached")

	// ErrNotAuthorized is returned by Subscribe on policy denial.
	ErrNotAuthorized = errors.New("not authorized for channel")
)

// Hub owns the connection registry and the channel registry. Both maps sit
// behind one coarse mutex: every operation is short and O(subscribers), so
// a single lock keeps the two registries consistent without any ordering
// concerns between them.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	channels map[string]map[*Client]struct{}
	closed   bool

	provider       identity.Provider
	clock          clockwork.Clock
	logger         zerolog.Logger
	maxConnections int
	sendBufferSize int
	authTimeout    time.Duration
}

// New creates a hub. The identity provider is consulted during the auth
// handshake; the clock drives envelope timestamps and the monitor.
func New(cfg *config.Config, provider identity.Provider, clock clockwork.Clock, logger zerolog.Logger) *Hub {
	return &Hub{
		clients:        make(map[string]*Client),
		channels:       make(map[string]map[*Client]struct{}),
		provider:       provider,
		clock:          clock,
		logger:         logger.With().Str("component", "hub").Logger(),
		maxConnections: cfg.MaxConnections,
		sendBufferSize: cfg.SendBufferSize,
		authTimeout:    cfg.AuthTimeout,
	}
}

// Register adds a connection in the unauthenticated state and greets it
// with a connected envelope.
func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.close()
		return ErrHubClosed
	}
	if len(h.clients) >= h.maxConnections {
		h.mu.Unlock()
		c.close()
		h.logger.Warn().Str("client_id", c.ID).Int("max", h.maxConnections).Msg("rejecting client, connection limit reached")
		return ErrServerFull
	}
	h.clients[c.ID] = c
	total := len(h.clients)
	h.mu.Unlock()

	metrics.ActiveConnections.Set(float64(total))
	h.logger.Info().Str("client_id", c.ID).Int("total", total).Msg("client registered")

	h.sendTo(c, mustEnvelope(types.TypeConnected, "", map[string]string{"message": "connected"}))
	return nil
}

// Teardown is the single exit path for every connection: transport error,
// slow-client eviction, liveness eviction and shutdown all funnel here. It
// removes the client from both registries atomically, so once it returns
// no broadcast can reference the connection. Idempotent.
func (h *Hub) Teardown(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		c.close()
		return
	}
	delete(h.clients, c.ID)
	for name := range c.channels {
		if subs, ok := h.channels[name]; ok {
			delete(subs, c)
			if len(subs) == 0 {
				delete(h.channels, name)
			}
		}
	}
	c.channels = make(map[string]struct{})
	total := len(h.clients)
	chans := len(h.channels)
	h.mu.Unlock()

	c.close()
	metrics.ActiveConnections.Set(float64(total))
	metrics.ActiveChannels.Set(float64(chans))
	h.logger.Info().Str("client_id", c.ID).Int("total", total).Msg("client unregistered")
}

// AttachIdentity binds an authenticated identity to the connection. The
// identity is fixed from this point on; a repeated auth replaces it for
// this connection only.
func (h *Hub) AttachIdentity(c *Client, id types.Identity) {
	h.mu.Lock()
	c.identity = &id
	h.mu.Unlock()
}

// Shutdown tears down every connection and refuses new registrations.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	remaining := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		remaining = append(remaining, c)
	}
	h.mu.Unlock()

	for _, c := range remaining {
		h.Teardown(c)
	}
	h.logger.Info().Int("disconnected", len(remaining)).Msg("hub shut down")
}

func mustEnvelope(t types.MessageType, channel string, payload any) types.Envelope {
	env, err := types.NewEnvelope(t, channel, payload)
	if err != nil {
		// Server-built payloads are plain structs and maps; marshal
		// failure here is a programming error.
		panic(err)
	}
	return env
}
