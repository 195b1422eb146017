package hub

import (
	"github.com/krissistrunk/restaurant-realtime/src/metrics"
	"github.com/krissistrunk/restaurant-realtime/src/policy"
	"github.com/krissistrunk/restaurant-realtime/src/types"
)

// Subscribe checks the authorization policy and, on approval, adds the
// client to the named channel's subscriber set, creating the channel
// lazily. On denial nothing changes and ErrNotAuthorized is returned.
func (h *Hub) Subscribe(c *Client, channel string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !policy.Authorize(c.identity, channel) {
		return ErrNotAuthorized
	}
	if _, ok := h.clients[c.ID]; !ok {
		return ErrHubClosed
	}
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[*Client]struct{})
		h.channels[channel] = subs
	}
	subs[c] = struct{}{}
	c.channels[channel] = struct{}{}
	metrics.ActiveChannels.Set(float64(len(h.channels)))

	h.logger.Debug().Str("client_id", c.ID).Str("channel", channel).Msg("subscribed")
	return nil
}

// Unsubscribe removes the client from the channel. Unsubscribing from a
// channel the client was never in is a no-op success. A channel whose
// subscriber set empties is deleted on the spot.
func (h *Hub) Unsubscribe(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(c.channels, channel)
	subs, ok := h.channels[channel]
	if !ok {
		return
	}
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.channels, channel)
	}
	metrics.ActiveChannels.Set(float64(len(h.channels)))

	h.logger.Debug().Str("client_id", c.ID).Str("channel", channel).Msg("unsubscribed")
}

// BroadcastToChannel stamps the envelope once and enqueues the identical
// bytes to every subscriber. A channel with no subscribers is a no-op.
// Enqueueing happens under the exclusive registry lock: it is the point of
// serialization, so every subscriber of a channel observes its broadcasts
// in one global order even with concurrent producers.
func (h *Hub) BroadcastToChannel(channel string, env types.Envelope) {
	env.Channel = channel
	data, err := env.Stamp(h.clock.Now())
	if err != nil {
		h.logger.Error().Err(err).Str("channel", channel).Msg("broadcast marshal failed")
		return
	}

	h.mu.Lock()
	subs, ok := h.channels[channel]
	if !ok {
		h.mu.Unlock()
		return
	}
	slow := h.enqueue(keys(subs), data)
	h.mu.Unlock()

	h.evictSlow(slow)
}

// BroadcastToUser sends to every connection currently authenticated as
// userID, independent of channel subscriptions.
func (h *Hub) BroadcastToUser(userID int64, env types.Envelope) {
	h.broadcastMatching(env, func(c *Client) bool {
		return c.identity != nil && c.identity.UserID == userID
	})
}

// BroadcastToRestaurant sends to every connection whose identity is tied
// to restaurantID.
func (h *Hub) BroadcastToRestaurant(restaurantID int64, env types.Envelope) {
	h.broadcastMatching(env, func(c *Client) bool {
		return c.identity != nil && c.identity.RestaurantID != nil && *c.identity.RestaurantID == restaurantID
	})
}

// broadcastMatching delivers env to every client the predicate selects.
// The predicate and the enqueue run under the exclusive registry lock, the
// same serialization point channel broadcasts use.
func (h *Hub) broadcastMatching(env types.Envelope, match func(*Client) bool) {
	data, err := env.Stamp(h.clock.Now())
	if err != nil {
		h.logger.Error().Err(err).Msg("broadcast marshal failed")
		return
	}

	h.mu.Lock()
	targets := make([]*Client, 0, 4)
	for _, c := range h.clients {
		if match(c) {
			targets = append(targets, c)
		}
	}
	slow := h.enqueue(targets, data)
	h.mu.Unlock()

	h.evictSlow(slow)
}

// sendTo stamps and delivers a single control envelope to one client.
func (h *Hub) sendTo(c *Client, env types.Envelope) {
	data, err := env.Stamp(h.clock.Now())
	if err != nil {
		h.logger.Error().Err(err).Str("client_id", c.ID).Msg("send marshal failed")
		return
	}
	if !c.trySend(data) {
		h.evictSlow([]*Client{c})
		return
	}
	metrics.MessagesSentTotal.Inc()
}

// enqueue pushes data to each target's send buffer without blocking and
// returns the clients whose buffer was full.
func (h *Hub) enqueue(targets []*Client, data []byte) []*Client {
	var slow []*Client
	for _, c := range targets {
		if c.trySend(data) {
			metrics.MessagesSentTotal.Inc()
		} else {
			slow = append(slow, c)
		}
	}
	return slow
}

// evictSlow tears down clients that could not keep up. A full send buffer
// means the connection is unhealthy; it is removed rather than letting it
// apply backpressure to the broadcaster.
func (h *Hub) evictSlow(slow []*Client) {
	for _, c := range slow {
		h.logger.Warn().Str("client_id", c.ID).Msg("disconnecting slow client, send buffer full")
		metrics.SlowClientsEvicted.Inc()
		h.Teardown(c)
	}
}

func keys(m map[*Client]struct{}) []*Client {
	out := make([]*Client, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	return out
}
