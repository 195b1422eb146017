package hub

import (
	"sort"

	"github.com/krissistrunk/restaurant-realtime/src/types"
)

// Stats returns the operator introspection snapshot. Channel entries are
// sorted by name so the output is stable.
func (h *Hub) Stats() types.Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := types.Stats{
		TotalConnections: len(h.clients),
		TotalChannels:    len(h.channels),
		ChannelStats:     make([]types.ChannelStat, 0, len(h.channels)),
	}
	for name, subs := range h.channels {
		stats.ChannelStats = append(stats.ChannelStats, types.ChannelStat{
			Channel:         name,
			SubscriberCount: len(subs),
		})
	}
	sort.Slice(stats.ChannelStats, func(i, j int) bool {
		return stats.ChannelStats[i].Channel < stats.ChannelStats[j].Channel
	})
	return stats
}

// Connections returns the IDs of every connected client, sorted.
func (h *Hub) Connections() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Channels returns channel names with their subscriber counts.
func (h *Hub) Channels() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int, len(h.channels))
	for name, subs := range h.channels {
		out[name] = len(subs)
	}
	return out
}

// ClientInfo returns metadata for a connected client, or nil.
func (h *Hub) ClientInfo(id string) *types.ClientInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[id]
	if !ok {
		return nil
	}
	channels := make([]string, 0, len(c.channels))
	for name := range c.channels {
		channels = append(channels, name)
	}
	sort.Strings(channels)
	return &types.ClientInfo{
		ID:            c.ID,
		ConnectedAt:   c.connectedAt,
		Channels:      channels,
		Authenticated: c.identity != nil,
	}
}

// ConnectionsForUser returns the IDs of every connection authenticated as
// userID.
func (h *Hub) ConnectionsForUser(userID int64) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var ids []string
	for _, c := range h.clients {
		if c.identity != nil && c.identity.UserID == userID {
			ids = append(ids, c.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// ConnectionsForRestaurant returns the IDs of every connection whose
// identity is tied to restaurantID.
func (h *Hub) ConnectionsForRestaurant(restaurantID int64) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var ids []string
	for _, c := range h.clients {
		if c.identity != nil && c.identity.RestaurantID != nil && *c.identity.RestaurantID == restaurantID {
			ids = append(ids, c.ID)
		}
	}
	sort.Strings(ids)
	return ids
}
