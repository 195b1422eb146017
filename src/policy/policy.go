// Package policy decides whether an identity may subscribe to a channel.
package policy

import (
	"strconv"
	"strings"

	"github.com/krissistrunk/restaurant-realtime/src/types"
)

// Authorize reports whether id may subscribe to channel. Rules are checked
// in order and the first match wins. It is a pure function: no registry
// access, no side effects.
func Authorize(id *types.Identity, channel string) bool {
	// Unauthenticated connections get nothing.
	if id == nil {
		return false
	}

	// System channels are open to any authenticated identity.
	if strings.HasPrefix(channel, "system") {
		return true
	}

	// user:<id> channels belong to exactly one user.
	if strings.HasPrefix(channel, "user:") {
		return ownSegment(channel, "user:") == id.UserID
	}

	// restaurant:<id> channels are scoped to the staff and customers of
	// that restaurant.
	if strings.HasPrefix(channel, "restaurant:") {
		return id.RestaurantID != nil && ownSegment(channel, "restaurant:") == *id.RestaurantID
	}

	// Operational channels are limited to management roles.
	if strings.HasPrefix(channel, "orders") ||
		strings.HasPrefix(channel, "queue") ||
		strings.HasPrefix(channel, "analytics") {
		return id.Role == types.RoleOwner || id.Role == types.RoleAdmin
	}

	// Customer-facing channels, including any channel that embeds the
	// caller's own user:<id> token.
	if strings.HasPrefix(channel, "customer") ||
		strings.Contains(channel, "user:"+strconv.FormatInt(id.UserID, 10)) {
		return id.Role == types.RoleCustomer
	}

	return false
}

// ownSegment extracts the numeric id that directly follows prefix, stopping
// at the next separator. Returns -1 when the segment is not a number so a
// malformed channel never matches a real id.
func ownSegment(channel, prefix string) int64 {
	rest := strings.TrimPrefix(channel, prefix)
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		rest = rest[:i]
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return -1
	}
	return n
}
