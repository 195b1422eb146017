package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/krissistrunk/restaurant-realtime/src/metrics"
	"github.com/krissistrunk/restaurant-realtime/src/types"
)

const (
	errInvalidFormat      = "Invalid message format"
	errInvalidCredentials = "Invalid user credentials"
)

// handleInbound is the per-connection protocol loop body. It validates the
// envelope, then dispatches on the closed set of client message kinds.
// Malformed input never crashes the handler: it yields an error reply and
// nothing else.
func (h *Hub) handleInbound(c *Client, data []byte) {
	var env types.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.protocolError(c, env.Channel)
		return
	}

	switch types.ParseMessageType(string(env.Type)) {
	case types.TypeAuth:
		h.handleAuth(c, env)
	case types.TypeSubscribe:
		h.handleSubscribe(c, env)
	case types.TypeUnsubscribe:
		h.handleUnsubscribe(c, env)
	case types.TypePing:
		// Echo the payload back.
		h.sendTo(c, types.Envelope{Type: types.TypePong, Payload: env.Payload})
	case types.TypePong:
		// The alive flag was already set by the read pump.
	case types.TypeUnknown:
		h.protocolError(c, env.Channel)
	default:
		// A recognized type, but not one a client may send.
		h.protocolError(c, env.Channel)
	}
}

// handleAuth resolves the claimed identity against the external provider.
// The lookup is scoped to this one connection and never blocks others. On
// failure the connection stays open and unauthenticated.
func (h *Hub) handleAuth(c *Client, env types.Envelope) {
	var p types.AuthPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		h.protocolError(c, "")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.authTimeout)
	defer cancel()

	id, err := h.provider.Lookup(ctx, p.UserID, p.Token)
	if err != nil {
		metrics.AuthFailuresTotal.Inc()
		h.logger.Warn().Int64("user_id", p.UserID).Err(err).Msg("auth failed")
		h.sendError(c, "", errInvalidCredentials)
		return
	}

	h.AttachIdentity(c, id)
	h.logger.Info().Str("client_id", c.ID).Int64("user_id", id.UserID).Str("role", string(id.Role)).Msg("client authenticated")
	h.sendTo(c, mustEnvelope(types.TypeAuthenticated, "", id))
}

func (h *Hub) handleSubscribe(c *Client, env types.Envelope) {
	if env.Channel == "" {
		h.protocolError(c, "")
		return
	}
	if err := h.Subscribe(c, env.Channel); err != nil {
		if errors.Is(err, ErrNotAuthorized) {
			metrics.SubscribeDeniedTotal.Inc()
			h.sendError(c, env.Channel, fmt.Sprintf("Not authorized for channel: %s", env.Channel))
		}
		// Any other error means the client is already torn down; there
		// is nobody left to answer.
		return
	}
	h.sendTo(c, mustEnvelope(types.TypeSubscribed, env.Channel, types.ChannelPayload{Channel: env.Channel}))
}

// handleUnsubscribe acknowledges unconditionally: leaving a channel the
// client was never in is a success, not an error.
func (h *Hub) handleUnsubscribe(c *Client, env types.Envelope) {
	if env.Channel == "" {
		h.protocolError(c, "")
		return
	}
	h.Unsubscribe(c, env.Channel)
	h.sendTo(c, mustEnvelope(types.TypeUnsubscribed, env.Channel, types.ChannelPayload{Channel: env.Channel}))
}

func (h *Hub) protocolError(c *Client, channel string) {
	metrics.ProtocolErrorsTotal.Inc()
	h.sendError(c, channel, errInvalidFormat)
}

func (h *Hub) sendError(c *Client, channel, message string) {
	h.sendTo(c, mustEnvelope(types.TypeError, channel, types.ErrorPayload{Message: message}))
}
