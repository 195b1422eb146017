package types

import (
	"encoding/json"
	"time"
)

// MessageType enumerates every envelope kind the protocol knows about.
// Anything else parses to TypeUnknown, which the protocol loop handles
// as its own case rather than falling through.
type MessageType string

const (
	// Client-originated control messages.
	TypeAuth        MessageType = "auth"
	TypeSubscribe   MessageType = "subscribe"
	TypeUnsubscribe MessageType = "unsubscribe"
	TypePing        MessageType = "ping"
	TypePong        MessageType = "pong"

	// Server-originated control messages.
	TypeConnected     MessageType = "connected"
	TypeAuthenticated MessageType = "authenticated"
	TypeSubscribed    MessageType = "subscribed"
	TypeUnsubscribed  MessageType = "unsubscribed"
	TypeError         MessageType = "error"

	// Domain events pushed by producers.
	TypeOrderUpdated       MessageType = "order_updated"
	TypeQueueUpdated       MessageType = "queue_updated"
	TypeReservationUpdated MessageType = "reservation_updated"
	TypeMenuUpdated        MessageType = "menu_updated"
	TypePromotionUpdated   MessageType = "promotion_updated"
	TypeUserLoggedIn       MessageType = "user_logged_in"
	TypeProfileUpdated     MessageType = "profile_updated"

	// TypeUnknown marks an unrecognized inbound type.
	TypeUnknown MessageType = ""
)

var knownTypes = map[MessageType]struct{}{
	TypeAuth: {}, TypeSubscribe: {}, TypeUnsubscribe: {}, TypePing: {}, TypePong: {},
	TypeConnected: {}, TypeAuthenticated: {}, TypeSubscribed: {}, TypeUnsubscribed: {}, TypeError: {},
	TypeOrderUpdated: {}, TypeQueueUpdated: {}, TypeReservationUpdated: {},
	TypeMenuUpdated: {}, TypePromotionUpdated: {}, TypeUserLoggedIn: {}, TypeProfileUpdated: {},
}

// ParseMessageType maps a wire string onto the closed enum.
func ParseMessageType(s string) MessageType {
	t := MessageType(s)
	if _, ok := knownTypes[t]; ok {
		return t
	}
	return TypeUnknown
}

// Known reports whether t is part of the protocol.
func (t MessageType) Known() bool {
	_, ok := knownTypes[t]
	return ok
}

// Envelope is the unit exchanged in both directions. Payload stays raw so
// inbound messages are decoded once per handler and outbound messages are
// marshaled exactly once per broadcast.
type Envelope struct {
	Type      MessageType     `json:"type"`
	Channel   string          `json:"channel,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
}

// NewEnvelope builds an outbound envelope with the payload marshaled in.
// The timestamp is left unset: the hub stamps it at send time.
func NewEnvelope(t MessageType, channel string, payload any) (Envelope, error) {
	env := Envelope{Type: t, Channel: channel}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, err
		}
		env.Payload = data
	}
	return env, nil
}

// Stamp sets the server-side timestamp and returns the envelope's wire bytes.
func (e Envelope) Stamp(now time.Time) ([]byte, error) {
	e.Timestamp = &now
	return json.Marshal(e)
}

// Role is the access level carried by an authenticated identity.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
	RoleKitchen  Role = "kitchen"
	RoleServer   Role = "server"
)

// Identity is attached to a connection after a successful auth handshake.
// It is fixed for the lifetime of the connection.
type Identity struct {
	UserID       int64  `json:"userId"`
	Role         Role   `json:"role"`
	RestaurantID *int64 `json:"restaurantId"`
}

// AuthPayload is the client-supplied body of an auth envelope.
type AuthPayload struct {
	UserID int64  `json:"userId"`
	Token  string `json:"token"`
}

// ErrorPayload is the body of every error envelope.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ChannelPayload acknowledges subscribe and unsubscribe requests.
type ChannelPayload struct {
	Channel string `json:"channel"`
}

// ChannelStat is one entry of the operator stats surface.
type ChannelStat struct {
	Channel         string `json:"channel"`
	SubscriberCount int    `json:"subscriberCount"`
}

// Stats is the introspection snapshot consumed by operators.
type Stats struct {
	TotalConnections int           `json:"totalConnections"`
	TotalChannels    int           `json:"totalChannels"`
	ChannelStats     []ChannelStat `json:"channelStats"`
}

// ClientInfo holds metadata about a connected client.
type ClientInfo struct {
	ID            string    `json:"id"`
	ConnectedAt   time.Time `json:"connected_at"`
	Channels      []string  `json:"channels"`
	Authenticated bool      `json:"authenticated"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	WriteMessage(data []byte) error
	ReadMessage() ([]byte, error)
	Close() error
}
