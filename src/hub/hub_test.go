package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krissistrunk/restaurant-realtime/config"
	"github.com/krissistrunk/restaurant-realtime/src/identity"
	"github.com/krissistrunk/restaurant-realtime/src/types"
)

var errConnClosed = errors.New("connection closed")

// mockConn implements types.Conn without a real WebSocket.
type mockConn struct {
	mu        sync.Mutex
	written   [][]byte
	readCh    chan []byte
	closedCh  chan struct{}
	closeOnce sync.Once
}

func newMockConn() *mockConn {
	return &mockConn{
		readCh:   make(chan []byte, 16),
		closedCh: make(chan struct{}),
	}
}

func (m *mockConn) WriteMessage(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.written = append(m.written, cp)
	return nil
}

func (m *mockConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-m.readCh:
		return data, nil
	case <-m.closedCh:
		return nil, errConnClosed
	}
}

func (m *mockConn) Close() error {
	m.closeOnce.Do(func() { close(m.closedCh) })
	return nil
}

func ptr(n int64) *int64 { return &n }

func testProvider() identity.Provider {
	return identity.NewStatic(map[int64]identity.Record{
		1: {Token: "t", Identity: types.Identity{UserID: 1, Role: types.RoleCustomer}},
		2: {Token: "t2", Identity: types.Identity{UserID: 2, Role: types.RoleOwner, RestaurantID: ptr(1)}},
		3: {Token: "t3", Identity: types.Identity{UserID: 3, Role: types.RoleCustomer}},
		7: {Token: "t7", Identity: types.Identity{UserID: 7, Role: types.RoleCustomer}},
	})
}

func newTestHub(t *testing.T, mutate ...func(*config.Config)) (*Hub, *clockwork.FakeClock) {
	t.Helper()
	cfg := config.Default()
	cfg.SendBufferSize = 16
	for _, m := range mutate {
		m(cfg)
	}
	fc := clockwork.NewFakeClock()
	h := New(cfg, testProvider(), fc, zerolog.Nop())
	t.Cleanup(h.Shutdown)
	return h, fc
}

// registerClient registers a fresh client and consumes the connected
// greeting.
func registerClient(t *testing.T, h *Hub) (*Client, *mockConn) {
	t.Helper()
	conn := newMockConn()
	c := NewClient(uuid.New().String(), conn, h)
	require.NoError(t, h.Register(c))

	greeting := recvEnvelope(t, c)
	require.Equal(t, types.TypeConnected, greeting.Type)
	return c, conn
}

// recvEnvelope pops the next queued outbound envelope for c.
func recvEnvelope(t *testing.T, c *Client) types.Envelope {
	t.Helper()
	select {
	case data := <-c.send:
		var env types.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("expected an outbound envelope")
		return types.Envelope{}
	}
}

func noEnvelope(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected outbound envelope: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

// authenticate runs the auth handshake through the protocol loop.
func authenticate(t *testing.T, h *Hub, c *Client, userID int64, token string) {
	t.Helper()
	h.handleInbound(c, mustJSON(t, map[string]any{
		"type":    "auth",
		"payload": map[string]any{"userId": userID, "token": token},
	}))
	env := recvEnvelope(t, c)
	require.Equal(t, types.TypeAuthenticated, env.Type)
}

func TestRegisterAndStats(t *testing.T) {
	h, _ := newTestHub(t)

	registerClient(t, h)
	registerClient(t, h)

	stats := h.Stats()
	assert.Equal(t, 2, stats.TotalConnections)
	assert.Equal(t, 0, stats.TotalChannels)
	assert.Empty(t, stats.ChannelStats)
}

func TestRegisterAtCapacity(t *testing.T) {
	h, _ := newTestHub(t, func(cfg *config.Config) { cfg.MaxConnections = 1 })

	registerClient(t, h)

	conn := newMockConn()
	c := NewClient("overflow", conn, h)
	err := h.Register(c)
	require.ErrorIs(t, err, ErrServerFull)

	// The rejected transport is closed.
	select {
	case <-conn.closedCh:
	default:
		t.Fatal("expected rejected connection to be closed")
	}
	assert.Equal(t, 1, h.ClientCount())
}

func TestTeardownIsIdempotent(t *testing.T) {
	h, _ := newTestHub(t)
	c, _ := registerClient(t, h)

	h.Teardown(c)
	h.Teardown(c)

	assert.Equal(t, 0, h.ClientCount())
}

func TestTeardownPurgesChannelMembership(t *testing.T) {
	h, _ := newTestHub(t)

	leaving, _ := registerClient(t, h)
	staying, _ := registerClient(t, h)
	authenticate(t, h, leaving, 2, "t2")
	authenticate(t, h, staying, 2, "t2")

	require.NoError(t, h.Subscribe(leaving, "restaurant:1:orders"))
	require.NoError(t, h.Subscribe(staying, "restaurant:1:orders"))
	require.NoError(t, h.Subscribe(leaving, "restaurant:1:queue"))

	h.Teardown(leaving)

	channels := h.Channels()
	assert.Equal(t, map[string]int{"restaurant:1:orders": 1}, channels)
}

func TestSubscribeBeforeAuthIsDeniedWithoutMutation(t *testing.T) {
	h, _ := newTestHub(t)
	c, _ := registerClient(t, h)

	h.handleInbound(c, mustJSON(t, map[string]any{"type": "subscribe", "channel": "system"}))

	env := recvEnvelope(t, c)
	require.Equal(t, types.TypeError, env.Type)
	var p types.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "Not authorized for channel: system", p.Message)
	assert.Empty(t, h.Channels())
}

func TestSubscribeUnsubscribeRestoresRegistry(t *testing.T) {
	h, _ := newTestHub(t)
	c, _ := registerClient(t, h)
	authenticate(t, h, c, 2, "t2")

	require.NoError(t, h.Subscribe(c, "restaurant:1:orders"))
	assert.Equal(t, 1, h.Stats().TotalChannels)

	h.Unsubscribe(c, "restaurant:1:orders")
	stats := h.Stats()
	assert.Equal(t, 0, stats.TotalChannels)
	assert.NotContains(t, h.Channels(), "restaurant:1:orders")
}

func TestUnsubscribeWithoutSubscriptionIsSuccess(t *testing.T) {
	h, _ := newTestHub(t)
	c, _ := registerClient(t, h)
	authenticate(t, h, c, 1, "t")

	h.handleInbound(c, mustJSON(t, map[string]any{"type": "unsubscribe", "channel": "system"}))

	env := recvEnvelope(t, c)
	assert.Equal(t, types.TypeUnsubscribed, env.Type)
	assert.Equal(t, "system", env.Channel)
}

func TestConnectionsForUserAndRestaurant(t *testing.T) {
	h, _ := newTestHub(t)

	a, _ := registerClient(t, h)
	b, _ := registerClient(t, h)
	c, _ := registerClient(t, h)
	authenticate(t, h, a, 3, "t3")
	authenticate(t, h, b, 3, "t3")
	authenticate(t, h, c, 2, "t2")

	assert.ElementsMatch(t, []string{a.ID, b.ID}, h.ConnectionsForUser(3))
	assert.Empty(t, h.ConnectionsForUser(99))
	assert.Equal(t, []string{c.ID}, h.ConnectionsForRestaurant(1))
	assert.ElementsMatch(t, []string{a.ID, b.ID, c.ID}, h.Connections())
}

func TestShutdownClosesEverything(t *testing.T) {
	h, _ := newTestHub(t)

	c1, _ := registerClient(t, h)
	c2, _ := registerClient(t, h)
	authenticate(t, h, c1, 2, "t2")
	require.NoError(t, h.Subscribe(c1, "restaurant:1:orders"))

	h.Shutdown()

	assert.Equal(t, 0, h.ClientCount())
	assert.Empty(t, h.Channels())

	conn := newMockConn()
	err := h.Register(NewClient("late", conn, h))
	require.ErrorIs(t, err, ErrHubClosed)
	_ = c2
}

func TestClientInfo(t *testing.T) {
	h, _ := newTestHub(t)
	c, _ := registerClient(t, h)
	authenticate(t, h, c, 2, "t2")
	require.NoError(t, h.Subscribe(c, "restaurant:1:orders"))
	require.NoError(t, h.Subscribe(c, "restaurant:1:queue"))

	info := h.ClientInfo(c.ID)
	require.NotNil(t, info)
	assert.True(t, info.Authenticated)
	assert.Equal(t, []string{"restaurant:1:orders", "restaurant:1:queue"}, info.Channels)

	assert.Nil(t, h.ClientInfo("nope"))
}
