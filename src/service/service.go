// Package service is the broadcast API used by event producers. It is
// constructed once at process start and passed by reference to whatever
// needs to push events; it never handles inbound client messages.
package service

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/krissistrunk/restaurant-realtime/src/hub"
	"github.com/krissistrunk/restaurant-realtime/src/metrics"
	"github.com/krissistrunk/restaurant-realtime/src/types"
)

// Dispatcher routes domain events to the right subset of connections.
// All sends are best-effort: a slow or dead connection is torn down by the
// hub and never surfaces as an error here.
type Dispatcher struct {
	hub    *hub.Hub
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher backed by the given hub.
func NewDispatcher(h *hub.Hub, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{hub: h, logger: logger.With().Str("component", "dispatcher").Logger()}
}

// Hub returns the underlying hub.
func (d *Dispatcher) Hub() *hub.Hub { return d.hub }

// BroadcastToChannel pushes an event to every subscriber of channel.
// A channel with no subscribers is a no-op. The only possible error is an
// unmarshalable payload.
func (d *Dispatcher) BroadcastToChannel(channel string, t types.MessageType, payload any) error {
	env, err := types.NewEnvelope(t, channel, payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", t, err)
	}
	metrics.BroadcastsTotal.WithLabelValues("channel").Inc()
	d.hub.BroadcastToChannel(channel, env)
	return nil
}

// BroadcastToUser pushes an event to every connection currently
// authenticated as userID, whatever its subscriptions.
func (d *Dispatcher) BroadcastToUser(userID int64, t types.MessageType, payload any) error {
	env, err := types.NewEnvelope(t, "", payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", t, err)
	}
	metrics.BroadcastsTotal.WithLabelValues("user").Inc()
	d.hub.BroadcastToUser(userID, env)
	return nil
}

// BroadcastToRestaurant pushes an event to every connection tied to
// restaurantID.
func (d *Dispatcher) BroadcastToRestaurant(restaurantID int64, t types.MessageType, payload any) error {
	env, err := types.NewEnvelope(t, "", payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", t, err)
	}
	metrics.BroadcastsTotal.WithLabelValues("restaurant").Inc()
	d.hub.BroadcastToRestaurant(restaurantID, env)
	return nil
}

// OrderPayload is the body of an order_updated event.
type OrderPayload struct {
	OrderID int64 `json:"orderId"`
	Order   any   `json:"order"`
}

// NotifyOrderUpdate announces an order change on the restaurant's orders
// channel and directly to the owning customer, who is not assumed to be
// subscribed to the restaurant-wide channel.
func (d *Dispatcher) NotifyOrderUpdate(orderID, customerID, restaurantID int64, order any) error {
	payload := OrderPayload{OrderID: orderID, Order: order}
	channel := fmt.Sprintf("restaurant:%d:orders", restaurantID)
	if err := d.BroadcastToChannel(channel, types.TypeOrderUpdated, payload); err != nil {
		return err
	}
	d.logger.Debug().Int64("order_id", orderID).Int64("restaurant_id", restaurantID).Msg("order update dispatched")
	return d.BroadcastToUser(customerID, types.TypeOrderUpdated, payload)
}

// QueuePayload is the body of a queue_updated event.
type QueuePayload struct {
	RestaurantID int64 `json:"restaurantId"`
	Queue        any   `json:"queue"`
}

// NotifyQueueUpdate announces a waitlist change to the restaurant's queue
// channel and to the affected customer.
func (d *Dispatcher) NotifyQueueUpdate(restaurantID, customerID int64, queue any) error {
	payload := QueuePayload{RestaurantID: restaurantID, Queue: queue}
	channel := fmt.Sprintf("restaurant:%d:queue", restaurantID)
	if err := d.BroadcastToChannel(channel, types.TypeQueueUpdated, payload); err != nil {
		return err
	}
	return d.BroadcastToUser(customerID, types.TypeQueueUpdated, payload)
}

// ReservationPayload is the body of a reservation_updated event.
type ReservationPayload struct {
	ReservationID int64 `json:"reservationId"`
	Reservation   any   `json:"reservation"`
}

// NotifyReservationUpdate announces a reservation change to the
// restaurant's reservations channel and to the reserving customer.
func (d *Dispatcher) NotifyReservationUpdate(reservationID, customerID, restaurantID int64, reservation any) error {
	payload := ReservationPayload{ReservationID: reservationID, Reservation: reservation}
	channel := fmt.Sprintf("restaurant:%d:reservations", restaurantID)
	if err := d.BroadcastToChannel(channel, types.TypeReservationUpdated, payload); err != nil {
		return err
	}
	return d.BroadcastToUser(customerID, types.TypeReservationUpdated, payload)
}

// MenuPayload is the body of a menu_updated event.
type MenuPayload struct {
	RestaurantID int64 `json:"restaurantId"`
	Menu         any   `json:"menu"`
}

// NotifyMenuUpdate announces a menu change on the restaurant's menu
// channel.
func (d *Dispatcher) NotifyMenuUpdate(restaurantID int64, menu any) error {
	channel := fmt.Sprintf("restaurant:%d:menu", restaurantID)
	return d.BroadcastToChannel(channel, types.TypeMenuUpdated, MenuPayload{RestaurantID: restaurantID, Menu: menu})
}

// PromotionPayload is the body of a promotion_updated event.
type PromotionPayload struct {
	RestaurantID int64 `json:"restaurantId"`
	Promotion    any   `json:"promotion"`
}

// NotifyPromotionUpdate announces a promotion on the restaurant channel
// and on the customer-wide promotions channel.
func (d *Dispatcher) NotifyPromotionUpdate(restaurantID int64, promotion any) error {
	payload := PromotionPayload{RestaurantID: restaurantID, Promotion: promotion}
	channel := fmt.Sprintf("restaurant:%d:promotions", restaurantID)
	if err := d.BroadcastToChannel(channel, types.TypePromotionUpdated, payload); err != nil {
		return err
	}
	return d.BroadcastToChannel("customer:promotions", types.TypePromotionUpdated, payload)
}

// NotifyUserLogin announces a login to the user's own connections.
func (d *Dispatcher) NotifyUserLogin(userID int64, profile any) error {
	return d.BroadcastToUser(userID, types.TypeUserLoggedIn, profile)
}

// NotifyProfileUpdate announces a profile change to the user's own
// connections.
func (d *Dispatcher) NotifyProfileUpdate(userID int64, profile any) error {
	return d.BroadcastToUser(userID, types.TypeProfileUpdated, profile)
}
