package server

import (
	"encoding/json"

	"github.com/gofiber/fiber/v3"
)

// Event producer routes. The order, queue, reservation, menu and promotion
// services of the surrounding application POST here whenever domain state
// changes; the dispatcher decides which connections hear about it.

type orderEvent struct {
	OrderID      int64           `json:"orderId"`
	CustomerID   int64           `json:"customerId"`
	RestaurantID int64           `json:"restaurantId"`
	Order        json.RawMessage `json:"order"`
}

type queueEvent struct {
	RestaurantID int64           `json:"restaurantId"`
	CustomerID   int64           `json:"customerId"`
	Queue        json.RawMessage `json:"queue"`
}

type reservationEvent struct {
	ReservationID int64           `json:"reservationId"`
	CustomerID    int64           `json:"customerId"`
	RestaurantID  int64           `json:"restaurantId"`
	Reservation   json.RawMessage `json:"reservation"`
}

type menuEvent struct {
	RestaurantID int64           `json:"restaurantId"`
	Menu         json.RawMessage `json:"menu"`
}

type promotionEvent struct {
	RestaurantID int64           `json:"restaurantId"`
	Promotion    json.RawMessage `json:"promotion"`
}

func (s *Server) registerEventRoutes() {
	events := s.app.Group("/events")

	events.Post("/order", func(c fiber.Ctx) error {
		var ev orderEvent
		if err := json.Unmarshal(c.Body(), &ev); err != nil {
			return badRequest(c, err)
		}
		if err := s.dispatcher.NotifyOrderUpdate(ev.OrderID, ev.CustomerID, ev.RestaurantID, ev.Order); err != nil {
			return badRequest(c, err)
		}
		return accepted(c)
	})

	events.Post("/queue", func(c fiber.Ctx) error {
		var ev queueEvent
		if err := json.Unmarshal(c.Body(), &ev); err != nil {
			return badRequest(c, err)
		}
		if err := s.dispatcher.NotifyQueueUpdate(ev.RestaurantID, ev.CustomerID, ev.Queue); err != nil {
			return badRequest(c, err)
		}
		return accepted(c)
	})

	events.Post("/reservation", func(c fiber.Ctx) error {
		var ev reservationEvent
		if err := json.Unmarshal(c.Body(), &ev); err != nil {
			return badRequest(c, err)
		}
		if err := s.dispatcher.NotifyReservationUpdate(ev.ReservationID, ev.CustomerID, ev.RestaurantID, ev.Reservation); err != nil {
			return badRequest(c, err)
		}
		return accepted(c)
	})

	events.Post("/menu", func(c fiber.Ctx) error {
		var ev menuEvent
		if err := json.Unmarshal(c.Body(), &ev); err != nil {
			return badRequest(c, err)
		}
		if err := s.dispatcher.NotifyMenuUpdate(ev.RestaurantID, ev.Menu); err != nil {
			return badRequest(c, err)
		}
		return accepted(c)
	})

	events.Post("/promotion", func(c fiber.Ctx) error {
		var ev promotionEvent
		if err := json.Unmarshal(c.Body(), &ev); err != nil {
			return badRequest(c, err)
		}
		if err := s.dispatcher.NotifyPromotionUpdate(ev.RestaurantID, ev.Promotion); err != nil {
			return badRequest(c, err)
		}
		return accepted(c)
	})
}

func badRequest(c fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

func accepted(c fiber.Ctx) error {
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"dispatched": true})
}
