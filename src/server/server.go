// Package server exposes the HTTP surface: the WebSocket upgrade at /ws,
// operator introspection, health, metrics, and the producer event routes.
package server

import (
	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/krissistrunk/restaurant-realtime/config"
	"github.com/krissistrunk/restaurant-realtime/src/hub"
	"github.com/krissistrunk/restaurant-realtime/src/service"
)

// Server wires the fiber app and the raw fasthttp WebSocket handler onto
// one listener.
type Server struct {
	cfg        *config.Config
	hub        *hub.Hub
	dispatcher *service.Dispatcher
	logger     zerolog.Logger
	app        *fiber.App
	http       *fasthttp.Server
}

// New creates the HTTP server around an already-running hub.
func New(cfg *config.Config, h *hub.Hub, d *service.Dispatcher, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		hub:        h,
		dispatcher: d,
		logger:     logger.With().Str("component", "server").Logger(),
	}
	s.app = fiber.New()
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	s.app.Get("/ws/info", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"websocket": true,
			"endpoint":  "/ws",
			"clients":   s.hub.ClientCount(),
			"channels":  len(s.hub.Channels()),
		})
	})

	// Operator introspection: connection and per-channel subscriber counts.
	s.app.Get("/stats", func(c fiber.Ctx) error {
		return c.JSON(s.hub.Stats())
	})

	s.registerEventRoutes()
}

// Handler composes the fiber app with the handlers that need the raw
// *fasthttp.RequestCtx, which fiber v3 does not expose: the WebSocket
// upgrade and the Prometheus endpoint.
func (s *Server) Handler() fasthttp.RequestHandler {
	appHandler := s.app.Handler()
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())

	return func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/ws":
			s.handleUpgrade(ctx)
		case "/metrics":
			metricsHandler(ctx)
		default:
			appHandler(ctx)
		}
	}
}

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	s.http = &fasthttp.Server{
		Handler:         s.Handler(),
		Name:            "restaurant-realtime",
		ReadBufferSize:  s.cfg.ReadBufferSize,
		WriteBufferSize: s.cfg.WriteBufferSize,
	}
	s.logger.Info().Str("addr", s.cfg.ListenAddr).Msg("listening")
	return s.http.ListenAndServe(s.cfg.ListenAddr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown() error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown()
}
