package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/krissistrunk/restaurant-realtime/config"
	"github.com/krissistrunk/restaurant-realtime/src/hub"
	"github.com/krissistrunk/restaurant-realtime/src/identity"
	"github.com/krissistrunk/restaurant-realtime/src/server"
	"github.com/krissistrunk/restaurant-realtime/src/service"
)

func main() {
	logger := newLogger()
	cfg := config.FromEnv()
	clock := clockwork.NewRealClock()

	provider := identity.NewRedis(cfg.Redis, logger)
	defer provider.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := provider.Ping(pingCtx); err != nil {
		// go-redis reconnects on its own; auth just fails until then.
		logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("identity store unreachable, auth will fail until it returns")
	} else {
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("identity store connected")
	}
	cancel()

	h := hub.New(cfg, provider, clock, logger)
	monitor := hub.NewMonitor(h, cfg.HeartbeatPeriod, logger)
	monitor.Start()

	dispatcher := service.NewDispatcher(h, logger)
	srv := server.New(cfg, h, dispatcher, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server stopped unexpectedly")
	}

	// Drain the monitor first so no eviction races the teardown sweep,
	// then close every connection before the listener goes away.
	monitor.Stop()
	h.Shutdown()
	if err := srv.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	logger.Info().Msg("shutdown complete")
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && os.Getenv("LOG_LEVEL") != "" {
		level = parsed
	}

	var logger zerolog.Logger
	if os.Getenv("LOG_FORMAT") == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
