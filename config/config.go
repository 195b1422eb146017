// Package config holds runtime configuration for the realtime server.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds server and hub settings.
type Config struct {
	ListenAddr string // HTTP listen address, default ":8080"

	MaxConnections  int           // reject new clients beyond this count
	SendBufferSize  int           // per-client outbound queue length
	HeartbeatPeriod time.Duration // liveness probe interval
	AuthTimeout     time.Duration // identity provider lookup budget
	WriteTimeout    time.Duration // per-message transport write deadline
	ReadBufferSize  int
	WriteBufferSize int

	Redis RedisConfig
}

// RedisConfig holds connection settings for the session-backed identity
// provider.
type RedisConfig struct {
	Addr     string // Redis address, default "localhost:6379"
	Password string // Redis password, default ""
	DB       int    // Redis database number, default 0
	Prefix   string // key prefix, default "rr:session:"
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		ListenAddr:      ":8080",
		MaxConnections:  1000,
		SendBufferSize:  64,
		HeartbeatPeriod: 30 * time.Second,
		AuthTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "rr:session:",
		},
	}
}

// FromEnv loads configuration from environment variables, falling back to
// defaults for any missing values.
func FromEnv() *Config {
	cfg := Default()

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if v := os.Getenv("MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxConnections = n
		}
	}
	if v := os.Getenv("SEND_BUFFER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SendBufferSize = n
		}
	}
	if v := os.Getenv("HEARTBEAT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HeartbeatPeriod = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("AUTH_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AuthTimeout = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("WRITE_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WriteTimeout = time.Duration(n) * time.Second
		}
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	if prefix := os.Getenv("REDIS_SESSION_PREFIX"); prefix != "" {
		cfg.Redis.Prefix = prefix
	}
	return cfg
}
