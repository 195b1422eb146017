package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatPeriod)
	assert.Equal(t, 1000, cfg.MaxConnections)
	assert.Equal(t, "rr:session:", cfg.Redis.Prefix)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9999")
	t.Setenv("HEARTBEAT_SECONDS", "5")
	t.Setenv("MAX_CONNECTIONS", "10")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_SESSION_PREFIX", "app:sess:")

	cfg := FromEnv()
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, 5*time.Second, cfg.HeartbeatPeriod)
	assert.Equal(t, 10, cfg.MaxConnections)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "app:sess:", cfg.Redis.Prefix)
}

func TestFromEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("HEARTBEAT_SECONDS", "not-a-number")
	t.Setenv("MAX_CONNECTIONS", "-3")

	cfg := FromEnv()
	assert.Equal(t, 30*time.Second, cfg.HeartbeatPeriod)
	assert.Equal(t, 1000, cfg.MaxConnections)
}
