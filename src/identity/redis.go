package identity

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/krissistrunk/restaurant-realtime/config"
	"github.com/krissistrunk/restaurant-realtime/src/types"
)

// Redis resolves identities from the session records the surrounding
// application keeps in Redis. Each user has a hash at <prefix>user:<id>
// with token, role and an optional restaurant_id field.
type Redis struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

// NewRedis creates a Redis-backed provider.
func NewRedis(cfg config.RedisConfig, logger zerolog.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Redis{
		client: client,
		prefix: cfg.Prefix,
		logger: logger.With().Str("component", "identity-redis").Logger(),
	}
}

// Ping verifies the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Lookup implements Provider.
func (r *Redis) Lookup(ctx context.Context, userID int64, token string) (types.Identity, error) {
	key := r.prefix + "user:" + strconv.FormatInt(userID, 10)
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return types.Identity{}, fmt.Errorf("identity lookup: %w", err)
	}
	if len(fields) == 0 {
		return types.Identity{}, ErrNotFound
	}

	expected := fields["token"]
	if subtle.ConstantTimeCompare([]byte(expected), []byte(token)) != 1 {
		return types.Identity{}, ErrInvalidCredentials
	}

	id := types.Identity{
		UserID: userID,
		Role:   types.Role(fields["role"]),
	}
	if raw, ok := fields["restaurant_id"]; ok && raw != "" {
		rid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			r.logger.Warn().Int64("user_id", userID).Str("restaurant_id", raw).Msg("malformed restaurant_id field")
		} else {
			id.RestaurantID = &rid
		}
	}
	return id, nil
}
