// Package identity resolves claimed user credentials against an external
// store. The realtime layer treats the lookup as opaque: it only needs the
// resulting {userId, role, restaurantId} tuple.
package identity

import (
	"context"
	"errors"

	"github.com/krissistrunk/restaurant-realtime/src/types"
)

var (
	// ErrNotFound means no identity exists for the claimed user id.
	ErrNotFound = errors.New("user not found")

	// ErrInvalidCredentials means the identity exists but the token does
	// not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Provider resolves a claimed user id and token to an identity.
type Provider interface {
	Lookup(ctx context.Context, userID int64, token string) (types.Identity, error)
}

// Record pairs an identity with the token that unlocks it.
type Record struct {
	Token    string
	Identity types.Identity
}

// Static is an in-memory provider used in tests and local development.
type Static struct {
	records map[int64]Record
}

// NewStatic builds a provider over a fixed set of records.
func NewStatic(records map[int64]Record) *Static {
	return &Static{records: records}
}

// Lookup implements Provider.
func (s *Static) Lookup(_ context.Context, userID int64, token string) (types.Identity, error) {
	rec, ok := s.records[userID]
	if !ok {
		return types.Identity{}, ErrNotFound
	}
	if rec.Token != "" && rec.Token != token {
		return types.Identity{}, ErrInvalidCredentials
	}
	return rec.Identity, nil
}
