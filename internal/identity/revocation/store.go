// Package revocation tracks revoked token IDs so logout takes effect before
// token expiry. Entries only need to live as long as the token would have.
package revocation

import (
	"context"
	"time"
)

// Store is the token revocation list contract.
type Store interface {
	// Revoke marks a jti revoked for the given ttl.
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
