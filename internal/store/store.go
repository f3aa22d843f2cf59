// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/akrtake/PromoReels/internal/domain"
)

// Repository defines the interface for persisting user records and the local
// session-revocation denylist.
type Repository interface {
	// GetUser retrieves a user by their user ID.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// RevokeSession records a session-cookie hash as revoked until expiresAt.
	// Revoking an already-revoked hash is a no-op.
	RevokeSession(ctx context.Context, tokenHash string, expiresAt time.Time) error

	// IsSessionRevoked reports whether a session-cookie hash is on the
	// denylist and not yet past its natural expiry.
	IsSessionRevoked(ctx context.Context, tokenHash string) (bool, error)

	// CleanupExpiredRevocations removes denylist rows whose cookies have
	// expired anyway and returns the number deleted.
	CleanupExpiredRevocations(ctx context.Context) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// HashToken returns the hex SHA-256 of a session cookie. Only hashes are
// persisted so a database leak never exposes usable credentials.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
