package domain

import (
	"context"
	"time"
)

// ConsumedTokenStore records password-reset token IDs that have already
// been used. Entries only need to outlive the token's expiry.
type ConsumedTokenStore interface {
	// Consume marks the token ID as used. It returns false if the ID was
	// already consumed.
	Consume(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error)
	IsConsumed(ctx context.Context, tokenID string) (bool, error)
}
