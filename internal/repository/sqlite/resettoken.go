package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ConsumedTokenRepository implements domain.ConsumedTokenStore using SQLite.
type ConsumedTokenRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewConsumedTokenRepository creates a new SQLite-backed consumed-token store.
func NewConsumedTokenRepository(db *DB) *ConsumedTokenRepository {
	return &ConsumedTokenRepository{db: db.SqlDB, now: time.Now}
}

// Consume inserts the token ID. The primary key makes the first caller win
// when two resets race on the same token. Expired rows are pruned first.
func (r *ConsumedTokenRepository) Consume(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	if _, err := r.Prune(ctx); err != nil {
		return false, err
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO consumed_reset_tokens (token_id, expires_at, consumed_at) VALUES (?, ?, ?)`,
		tokenID, expiresAt.Unix(), r.now().UTC(),
	)
	if err != nil {
		if _, dup := uniqueViolation(err); dup {
			return false, nil
		}
		return false, fmt.Errorf("insert consumed token: %w", err)
	}
	return true, nil
}

func (r *ConsumedTokenRepository) IsConsumed(ctx context.Context, tokenID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM consumed_reset_tokens WHERE token_id = ?`, tokenID,
	).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query consumed token: %w", err)
	}
	return true, nil
}

// Prune deletes entries whose token has already expired and returns how
// many were removed.
func (r *ConsumedTokenRepository) Prune(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM consumed_reset_tokens WHERE expires_at < ?`, r.now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("prune consumed tokens: %w", err)
	}
	return result.RowsAffected()
}
