package confirm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresMarker stores markers in payment_confirmations. An expired row is
// taken over by the next TrySet.
type PostgresMarker struct {
	db       *sql.DB
	ttl      time.Duration
	newToken func() string
}

func NewPostgresMarker(db *sql.DB, ttl time.Duration) *PostgresMarker {
	return &PostgresMarker{
		db:       db,
		ttl:      ttl,
		newToken: uuid.NewString,
	}
}

func (p *PostgresMarker) TrySet(ctx context.Context, key string) (string, bool, error) {
	const q = `
	INSERT INTO payment_confirmations (dedup_key, owner_token, expires_at)
	VALUES ($1, $2, now() + $3 * interval '1 second')
	ON CONFLICT (dedup_key)
	DO UPDATE SET owner_token = EXCLUDED.owner_token,
		expires_at = EXCLUDED.expires_at,
		created_at = now()
	WHERE payment_confirmations.expires_at < now()
	RETURNING owner_token;
	`

	token := p.newToken()

	var owner string
	err := p.db.QueryRowContext(ctx, q, key, token, int64(p.ttl/time.Second)).Scan(&owner)
	if err != nil {
		// Live marker held by someone else
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("set marker %s: %w", key, err)
	}
	return owner, true, nil
}

func (p *PostgresMarker) Clear(ctx context.Context, key, token string) error {
	const q = `
	DELETE FROM payment_confirmations
	WHERE dedup_key = $1 AND owner_token = $2;
	`

	if _, err := p.db.ExecContext(ctx, q, key, token); err != nil {
		return fmt.Errorf("clear marker %s: %w", key, err)
	}
	return nil
}
