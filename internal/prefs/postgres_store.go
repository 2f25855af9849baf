package prefs

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of *pgxpool.Pool the store uses.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps preferences in the connector_preferences table.
type PostgresStore struct {
	pool    PgxPool
	account string
}

// NewPostgresStore creates a store for account.
func NewPostgresStore(pool PgxPool, account string) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("prefs: postgres pool required")
	}
	return &PostgresStore{pool: pool, account: accountOrDefault(account)}, nil
}

func (s *PostgresStore) Load(ctx context.Context) (Preferences, error) {
	query := `
		SELECT enabled, username, password, customer_id, host_cursor
		FROM connector_preferences
		WHERE account = $1
	`
	var p Preferences
	err := s.pool.QueryRow(ctx, query, s.account).Scan(&p.Enabled, &p.Username, &p.Password, &p.CustomerID, &p.HostCursor)
	if errors.Is(err, pgx.ErrNoRows) {
		return Preferences{}, nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("prefs: load account %s: %w", s.account, err)
	}
	return p, nil
}

func (s *PostgresStore) Save(ctx context.Context, p Preferences) error {
	query := `
		INSERT INTO connector_preferences (account, enabled, username, password, customer_id, host_cursor)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account)
		DO UPDATE SET enabled = EXCLUDED.enabled,
			username = EXCLUDED.username,
			password = EXCLUDED.password,
			customer_id = EXCLUDED.customer_id,
			host_cursor = EXCLUDED.host_cursor,
			updated_at = now()
	`
	if _, err := s.pool.Exec(ctx, query, s.account, p.Enabled, p.Username, p.Password, p.CustomerID, p.HostCursor); err != nil {
		return fmt.Errorf("prefs: save account %s: %w", s.account, err)
	}
	return nil
}
