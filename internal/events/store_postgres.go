package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	txcontext "juicyid/pkg/platform/tx"
)

// PostgresStore writes events to the identity_outbox table. When the context
// carries a transaction it joins it, so the outbox row and the identity
// write commit or roll back together.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, ev IdentityChanged) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal identity event: %w", err)
	}

	query := `
		INSERT INTO identity_outbox (id, address, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		ev.ID,
		ev.Address,
		ev.Change,
		payload,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}
