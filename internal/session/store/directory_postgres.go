package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresUserDirectory reads the wallet-to-user association table. The
// table is owned by the account system; this side only ever joins on it.
//
// Schema:
//
//	CREATE TABLE user_wallets (
//	    wallet_address TEXT PRIMARY KEY,
//	    user_id        TEXT NOT NULL,
//	    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresUserDirectory struct {
	db *sql.DB
}

func NewPostgresUserDirectory(db *sql.DB) *PostgresUserDirectory {
	return &PostgresUserDirectory{db: db}
}

// FindUserIDByAddress returns the user id associated with a wallet address,
// or empty string when the wallet is unknown.
func (d *PostgresUserDirectory) FindUserIDByAddress(ctx context.Context, addr string) (string, error) {
	var userID string
	err := d.db.QueryRowContext(ctx,
		`SELECT user_id FROM user_wallets WHERE wallet_address = lower($1)`,
		addr,
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying user wallet: %w", err)
	}
	return userID, nil
}
