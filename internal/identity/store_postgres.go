package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"juicyid/pkg/platform/sentinel"
	txcontext "juicyid/pkg/platform/tx"
)

// PostgresStore persists identities in PostgreSQL.
//
// Schema (migrations/001_identities.sql):
//
//	identities(address text primary key,
//	           emoji text not null,
//	           username text not null,
//	           created_at timestamptz, updated_at timestamptz,
//	           unique (emoji, lower(username)))
//	identity_history(id uuid primary key, address text,
//	                 emoji text, username text,
//	                 started_at timestamptz, ended_at timestamptz null,
//	                 change_type text, recorded_at timestamptz)
//
// The unique index on (emoji, lower(username)) is the authoritative conflict
// resolver; its violation surfaces as sentinel.ErrConflict.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *PostgresStore) Upsert(ctx context.Context, ident Identity) error {
	query := `
		INSERT INTO identities (address, emoji, username, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (address) DO UPDATE
		SET emoji = EXCLUDED.emoji,
		    username = EXCLUDED.username,
		    updated_at = EXCLUDED.updated_at
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		ident.Address, ident.Emoji, ident.Username, ident.CreatedAt, ident.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("upsert identity: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, addr string) error {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM identities WHERE address = $1`, addr)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByAddress(ctx context.Context, addr string) (*Identity, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT address, emoji, username, created_at, updated_at
		FROM identities WHERE address = $1
	`, addr)
	return scanIdentity(row)
}

func (s *PostgresStore) FindByPair(ctx context.Context, emoji, username string) (*Identity, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT address, emoji, username, created_at, updated_at
		FROM identities WHERE emoji = $1 AND lower(username) = lower($2)
	`, emoji, username)
	return scanIdentity(row)
}

func (s *PostgresStore) ExistsPair(ctx context.Context, emoji, username, excludeAddr string) (bool, error) {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM identities
			WHERE emoji = $1 AND lower(username) = lower($2) AND address <> $3
		)
	`, emoji, username, excludeAddr).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pair availability: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) SearchByUsernamePrefix(ctx context.Context, prefix string, limit int) ([]Identity, error) {
	// escape LIKE metacharacters in the caller-supplied prefix
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT address, emoji, username, created_at, updated_at
		FROM identities
		WHERE lower(username) LIKE lower($1) || '%'
		ORDER BY lower(username) ASC
		LIMIT $2
	`, escaped, limit)
	if err != nil {
		return nil, fmt.Errorf("search identities: %w", err)
	}
	defer rows.Close()

	var out []Identity
	for rows.Next() {
		var ident Identity
		if err := rows.Scan(&ident.Address, &ident.Emoji, &ident.Username, &ident.CreatedAt, &ident.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out = append(out, ident)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO identity_history
			(id, address, emoji, username, started_at, ended_at, change_type, recorded_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)
	`, entry.Address, entry.Emoji, entry.Username, entry.StartedAt, entry.EndedAt, string(entry.Change), time.Now())
	if err != nil {
		return fmt.Errorf("append identity history: %w", err)
	}
	return nil
}

func (s *PostgresStore) HistoryByAddress(ctx context.Context, addr string) ([]HistoryEntry, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT address, emoji, username, started_at, ended_at, change_type
		FROM identity_history
		WHERE address = $1
		ORDER BY recorded_at DESC
	`, addr)
	if err != nil {
		return nil, fmt.Errorf("load identity history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var (
			entry  HistoryEntry
			change string
		)
		if err := rows.Scan(&entry.Address, &entry.Emoji, &entry.Username,
			&entry.StartedAt, &entry.EndedAt, &change); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entry.Change = ChangeType(change)
		out = append(out, entry)
	}
	return out, rows.Err()
}

func scanIdentity(row *sql.Row) (*Identity, error) {
	var ident Identity
	err := row.Scan(&ident.Address, &ident.Emoji, &ident.Username, &ident.CreatedAt, &ident.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan identity: %w", err)
	}
	return &ident, nil
}
