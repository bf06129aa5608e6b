package link

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"juicyid/pkg/platform/sentinel"
	txcontext "juicyid/pkg/platform/tx"
)

// PostgresStore persists the link graph in PostgreSQL.
//
// Schema (migrations/002_linked_addresses.sql):
//
//	linked_addresses(id uuid primary key,
//	                 primary_address text not null,
//	                 linked_address text not null unique,
//	                 link_type text not null,
//	                 user_id text null,
//	                 created_at timestamptz)
//	link_history(id uuid primary key, primary_address text, linked_address text,
//	             link_type text, action text, performed_at timestamptz,
//	             performed_by text)
//
// The unique constraint on linked_address closes the race window the
// manager's pre-checks leave open.
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

func (s *PostgresStore) Create(ctx context.Context, link LinkedAddress) error {
	var userID any
	if link.UserID != "" {
		userID = link.UserID
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO linked_addresses (id, primary_address, linked_address, link_type, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, link.ID, link.PrimaryAddress, link.LinkedAddress, string(link.LinkType), userID, link.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert link: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, linkedAddr string) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`DELETE FROM linked_addresses WHERE linked_address = $1`, linkedAddr)
	if err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByLinked(ctx context.Context, linkedAddr string) (*LinkedAddress, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, primary_address, linked_address, link_type, user_id, created_at
		FROM linked_addresses WHERE linked_address = $1
	`, linkedAddr)
	return scanLink(row)
}

func (s *PostgresStore) ListByPrimary(ctx context.Context, primaryAddr string) ([]LinkedAddress, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, primary_address, linked_address, link_type, user_id, created_at
		FROM linked_addresses
		WHERE primary_address = $1
		ORDER BY created_at ASC
	`, primaryAddr)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	var out []LinkedAddress
	for rows.Next() {
		link, err := scanLinkRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *link)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ExistsAsPrimary(ctx context.Context, addr string) (bool, error) {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM linked_addresses WHERE primary_address = $1)`, addr).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check primary: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO link_history
			(id, primary_address, linked_address, link_type, action, performed_at, performed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.New(), entry.PrimaryAddress, entry.LinkedAddress, string(entry.LinkType),
		string(entry.Action), entry.PerformedAt, entry.PerformedBy)
	if err != nil {
		return fmt.Errorf("append link history: %w", err)
	}
	return nil
}

func (s *PostgresStore) HistoryByAddress(ctx context.Context, addr string) ([]HistoryEntry, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT primary_address, linked_address, link_type, action, performed_at, performed_by
		FROM link_history
		WHERE primary_address = $1 OR linked_address = $1
		ORDER BY performed_at DESC
	`, addr)
	if err != nil {
		return nil, fmt.Errorf("load link history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var (
			entry    HistoryEntry
			linkType string
			action   string
		)
		if err := rows.Scan(&entry.PrimaryAddress, &entry.LinkedAddress, &linkType,
			&action, &entry.PerformedAt, &entry.PerformedBy); err != nil {
			return nil, fmt.Errorf("scan link history: %w", err)
		}
		entry.LinkType = LinkType(linkType)
		entry.Action = HistoryAction(action)
		out = append(out, entry)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row *sql.Row) (*LinkedAddress, error) {
	link, err := scanLinkFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return link, nil
}

func scanLinkRows(rows *sql.Rows) (*LinkedAddress, error) {
	return scanLinkFrom(rows)
}

func scanLinkFrom(scanner rowScanner) (*LinkedAddress, error) {
	var (
		link     LinkedAddress
		linkType string
		userID   sql.NullString
	)
	if err := scanner.Scan(&link.ID, &link.PrimaryAddress, &link.LinkedAddress,
		&linkType, &userID, &link.CreatedAt); err != nil {
		return nil, err
	}
	link.LinkType = LinkType(linkType)
	link.UserID = userID.String
	return &link, nil
}
