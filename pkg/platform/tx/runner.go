package tx

import (
	"context"
	"database/sql"
	"fmt"
)

// Runner executes a function inside one atomic unit. The SQL implementation
// opens a transaction and carries it through context so every store call the
// function makes joins the same transaction; the passthrough implementation
// backs memory stores in tests.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLRunner runs functions inside a database/sql transaction.
type SQLRunner struct {
	db *sql.DB
}

func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// Joining an outer transaction keeps nested RunInTx calls atomic with it.
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Passthrough satisfies Runner without transactional semantics. Memory
// stores guard their own maps with mutexes, so tests use this.
type Passthrough struct{}

func NewPassthrough() *Passthrough { return &Passthrough{} }

func (Passthrough) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
