package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrInvalidAmount signals a zero or negative amount.
	ErrInvalidAmount = errors.New("ledger: amount must be positive")
	// ErrTransactionNotFound signals that no log entry exists for the id.
	ErrTransactionNotFound = errors.New("ledger: transaction not found")
)

// Repository is the append-only transaction log backed by PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed transaction log.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const transactionColumns = `id, origin_email, destination_email, kind, amount_cents, created_at`

// Append inserts a new log entry inside the caller's transaction and returns
// it with its assigned identifier and timestamp. The engine calls this as
// part of the same atomic unit that moves the funds.
func (r *Repository) Append(ctx context.Context, tx pgx.Tx, origin, destination *string, kind Kind, amountCents int64) (Transaction, error) {
	if amountCents <= 0 {
		return Transaction{}, ErrInvalidAmount
	}

	const insertSQL = `
		INSERT INTO transactions (origin_email, destination_email, kind, amount_cents)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + transactionColumns

	entry, err := scanTransaction(tx.QueryRow(ctx, insertSQL, origin, destination, kind, amountCents))
	if err != nil {
		return Transaction{}, fmt.Errorf("ledger: append: %w", err)
	}
	return entry, nil
}

// Get retrieves a single log entry by id.
func (r *Repository) Get(ctx context.Context, id int64) (Transaction, error) {
	const selectSQL = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	entry, err := scanTransaction(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, fmt.Errorf("ledger: get: %w", err)
	}
	return entry, nil
}

// ListAll returns every log entry, newest first.
func (r *Repository) ListAll(ctx context.Context) ([]Transaction, error) {
	const selectSQL = `SELECT ` + transactionColumns + ` FROM transactions ORDER BY id DESC`

	rows, err := r.pool.Query(ctx, selectSQL)
	if err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// ListForAccount returns the entries where the account is origin or
// destination, newest first.
func (r *Repository) ListForAccount(ctx context.Context, email string) ([]Transaction, error) {
	const selectSQL = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE origin_email = $1 OR destination_email = $1
		ORDER BY id DESC`

	rows, err := r.pool.Query(ctx, selectSQL, email)
	if err != nil {
		return nil, fmt.Errorf("ledger: list for account: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]Transaction, error) {
	out := make([]Transaction, 0, 16)
	for rows.Next() {
		entry, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate: %w", err)
	}
	return out, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var entry Transaction
	err := row.Scan(
		&entry.ID,
		&entry.Origin,
		&entry.Destination,
		&entry.Kind,
		&entry.AmountCents,
		&entry.CreatedAt,
	)
	if err != nil {
		return Transaction{}, err
	}
	return entry, nil
}
