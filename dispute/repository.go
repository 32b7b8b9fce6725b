package dispute

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrTransactionNotFound signals that the disputed transaction is unknown.
	ErrTransactionNotFound = errors.New("dispute: transaction not found")
	// ErrComplainantNotFound signals that the filing account is unknown.
	ErrComplainantNotFound = errors.New("dispute: complainant not found")
)

// Repository handles data access for disputes.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed dispute repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertParams contains write parameters for filing a dispute.
type InsertParams struct {
	ID            string
	TransactionID int64
	Complainant   string
	Description   string
}

// Insert files a new pending dispute. The foreign keys are the only
// validation: any logged transaction can be disputed, including
// non-transfers and already-reversed transfers.
func (r *Repository) Insert(ctx context.Context, params InsertParams) (Record, error) {
	const insertSQL = `
		INSERT INTO disputes (id, transaction_id, complainant_email, description, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, transaction_id, complainant_email, description, status, filed_at
	`

	var rec Record
	err := r.pool.QueryRow(ctx, insertSQL,
		params.ID, params.TransactionID, params.Complainant, params.Description, StatusPending).
		Scan(&rec.ID, &rec.TransactionID, &rec.Complainant, &rec.Description, &rec.Status, &rec.FiledAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			if pgErr.ConstraintName == "disputes_complainant_email_fkey" {
				return Record{}, ErrComplainantNotFound
			}
			return Record{}, ErrTransactionNotFound
		}
		return Record{}, fmt.Errorf("dispute: insert: %w", err)
	}
	return rec, nil
}

// ListPending returns all pending disputes, newest filing first, joined with
// the disputed transaction's participants and amount.
func (r *Repository) ListPending(ctx context.Context) ([]PendingDispute, error) {
	const selectSQL = `
		SELECT d.id, d.transaction_id, d.complainant_email, d.description, d.status, d.filed_at,
		       t.kind, t.origin_email, t.destination_email,
		       ao.full_name, ad.full_name,
		       t.amount_cents
		FROM disputes d
		JOIN transactions t ON t.id = d.transaction_id
		LEFT JOIN accounts ao ON ao.email = t.origin_email
		LEFT JOIN accounts ad ON ad.email = t.destination_email
		WHERE d.status = $1
		ORDER BY d.filed_at DESC, d.id DESC
	`

	rows, err := r.pool.Query(ctx, selectSQL, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("dispute: list pending: %w", err)
	}
	defer rows.Close()

	out := make([]PendingDispute, 0, 8)
	for rows.Next() {
		var pd PendingDispute
		err := rows.Scan(
			&pd.ID, &pd.TransactionID, &pd.Complainant, &pd.Description, &pd.Status, &pd.FiledAt,
			&pd.Kind, &pd.Origin, &pd.Destination,
			&pd.OriginName, &pd.DestinationName,
			&pd.AmountCents,
		)
		if err != nil {
			return nil, fmt.Errorf("dispute: scan: %w", err)
		}
		out = append(out, pd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate: %w", err)
	}
	return out, nil
}

// ResolveByTransaction marks every pending dispute referencing the
// transaction as resolved and reports how many it touched. Resolution is
// keyed on the transaction id, not a dispute id: reversing a transfer settles
// all complaints against it at once. It runs inside the ledger engine's
// reversal transaction.
func (r *Repository) ResolveByTransaction(ctx context.Context, tx pgx.Tx, transactionID int64) (int64, error) {
	const updateSQL = `
		UPDATE disputes SET status = $1
		WHERE transaction_id = $2 AND status = $3
	`

	tag, err := tx.Exec(ctx, updateSQL, StatusResolved, transactionID, StatusPending)
	if err != nil {
		return 0, fmt.Errorf("dispute: resolve by transaction: %w", err)
	}
	return tag.RowsAffected(), nil
}
