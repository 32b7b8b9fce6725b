package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals that the account does not exist.
	ErrNotFound = errors.New("account: not found")
	// ErrDuplicate signals that the email is already registered.
	ErrDuplicate = errors.New("account: email already registered")
)

// Repository handles data access for the account registry.
type Repository interface {
	CreateAccount(ctx context.Context, params CreateParams) (Account, error)
	GetByEmail(ctx context.Context, email string) (Account, error)
	IsOperator(ctx context.Context, email string) (bool, error)
}

// CreateParams contains write parameters for registering an account.
// The password hash is opaque here; hashing lives in the auth service.
type CreateParams struct {
	Email        string
	FullName     string
	PasswordHash string
}

// PGRepository implements the registry backed by PostgreSQL. It is the only
// writer of balance values; the ledger engine adjusts them through
// LockBalance/AdjustBalance inside its own transaction.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed account repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const accountColumns = `email, full_name, password_hash, balance_cents, role, created_at`

// CreateAccount inserts a new customer account with the fixed starting balance.
func (r *PGRepository) CreateAccount(ctx context.Context, params CreateParams) (Account, error) {
	const insertSQL = `
		INSERT INTO accounts (email, full_name, password_hash, balance_cents, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + accountColumns

	acc, err := scanAccount(r.pool.QueryRow(ctx, insertSQL,
		params.Email, params.FullName, params.PasswordHash, StartingBalanceCents, RoleCustomer))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, ErrDuplicate
		}
		return Account{}, fmt.Errorf("account: create: %w", err)
	}
	return acc, nil
}

// GetByEmail retrieves an account by its email key.
func (r *PGRepository) GetByEmail(ctx context.Context, email string) (Account, error) {
	const selectSQL = `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`

	acc, err := scanAccount(r.pool.QueryRow(ctx, selectSQL, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("account: get by email: %w", err)
	}
	return acc, nil
}

// IsOperator reports whether the account holds operator privilege.
func (r *PGRepository) IsOperator(ctx context.Context, email string) (bool, error) {
	const selectSQL = `SELECT role FROM accounts WHERE email = $1`

	var role Role
	if err := r.pool.QueryRow(ctx, selectSQL, email).Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("account: operator check: %w", err)
	}
	return role == RoleOperator, nil
}

// LockBalance reads the account balance under a row lock held for the rest of
// the surrounding transaction. Callers lock rows in a deterministic order to
// avoid deadlocks.
func (r *PGRepository) LockBalance(ctx context.Context, tx pgx.Tx, email string) (int64, error) {
	const lockSQL = `SELECT balance_cents FROM accounts WHERE email = $1 FOR UPDATE`

	var balance int64
	if err := tx.QueryRow(ctx, lockSQL, email).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("account: lock balance: %w", err)
	}
	return balance, nil
}

// AdjustBalance applies delta (positive or negative) to the stored balance and
// returns the new value. It does not re-validate the result: the ledger engine
// checks funds under the same row lock before asking for the adjustment.
func (r *PGRepository) AdjustBalance(ctx context.Context, tx pgx.Tx, email string, delta int64) (int64, error) {
	const updateSQL = `
		UPDATE accounts SET balance_cents = balance_cents + $1
		WHERE email = $2
		RETURNING balance_cents`

	var balance int64
	if err := tx.QueryRow(ctx, updateSQL, delta, email).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("account: adjust balance: %w", err)
	}
	return balance, nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var acc Account
	err := row.Scan(
		&acc.Email,
		&acc.FullName,
		&acc.PasswordHash,
		&acc.BalanceCents,
		&acc.Role,
		&acc.CreatedAt,
	)
	if err != nil {
		return Account{}, err
	}
	return acc, nil
}
