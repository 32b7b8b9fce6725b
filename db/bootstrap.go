package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// BootstrapParams describes the privileged operator account seeded at start.
type BootstrapParams struct {
	Email    string
	FullName string
	Password string
}

// SeedOperator idempotently provisions the operator account. The operator
// starts with a zero balance and is the only account created outside
// registration. Re-running against an existing row is a no-op, so the stored
// hash survives restarts with a changed bootstrap password.
func SeedOperator(ctx context.Context, pool *pgxpool.Pool, params BootstrapParams) error {
	if params.Email == "" || params.Password == "" {
		return fmt.Errorf("db: bootstrap operator email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("db: hash operator password: %w", err)
	}

	const insertSQL = `
		INSERT INTO accounts (email, full_name, password_hash, balance_cents, role)
		VALUES ($1, $2, $3, 0, 'operator')
		ON CONFLICT (email) DO NOTHING
	`
	if _, err := pool.Exec(ctx, insertSQL, params.Email, params.FullName, string(hash)); err != nil {
		return fmt.Errorf("db: seed operator: %w", err)
	}

	return nil
}
