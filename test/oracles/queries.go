// Package oracles defines the ledger invariants the stress harness checks
// between actor rounds. Each oracle is a single SQL statement, so every check
// sees one consistent snapshot. A row coming back means the invariant broke.
package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
	// Scoped oracles take the cohort email pattern as $1.
	Scoped bool
}

// All returns the oracle set. pattern is the email LIKE pattern scoping the
// money checks to the accounts a single stress run created; the structural
// checks run over the whole log.
func All() []Oracle {
	return []Oracle{
		{
			// Transfers and reversals move money, deposits mint it. The
			// cohort's balances must always equal headcount times the
			// starting balance plus everything deposited into it.
			Name:   "O1_money_conservation",
			Scoped: true,
			SQL: `WITH cohort AS (
                      SELECT email, balance_cents FROM accounts WHERE email LIKE $1
                  ),
                  minted AS (
                      SELECT COALESCE(SUM(t.amount_cents), 0) AS total
                      FROM transactions t
                      JOIN cohort c ON t.origin_email = c.email
                      WHERE t.kind = 'deposit'
                  )
                  SELECT SUM(c.balance_cents) AS actual,
                         COUNT(*) * 100000 + m.total AS expected
                  FROM cohort c, minted m
                  GROUP BY m.total
                  HAVING SUM(c.balance_cents) <> COUNT(*) * 100000 + m.total`,
		},
		{
			// Only reversals may drive a balance negative. Accounts whose
			// email carries the no-reverse marker are never endpoints of a
			// reversal, so they can never go below zero.
			Name:   "O2_no_overdraft",
			Scoped: true,
			SQL: `SELECT email, balance_cents FROM accounts
                  WHERE email LIKE $1 AND email LIKE '%no-reverse%' AND balance_cents < 0`,
		},
		{
			// Every reversal is the mirror of an earlier transfer: swapped
			// endpoints, same amount.
			Name: "O3_reversal_symmetry",
			SQL: `SELECT r.id FROM transactions r
                  WHERE r.kind = 'reversal'
                    AND NOT EXISTS (
                        SELECT 1 FROM transactions t
                        WHERE t.kind = 'transfer'
                          AND t.id < r.id
                          AND t.origin_email = r.destination_email
                          AND t.destination_email = r.origin_email
                          AND t.amount_cents = r.amount_cents)`,
		},
		{
			// A dispute flips to resolved only inside the transaction that
			// reverses its target, so a resolved dispute whose target has no
			// mirroring reversal means the two writes tore apart.
			Name: "O4_dispute_resolution",
			SQL: `SELECT d.id FROM disputes d
                  JOIN transactions t ON t.id = d.transaction_id
                  WHERE d.status = 'resolved'
                    AND NOT EXISTS (
                        SELECT 1 FROM transactions r
                        WHERE r.kind = 'reversal'
                          AND r.id > t.id
                          AND r.origin_email = t.destination_email
                          AND r.destination_email = t.origin_email
                          AND r.amount_cents = t.amount_cents)`,
		},
		{
			Name: "O5_positive_amounts",
			SQL:  `SELECT id, amount_cents FROM transactions WHERE amount_cents <= 0`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row
// text) or an empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool, pattern string) (string, string, error) {
	for _, o := range All() {
		args := []any{}
		if o.Scoped {
			args = append(args, pattern)
		}
		rows, err := pool.Query(ctx, o.SQL, args...)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		if rows.Next() {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
