// Package actors holds the concurrent workloads for the stress harness. Each
// actor loops until stop closes, driving the real services against a live
// database. Domain errors (insufficient funds, not reversible, unknown
// transaction) are expected under contention and ignored; transient store
// errors are tolerated because the chaos actor kills backends on purpose.
package actors

import (
	"context"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"brasisco/dispute"
	"brasisco/ledger"
)

// Depositor credits random amounts to one account.
func Depositor(ctx context.Context, engine *ledger.Service, email string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		default:
		}
		_, _ = engine.Deposit(ctx, email, int64(1+rand.Intn(5_000)))
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// Transferrer moves random amounts from origin to destination. Several
// transferrers battling over the same origin is how overdrafts would show up
// if the funds check and the debit were not atomic.
func Transferrer(ctx context.Context, engine *ledger.Service, origin, destination string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		default:
		}
		_, _ = engine.Transfer(ctx, origin, destination, int64(1+rand.Intn(40_000)))
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
}

// Disputer files disputes against the most recent transfers touching the
// given account.
func Disputer(ctx context.Context, pool *pgxpool.Pool, disputes *dispute.Service, complainant string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		default:
		}
		var id int64
		err := pool.QueryRow(ctx, `SELECT id FROM transactions
                                   WHERE kind = 'transfer' AND (origin_email = $1 OR destination_email = $1)
                                   ORDER BY id DESC LIMIT 1`, complainant).Scan(&id)
		if err == nil {
			_, _ = disputes.File(ctx, dispute.FileParams{
				TransactionID: id,
				Complainant:   complainant,
				Description:   "stress dispute",
			})
		}
		time.Sleep(time.Duration(100+rand.Intn(100)) * time.Millisecond)
	}
}

// Reverser picks a random logged transfer between the two accounts and asks
// the engine to reverse it. Deposits and reversals are rejected by the engine,
// which the oracle set relies on.
func Reverser(ctx context.Context, pool *pgxpool.Pool, engine *ledger.Service, a, b string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		default:
		}
		var id int64
		err := pool.QueryRow(ctx, `SELECT id FROM transactions
                                   WHERE kind = 'transfer' AND origin_email IN ($1, $2) AND destination_email IN ($1, $2)
                                   ORDER BY random() LIMIT 1`, a, b).Scan(&id)
		if err == nil {
			_, _ = engine.Reverse(ctx, id)
		}
		time.Sleep(time.Duration(50+rand.Intn(100)) * time.Millisecond)
	}
}
