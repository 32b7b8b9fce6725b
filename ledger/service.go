package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"brasisco/account"
)

var (
	// ErrAccountNotFound signals that an endpoint of the operation is unknown.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrInsufficientFunds signals that the origin balance cannot cover the transfer.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	// ErrNotReversible signals that the referenced transaction is not a transfer.
	ErrNotReversible = errors.New("ledger: only transfers can be reversed")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// AccountStore is the slice of the account registry the engine needs.
// account.PGRepository satisfies it. Both methods operate inside the engine's
// transaction so the funds check and the adjustment are indivisible.
type AccountStore interface {
	LockBalance(ctx context.Context, tx pgx.Tx, email string) (int64, error)
	AdjustBalance(ctx context.Context, tx pgx.Tx, email string, delta int64) (int64, error)
}

// TransactionLog is the append-only log the engine writes to. *Repository
// satisfies it.
type TransactionLog interface {
	Append(ctx context.Context, tx pgx.Tx, origin, destination *string, kind Kind, amountCents int64) (Transaction, error)
	Get(ctx context.Context, id int64) (Transaction, error)
}

// DisputeResolver closes pending disputes as part of a reversal. It runs
// inside the engine's transaction so money movement and dispute bookkeeping
// commit or roll back together. dispute.Repository satisfies it.
type DisputeResolver interface {
	ResolveByTransaction(ctx context.Context, tx pgx.Tx, transactionID int64) (int64, error)
}

// Service is the ledger engine. Each operation is one database transaction:
// all contained writes succeed together or none take effect.
type Service struct {
	pool     TxBeginner
	accounts AccountStore
	log      TransactionLog
	disputes DisputeResolver
	logger   *zap.Logger
}

// NewService creates the ledger engine.
func NewService(pool TxBeginner, accounts AccountStore, log TransactionLog, disputes DisputeResolver, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		pool:     pool,
		accounts: accounts,
		log:      log,
		disputes: disputes,
		logger:   logger,
	}
}

// Deposit credits the account and appends a deposit entry atomically.
func (s *Service) Deposit(ctx context.Context, email string, amountCents int64) (Transaction, error) {
	if amountCents <= 0 {
		return Transaction{}, ErrInvalidAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Transaction{}, fmt.Errorf("ledger: begin deposit: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := s.accounts.LockBalance(ctx, tx, email); err != nil {
		return Transaction{}, mapAccountErr(err)
	}
	if _, err := s.accounts.AdjustBalance(ctx, tx, email, amountCents); err != nil {
		return Transaction{}, mapAccountErr(err)
	}

	entry, err := s.log.Append(ctx, tx, &email, nil, KindDeposit, amountCents)
	if err != nil {
		return Transaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, fmt.Errorf("ledger: commit deposit: %w", err)
	}

	s.logger.Debug("deposit recorded",
		zap.Int64("transaction_id", entry.ID),
		zap.String("account", email),
		zap.Int64("amount_cents", amountCents),
	)
	return entry, nil
}

// Transfer moves funds between two accounts and appends a transfer entry.
// Both account rows are locked for the duration of the transaction, in
// lexicographic order, so the funds check and the debit are indivisible and
// concurrent transfers against the same pair serialize without deadlocking.
func (s *Service) Transfer(ctx context.Context, origin, destination string, amountCents int64) (Transaction, error) {
	if amountCents <= 0 {
		return Transaction{}, ErrInvalidAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Transaction{}, fmt.Errorf("ledger: begin transfer: %w", err)
	}
	defer tx.Rollback(ctx)

	originBalance, err := s.lockPair(ctx, tx, origin, destination)
	if err != nil {
		return Transaction{}, err
	}
	if originBalance < amountCents {
		return Transaction{}, ErrInsufficientFunds
	}

	if _, err := s.accounts.AdjustBalance(ctx, tx, origin, -amountCents); err != nil {
		return Transaction{}, mapAccountErr(err)
	}
	if _, err := s.accounts.AdjustBalance(ctx, tx, destination, amountCents); err != nil {
		return Transaction{}, mapAccountErr(err)
	}

	entry, err := s.log.Append(ctx, tx, &origin, &destination, KindTransfer, amountCents)
	if err != nil {
		return Transaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, fmt.Errorf("ledger: commit transfer: %w", err)
	}

	s.logger.Debug("transfer recorded",
		zap.Int64("transaction_id", entry.ID),
		zap.String("origin", origin),
		zap.String("destination", destination),
		zap.Int64("amount_cents", amountCents),
	)
	return entry, nil
}

// Reverse undoes a prior transfer: it credits the original origin and debits
// the original destination by the original amount, appends a reversal entry
// with the endpoints swapped, and resolves every pending dispute referencing
// the transfer. The debit is applied irrespective of the destination's
// current balance, which can drive it negative if the funds were already
// spent elsewhere.
func (s *Service) Reverse(ctx context.Context, transactionID int64) (Transaction, error) {
	// Log entries are immutable once written, so the kind/endpoint read does
	// not need to share the transaction that moves the funds.
	original, err := s.log.Get(ctx, transactionID)
	if err != nil {
		return Transaction{}, err
	}
	if original.Kind != KindTransfer {
		return Transaction{}, ErrNotReversible
	}
	if original.Origin == nil || original.Destination == nil {
		return Transaction{}, fmt.Errorf("ledger: transfer %d is missing an endpoint", transactionID)
	}
	origin, destination := *original.Origin, *original.Destination

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Transaction{}, fmt.Errorf("ledger: begin reversal: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := s.lockPair(ctx, tx, origin, destination); err != nil {
		return Transaction{}, err
	}

	if _, err := s.accounts.AdjustBalance(ctx, tx, origin, original.AmountCents); err != nil {
		return Transaction{}, mapAccountErr(err)
	}
	if _, err := s.accounts.AdjustBalance(ctx, tx, destination, -original.AmountCents); err != nil {
		return Transaction{}, mapAccountErr(err)
	}

	entry, err := s.log.Append(ctx, tx, &destination, &origin, KindReversal, original.AmountCents)
	if err != nil {
		return Transaction{}, err
	}

	resolved, err := s.disputes.ResolveByTransaction(ctx, tx, transactionID)
	if err != nil {
		return Transaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, fmt.Errorf("ledger: commit reversal: %w", err)
	}

	s.logger.Info("transfer reversed",
		zap.Int64("transaction_id", transactionID),
		zap.Int64("reversal_id", entry.ID),
		zap.Int64("disputes_resolved", resolved),
	)
	return entry, nil
}

// lockPair locks both account rows in lexicographic order and returns the
// first account's balance.
func (s *Service) lockPair(ctx context.Context, tx pgx.Tx, first, second string) (int64, error) {
	if second < first {
		if _, err := s.accounts.LockBalance(ctx, tx, second); err != nil {
			return 0, mapAccountErr(err)
		}
		balance, err := s.accounts.LockBalance(ctx, tx, first)
		if err != nil {
			return 0, mapAccountErr(err)
		}
		return balance, nil
	}

	balance, err := s.accounts.LockBalance(ctx, tx, first)
	if err != nil {
		return 0, mapAccountErr(err)
	}
	if second != first {
		if _, err := s.accounts.LockBalance(ctx, tx, second); err != nil {
			return 0, mapAccountErr(err)
		}
	}
	return balance, nil
}

func mapAccountErr(err error) error {
	if errors.Is(err, account.ErrNotFound) {
		return ErrAccountNotFound
	}
	return err
}
