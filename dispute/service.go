package dispute

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Store is the data access consumed by the service. *Repository satisfies it.
type Store interface {
	Insert(ctx context.Context, params InsertParams) (Record, error)
	ListPending(ctx context.Context) ([]PendingDispute, error)
}

// Service handles dispute filing and the operator review queue. Resolution is
// deliberately absent here: it happens as a side effect of the ledger
// engine's reversal, keeping money movement and dispute bookkeeping in one
// atomic unit.
type Service struct {
	store       Store
	idGenerator func() string
}

// NewService creates a new dispute service.
func NewService(store Store) *Service {
	return &Service{
		store:       store,
		idGenerator: func() string { return uuid.NewString() },
	}
}

// WithIDGenerator overrides the dispute id source, for tests.
func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

// FileParams contains the complaint supplied by a transaction holder.
type FileParams struct {
	TransactionID int64
	Complainant   string
	Description   string
}

// File records a new pending dispute against a logged transaction. Beyond the
// transaction existing, no check constrains what can be disputed: filing
// against a deposit, a reversal, or an already-reversed transfer is accepted,
// and the same transaction can accumulate several disputes.
func (s *Service) File(ctx context.Context, params FileParams) (Record, error) {
	if params.Complainant == "" {
		return Record{}, fmt.Errorf("dispute: complainant is required")
	}
	if params.Description == "" {
		return Record{}, fmt.Errorf("dispute: description is required")
	}

	return s.store.Insert(ctx, InsertParams{
		ID:            s.idGenerator(),
		TransactionID: params.TransactionID,
		Complainant:   params.Complainant,
		Description:   params.Description,
	})
}

// ListPending returns the operator review queue, newest filing first.
func (s *Service) ListPending(ctx context.Context) ([]PendingDispute, error) {
	return s.store.ListPending(ctx)
}
