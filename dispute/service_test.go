package dispute

import (
	"context"
	"errors"
	"testing"
	"time"

	"brasisco/ledger"
)

func TestFile(t *testing.T) {
	store := newFakeStore()
	store.knownTransactions[42] = ledger.KindTransfer
	svc := NewService(store).WithIDGenerator(func() string { return "dispute-1" })

	rec, err := svc.File(context.Background(), FileParams{
		TransactionID: 42,
		Complainant:   "bob@example.com",
		Description:   "I never agreed to this transfer",
	})
	if err != nil {
		t.Fatalf("file: %v", err)
	}

	if rec.ID != "dispute-1" {
		t.Fatalf("expected id dispute-1, got %q", rec.ID)
	}
	if rec.Status != StatusPending {
		t.Fatalf("expected status %s, got %s", StatusPending, rec.Status)
	}
	if rec.TransactionID != 42 {
		t.Fatalf("expected transaction 42, got %d", rec.TransactionID)
	}
}

func TestFile_UnknownTransaction(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	_, err := svc.File(context.Background(), FileParams{
		TransactionID: 999,
		Complainant:   "bob@example.com",
		Description:   "suspicious",
	})
	if !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestFile_Validation(t *testing.T) {
	store := newFakeStore()
	store.knownTransactions[1] = ledger.KindTransfer
	svc := NewService(store)

	if _, err := svc.File(context.Background(), FileParams{TransactionID: 1, Description: "no complainant"}); err == nil {
		t.Fatal("expected error for missing complainant")
	}
	if _, err := svc.File(context.Background(), FileParams{TransactionID: 1, Complainant: "bob@example.com"}); err == nil {
		t.Fatal("expected error for missing description")
	}
}

// Filing is permissive by design: any logged transaction can be disputed,
// whatever its kind, and the same transaction can collect several disputes.
func TestFile_PermissiveTargets(t *testing.T) {
	store := newFakeStore()
	store.knownTransactions[1] = ledger.KindDeposit
	store.knownTransactions[2] = ledger.KindReversal
	store.knownTransactions[3] = ledger.KindTransfer
	svc := NewService(store)

	for _, id := range []int64{1, 2, 3, 3} {
		if _, err := svc.File(context.Background(), FileParams{
			TransactionID: id,
			Complainant:   "bob@example.com",
			Description:   "looks wrong",
		}); err != nil {
			t.Fatalf("file against transaction %d: %v", id, err)
		}
	}

	if len(store.records) != 4 {
		t.Fatalf("expected 4 disputes on record, got %d", len(store.records))
	}
}

func TestListPending_NewestFirst(t *testing.T) {
	store := newFakeStore()
	store.knownTransactions[1] = ledger.KindTransfer
	svc := NewService(store)

	for i := 0; i < 3; i++ {
		if _, err := svc.File(context.Background(), FileParams{
			TransactionID: 1,
			Complainant:   "bob@example.com",
			Description:   "looks wrong",
		}); err != nil {
			t.Fatalf("file: %v", err)
		}
	}

	pending, err := svc.ListPending(context.Background())
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending disputes, got %d", len(pending))
	}
	for i := 1; i < len(pending); i++ {
		if pending[i].FiledAt.After(pending[i-1].FiledAt) {
			t.Fatal("expected newest filing first")
		}
	}
}

type fakeStore struct {
	knownTransactions map[int64]ledger.Kind
	records           []Record
	clock             time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		knownTransactions: map[int64]ledger.Kind{},
		clock:             time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeStore) Insert(_ context.Context, params InsertParams) (Record, error) {
	if _, ok := f.knownTransactions[params.TransactionID]; !ok {
		return Record{}, ErrTransactionNotFound
	}
	f.clock = f.clock.Add(time.Minute)
	rec := Record{
		ID:            params.ID,
		TransactionID: params.TransactionID,
		Complainant:   params.Complainant,
		Description:   params.Description,
		Status:        StatusPending,
		FiledAt:       f.clock,
	}
	f.records = append(f.records, rec)
	return rec, nil
}

func (f *fakeStore) ListPending(context.Context) ([]PendingDispute, error) {
	out := make([]PendingDispute, 0, len(f.records))
	for i := len(f.records) - 1; i >= 0; i-- {
		rec := f.records[i]
		if rec.Status != StatusPending {
			continue
		}
		out = append(out, PendingDispute{
			Record: rec,
			Kind:   f.knownTransactions[rec.TransactionID],
		})
	}
	return out, nil
}
