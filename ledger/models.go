package ledger

import "time"

// Kind classifies a balance-affecting event.
type Kind string

const (
	KindDeposit  Kind = "deposit"
	KindTransfer Kind = "transfer"
	KindReversal Kind = "reversal"
)

// Transaction is one immutable entry of the append-only log. Rows are only
// ever inserted; a reversal is logged as a distinct entry with the original
// transfer's endpoints swapped, never as an edit.
//
// Exactly one endpoint is nil for a deposit; both are set for a transfer or
// reversal. Identifiers are assigned by the database in insertion order and
// define the total order of the log.
type Transaction struct {
	ID          int64
	Origin      *string
	Destination *string
	Kind        Kind
	AmountCents int64
	CreatedAt   time.Time
}
