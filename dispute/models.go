package dispute

import (
	"time"

	"brasisco/ledger"
)

// Status represents the lifecycle of a dispute record. Pending is the only
// non-terminal state; a dispute resolves exclusively through the ledger
// engine reversing the disputed transaction. There is no rejected state: an
// operator either reverses or leaves the dispute pending.
type Status string

const (
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
)

// Record mirrors the disputes table.
type Record struct {
	ID            string
	TransactionID int64
	Complainant   string
	Description   string
	Status        Status
	FiledAt       time.Time
}

// PendingDispute is a read-side projection for the operator review queue:
// the dispute joined with the disputed transaction's endpoints and amount.
// It exists for display only and is not a separate entity.
type PendingDispute struct {
	Record
	Kind            ledger.Kind
	Origin          *string
	Destination     *string
	OriginName      *string
	DestinationName *string
	AmountCents     int64
}
