package account

import "time"

// Role separates ordinary customers from the privileged operator seeded at
// bootstrap. Operators can inspect the global history, review disputes, and
// reverse transfers.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleOperator Role = "operator"
)

// StartingBalanceCents is credited to every account at registration.
const StartingBalanceCents int64 = 100_000 // 1000 currency units

// Account is the domain representation of a balance-holding account.
// It mirrors the accounts table and carries no JSON annotations so it can be
// reused by different presentation layers. Balances are integer cents; only
// the ledger engine mutates them.
type Account struct {
	Email        string
	FullName     string
	PasswordHash string
	BalanceCents int64
	Role         Role
	CreatedAt    time.Time
}

// IsOperator reports whether the account holds operator privilege.
func (a Account) IsOperator() bool {
	return a.Role == RoleOperator
}
