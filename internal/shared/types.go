package shared

import "time"

// Queue names
const (
	QueueCirculation = "circulation"
	QueueMaintenance = "maintenance"
)

// Task types
const (
	TypeRefreshOverdueFines = "circulation:refresh_overdue_fines"
	TypeReconcileLedger     = "circulation:reconcile_ledger"
)

// RefreshOverdueFinesPayload is empty today; the handler reads the rate from config.
type RefreshOverdueFinesPayload struct {
	RequestedAt time.Time `json:"requestedAt"`
}

// ReconcileLedgerPayload says why a reconcile run was requested.
type ReconcileLedgerPayload struct {
	Trigger string    `json:"trigger"` // "schedule" or an override kind
	ItemID  string    `json:"itemId,omitempty"`
	LoanID  string    `json:"loanId,omitempty"`
	At      time.Time `json:"at"`
}
