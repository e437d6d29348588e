package realtime

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/uplinepay/uplinepay-backend/internal/types"
)

type EventKind string

const (
	EventKindBalanceUpdate  EventKind = "balanceUpdate"
	EventKindNewTransaction EventKind = "newTransaction"
)

// Event is the tagged union carried to subscribed sessions. Exactly one
// payload field is set, matching Kind; consumers dispatch on Kind instead of
// sniffing the payload. Seq carries the ledger sequence of the originating
// commit so per-session delivery order can be asserted end to end.
type Event struct {
	Channel        string          `json:"channel"`
	Kind           EventKind       `json:"event"`
	Seq            int64           `json:"seq,omitempty"`
	BalanceUpdate  *BalanceUpdate  `json:"balanceUpdate,omitempty"`
	NewTransaction *NewTransaction `json:"newTransaction,omitempty"`
}

type BalanceUpdate struct {
	UserID     uuid.UUID       `json:"userId"`
	NewBalance decimal.Decimal `json:"newBalance"`
}

type NewTransaction struct {
	Transaction types.TransactionView `json:"transaction"`
}

// UserChannel is the per-user subscription scope: a session on this channel
// sees every event touching that user's account.
func UserChannel(userID uuid.UUID) string {
	return "user:" + userID.String()
}
