package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/uplinepay/uplinepay-backend/internal/realtime"
	"github.com/uplinepay/uplinepay-backend/internal/types"
)

// LedgerNotifier pushes post-commit events to every session scoped to either
// party. The stream is a low-latency hint, not a system of record; missed
// deliveries are reconciled through transaction history.
//
// Emission happens after the engine has committed and released its account
// locks, so two rapid commits on one account can publish in either order.
// Every event carries the commit's ledger Seq; consumers keep the highest
// Seq seen per account and discard anything older.
type LedgerNotifier interface {
	TransactionCommitted(view types.TransactionView)
	BalanceChanged(user *types.User, seq int64)
}

type ledgerNotifier struct {
	emit EventEmitter
}

func NewLedgerNotifier(emit EventEmitter) LedgerNotifier {
	return &ledgerNotifier{emit: emit}
}

func (n *ledgerNotifier) TransactionCommitted(view types.TransactionView) {
	if n == nil || n.emit == nil {
		return
	}
	for _, party := range partyChannels(view.Sender.ID, view.Receiver.ID) {
		n.emit.Emit(context.Background(), realtime.Event{
			Channel:        party,
			Kind:           realtime.EventKindNewTransaction,
			Seq:            view.Seq,
			NewTransaction: &realtime.NewTransaction{Transaction: view},
		})
	}
}

func (n *ledgerNotifier) BalanceChanged(user *types.User, seq int64) {
	if n == nil || n.emit == nil || user == nil || user.ID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.Event{
		Channel: realtime.UserChannel(user.ID),
		Kind:    realtime.EventKindBalanceUpdate,
		Seq:     seq,
		BalanceUpdate: &realtime.BalanceUpdate{
			UserID:     user.ID,
			NewBalance: decimal.New(user.Balance, -2),
		},
	})
}

func partyChannels(senderID, receiverID uuid.UUID) []string {
	channels := []string{realtime.UserChannel(senderID)}
	if receiverID != senderID {
		channels = append(channels, realtime.UserChannel(receiverID))
	}
	return channels
}
