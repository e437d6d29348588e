package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TransactionTypeCredit     TransactionType = "credit"
	TransactionTypeDebit      TransactionType = "debit"
	TransactionTypeCommission TransactionType = "commission"
)

// Transaction is append-only. Seq is assigned by the ledger engine at commit
// time and totally orders the ledger; it is the anchor for stable pagination
// and for per-session event ordering. A transfer appends two rows (debit for the
// sender, credit for the receiver) sharing one TransferID and one commission
// value. BalanceBefore/After snapshot the row's own party atomically with the
// mutation.
type Transaction struct {
	ID                   uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Seq                  int64           `gorm:"uniqueIndex;not null;column:seq" json:"seq"`
	TransferID           uuid.UUID       `gorm:"type:uuid;index;not null;column:transfer_id" json:"transferId"`
	SenderID             uuid.UUID       `gorm:"type:uuid;index;not null;column:sender_id" json:"senderId"`
	ReceiverID           uuid.UUID       `gorm:"type:uuid;index;not null;column:receiver_id" json:"receiverId"`
	Type                 TransactionType `gorm:"not null;column:type" json:"type"`
	Amount               int64           `gorm:"not null;column:amount" json:"-"`
	CommissionPercentage int64           `gorm:"not null;default:0;column:commission_percentage" json:"-"`
	CommissionAmount     int64           `gorm:"not null;default:0;column:commission_amount" json:"-"`
	Description          string          `gorm:"column:description" json:"description"`
	BalanceBefore        int64           `gorm:"not null;column:balance_before" json:"-"`
	BalanceAfter         int64           `gorm:"not null;column:balance_after" json:"-"`
	CreatedAt            time.Time       `gorm:"not null;index" json:"createdAt"`
}

func (Transaction) TableName() string {
	return "transaction"
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Commission is the value object shared by the debit/credit pair of a
// transfer.
type Commission struct {
	Percentage decimal.Decimal `json:"percentage"`
	Amount     decimal.Decimal `json:"amount"`
}

type PartySummary struct {
	ID       uuid.UUID `json:"_id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

// TransactionView is the boundary representation of a ledger row, with
// sender/receiver expanded to summaries and money as fixed-point decimals.
type TransactionView struct {
	ID            uuid.UUID       `json:"_id"`
	Seq           int64           `json:"seq"`
	TransferID    uuid.UUID       `json:"transferId"`
	Sender        PartySummary    `json:"sender"`
	Receiver      PartySummary    `json:"receiver"`
	Type          TransactionType `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Commission    *Commission     `json:"commission,omitempty"`
	Description   string          `json:"description"`
	BalanceBefore decimal.Decimal `json:"balanceBefore"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func (t *Transaction) View(sender, receiver PartySummary) TransactionView {
	view := TransactionView{
		ID:            t.ID,
		Seq:           t.Seq,
		TransferID:    t.TransferID,
		Sender:        sender,
		Receiver:      receiver,
		Type:          t.Type,
		Amount:        decimal.New(t.Amount, -2),
		Description:   t.Description,
		BalanceBefore: decimal.New(t.BalanceBefore, -2),
		BalanceAfter:  decimal.New(t.BalanceAfter, -2),
		CreatedAt:     t.CreatedAt,
	}
	if t.CommissionPercentage > 0 || t.CommissionAmount > 0 {
		view.Commission = &Commission{
			Percentage: decimal.New(t.CommissionPercentage, -2),
			Amount:     decimal.New(t.CommissionAmount, -2),
		}
	}
	return view
}
