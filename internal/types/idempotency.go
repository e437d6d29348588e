package types

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyRecord pins a caller-supplied key to the transfer it produced.
// A replayed key returns the original transfer instead of re-executing; the
// row is written in the same database transaction as the transfer itself so
// the pairing can never be half-visible.
type IdempotencyRecord struct {
	Key        string    `gorm:"primaryKey;column:key"`
	SenderID   uuid.UUID `gorm:"type:uuid;index;not null;column:sender_id"`
	TransferID uuid.UUID `gorm:"type:uuid;not null;column:transfer_id"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (IdempotencyRecord) TableName() string {
	return "idempotency_record"
}
