package ledger

import "errors"

// Validation and state errors surfaced by the engine. Every one of these is
// raised before any mutation is applied; the engine never partially commits.
var (
	ErrInvalidAmount          = errors.New("amount must be greater than zero")
	ErrInvalidCommissionRange = errors.New("commission percentage must be between 0 and 50")
	ErrUnauthorized           = errors.New("receiver is not an immediate child of sender")
	ErrInsufficientBalance    = errors.New("insufficient balance")
)
