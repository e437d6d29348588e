package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/uplinepay/uplinepay-backend/internal/hierarchy"
	"github.com/uplinepay/uplinepay-backend/internal/logger"
	"github.com/uplinepay/uplinepay-backend/internal/repos"
	"github.com/uplinepay/uplinepay-backend/internal/types"
)

// AttributionRule decides who the commission accrues to. The observed MLM
// policy credits the sender (the party that set the rate keeps the override),
// which is the default; alternate rules stay configurable pending a firmer
// statement of intended semantics.
type AttributionRule string

const (
	AttributeToSender   AttributionRule = "sender"
	AttributeToReceiver AttributionRule = "receiver"
	AttributeToPlatform AttributionRule = "platform"
)

func ParseAttributionRule(raw string) AttributionRule {
	switch AttributionRule(raw) {
	case AttributeToReceiver:
		return AttributeToReceiver
	case AttributeToPlatform:
		return AttributeToPlatform
	default:
		return AttributeToSender
	}
}

type TransferRequest struct {
	SenderID             uuid.UUID
	ReceiverID           uuid.UUID
	Amount               int64
	PercentageHundredths int64
	Description          string
	IdempotencyKey       string
}

type TransferResult struct {
	TransferID uuid.UUID
	Sender     *types.User
	Receiver   *types.User
	Debit      *types.Transaction
	Credit     *types.Transaction
	Commission int64
	Net        int64
	// Replayed marks an idempotency-key hit: the original result, not a
	// re-execution.
	Replayed bool
}

type HistoryQuery struct {
	UserID    uuid.UUID
	Page      int
	PageSize  int
	Type      types.TransactionType
	BeforeSeq int64
}

type HistoryPage struct {
	Transactions []*types.Transaction
	Page         int
	PageSize     int
	Total        int64
	Pages        int
	// AnchorSeq is the ledger position this page set is pinned to. Passing
	// it back on later pages makes pagination immune to concurrent inserts.
	AnchorSeq int64
}

// Engine is the single writer of balance state. All multi-field mutations of
// a transfer happen inside one database transaction, under per-account locks
// acquired in ascending id order.
//
// Both the locks and the seq counter are process-local, so exactly one
// Engine instance may write to a given ledger database. Scale-out runs
// read/SSE replicas against the same database and the shared event bus;
// a second writer would race balance updates and collide on seq.
type Engine struct {
	db          *gorm.DB
	log         *logger.Logger
	userRepo    repos.UserRepo
	txnRepo     repos.TransactionRepo
	idemRepo    repos.IdempotencyRepo
	hier        *hierarchy.Store
	locks       *accountLocks
	attribution AttributionRule

	seqMu     sync.Mutex
	seqSeeded bool
	seqHead   int64
}

// nextSeq hands out the next per-ledger sequence number, seeded from the
// table head on first use. The engine is the single writer of the ledger, so
// a process-local counter keeps commit order total.
func (e *Engine) nextSeq(ctx context.Context) (int64, error) {
	e.seqMu.Lock()
	defer e.seqMu.Unlock()
	if !e.seqSeeded {
		head, err := e.txnRepo.MaxSeq(ctx, nil)
		if err != nil {
			return 0, err
		}
		e.seqHead = head
		e.seqSeeded = true
	}
	e.seqHead++
	return e.seqHead, nil
}

func NewEngine(db *gorm.DB, baseLog *logger.Logger, userRepo repos.UserRepo, txnRepo repos.TransactionRepo, idemRepo repos.IdempotencyRepo, hier *hierarchy.Store, attribution AttributionRule) *Engine {
	engineLog := baseLog.With("service", "LedgerEngine")
	return &Engine{
		db:          db,
		log:         engineLog,
		userRepo:    userRepo,
		txnRepo:     txnRepo,
		idemRepo:    idemRepo,
		hier:        hier,
		locks:       newAccountLocks(),
		attribution: attribution,
	}
}

// Transfer validates and executes a balance transfer from sender to an
// immediate child. Validation order: amount, commission range, authorization,
// balance; every failure is reported before any state is touched.
func (e *Engine) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.PercentageHundredths < 0 || req.PercentageHundredths > 5000 {
		return nil, ErrInvalidCommissionRange
	}

	if req.IdempotencyKey != "" {
		replay, err := e.replayFor(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if replay != nil {
			return replay, nil
		}
	}

	ok, err := e.hier.IsImmediateChild(ctx, req.SenderID, req.ReceiverID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("receiver %s: %w", req.ReceiverID, ErrUnauthorized)
	}

	release, err := e.locks.Acquire(ctx, req.SenderID, req.ReceiverID)
	if err != nil {
		return nil, err
	}
	defer release()

	commission := CommissionFor(req.Amount, req.PercentageHundredths)
	net := req.Amount - commission

	// Sequence numbers are allocated before the database transaction opens so
	// the counter seed never competes with the transaction for a connection.
	// A rollback burns the pair; gaps are fine, order is what matters.
	debitSeq, err := e.nextSeq(ctx)
	if err != nil {
		return nil, err
	}
	creditSeq, err := e.nextSeq(ctx)
	if err != nil {
		return nil, err
	}

	result := &TransferResult{
		TransferID: uuid.New(),
		Commission: commission,
		Net:        net,
	}

	txErr := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sender, err := e.userRepo.GetByID(ctx, tx, req.SenderID)
		if err != nil {
			return err
		}
		if sender == nil {
			return fmt.Errorf("sender %s: %w", req.SenderID, hierarchy.ErrUserNotFound)
		}
		receiver, err := e.userRepo.GetByID(ctx, tx, req.ReceiverID)
		if err != nil {
			return err
		}
		if receiver == nil {
			return fmt.Errorf("receiver %s: %w", req.ReceiverID, hierarchy.ErrUserNotFound)
		}

		// Recheck under the transaction: the hierarchy may have moved
		// between the precheck and lock acquisition.
		if receiver.ParentID == nil || *receiver.ParentID != sender.ID {
			return fmt.Errorf("receiver %s: %w", req.ReceiverID, ErrUnauthorized)
		}
		if sender.Balance < req.Amount {
			return fmt.Errorf("balance %d, requested %d: %w", sender.Balance, req.Amount, ErrInsufficientBalance)
		}

		senderBefore := sender.Balance
		receiverBefore := receiver.Balance
		sender.Balance -= req.Amount
		receiver.Balance += net

		// Commission lands in the accumulator, never back into a balance:
		// the worked model is balance 1000, transfer 200 at 5% -> sender
		// balance 800, commissionEarned +10, receiver +190.
		switch e.attribution {
		case AttributeToReceiver:
			receiver.CommissionEarned += commission
		case AttributeToPlatform:
			// Retained by the platform: accrues to neither party's accumulator.
		default:
			sender.CommissionEarned += commission
		}

		if err := e.userRepo.UpdateBalances(ctx, tx, sender.ID, sender.Balance, sender.CommissionEarned); err != nil {
			return err
		}
		if err := e.userRepo.UpdateBalances(ctx, tx, receiver.ID, receiver.Balance, receiver.CommissionEarned); err != nil {
			return err
		}

		if req.IdempotencyKey != "" {
			rec := &types.IdempotencyRecord{
				Key:        req.IdempotencyKey,
				SenderID:   sender.ID,
				TransferID: result.TransferID,
			}
			if err := e.idemRepo.Create(ctx, tx, rec); err != nil {
				return err
			}
		}

		description := req.Description
		if description == "" {
			description = "Balance transfer"
		}
		debit := &types.Transaction{
			Seq:                  debitSeq,
			TransferID:           result.TransferID,
			SenderID:             sender.ID,
			ReceiverID:           receiver.ID,
			Type:                 types.TransactionTypeDebit,
			Amount:               req.Amount,
			CommissionPercentage: req.PercentageHundredths,
			CommissionAmount:     commission,
			Description:          description,
			BalanceBefore:        senderBefore,
			BalanceAfter:         sender.Balance,
		}
		credit := &types.Transaction{
			Seq:                  creditSeq,
			TransferID:           result.TransferID,
			SenderID:             sender.ID,
			ReceiverID:           receiver.ID,
			Type:                 types.TransactionTypeCredit,
			Amount:               net,
			CommissionPercentage: req.PercentageHundredths,
			CommissionAmount:     commission,
			Description:          description,
			BalanceBefore:        receiverBefore,
			BalanceAfter:         receiver.Balance,
		}
		if _, err := e.txnRepo.Create(ctx, tx, []*types.Transaction{debit, credit}); err != nil {
			return err
		}

		result.Sender = sender
		result.Receiver = receiver
		result.Debit = debit
		result.Credit = credit
		return nil
	})
	if txErr != nil {
		if req.IdempotencyKey != "" {
			// A concurrent request may have won the race on the same key;
			// its committed result is this caller's result.
			replay, replayErr := e.replayFor(ctx, req.IdempotencyKey)
			if replayErr == nil && replay != nil {
				return replay, nil
			}
		}
		return nil, txErr
	}

	e.log.Info("Transfer committed",
		"transferID", result.TransferID,
		"senderID", req.SenderID,
		"receiverID", req.ReceiverID,
		"amount", req.Amount,
		"commission", commission,
	)
	return result, nil
}

// Recharge credits a user's own account, with no commission and no
// counterparty. Same lock and atomicity discipline as Transfer.
func (e *Engine) Recharge(ctx context.Context, userID uuid.UUID, amount int64, description string) (*TransferResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	release, err := e.locks.Acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	seq, err := e.nextSeq(ctx)
	if err != nil {
		return nil, err
	}

	result := &TransferResult{
		TransferID: uuid.New(),
		Net:        amount,
	}

	txErr := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := e.userRepo.GetByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("user %s: %w", userID, hierarchy.ErrUserNotFound)
		}

		before := user.Balance
		user.Balance += amount
		if err := e.userRepo.UpdateBalances(ctx, tx, user.ID, user.Balance, user.CommissionEarned); err != nil {
			return err
		}

		if description == "" {
			description = "Self recharge"
		}
		credit := &types.Transaction{
			Seq:           seq,
			TransferID:    result.TransferID,
			SenderID:      user.ID,
			ReceiverID:    user.ID,
			Type:          types.TransactionTypeCredit,
			Amount:        amount,
			Description:   description,
			BalanceBefore: before,
			BalanceAfter:  user.Balance,
		}
		if _, err := e.txnRepo.Create(ctx, tx, []*types.Transaction{credit}); err != nil {
			return err
		}

		result.Sender = user
		result.Receiver = user
		result.Credit = credit
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	e.log.Info("Recharge committed", "userID", userID, "amount", amount)
	return result, nil
}

// History returns the user's transactions newest first. Pages are pinned to
// an anchor sequence number; the anchor defaults to the current ledger head
// and is echoed back so later pages stay stable under concurrent inserts.
func (e *Engine) History(ctx context.Context, q HistoryQuery) (*HistoryPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 10
	}

	anchor := q.BeforeSeq
	if anchor <= 0 {
		head, err := e.txnRepo.MaxSeq(ctx, nil)
		if err != nil {
			return nil, err
		}
		anchor = head
	}

	txns, total, err := e.txnRepo.ListForUser(ctx, nil, repos.ListFilter{
		UserID:    q.UserID,
		Type:      q.Type,
		BeforeSeq: anchor,
		Offset:    (q.Page - 1) * q.PageSize,
		Limit:     q.PageSize,
	})
	if err != nil {
		return nil, err
	}

	pages := int((total + int64(q.PageSize) - 1) / int64(q.PageSize))
	return &HistoryPage{
		Transactions: txns,
		Page:         q.Page,
		PageSize:     q.PageSize,
		Total:        total,
		Pages:        pages,
		AnchorSeq:    anchor,
	}, nil
}

// BalanceOf reads the latest committed balance; no cache sits in front of it.
func (e *Engine) BalanceOf(ctx context.Context, userID uuid.UUID) (int64, error) {
	user, err := e.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, fmt.Errorf("user %s: %w", userID, hierarchy.ErrUserNotFound)
	}
	return user.Balance, nil
}

func (e *Engine) replayFor(ctx context.Context, key string) (*TransferResult, error) {
	rec, err := e.idemRepo.Get(ctx, nil, key)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	rows, err := e.txnRepo.GetByTransferID(ctx, nil, rec.TransferID)
	if err != nil {
		return nil, err
	}
	result := &TransferResult{TransferID: rec.TransferID, Replayed: true}
	for _, row := range rows {
		switch row.Type {
		case types.TransactionTypeDebit:
			result.Debit = row
		case types.TransactionTypeCredit:
			result.Credit = row
		}
	}
	if result.Debit != nil {
		result.Commission = result.Debit.CommissionAmount
		result.Net = result.Debit.Amount - result.Debit.CommissionAmount
		sender, err := e.userRepo.GetByID(ctx, nil, result.Debit.SenderID)
		if err != nil {
			return nil, err
		}
		receiver, err := e.userRepo.GetByID(ctx, nil, result.Debit.ReceiverID)
		if err != nil {
			return nil, err
		}
		result.Sender = sender
		result.Receiver = receiver
	}

	e.log.Debug("Idempotency key replay", "key", key, "transferID", rec.TransferID)
	return result, nil
}
