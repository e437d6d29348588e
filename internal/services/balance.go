package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/uplinepay/uplinepay-backend/internal/aggregation"
	"github.com/uplinepay/uplinepay-backend/internal/ledger"
	"github.com/uplinepay/uplinepay-backend/internal/logger"
	"github.com/uplinepay/uplinepay-backend/internal/repos"
	"github.com/uplinepay/uplinepay-backend/internal/types"
)

type TransferInput struct {
	ReceiverID           uuid.UUID
	Amount               decimal.Decimal
	CommissionPercentage decimal.Decimal
	Description          string
	IdempotencyKey       string
}

type HistoryInput struct {
	Page      int
	Limit     int
	Type      types.TransactionType
	BeforeSeq int64
}

type Pagination struct {
	Page   int   `json:"page"`
	Limit  int   `json:"limit"`
	Total  int64 `json:"total"`
	Pages  int   `json:"pages"`
	Before int64 `json:"before"`
}

type HistoryOutput struct {
	Transactions []types.TransactionView
	Pagination   Pagination
}

type BalanceService interface {
	Transfer(ctx context.Context, senderID uuid.UUID, in TransferInput) (*types.TransactionView, bool, error)
	Recharge(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*types.TransactionView, error)
	History(ctx context.Context, userID uuid.UUID, in HistoryInput) (*HistoryOutput, error)
	BalanceOf(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	Summary(ctx context.Context, userID uuid.UUID) (aggregation.Summary, error)
}

type balanceService struct {
	log         *logger.Logger
	engine      *ledger.Engine
	userRepo    repos.UserRepo
	aggregation *aggregation.Service
	notifier    LedgerNotifier
}

func NewBalanceService(baseLog *logger.Logger, engine *ledger.Engine, userRepo repos.UserRepo, agg *aggregation.Service, notifier LedgerNotifier) BalanceService {
	serviceLog := baseLog.With("service", "BalanceService")
	return &balanceService{
		log:         serviceLog,
		engine:      engine,
		userRepo:    userRepo,
		aggregation: agg,
		notifier:    notifier,
	}
}

// Transfer executes a commission-bearing transfer to an immediate child and
// publishes the resulting events. The bool result reports an idempotency
// replay, which callers treat as success.
func (bs *balanceService) Transfer(ctx context.Context, senderID uuid.UUID, in TransferInput) (*types.TransactionView, bool, error) {
	amount, err := ledger.MinorUnits(in.Amount)
	if err != nil {
		return nil, false, err
	}
	if amount <= 0 {
		return nil, false, ledger.ErrInvalidAmount
	}
	pct, err := ledger.PercentageHundredths(in.CommissionPercentage)
	if err != nil {
		return nil, false, err
	}

	result, err := bs.engine.Transfer(ctx, ledger.TransferRequest{
		SenderID:             senderID,
		ReceiverID:           in.ReceiverID,
		Amount:               amount,
		PercentageHundredths: pct,
		Description:          in.Description,
		IdempotencyKey:       in.IdempotencyKey,
	})
	if err != nil {
		return nil, false, err
	}

	view := result.Debit.View(partySummary(result.Sender), partySummary(result.Receiver))

	if !result.Replayed {
		bs.aggregation.Invalidate()
		bs.notifier.TransactionCommitted(view)
		bs.notifier.BalanceChanged(result.Sender, result.Debit.Seq)
		bs.notifier.BalanceChanged(result.Receiver, result.Credit.Seq)
	}

	return &view, result.Replayed, nil
}

func (bs *balanceService) Recharge(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*types.TransactionView, error) {
	minor, err := ledger.MinorUnits(amount)
	if err != nil {
		return nil, err
	}
	if minor <= 0 {
		return nil, ledger.ErrInvalidAmount
	}

	result, err := bs.engine.Recharge(ctx, userID, minor, "")
	if err != nil {
		return nil, err
	}

	view := result.Credit.View(partySummary(result.Sender), partySummary(result.Receiver))

	bs.aggregation.Invalidate()
	bs.notifier.TransactionCommitted(view)
	bs.notifier.BalanceChanged(result.Sender, result.Credit.Seq)

	return &view, nil
}

func (bs *balanceService) History(ctx context.Context, userID uuid.UUID, in HistoryInput) (*HistoryOutput, error) {
	page, err := bs.engine.History(ctx, ledger.HistoryQuery{
		UserID:    userID,
		Page:      in.Page,
		PageSize:  in.Limit,
		Type:      in.Type,
		BeforeSeq: in.BeforeSeq,
	})
	if err != nil {
		return nil, err
	}

	views, err := bs.expandViews(ctx, page.Transactions)
	if err != nil {
		return nil, err
	}

	return &HistoryOutput{
		Transactions: views,
		Pagination: Pagination{
			Page:   page.Page,
			Limit:  page.PageSize,
			Total:  page.Total,
			Pages:  page.Pages,
			Before: page.AnchorSeq,
		},
	}, nil
}

func (bs *balanceService) BalanceOf(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	minor, err := bs.engine.BalanceOf(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.New(minor, -2), nil
}

func (bs *balanceService) Summary(ctx context.Context, userID uuid.UUID) (aggregation.Summary, error) {
	return bs.aggregation.SummaryOf(ctx, userID)
}

// expandViews resolves the party summaries for a page of rows in one query.
func (bs *balanceService) expandViews(ctx context.Context, txns []*types.Transaction) ([]types.TransactionView, error) {
	idSet := make(map[uuid.UUID]struct{}, len(txns)*2)
	for _, t := range txns {
		idSet[t.SenderID] = struct{}{}
		idSet[t.ReceiverID] = struct{}{}
	}
	ids := make([]uuid.UUID, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	users, err := bs.userRepo.GetByIDs(ctx, nil, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*types.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	views := make([]types.TransactionView, 0, len(txns))
	for _, t := range txns {
		views = append(views, t.View(summaryFor(byID, t.SenderID), summaryFor(byID, t.ReceiverID)))
	}
	return views, nil
}

func partySummary(u *types.User) types.PartySummary {
	if u == nil {
		return types.PartySummary{}
	}
	return types.PartySummary{ID: u.ID, Username: u.Username, Email: u.Email}
}

func summaryFor(byID map[uuid.UUID]*types.User, id uuid.UUID) types.PartySummary {
	if u, ok := byID[id]; ok {
		return partySummary(u)
	}
	// Party no longer resolvable; keep the id so the row stays auditable.
	return types.PartySummary{ID: id}
}
