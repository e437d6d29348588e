package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/uplinepay/uplinepay-backend/internal/logger"
	"github.com/uplinepay/uplinepay-backend/internal/types"
)

// ListFilter narrows a history query. BeforeSeq anchors the page set at a
// ledger position so rows committed after the anchor cannot shift pages that
// were already served; zero means "anchor at the current head".
type ListFilter struct {
	UserID    uuid.UUID
	Type      types.TransactionType
	BeforeSeq int64
	Offset    int
	Limit     int
}

type TransactionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, txns []*types.Transaction) ([]*types.Transaction, error)
	ListForUser(ctx context.Context, tx *gorm.DB, filter ListFilter) ([]*types.Transaction, int64, error)
	GetByTransferID(ctx context.Context, tx *gorm.DB, transferID uuid.UUID) ([]*types.Transaction, error)
	MaxSeq(ctx context.Context, tx *gorm.DB) (int64, error)
}

type transactionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTransactionRepo(db *gorm.DB, baseLog *logger.Logger) TransactionRepo {
	repoLog := baseLog.With("repo", "TransactionRepo")
	return &transactionRepo{db: db, log: repoLog}
}

func (tr *transactionRepo) Create(ctx context.Context, tx *gorm.DB, txns []*types.Transaction) ([]*types.Transaction, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	if len(txns) == 0 {
		return []*types.Transaction{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&txns).Error; err != nil {
		return nil, err
	}

	return txns, nil
}

func (tr *transactionRepo) ListForUser(ctx context.Context, tx *gorm.DB, filter ListFilter) ([]*types.Transaction, int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	q := transaction.WithContext(ctx).
		Model(&types.Transaction{}).
		Where("sender_id = ? OR receiver_id = ?", filter.UserID, filter.UserID)

	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.BeforeSeq > 0 {
		q = q.Where("seq <= ?", filter.BeforeSeq)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []*types.Transaction
	if err := q.
		Order("seq DESC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&results).Error; err != nil {
		return nil, 0, err
	}

	return results, total, nil
}

func (tr *transactionRepo) GetByTransferID(ctx context.Context, tx *gorm.DB, transferID uuid.UUID) ([]*types.Transaction, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	var results []*types.Transaction
	if err := transaction.WithContext(ctx).
		Where("transfer_id = ?", transferID).
		Order("seq ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}

	return results, nil
}

func (tr *transactionRepo) MaxSeq(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	var maxSeq int64
	err := transaction.WithContext(ctx).
		Model(&types.Transaction{}).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error
	if err != nil {
		return 0, err
	}

	return maxSeq, nil
}
