package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/uplinepay/uplinepay-backend/internal/logger"
	"github.com/uplinepay/uplinepay-backend/internal/types"
)

type IdempotencyRepo interface {
	Get(ctx context.Context, tx *gorm.DB, key string) (*types.IdempotencyRecord, error)
	Create(ctx context.Context, tx *gorm.DB, rec *types.IdempotencyRecord) error
}

type idempotencyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIdempotencyRepo(db *gorm.DB, baseLog *logger.Logger) IdempotencyRepo {
	repoLog := baseLog.With("repo", "IdempotencyRepo")
	return &idempotencyRepo{db: db, log: repoLog}
}

func (ir *idempotencyRepo) Get(ctx context.Context, tx *gorm.DB, key string) (*types.IdempotencyRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = ir.db
	}

	var rec types.IdempotencyRecord
	err := transaction.WithContext(ctx).
		Where("key = ?", key).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &rec, nil
}

func (ir *idempotencyRepo) Create(ctx context.Context, tx *gorm.DB, rec *types.IdempotencyRecord) error {
	transaction := tx
	if transaction == nil {
		transaction = ir.db
	}

	return transaction.WithContext(ctx).Create(rec).Error
}
