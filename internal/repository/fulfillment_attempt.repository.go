package repository

import (
	"context"

	"github.com/Abdallahnangere/SaukinKarshe/internal/model"
	"github.com/Abdallahnangere/SaukinKarshe/pkg/pg"
)

// FulfillmentAttemptRepository records every call made to the delivery
// provider. Rows are never updated or deleted; finance reconciliation reads
// this table as the audit trail for a purchase.
type FulfillmentAttemptRepository struct {
	*pg.DB
}

func NewFulfillmentAttemptRepository(db *pg.DB) *FulfillmentAttemptRepository {
	return &FulfillmentAttemptRepository{
		db,
	}
}

func (r *FulfillmentAttemptRepository) Create(ctx context.Context, a *model.FulfillmentAttempt) (*model.FulfillmentAttempt, error) {
	if err := r.Write(ctx).WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

func (r *FulfillmentAttemptRepository) ListByPurchase(ctx context.Context, purchaseID int64) ([]*model.FulfillmentAttempt, error) {
	var attempts []*model.FulfillmentAttempt
	err := r.Read(ctx).WithContext(ctx).
		Where("purchase_id = ?", purchaseID).
		Order("created_at ASC").
		Find(&attempts).
		Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}
