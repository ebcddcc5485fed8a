package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Abdallahnangere/SaukinKarshe/internal/model"
	"github.com/Abdallahnangere/SaukinKarshe/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrPurchaseNotFound   = errors.New("purchase not found")
	ErrDuplicateReference = errors.New("reference already exists")

	// ErrStatusConflict is returned by Transition when the purchase is no
	// longer in the expected status. Callers treat this as "somebody else
	// advanced the record first", reload, and move on.
	ErrStatusConflict = errors.New("purchase status conflict")
)

type PurchaseRepository struct {
	*pg.DB
}

func NewPurchaseRepository(db *pg.DB) *PurchaseRepository {
	return &PurchaseRepository{
		db,
	}
}

func (r *PurchaseRepository) Create(ctx context.Context, p *model.Purchase) (*model.Purchase, error) {
	entity := toPurchaseEntity(p)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "duplicate key") {
			return nil, ErrDuplicateReference
		}
		return nil, err
	}

	return toPurchaseModel(entity), nil
}

func (r *PurchaseRepository) GetByReference(ctx context.Context, reference string) (*model.Purchase, error) {
	var entity PurchaseEntity

	err := r.Read(ctx).WithContext(ctx).
		Where("reference = ?", reference).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}

	return toPurchaseModel(&entity), nil
}

// Transition applies mutate to the purchase and persists it, but only if the
// purchase is still in the expected status at write time. The status guard is
// part of the UPDATE's WHERE clause, so concurrent callers racing on the same
// reference serialize at the database: exactly one wins, the rest get
// ErrStatusConflict. This is the only write path for a purchase's status.
func (r *PurchaseRepository) Transition(ctx context.Context, reference string, expected model.PurchaseStatus, mutate func(*model.Purchase)) (*model.Purchase, error) {
	var entity PurchaseEntity

	// Read through the write connection: a stale replica must not make a
	// settled purchase look pending again.
	err := r.Write(ctx).WithContext(ctx).
		Where("reference = ?", reference).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}

	if entity.Status != string(expected) {
		return nil, ErrStatusConflict
	}

	m := toPurchaseModel(&entity)
	mutate(m)

	result := r.Write(ctx).WithContext(ctx).
		Model(&PurchaseEntity{}).
		Where("reference = ? AND status = ?", reference, string(expected)).
		Updates(map[string]interface{}{
			"status":          string(m.Status),
			"delivery_detail": []byte(m.DeliveryDetail),
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrStatusConflict
	}

	return m, nil
}

// ListByPhone returns the most recent purchases for a phone number, newest
// first. Used by the client-side tracking view.
func (r *PurchaseRepository) ListByPhone(ctx context.Context, phone string, limit int) ([]*model.Purchase, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var entities []*PurchaseEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("phone = ?", phone).
		Order("created_at DESC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}

	return toPurchaseModels(entities), nil
}

// ListPending returns pending purchases created before the cutoff, oldest
// first. The reconciler uses this to re-drive purchases whose webhook never
// arrived.
func (r *PurchaseRepository) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*model.Purchase, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var entities []*PurchaseEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ? AND created_at < ?", string(model.PurchaseStatusPending), olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}

	return toPurchaseModels(entities), nil
}
