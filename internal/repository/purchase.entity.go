package repository

import (
	"encoding/json"
	"time"

	"github.com/Abdallahnangere/SaukinKarshe/internal/model"
)

type PurchaseEntity struct {
	ID             int64           `db:"id"              gorm:"primaryKey;autoIncrement;column:id"`
	Reference      string          `db:"reference"       gorm:"column:reference;not null;uniqueIndex"`
	Kind           string          `db:"kind"            gorm:"column:kind;not null"`
	Status         string          `db:"status"          gorm:"column:status;not null;index"`
	Phone          string          `db:"phone"           gorm:"column:phone;not null;index"`
	Amount         int64           `db:"amount"          gorm:"column:amount;not null"`
	PlanID         *int64          `db:"plan_id"         gorm:"column:plan_id"`
	ProductID      *int64          `db:"product_id"      gorm:"column:product_id"`
	CustomerName   string          `db:"customer_name"   gorm:"column:customer_name"`
	DeliveryState  string          `db:"delivery_state"  gorm:"column:delivery_state"`
	IdempotencyKey string          `db:"idempotency_key" gorm:"column:idempotency_key;not null"`
	DeliveryDetail json.RawMessage `db:"delivery_detail" gorm:"column:delivery_detail"`
	CreatedAt      time.Time       `db:"created_at"      gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `db:"updated_at"      gorm:"column:updated_at;autoUpdateTime"`
}

func (PurchaseEntity) TableName() string {
	return "purchases"
}

func toPurchaseEntity(m *model.Purchase) *PurchaseEntity {
	if m == nil {
		return nil
	}
	return &PurchaseEntity{
		ID:             m.ID,
		Reference:      m.Reference,
		Kind:           string(m.Kind),
		Status:         string(m.Status),
		Phone:          m.Phone,
		Amount:         m.Amount,
		PlanID:         m.PlanID,
		ProductID:      m.ProductID,
		CustomerName:   m.CustomerName,
		DeliveryState:  m.DeliveryState,
		IdempotencyKey: m.IdempotencyKey,
		DeliveryDetail: m.DeliveryDetail,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func toPurchaseModel(e *PurchaseEntity) *model.Purchase {
	if e == nil {
		return nil
	}
	return &model.Purchase{
		ID:             e.ID,
		Reference:      e.Reference,
		Kind:           model.PurchaseKind(e.Kind),
		Status:         model.PurchaseStatus(e.Status),
		Phone:          e.Phone,
		Amount:         e.Amount,
		PlanID:         e.PlanID,
		ProductID:      e.ProductID,
		CustomerName:   e.CustomerName,
		DeliveryState:  e.DeliveryState,
		IdempotencyKey: e.IdempotencyKey,
		DeliveryDetail: e.DeliveryDetail,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func toPurchaseModels(entities []*PurchaseEntity) []*model.Purchase {
	if entities == nil {
		return nil
	}
	models := make([]*model.Purchase, len(entities))
	for i, e := range entities {
		models[i] = toPurchaseModel(e)
	}
	return models
}
