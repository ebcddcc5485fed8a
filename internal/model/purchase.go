package model

import (
	"encoding/json"
	"errors"
	"time"
)

// PurchaseStatus is the lifecycle state of a purchase.
type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusPaid      PurchaseStatus = "paid"
	PurchaseStatusDelivered PurchaseStatus = "delivered"
	PurchaseStatusFailed    PurchaseStatus = "failed"
)

// PurchaseKind separates physical store orders from data-bundle top-ups.
type PurchaseKind string

const (
	PurchaseKindEcommerce PurchaseKind = "ecommerce"
	PurchaseKindData      PurchaseKind = "data"
)

type Purchase struct {
	ID              int64           `json:"id"               db:"id"               gorm:"primaryKey;autoIncrement;column:id"`
	Reference       string          `json:"tx_ref"           db:"reference"        gorm:"column:reference;not null;uniqueIndex"`
	Kind            PurchaseKind    `json:"type"             db:"kind"             gorm:"column:kind;not null"`
	Status          PurchaseStatus  `json:"status"           db:"status"           gorm:"column:status;not null;index"`
	Phone           string          `json:"phone"            db:"phone"            gorm:"column:phone;not null;index"`
	Amount          int64           `json:"amount"           db:"amount"           gorm:"column:amount;not null"` // minor currency units, captured from catalog at creation
	PlanID          *int64          `json:"plan_id,omitempty"    db:"plan_id"      gorm:"column:plan_id"`
	ProductID       *int64          `json:"product_id,omitempty" db:"product_id"   gorm:"column:product_id"`
	CustomerName    string          `json:"customer_name,omitempty" db:"customer_name"  gorm:"column:customer_name"`
	DeliveryState   string          `json:"delivery_state,omitempty" db:"delivery_state" gorm:"column:delivery_state"`
	IdempotencyKey  string          `json:"-"                db:"idempotency_key"  gorm:"column:idempotency_key;not null"`
	DeliveryDetail  json.RawMessage `json:"delivery_detail,omitempty" db:"delivery_detail" gorm:"column:delivery_detail"`
	CreatedAt       time.Time       `json:"created_at"       db:"created_at"       gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `json:"updated_at"       db:"updated_at"       gorm:"column:updated_at;autoUpdateTime"`
}

func (Purchase) TableName() string { return "purchases" }

// Settled reports whether the payment for this purchase has been received.
// Settled purchases are returned unchanged by the processor.
func (p *Purchase) Settled() bool {
	return p.Status == PurchaseStatusPaid || p.Status == PurchaseStatusDelivered
}

// DataPurchaseRequest is the input for initiating a data-bundle purchase.
type DataPurchaseRequest struct {
	PlanID int64
	Phone  string
}

func (r DataPurchaseRequest) Validate() error {
	if r.PlanID == 0 {
		return errors.New("plan_id is required")
	}
	if len(r.Phone) < 10 {
		return errors.New("phone must be at least 10 digits")
	}
	return nil
}

// StorePurchaseRequest is the input for initiating a physical-goods purchase.
type StorePurchaseRequest struct {
	ProductID     int64
	Phone         string
	CustomerName  string
	DeliveryState string
}

func (r StorePurchaseRequest) Validate() error {
	if r.ProductID == 0 {
		return errors.New("product_id is required")
	}
	if len(r.Phone) < 10 {
		return errors.New("phone must be at least 10 digits")
	}
	if r.CustomerName == "" {
		return errors.New("name is required")
	}
	if r.DeliveryState == "" {
		return errors.New("state is required")
	}
	return nil
}

// PaymentDetails is what the client needs to complete a bank transfer.
type PaymentDetails struct {
	Reference     string `json:"tx_ref"`
	Amount        int64  `json:"amount"`
	Bank          string `json:"bank"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

// FulfillmentAttempt is one recorded call to the delivery provider.
// Attempts are append-only; the purchase row carries only the latest detail.
type FulfillmentAttempt struct {
	ID         int64           `json:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	PurchaseID int64           `json:"purchase_id" gorm:"column:purchase_id;not null;index"`
	Success    bool            `json:"success"     gorm:"column:success;not null"`
	Detail     json.RawMessage `json:"detail"      gorm:"column:detail"`
	CreatedAt  time.Time       `json:"created_at"  gorm:"column:created_at;autoCreateTime"`
}

func (FulfillmentAttempt) TableName() string { return "fulfillment_attempts" }
