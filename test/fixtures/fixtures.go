package fixtures

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Abdallahnangere/SaukinKarshe/internal/model"
)

var (
	TestPlanMTN1GB = model.DataPlan{
		ID:          1,
		Network:     model.NetworkMTN,
		Data:        "1GB",
		Validity:    "30 days",
		Price:       48500,
		AmigoPlanID: 37,
	}

	TestPlanGlo2GB = model.DataPlan{
		ID:          2,
		Network:     model.NetworkGlo,
		Data:        "2GB",
		Validity:    "30 days",
		Price:       92000,
		AmigoPlanID: 42,
	}

	TestProductPowerBank = model.Product{
		ID:      1,
		Name:    "Power Bank 20000mAh",
		Price:   1500000,
		InStock: true,
	}

	TestProductOutOfStock = model.Product{
		ID:      2,
		Name:    "Solar Lamp",
		Price:   850000,
		InStock: false,
	}
)

func NewTestDataPurchase(reference string, planID int64, amount int64) *model.Purchase {
	return &model.Purchase{
		Reference:      reference,
		Kind:           model.PurchaseKindData,
		Status:         model.PurchaseStatusPending,
		Phone:          "08031234567",
		Amount:         amount,
		PlanID:         &planID,
		IdempotencyKey: uuid.NewString(),
		CreatedAt:      time.Now(),
	}
}

func NewTestStorePurchase(reference string, productID int64, amount int64) *model.Purchase {
	return &model.Purchase{
		Reference:      reference,
		Kind:           model.PurchaseKindEcommerce,
		Status:         model.PurchaseStatusPending,
		Phone:          "08031234567",
		Amount:         amount,
		ProductID:      &productID,
		CustomerName:   "Aisha Bello",
		DeliveryState:  "Kano",
		IdempotencyKey: uuid.NewString(),
		CreatedAt:      time.Now(),
	}
}

func DataReference(n int) string {
	return fmt.Sprintf("SKM-DATA-%d-%d", time.Now().UnixMilli(), n)
}

func StoreReference(n int) string {
	return fmt.Sprintf("SKM-STORE-%d-%d", time.Now().UnixMilli(), n)
}

var (
	ValidPhoneNumbers = []string{
		"08031234567",
		"07045678901",
		"09011223344",
		"2348031234567",
	}

	InvalidPhoneNumbers = []string{
		"",
		"0803",
		"12345",
	}
)
