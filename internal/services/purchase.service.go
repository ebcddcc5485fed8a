package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Abdallahnangere/SaukinKarshe/internal/model"
	"github.com/Abdallahnangere/SaukinKarshe/internal/repository"
)

var (
	ErrPlanNotFound       = errors.New("data plan not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrProductOutOfStock  = errors.New("product is out of stock")
	ErrPurchaseNotFound   = errors.New("purchase not found")
	ErrReferenceExhausted = errors.New("could not mint a unique reference")
)

const referenceMintRetries = 3

type PurchaseRepository interface {
	Create(ctx context.Context, p *model.Purchase) (*model.Purchase, error)
	GetByReference(ctx context.Context, reference string) (*model.Purchase, error)
	ListByPhone(ctx context.Context, phone string, limit int) ([]*model.Purchase, error)
}

type DataPlanRepository interface {
	GetByID(ctx context.Context, id int64) (*model.DataPlan, error)
	List(ctx context.Context) ([]*model.DataPlan, error)
}

type ProductRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Product, error)
	List(ctx context.Context) ([]*model.Product, error)
}

// BankDetails is the static settlement account customers transfer into.
// Every purchase shares the same account; the transfer narration carries
// the reference that ties the payment back to the purchase.
type BankDetails struct {
	Bank          string
	AccountNumber string
	AccountName   string
}

type PurchaseService struct {
	purchaseRepo PurchaseRepository
	planRepo     DataPlanRepository
	productRepo  ProductRepository
	bank         BankDetails
}

func NewPurchaseService(purchaseRepo PurchaseRepository, planRepo DataPlanRepository, productRepo ProductRepository, bank BankDetails) *PurchaseService {
	return &PurchaseService{
		purchaseRepo: purchaseRepo,
		planRepo:     planRepo,
		productRepo:  productRepo,
		bank:         bank,
	}
}

// InitiateData creates a pending data-bundle purchase. The amount is always
// taken from the catalog, never from the client.
func (s *PurchaseService) InitiateData(ctx context.Context, req model.DataPurchaseRequest) (*model.Purchase, *model.PaymentDetails, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	plan, err := s.planRepo.GetByID(ctx, req.PlanID)
	if err != nil {
		if errors.Is(err, repository.ErrPlanNotFound) {
			return nil, nil, ErrPlanNotFound
		}
		return nil, nil, fmt.Errorf("load plan: %w", err)
	}

	planID := plan.ID
	p := &model.Purchase{
		Kind:           model.PurchaseKindData,
		Status:         model.PurchaseStatusPending,
		Phone:          strings.TrimSpace(req.Phone),
		Amount:         plan.Price,
		PlanID:         &planID,
		IdempotencyKey: uuid.NewString(),
	}

	created, err := s.createWithReference(ctx, p, "SKM-DATA")
	if err != nil {
		return nil, nil, err
	}
	return created, s.paymentDetails(created), nil
}

// InitiateStore creates a pending physical-goods purchase.
func (s *PurchaseService) InitiateStore(ctx context.Context, req model.StorePurchaseRequest) (*model.Purchase, *model.PaymentDetails, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	product, err := s.productRepo.GetByID(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, nil, ErrProductNotFound
		}
		return nil, nil, fmt.Errorf("load product: %w", err)
	}
	if !product.InStock {
		return nil, nil, ErrProductOutOfStock
	}

	productID := product.ID
	p := &model.Purchase{
		Kind:           model.PurchaseKindEcommerce,
		Status:         model.PurchaseStatusPending,
		Phone:          strings.TrimSpace(req.Phone),
		Amount:         product.Price,
		ProductID:      &productID,
		CustomerName:   strings.TrimSpace(req.CustomerName),
		DeliveryState:  strings.TrimSpace(req.DeliveryState),
		IdempotencyKey: uuid.NewString(),
	}

	created, err := s.createWithReference(ctx, p, "SKM-STORE")
	if err != nil {
		return nil, nil, err
	}
	return created, s.paymentDetails(created), nil
}

// createWithReference mints a reference and inserts. The unique index on
// reference is the collision guard; on the rare clash we mint again.
func (s *PurchaseService) createWithReference(ctx context.Context, p *model.Purchase, prefix string) (*model.Purchase, error) {
	for i := 0; i < referenceMintRetries; i++ {
		p.Reference = fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixMilli(), rand.Intn(100000))
		created, err := s.purchaseRepo.Create(ctx, p)
		if err == nil {
			return created, nil
		}
		if errors.Is(err, repository.ErrDuplicateReference) {
			continue
		}
		return nil, fmt.Errorf("create purchase: %w", err)
	}
	return nil, ErrReferenceExhausted
}

func (s *PurchaseService) paymentDetails(p *model.Purchase) *model.PaymentDetails {
	return &model.PaymentDetails{
		Reference:     p.Reference,
		Amount:        p.Amount,
		Bank:          s.bank.Bank,
		AccountNumber: s.bank.AccountNumber,
		AccountName:   s.bank.AccountName,
	}
}

// Get returns a single purchase by its reference.
func (s *PurchaseService) Get(ctx context.Context, reference string) (*model.Purchase, error) {
	p, err := s.purchaseRepo.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, repository.ErrPurchaseNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}
	return p, nil
}

// Track lists a customer's recent purchases, newest first.
func (s *PurchaseService) Track(ctx context.Context, phone string, limit int) ([]*model.Purchase, error) {
	phone = strings.TrimSpace(phone)
	if len(phone) < 10 {
		return nil, errors.New("phone must be at least 10 digits")
	}
	return s.purchaseRepo.ListByPhone(ctx, phone, limit)
}

// Plans returns the data-bundle catalog, cheapest first.
func (s *PurchaseService) Plans(ctx context.Context) ([]*model.DataPlan, error) {
	return s.planRepo.List(ctx)
}

// Products returns the store catalog.
func (s *PurchaseService) Products(ctx context.Context) ([]*model.Product, error) {
	return s.productRepo.List(ctx)
}
