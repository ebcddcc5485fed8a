package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Abdallahnangere/SaukinKarshe/internal/model"
	"github.com/Abdallahnangere/SaukinKarshe/internal/repository"
)

type MockPurchaseRepository struct {
	mock.Mock
}

func (m *MockPurchaseRepository) Create(ctx context.Context, p *model.Purchase) (*model.Purchase, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Purchase), args.Error(1)
}

func (m *MockPurchaseRepository) GetByReference(ctx context.Context, reference string) (*model.Purchase, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Purchase), args.Error(1)
}

func (m *MockPurchaseRepository) ListByPhone(ctx context.Context, phone string, limit int) ([]*model.Purchase, error) {
	args := m.Called(ctx, phone, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Purchase), args.Error(1)
}

type MockDataPlanRepository struct {
	mock.Mock
}

func (m *MockDataPlanRepository) GetByID(ctx context.Context, id int64) (*model.DataPlan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DataPlan), args.Error(1)
}

func (m *MockDataPlanRepository) List(ctx context.Context) ([]*model.DataPlan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.DataPlan), args.Error(1)
}

type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductRepository) List(ctx context.Context) ([]*model.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Product), args.Error(1)
}

var testBank = BankDetails{
	Bank:          "Wema Bank",
	AccountNumber: "8611072053",
	AccountName:   "SAUKI MART / FLW",
}

func newTestService() (*PurchaseService, *MockPurchaseRepository, *MockDataPlanRepository, *MockProductRepository) {
	purchases := new(MockPurchaseRepository)
	plans := new(MockDataPlanRepository)
	products := new(MockProductRepository)
	return NewPurchaseService(purchases, plans, products, testBank), purchases, plans, products
}

func TestPurchaseService_InitiateData(t *testing.T) {
	ctx := context.Background()

	t.Run("prices from catalog and returns bank details", func(t *testing.T) {
		service, purchases, plans, _ := newTestService()

		plans.On("GetByID", ctx, int64(3)).Return(&model.DataPlan{
			ID:      3,
			Network: model.NetworkMTN,
			Price:   48500,
		}, nil)
		purchases.On("Create", ctx, mock.AnythingOfType("*model.Purchase")).
			Run(func(args mock.Arguments) {
				p := args.Get(1).(*model.Purchase)
				assert.True(t, strings.HasPrefix(p.Reference, "SKM-DATA-"))
				assert.Equal(t, model.PurchaseKindData, p.Kind)
				assert.Equal(t, model.PurchaseStatusPending, p.Status)
				assert.Equal(t, int64(48500), p.Amount)
				assert.NotEmpty(t, p.IdempotencyKey)
			}).
			Return(&model.Purchase{
				ID:        1,
				Reference: "SKM-DATA-1756700000000-42",
				Kind:      model.PurchaseKindData,
				Status:    model.PurchaseStatusPending,
				Amount:    48500,
			}, nil)

		purchase, payment, err := service.InitiateData(ctx, model.DataPurchaseRequest{
			PlanID: 3,
			Phone:  "08031234567",
		})
		require.NoError(t, err)
		assert.Equal(t, model.PurchaseStatusPending, purchase.Status)
		assert.Equal(t, purchase.Reference, payment.Reference)
		assert.Equal(t, int64(48500), payment.Amount)
		assert.Equal(t, "Wema Bank", payment.Bank)
		assert.Equal(t, "8611072053", payment.AccountNumber)

		purchases.AssertExpectations(t)
		plans.AssertExpectations(t)
	})

	t.Run("unknown plan", func(t *testing.T) {
		service, _, plans, _ := newTestService()
		plans.On("GetByID", ctx, int64(99)).Return(nil, repository.ErrPlanNotFound)

		_, _, err := service.InitiateData(ctx, model.DataPurchaseRequest{PlanID: 99, Phone: "08031234567"})
		assert.ErrorIs(t, err, ErrPlanNotFound)
	})

	t.Run("invalid request skips repositories", func(t *testing.T) {
		service, _, _, _ := newTestService()
		_, _, err := service.InitiateData(ctx, model.DataPurchaseRequest{PlanID: 0, Phone: "08031234567"})
		assert.Error(t, err)
	})

	t.Run("remints on reference collision", func(t *testing.T) {
		service, purchases, plans, _ := newTestService()

		plans.On("GetByID", ctx, int64(1)).Return(&model.DataPlan{ID: 1, Price: 1000}, nil)
		purchases.On("Create", ctx, mock.AnythingOfType("*model.Purchase")).
			Return(nil, repository.ErrDuplicateReference).Once()
		purchases.On("Create", ctx, mock.AnythingOfType("*model.Purchase")).
			Return(&model.Purchase{ID: 2, Reference: "SKM-DATA-x", Amount: 1000}, nil).Once()

		purchase, _, err := service.InitiateData(ctx, model.DataPurchaseRequest{PlanID: 1, Phone: "08031234567"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), purchase.ID)
		purchases.AssertExpectations(t)
	})
}

func TestPurchaseService_InitiateStore(t *testing.T) {
	ctx := context.Background()

	t.Run("creates store purchase", func(t *testing.T) {
		service, purchases, _, products := newTestService()

		products.On("GetByID", ctx, int64(7)).Return(&model.Product{
			ID: 7, Name: "Power Bank", Price: 1500000, InStock: true,
		}, nil)
		purchases.On("Create", ctx, mock.AnythingOfType("*model.Purchase")).
			Run(func(args mock.Arguments) {
				p := args.Get(1).(*model.Purchase)
				assert.True(t, strings.HasPrefix(p.Reference, "SKM-STORE-"))
				assert.Equal(t, model.PurchaseKindEcommerce, p.Kind)
				assert.Equal(t, "Aisha Bello", p.CustomerName)
				assert.Equal(t, "Kano", p.DeliveryState)
			}).
			Return(&model.Purchase{ID: 5, Reference: "SKM-STORE-1-1", Amount: 1500000}, nil)

		purchase, payment, err := service.InitiateStore(ctx, model.StorePurchaseRequest{
			ProductID:     7,
			Phone:         "08031234567",
			CustomerName:  "Aisha Bello",
			DeliveryState: "Kano",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1500000), payment.Amount)
		assert.Equal(t, purchase.Reference, payment.Reference)

		purchases.AssertExpectations(t)
		products.AssertExpectations(t)
	})

	t.Run("out of stock", func(t *testing.T) {
		service, _, _, products := newTestService()
		products.On("GetByID", ctx, int64(8)).Return(&model.Product{ID: 8, InStock: false}, nil)

		_, _, err := service.InitiateStore(ctx, model.StorePurchaseRequest{
			ProductID: 8, Phone: "08031234567", CustomerName: "A B", DeliveryState: "Kano",
		})
		assert.ErrorIs(t, err, ErrProductOutOfStock)
	})

	t.Run("unknown product", func(t *testing.T) {
		service, _, _, products := newTestService()
		products.On("GetByID", ctx, int64(9)).Return(nil, repository.ErrProductNotFound)

		_, _, err := service.InitiateStore(ctx, model.StorePurchaseRequest{
			ProductID: 9, Phone: "08031234567", CustomerName: "A B", DeliveryState: "Kano",
		})
		assert.ErrorIs(t, err, ErrProductNotFound)
	})
}

func TestPurchaseService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		service, purchases, _, _ := newTestService()
		purchases.On("GetByReference", ctx, "SKM-DATA-1-1").
			Return(&model.Purchase{Reference: "SKM-DATA-1-1", Status: model.PurchaseStatusPaid}, nil)

		p, err := service.Get(ctx, "SKM-DATA-1-1")
		require.NoError(t, err)
		assert.Equal(t, model.PurchaseStatusPaid, p.Status)
	})

	t.Run("unknown reference", func(t *testing.T) {
		service, purchases, _, _ := newTestService()
		purchases.On("GetByReference", ctx, "SKM-DATA-0-0").
			Return(nil, repository.ErrPurchaseNotFound)

		_, err := service.Get(ctx, "SKM-DATA-0-0")
		assert.ErrorIs(t, err, ErrPurchaseNotFound)
	})
}

func TestPurchaseService_Track(t *testing.T) {
	ctx := context.Background()

	t.Run("lists by phone", func(t *testing.T) {
		service, purchases, _, _ := newTestService()
		purchases.On("ListByPhone", ctx, "08031234567", 20).
			Return([]*model.Purchase{{ID: 2}, {ID: 1}}, nil)

		list, err := service.Track(ctx, " 08031234567 ", 20)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("rejects short phone", func(t *testing.T) {
		service, _, _, _ := newTestService()
		_, err := service.Track(ctx, "0803", 20)
		assert.Error(t, err)
	})
}
