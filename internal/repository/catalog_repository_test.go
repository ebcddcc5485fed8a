package repository

import (
	"context"
	"testing"

	"github.com/Abdallahnangere/SaukinKarshe/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataPlanRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDataPlanRepository(db.DB)
	ctx := context.Background()

	plans := []*model.DataPlan{
		{Network: model.NetworkMTN, Data: "1GB", Validity: "30 Days", Price: 45000, AmigoPlanID: 1001},
		{Network: model.NetworkGlo, Data: "2GB", Validity: "30 Days", Price: 80000, AmigoPlanID: 2002},
		{Network: model.NetworkAirtel, Data: "500MB", Validity: "7 Days", Price: 25000, AmigoPlanID: 4001},
	}
	for _, p := range plans {
		require.NoError(t, db.rawDB.Create(p).Error)
	}

	t.Run("get by id", func(t *testing.T) {
		plan, err := repo.GetByID(ctx, plans[0].ID)
		require.NoError(t, err)
		assert.Equal(t, model.NetworkMTN, plan.Network)
		assert.Equal(t, int64(1001), plan.AmigoPlanID)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 9999)
		assert.ErrorIs(t, err, ErrPlanNotFound)
	})

	t.Run("list is ordered by price ascending", func(t *testing.T) {
		got, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, int64(25000), got[0].Price)
		assert.Equal(t, int64(80000), got[2].Price)
	})
}

func TestProductRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProductRepository(db.DB)
	ctx := context.Background()

	product := &model.Product{Name: "MTN 5G Router", Price: 4500000, InStock: true}
	require.NoError(t, db.rawDB.Create(product).Error)

	t.Run("get by id", func(t *testing.T) {
		got, err := repo.GetByID(ctx, product.ID)
		require.NoError(t, err)
		assert.Equal(t, "MTN 5G Router", got.Name)
		assert.True(t, got.InStock)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 404)
		assert.ErrorIs(t, err, ErrProductNotFound)
	})

	t.Run("list", func(t *testing.T) {
		got, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func TestFulfillmentAttemptRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFulfillmentAttemptRepository(db.DB)
	ctx := context.Background()

	t.Run("attempts accumulate per purchase", func(t *testing.T) {
		first := &model.FulfillmentAttempt{PurchaseID: 7, Success: false, Detail: []byte(`{"error":"timeout"}`)}
		_, err := repo.Create(ctx, first)
		require.NoError(t, err)

		second := &model.FulfillmentAttempt{PurchaseID: 7, Success: true, Detail: []byte(`{"status":"delivered"}`)}
		_, err = repo.Create(ctx, second)
		require.NoError(t, err)

		attempts, err := repo.ListByPurchase(ctx, 7)
		require.NoError(t, err)
		require.Len(t, attempts, 2)
		assert.False(t, attempts[0].Success)
		assert.True(t, attempts[1].Success)
	})
}
