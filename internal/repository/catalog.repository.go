package repository

import (
	"context"
	"errors"

	"github.com/Abdallahnangere/SaukinKarshe/internal/model"
	"github.com/Abdallahnangere/SaukinKarshe/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrPlanNotFound    = errors.New("data plan not found")
	ErrProductNotFound = errors.New("product not found")
)

type DataPlanRepository struct {
	*pg.DB
}

func NewDataPlanRepository(db *pg.DB) *DataPlanRepository {
	return &DataPlanRepository{
		db,
	}
}

func (r *DataPlanRepository) GetByID(ctx context.Context, id int64) (*model.DataPlan, error) {
	var plan model.DataPlan
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&plan).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func (r *DataPlanRepository) List(ctx context.Context) ([]*model.DataPlan, error) {
	var plans []*model.DataPlan
	err := r.Read(ctx).WithContext(ctx).
		Order("price ASC").
		Find(&plans).
		Error
	if err != nil {
		return nil, err
	}
	return plans, nil
}

type ProductRepository struct {
	*pg.DB
}

func NewProductRepository(db *pg.DB) *ProductRepository {
	return &ProductRepository{
		db,
	}
}

func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	var product model.Product
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&product).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (r *ProductRepository) List(ctx context.Context) ([]*model.Product, error) {
	var products []*model.Product
	err := r.Read(ctx).WithContext(ctx).
		Order("created_at DESC").
		Find(&products).
		Error
	if err != nil {
		return nil, err
	}
	return products, nil
}
