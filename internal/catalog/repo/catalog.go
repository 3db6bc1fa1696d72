package repo

import (
	"context"
	"errors"

	"github.com/Skotchmaster/shopcore/internal/domain"
	"github.com/Skotchmaster/shopcore/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) WithTx(tx *gorm.DB) *GormRepo {
	return &GormRepo{DB: tx}
}

type PatchProductRequest struct {
	Name          *string          `json:"name"`
	Price         *decimal.Decimal `json:"price"`
	StockQuantity *int             `json:"stock_quantity"`
	IsActive      *bool            `json:"is_active"`
}

func (r *GormRepo) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFound("product")
		}
		return nil, err
	}
	return &product, nil
}

func (r *GormRepo) CreateProduct(ctx context.Context, prod *models.Product) (*models.Product, error) {
	if prod.Price.IsNegative() {
		return nil, domain.Validation("price cannot be negative")
	}
	if prod.StockQuantity < 0 {
		return nil, domain.Validation("stock cannot be negative")
	}
	if err := r.DB.WithContext(ctx).Create(prod).Error; err != nil {
		return nil, err
	}
	return prod, nil
}

// PatchProduct is the catalog's own write path; checkout stock changes go through the ledger.
// Only the fields present in req are written, under the product row lock.
func (r *GormRepo) PatchProduct(ctx context.Context, req PatchProductRequest, id uuid.UUID) (*models.Product, error) {
	var prod models.Product
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&prod).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFound("product")
			}
			return err
		}

		fields := map[string]any{}
		if req.Name != nil {
			fields["name"] = *req.Name
		}
		if req.Price != nil {
			if req.Price.IsNegative() {
				return domain.Validation("price cannot be negative")
			}
			fields["price"] = *req.Price
		}
		if req.StockQuantity != nil {
			if *req.StockQuantity < 0 {
				return domain.Validation("stock cannot be negative")
			}
			fields["stock_quantity"] = *req.StockQuantity
		}
		if req.IsActive != nil {
			fields["is_active"] = *req.IsActive
		}
		if len(fields) == 0 {
			return nil
		}

		if err := tx.Model(&models.Product{}).Where("id = ?", id).Updates(fields).Error; err != nil {
			return err
		}
		prod = models.Product{}
		return tx.Where("id = ?", id).First(&prod).Error
	})
	if err != nil {
		return nil, err
	}
	return &prod, nil
}
