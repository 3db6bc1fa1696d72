// Package stock is the authoritative per-product stock counter.
//
// Every mutating method takes the caller's transaction handle: decrements and
// restorations only happen inside the unit of work of the order they support.
package stock

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/Skotchmaster/shopcore/internal/domain"
	"github.com/Skotchmaster/shopcore/internal/models"
	"github.com/Skotchmaster/shopcore/pkg/logging"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// CheckAvailable is a read-only check; it reserves nothing.
func (l *Ledger) CheckAvailable(ctx context.Context, db *gorm.DB, productID uuid.UUID, quantity int) (bool, error) {
	if quantity < 1 {
		return false, domain.Validation("quantity must be at least 1")
	}
	var p models.Product
	err := db.WithContext(ctx).Select("id", "stock_quantity", "is_active").Where("id = ?", productID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.IsActive && p.StockQuantity >= quantity, nil
}

// Lock loads and row-locks the products in ascending id order so concurrent
// checkouts over overlapping products always lock in the same sequence.
// Missing products are absent from the result.
func (l *Ledger) Lock(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	sorted := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })

	out := make(map[uuid.UUID]models.Product, len(sorted))
	if len(sorted) == 0 {
		return out, nil
	}

	var products []models.Product
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", sorted).
		Order("id ASC").
		Find(&products).Error; err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// Decrement is a single conditional update, so the check and the write are one
// atomic step per row and stock can never go below zero.
func (l *Ledger) Decrement(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) error {
	if quantity < 1 {
		return domain.Validation("quantity must be at least 1")
	}
	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND is_active = ? AND stock_quantity >= ?", productID, true, quantity).
		Updates(map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity - ?", quantity),
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Conflict(domain.MsgInsufficientStock)
	}
	return nil
}

// Restore puts quantity back. There is no ceiling: a restore can push stock
// above what was ever decremented if callers restore twice.
func (l *Ledger) Restore(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) error {
	if quantity < 1 {
		return nil
	}
	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity + ?", quantity),
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		logging.FromContext(ctx).Warn("stock_restore_skipped", "reason", "product missing", "product_id", productID, "quantity", quantity)
	}
	return nil
}
