package repo

import (
	"context"
	"errors"
	"time"

	"github.com/Skotchmaster/shopcore/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) WithTx(tx *gorm.DB) *GormRepo {
	return &GormRepo{DB: tx}
}

// CreateOrder writes only the order row; lines go through CreateItems so the
// unit of work lists every insert it performs.
func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.DB.WithContext(ctx).Omit(clause.Associations).Create(order).Error
}

func (r *GormRepo) CreateItems(ctx context.Context, orderID uuid.UUID, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].OrderID = orderID
	}
	return r.DB.WithContext(ctx).Create(&items).Error
}

func ownedBy(q *gorm.DB, owner *string) *gorm.DB {
	if owner == nil {
		return q
	}
	return q.Where("user_id = ?", *owner)
}

// GetOrder returns nil when the order is absent or not visible to owner.
func (r *GormRepo) GetOrder(ctx context.Context, id uuid.UUID, owner *string) (*models.Order, error) {
	var order models.Order
	q := ownedBy(r.DB.WithContext(ctx).Where("id = ?", id), owner)
	err := q.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("product_name ASC, id ASC")
	}).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) Lock(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.DB.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) Items(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	if err := r.DB.WithContext(ctx).Where("order_id = ?", orderID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// SetStatus moves the order from one status to another and reports whether the
// row still held from.
func (r *GormRepo) SetStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	return res.RowsAffected > 0, res.Error
}

func (r *GormRepo) ListOrders(ctx context.Context, owner *string, limit, offset int) ([]models.OrderSummary, int64, error) {
	var total int64
	if err := ownedBy(r.DB.WithContext(ctx).Model(&models.Order{}), owner).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []models.OrderSummary
	err := ownedBy(r.DB.WithContext(ctx).Model(&models.Order{}), owner).
		Select("orders.id, orders.order_number, orders.status, orders.total_amount, orders.created_at, " +
			"(SELECT COALESCE(SUM(oi.quantity), 0) FROM order_items AS oi WHERE oi.order_id = orders.id) AS item_count").
		Order("orders.created_at DESC, orders.id DESC").
		Limit(limit).
		Offset(offset).
		Scan(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// TopProducts ranks products by units sold across orders that were not cancelled.
func (r *GormRepo) TopProducts(ctx context.Context, limit int) ([]models.ProductSales, error) {
	var out []models.ProductSales
	err := r.DB.WithContext(ctx).
		Table("order_items AS oi").
		Select("oi.product_id, MAX(oi.product_name) AS product_name, SUM(oi.quantity) AS quantity").
		Joins("JOIN orders AS o ON o.id = oi.order_id").
		Where("o.status <> ?", models.OrderStatusCancelled).
		Group("oi.product_id").
		Order("SUM(oi.quantity) DESC, oi.product_id ASC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
