package repo

import (
	"context"
	"errors"
	"time"

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

// WithTx returns a repo bound to tx. Inside a transaction only the returned
// repo may be used.
func (r *GormRepo) WithTx(tx *gorm.DB) *GormRepo {
	return &GormRepo{DB: tx}
}

func (r *GormRepo) Transaction(ctx context.Context, fn func(tx *GormRepo) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

// FindByUser returns nil when the user has no cart.
func (r *GormRepo) FindByUser(ctx context.Context, userID string) (*models.Cart, error) {
	return r.first(r.DB.WithContext(ctx).Where("user_id = ?", userID))
}

// FindAnonymous returns the session's cart only while it is not bound to a user.
func (r *GormRepo) FindAnonymous(ctx context.Context, sessionID string) (*models.Cart, error) {
	return r.first(r.DB.WithContext(ctx).Where("session_id = ? AND user_id IS NULL", sessionID))
}

func (r *GormRepo) first(q *gorm.DB) (*models.Cart, error) {
	var cart models.Cart
	if err := q.First(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cart, nil
}

// CreateIfAbsent inserts cart unless a unique index already holds one for the
// same identity. It reports whether this call created the row.
func (r *GormRepo) CreateIfAbsent(ctx context.Context, cart *models.Cart) (bool, error) {
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(cart)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Lock takes the cart row lock for the rest of the transaction.
func (r *GormRepo) Lock(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.DB.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", cartID).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFound("cart")
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *GormRepo) Touch(ctx context.Context, cartID uuid.UUID) error {
	return r.DB.WithContext(ctx).Model(&models.Cart{}).Where("id = ?", cartID).Update("updated_at", time.Now().UTC()).Error
}

func (r *GormRepo) AssignUser(ctx context.Context, cartID uuid.UUID, userID string) error {
	return r.DB.WithContext(ctx).Model(&models.Cart{}).Where("id = ?", cartID).Updates(map[string]any{
		"user_id":    userID,
		"updated_at": time.Now().UTC(),
	}).Error
}

func (r *GormRepo) DeleteCart(ctx context.Context, cartID uuid.UUID) error {
	return r.DB.WithContext(ctx).Where("id = ?", cartID).Delete(&models.Cart{}).Error
}

// Items returns the cart lines in insertion order.
func (r *GormRepo) Items(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.DB.WithContext(ctx).Where("cart_id = ?", cartID).Order("created_at ASC, id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) Lines(ctx context.Context, cartID uuid.UUID) ([]models.CartLineView, error) {
	var lines []models.CartLineView
	err := r.DB.WithContext(ctx).
		Table("cart_items AS ci").
		Select("ci.id, ci.product_id, COALESCE(p.name, '') AS product_name, ci.quantity, ci.unit_price").
		Joins("LEFT JOIN products AS p ON p.id = ci.product_id").
		Where("ci.cart_id = ?", cartID).
		Order("ci.created_at ASC, ci.id ASC").
		Scan(&lines).Error
	if err != nil {
		return nil, err
	}
	for i := range lines {
		lines[i].LineTotal = lines[i].UnitPrice.Mul(decimalQty(lines[i].Quantity))
	}
	return lines, nil
}

func (r *GormRepo) ItemByProduct(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	return r.item(r.DB.WithContext(ctx).Where("cart_id = ? AND product_id = ?", cartID, productID))
}

func (r *GormRepo) Item(ctx context.Context, cartID, lineID uuid.UUID) (*models.CartItem, error) {
	return r.item(r.DB.WithContext(ctx).Where("cart_id = ? AND id = ?", cartID, lineID))
}

func (r *GormRepo) item(q *gorm.DB) (*models.CartItem, error) {
	var item models.CartItem
	if err := q.First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *GormRepo) CreateItem(ctx context.Context, item *models.CartItem) error {
	return r.DB.WithContext(ctx).Create(item).Error
}

func (r *GormRepo) SaveItem(ctx context.Context, item *models.CartItem) error {
	return r.DB.WithContext(ctx).Model(item).Updates(map[string]any{
		"quantity":   item.Quantity,
		"unit_price": item.UnitPrice,
		"updated_at": time.Now().UTC(),
	}).Error
}

func (r *GormRepo) DeleteItem(ctx context.Context, cartID, lineID uuid.UUID) (bool, error) {
	res := r.DB.WithContext(ctx).Where("cart_id = ? AND id = ?", cartID, lineID).Delete(&models.CartItem{})
	return res.RowsAffected > 0, res.Error
}

func (r *GormRepo) DeleteItems(ctx context.Context, cartID uuid.UUID) (int64, error) {
	res := r.DB.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

func (r *GormRepo) CountItems(ctx context.Context, cartID uuid.UUID) (int, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.CartItem{}).
		Where("cart_id = ?", cartID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&n).Error
	return int(n), err
}

func decimalQty(q int) decimal.Decimal {
	return decimal.NewFromInt(int64(q))
}

// LockAnonymous locks the session's unbound cart, or returns nil when there is none.
func (r *GormRepo) LockAnonymous(ctx context.Context, sessionID string) (*models.Cart, error) {
	return r.first(r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("session_id = ? AND user_id IS NULL", sessionID))
}
