package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"                  json:"id"`
	Name          string          `gorm:"not null"                              json:"name"`
	Price         decimal.Decimal `gorm:"type:decimal(12,2);not null"           json:"price"`
	StockQuantity int             `gorm:"not null;check:stock_quantity >= 0"    json:"stock_quantity"`
	IsActive      bool            `gorm:"not null"                              json:"is_active"`
	CreatedAt     time.Time       `                                             json:"created_at"`
	UpdatedAt     time.Time       `                                             json:"updated_at"`
}

// Cart is owned by a user once UserID is set; anonymous carts are unique per session.
type Cart struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"                                                        json:"id"`
	UserID    *string    `gorm:"uniqueIndex:idx_carts_user"                                                  json:"user_id,omitempty"`
	SessionID string     `gorm:"not null;index:idx_carts_anon_session,unique,where:user_id IS NULL"          json:"session_id"`
	Items     []CartItem `gorm:"foreignKey:CartID"                                                           json:"items,omitempty"`
	CreatedAt time.Time  `                                                                                   json:"created_at"`
	UpdatedAt time.Time  `                                                                                   json:"updated_at"`
}

type CartItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"                         json:"id"`
	CartID    uuid.UUID       `gorm:"type:uuid;uniqueIndex:idx_cart_product;not null" json:"cart_id"`
	ProductID uuid.UUID       `gorm:"type:uuid;uniqueIndex:idx_cart_product;not null" json:"product_id"`
	Quantity  int             `gorm:"not null;check:quantity > 0"                  json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"                  json:"unit_price"`
	CreatedAt time.Time       `                                                    json:"created_at"`
	UpdatedAt time.Time       `                                                    json:"updated_at"`
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is reachable in one step.
// Forward path: pending -> processing -> shipped. Cancellation only from pending.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return next == OrderStatusProcessing || next == OrderStatusCancelled
	case OrderStatusProcessing:
		return next == OrderStatusShipped
	}
	return false
}

type Order struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey"                json:"id"`
	OrderNumber        string          `gorm:"size:32;uniqueIndex;not null"        json:"order_number"`
	UserID             *string         `gorm:"index"                               json:"user_id,omitempty"`
	Status             OrderStatus     `gorm:"size:16;not null;index"              json:"status"`
	TotalAmount        decimal.Decimal `gorm:"type:decimal(12,2);not null"         json:"total_amount"`
	FirstName          string          `gorm:"not null"                            json:"first_name"`
	LastName           string          `gorm:"not null"                            json:"last_name"`
	Email              string          `gorm:"not null"                            json:"email"`
	Phone              string          `                                           json:"phone,omitempty"`
	ShippingAddress    string          `gorm:"not null"                            json:"shipping_address"`
	ShippingCity       string          `gorm:"not null"                            json:"shipping_city"`
	ShippingPostalCode string          `                                           json:"shipping_postal_code,omitempty"`
	ShippingCountry    string          `                                           json:"shipping_country,omitempty"`
	Notes              string          `                                           json:"notes,omitempty"`
	Items              []OrderItem     `gorm:"foreignKey:OrderID"                  json:"items,omitempty"`
	CreatedAt          time.Time       `gorm:"index"                               json:"created_at"`
	UpdatedAt          time.Time       `                                           json:"updated_at"`
}

func (o Order) CustomerName() string {
	if o.LastName == "" {
		return o.FirstName
	}
	return o.FirstName + " " + o.LastName
}

type OrderItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"           json:"id"`
	OrderID     uuid.UUID       `gorm:"type:uuid;index;not null"       json:"order_id"`
	ProductID   uuid.UUID       `gorm:"type:uuid;index;not null"       json:"product_id"`
	ProductName string          `gorm:"not null"                       json:"product_name"`
	Quantity    int             `gorm:"not null;check:quantity > 0"    json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null"    json:"unit_price"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null"    json:"total_price"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (i *CartItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (Product) TableName() string   { return "products" }
func (Cart) TableName() string      { return "carts" }
func (CartItem) TableName() string  { return "cart_items" }
func (Order) TableName() string     { return "orders" }
func (OrderItem) TableName() string { return "order_items" }

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Product{}, &Cart{}, &CartItem{}, &Order{}, &OrderItem{})
}
