package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartView is the read model served to callers and cached by cart id.
type CartView struct {
	ID        uuid.UUID       `json:"id"`
	UserID    *string         `json:"user_id,omitempty"`
	SessionID string          `json:"session_id"`
	Lines     []CartLineView  `json:"lines"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type CartLineView struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type OrderSummary struct {
	ID          uuid.UUID       `json:"id"`
	OrderNumber string          `json:"order_number"`
	Status      OrderStatus     `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
	CreatedAt   time.Time       `json:"created_at"`
}

type ProductSales struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
}
