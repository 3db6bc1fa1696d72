package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Skotchmaster/shopcore/internal/domain"
	"github.com/Skotchmaster/shopcore/internal/models"
	"github.com/Skotchmaster/shopcore/internal/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ShippingInfo struct {
	FirstName  string `json:"first_name"  validate:"required,max=100"`
	LastName   string `json:"last_name"   validate:"required,max=100"`
	Email      string `json:"email"       validate:"required,email"`
	Phone      string `json:"phone"       validate:"omitempty,max=32"`
	Address    string `json:"address"     validate:"required,max=255"`
	City       string `json:"city"        validate:"required,max=100"`
	PostalCode string `json:"postal_code" validate:"omitempty,max=20"`
	Country    string `json:"country"     validate:"omitempty,max=100"`
	Notes      string `json:"notes"       validate:"omitempty,max=1000"`
}

// Factory builds order aggregates from locked carts.
type Factory struct {
	Ledger *stock.Ledger
	Now    func() time.Time
}

func NewFactory(ledger *stock.Ledger) *Factory {
	return &Factory{Ledger: ledger, Now: time.Now}
}

// Build re-validates every line against locked product rows and snapshots the
// cart's unit prices into order lines. Live catalog prices are not consulted.
// The order belongs to userID; an anonymous caller inherits the cart's owner.
func (f *Factory) Build(ctx context.Context, tx *gorm.DB, cart *models.Cart, lines []models.CartItem, userID string, info ShippingInfo) (*models.Order, error) {
	if len(lines) == 0 {
		return nil, domain.Validation(domain.MsgCartEmpty)
	}

	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := f.Ledger.Lock(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	owner := cart.UserID
	if userID != "" {
		owner = &userID
	}

	order := &models.Order{
		OrderNumber:        NewOrderNumber(f.Now()),
		UserID:             owner,
		Status:             models.OrderStatusPending,
		TotalAmount:        decimal.Zero,
		FirstName:          info.FirstName,
		LastName:           info.LastName,
		Email:              info.Email,
		Phone:              info.Phone,
		ShippingAddress:    info.Address,
		ShippingCity:       info.City,
		ShippingPostalCode: info.PostalCode,
		ShippingCountry:    info.Country,
		Notes:              info.Notes,
		Items:              make([]models.OrderItem, 0, len(lines)),
	}

	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok || !product.IsActive {
			return nil, domain.Conflict(domain.MsgProductUnavailable)
		}
		if product.StockQuantity < line.Quantity {
			return nil, domain.Conflict(domain.MsgInsufficientStock)
		}

		total := line.LineTotal()
		order.Items = append(order.Items, models.OrderItem{
			ProductID:   line.ProductID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			TotalPrice:  total,
		})
		order.TotalAmount = order.TotalAmount.Add(total)
	}
	return order, nil
}

// Describe renders order lines for the confirmation message.
func Describe(order *models.Order) []string {
	out := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		out = append(out, fmt.Sprintf("%d x %s @ %s = %s",
			item.Quantity, item.ProductName, item.UnitPrice.StringFixed(2), item.TotalPrice.StringFixed(2)))
	}
	return out
}
