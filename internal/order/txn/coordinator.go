// Package txn owns the unit of work that turns a cart into an order and the
// one that cancels it. Each method enumerates exactly the writes it performs
// and runs them in a single database transaction.
package txn

import (
	"context"
	"errors"
	"fmt"

	cartrepo "github.com/Skotchmaster/shopcore/internal/cart/repo"
	"github.com/Skotchmaster/shopcore/internal/domain"
	"github.com/Skotchmaster/shopcore/internal/models"
	orderrepo "github.com/Skotchmaster/shopcore/internal/order/repo"
	"github.com/Skotchmaster/shopcore/internal/stock"
	"github.com/Skotchmaster/shopcore/pkg/logging"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// checkoutAttempts bounds retries after an order number collision.
const checkoutAttempts = 3

// BuildFunc produces the order for a locked cart. It runs inside the checkout
// transaction and must use tx for every read.
type BuildFunc func(ctx context.Context, tx *gorm.DB, cart *models.Cart, lines []models.CartItem) (*models.Order, error)

type Coordinator struct {
	DB     *gorm.DB
	Carts  *cartrepo.GormRepo
	Orders *orderrepo.GormRepo
	Ledger *stock.Ledger
}

func NewCoordinator(db *gorm.DB, ledger *stock.Ledger) *Coordinator {
	return &Coordinator{
		DB:     db,
		Carts:  &cartrepo.GormRepo{DB: db},
		Orders: &orderrepo.GormRepo{DB: db},
		Ledger: ledger,
	}
}

// Checkout locks the cart, builds the order, decrements stock for every line,
// inserts the order and its lines, then empties the cart. Either all of it
// commits or none of it does.
func (c *Coordinator) Checkout(ctx context.Context, cartID uuid.UUID, build BuildFunc) (*models.Order, error) {
	var (
		order *models.Order
		err   error
	)
	for attempt := 1; attempt <= checkoutAttempts; attempt++ {
		order, err = c.checkout(ctx, cartID, build)
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
		logging.FromContext(ctx).Warn("order_number_collision", "cart_id", cartID, "attempt", attempt)
	}
	if err != nil {
		return nil, domain.Storage("order.checkout", err)
	}
	return order, nil
}

func (c *Coordinator) checkout(ctx context.Context, cartID uuid.UUID, build BuildFunc) (*models.Order, error) {
	var order *models.Order
	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		carts := c.Carts.WithTx(tx)
		orders := c.Orders.WithTx(tx)

		cart, err := carts.Lock(ctx, cartID)
		if err != nil {
			return err
		}
		lines, err := carts.Items(ctx, cart.ID)
		if err != nil {
			return err
		}

		built, err := build(ctx, tx, cart, lines)
		if err != nil {
			return err
		}
		for _, item := range built.Items {
			if err := c.Ledger.Decrement(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		if err := orders.CreateOrder(ctx, built); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if err := orders.CreateItems(ctx, built.ID, built.Items); err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}

		if _, err := carts.DeleteItems(ctx, cart.ID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		if err := carts.Touch(ctx, cart.ID); err != nil {
			return err
		}
		order = built
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Cancel moves a pending order to cancelled and restores stock for every line
// in the same transaction. It reports false when the order does not exist or
// is not visible to owner.
func (c *Coordinator) Cancel(ctx context.Context, orderID uuid.UUID, owner *string) (bool, error) {
	found := false
	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := c.Orders.WithTx(tx)

		order, err := orders.Lock(ctx, orderID)
		if err != nil || order == nil {
			return err
		}
		if owner != nil && (order.UserID == nil || *order.UserID != *owner) {
			return nil
		}
		found = true

		if !order.Status.CanTransitionTo(models.OrderStatusCancelled) {
			return domain.State(fmt.Sprintf("cannot cancel order in status %s", order.Status))
		}
		ok, err := orders.SetStatus(ctx, order.ID, order.Status, models.OrderStatusCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return domain.State("order status changed concurrently")
		}

		items, err := orders.Items(ctx, order.ID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := c.Ledger.Restore(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, domain.Storage("order.cancel", err)
	}
	return found, nil
}

// Advance applies a forward status transition. Cancellation goes through Cancel.
func (c *Coordinator) Advance(ctx context.Context, orderID uuid.UUID, next models.OrderStatus) (bool, error) {
	if next == models.OrderStatusCancelled {
		return c.Cancel(ctx, orderID, nil)
	}

	found := false
	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := c.Orders.WithTx(tx)

		order, err := orders.Lock(ctx, orderID)
		if err != nil || order == nil {
			return err
		}
		found = true

		if !order.Status.CanTransitionTo(next) {
			return domain.State(fmt.Sprintf("cannot move order from %s to %s", order.Status, next))
		}
		ok, err := orders.SetStatus(ctx, order.ID, order.Status, next)
		if err != nil {
			return err
		}
		if !ok {
			return domain.State("order status changed concurrently")
		}
		return nil
	})
	if err != nil {
		return false, domain.Storage("order.advance", err)
	}
	return found, nil
}
