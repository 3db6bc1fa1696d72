package service

import (
	"context"
	"errors"
	"strings"
	"time"

	cartservice "github.com/Skotchmaster/shopcore/internal/cart/service"
	"github.com/Skotchmaster/shopcore/internal/domain"
	"github.com/Skotchmaster/shopcore/internal/models"
	"github.com/Skotchmaster/shopcore/internal/notify"
	"github.com/Skotchmaster/shopcore/internal/order/repo"
	"github.com/Skotchmaster/shopcore/internal/order/txn"
	"github.com/Skotchmaster/shopcore/internal/util"
	"github.com/Skotchmaster/shopcore/pkg/logging"
	"github.com/Skotchmaster/shopcore/pkg/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultTopProducts = 5
	maxTopProducts     = 100
	defaultTimeout     = 5 * time.Second
)

type OrderPage struct {
	Items    []models.OrderSummary `json:"items"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
	Total    int64                 `json:"total"`
	Pages    int                   `json:"pages"`
}

type OrderService struct {
	Repo        *repo.GormRepo
	Carts       *cartservice.CartService
	Coordinator *txn.Coordinator
	Factory     *Factory
	Notifier    notify.Dispatcher
	Metrics     *metrics.ShopMetrics
	Timeout     time.Duration

	validate *validator.Validate
}

type Deps struct {
	DB       *gorm.DB
	Carts    *cartservice.CartService
	Factory  *Factory
	Notifier notify.Dispatcher
	Metrics  *metrics.ShopMetrics
	Timeout  time.Duration
}

func New(d Deps) *OrderService {
	notifier := d.Notifier
	if notifier == nil {
		notifier = notify.LogDispatcher{}
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &OrderService{
		Repo:        &repo.GormRepo{DB: d.DB},
		Carts:       d.Carts,
		Coordinator: txn.NewCoordinator(d.DB, d.Factory.Ledger),
		Factory:     d.Factory,
		Notifier:    notifier,
		Metrics:     d.Metrics,
		Timeout:     timeout,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// CreateOrder checks out the caller's cart. Stock, the order and the emptied
// cart commit together; the confirmation is sent only after commit and its
// failure does not fail the order.
func (s *OrderService) CreateOrder(ctx context.Context, id cartservice.Identity, info ShippingInfo) (*models.Order, error) {
	info = trimShipping(info)
	if err := s.validate.StructCtx(ctx, info); err != nil {
		return nil, domain.Validation(err.Error())
	}

	cart, err := s.Carts.FindCart(ctx, id)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, domain.Validation(domain.MsgCartEmpty)
	}

	tctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	order, err := s.Coordinator.Checkout(tctx, cart.ID, func(ctx context.Context, tx *gorm.DB, cart *models.Cart, lines []models.CartItem) (*models.Order, error) {
		return s.Factory.Build(ctx, tx, cart, lines, id.UserID, info)
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.Metrics.CheckoutConflict()
		}
		return nil, err
	}

	s.Carts.Invalidate(ctx, cart.ID)
	s.Metrics.OrderCreated()
	logging.FromContext(ctx).Info("order_created",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"total", order.TotalAmount.StringFixed(2),
	)

	sent := s.Notifier.SendOrderConfirmation(ctx, notify.Confirmation{
		To:           order.Email,
		CustomerName: order.CustomerName(),
		OrderNumber:  order.OrderNumber,
		TotalAmount:  order.TotalAmount,
		Lines:        Describe(order),
	})
	if !sent {
		logging.FromContext(ctx).Warn("order_confirmation_not_sent", "order_number", order.OrderNumber)
	}
	return order, nil
}

func trimShipping(info ShippingInfo) ShippingInfo {
	for _, f := range []*string{
		&info.FirstName, &info.LastName, &info.Email, &info.Phone,
		&info.Address, &info.City, &info.PostalCode, &info.Country, &info.Notes,
	} {
		*f = strings.TrimSpace(*f)
	}
	return info
}

// GetOrder hides orders owned by someone else behind NotFound. A nil owner
// sees every order.
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID, owner *string) (*models.Order, error) {
	order, err := s.Repo.GetOrder(ctx, id, owner)
	if err != nil {
		return nil, domain.Storage("order.get", err)
	}
	if order == nil {
		return nil, domain.NotFound("order")
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, owner *string, page, pageSize int) (*OrderPage, error) {
	page, pageSize = util.Normalize(page, pageSize)
	from, limit := util.Calculate(page, pageSize)

	items, total, err := s.Repo.ListOrders(ctx, owner, limit, from)
	if err != nil {
		return nil, domain.Storage("order.list", err)
	}
	if items == nil {
		items = []models.OrderSummary{}
	}
	return &OrderPage{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		Pages:    util.Pages(total, pageSize),
	}, nil
}

// CancelOrder reports false when the order is absent or not owned by owner.
func (s *OrderService) CancelOrder(ctx context.Context, id uuid.UUID, owner *string) (bool, error) {
	found, err := s.Coordinator.Cancel(ctx, id, owner)
	if err != nil || !found {
		return false, err
	}
	s.Metrics.OrderCancelled()
	s.Metrics.StatusChanged(string(models.OrderStatusCancelled))
	logging.FromContext(ctx).Info("order_cancelled", "order_id", id)
	return true, nil
}

func (s *OrderService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (bool, error) {
	next := models.OrderStatus(strings.ToLower(strings.TrimSpace(status)))
	if !next.Valid() {
		return false, domain.Validation("unknown order status " + status)
	}
	if next == models.OrderStatusCancelled {
		return s.CancelOrder(ctx, id, nil)
	}

	found, err := s.Coordinator.Advance(ctx, id, next)
	if err != nil || !found {
		return false, err
	}
	s.Metrics.StatusChanged(string(next))
	logging.FromContext(ctx).Info("order_status_changed", "order_id", id, "status", next)
	return true, nil
}

func (s *OrderService) TopProducts(ctx context.Context, count int) ([]models.ProductSales, error) {
	if count < 1 {
		count = defaultTopProducts
	}
	if count > maxTopProducts {
		count = maxTopProducts
	}
	out, err := s.Repo.TopProducts(ctx, count)
	if err != nil {
		return nil, domain.Storage("order.top_products", err)
	}
	if out == nil {
		out = []models.ProductSales{}
	}
	return out, nil
}
