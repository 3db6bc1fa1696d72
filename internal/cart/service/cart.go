package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Skotchmaster/shopcore/internal/cart/cache"
	"github.com/Skotchmaster/shopcore/internal/cart/repo"
	catalogrepo "github.com/Skotchmaster/shopcore/internal/catalog/repo"
	"github.com/Skotchmaster/shopcore/internal/domain"
	"github.com/Skotchmaster/shopcore/internal/models"
	"github.com/Skotchmaster/shopcore/internal/stock"
	"github.com/Skotchmaster/shopcore/pkg/logging"
	"github.com/Skotchmaster/shopcore/pkg/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// Identity names the caller. An empty UserID means an anonymous session.
type Identity struct {
	UserID    string
	SessionID string
}

func (id Identity) Validate() error {
	if id.UserID == "" && id.SessionID == "" {
		return domain.Validation("user id or session id required")
	}
	return nil
}

// loadTimeout bounds a shared cart load, which outlives any single caller.
const loadTimeout = 5 * time.Second

type CartService struct {
	Repo    *repo.GormRepo
	Catalog *catalogrepo.GormRepo
	Ledger  *stock.Ledger
	Cache   cache.CartCache
	Metrics *metrics.ShopMetrics

	sfg singleflight.Group
}

func New(r *repo.GormRepo, catalog *catalogrepo.GormRepo, c cache.CartCache, m *metrics.ShopMetrics) *CartService {
	return &CartService{Repo: r, Catalog: catalog, Ledger: stock.NewLedger(), Cache: c, Metrics: m}
}

// FindCart resolves the caller's cart without creating one; nil when absent.
func (s *CartService) FindCart(ctx context.Context, id Identity) (*models.Cart, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	cart, err := s.resolve(ctx, id)
	return cart, domain.Storage("cart.find", err)
}

func (s *CartService) resolve(ctx context.Context, id Identity) (*models.Cart, error) {
	if id.UserID != "" {
		cart, err := s.Repo.FindByUser(ctx, id.UserID)
		if err != nil || cart != nil {
			return cart, err
		}
	}
	if id.SessionID == "" {
		return nil, nil
	}
	return s.Repo.FindAnonymous(ctx, id.SessionID)
}

// GetOrCreateCart is idempotent per identity: concurrent first calls converge
// on one row through the unique indexes on carts.
func (s *CartService) GetOrCreateCart(ctx context.Context, id Identity) (*models.Cart, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	cart, err := s.resolve(ctx, id)
	if err != nil {
		return nil, domain.Storage("cart.resolve", err)
	}
	if cart != nil {
		return cart, nil
	}

	cart = &models.Cart{SessionID: id.SessionID}
	if id.UserID != "" {
		userID := id.UserID
		cart.UserID = &userID
	}
	created, err := s.Repo.CreateIfAbsent(ctx, cart)
	if err != nil {
		return nil, domain.Storage("cart.create", err)
	}
	if created {
		return cart, nil
	}

	existing, err := s.resolve(ctx, id)
	if err != nil {
		return nil, domain.Storage("cart.resolve", err)
	}
	if existing == nil {
		return nil, domain.Storage("cart.create", fmt.Errorf("cart for %q/%q lost after conflict", id.UserID, id.SessionID))
	}
	return existing, nil
}

func (s *CartService) GetCart(ctx context.Context, id Identity) (*models.CartView, error) {
	cart, err := s.GetOrCreateCart(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Cache == nil {
		return s.loadView(ctx, cart)
	}

	v, err, _ := s.sfg.Do(cart.ID.String(), func() (any, error) {
		return s.loadCached(ctx, cart)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.CartView), nil
}

// loadCached serves the view from cache or storage on behalf of every caller
// joined on the cart, so it drops the first caller's cancellation.
func (s *CartService) loadCached(ctx context.Context, cart *models.Cart) (*models.CartView, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
	defer cancel()
	l := logging.FromContext(ctx)

	view, err := s.Cache.Get(ctx, cart.ID)
	if err == nil {
		return view, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		l.Warn("cart_cache_get_error", "cart_id", cart.ID, "error", err)
	}

	view, err = s.loadView(ctx, cart)
	if err != nil {
		return nil, err
	}
	if err := s.Cache.Set(ctx, view); err != nil {
		l.Warn("cart_cache_set_error", "cart_id", cart.ID, "error", err)
	}
	return view, nil
}

func (s *CartService) loadView(ctx context.Context, cart *models.Cart) (*models.CartView, error) {
	lines, err := s.Repo.Lines(ctx, cart.ID)
	if err != nil {
		return nil, domain.Storage("cart.lines", err)
	}

	view := &models.CartView{
		ID:        cart.ID,
		UserID:    cart.UserID,
		SessionID: cart.SessionID,
		Lines:     lines,
		Total:     decimal.Zero,
		UpdatedAt: cart.UpdatedAt,
	}
	if view.Lines == nil {
		view.Lines = []models.CartLineView{}
	}
	for _, line := range lines {
		view.Total = view.Total.Add(line.LineTotal)
		view.ItemCount += line.Quantity
	}
	return view, nil
}

func (s *CartService) GetItemCount(ctx context.Context, id Identity) (int, error) {
	cart, err := s.FindCart(ctx, id)
	if err != nil || cart == nil {
		return 0, err
	}
	n, err := s.Repo.CountItems(ctx, cart.ID)
	return n, domain.Storage("cart.count", err)
}

// mutate runs fn under the cart row lock. When fn reports a change the cart is
// touched, and after commit its cached view is dropped.
func (s *CartService) mutate(ctx context.Context, cart *models.Cart, op string, fn func(tx *repo.GormRepo, cart *models.Cart) (bool, error)) (bool, error) {
	changed := false
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		locked, err := tx.Lock(ctx, cart.ID)
		if err != nil {
			return err
		}
		if changed, err = fn(tx, locked); err != nil || !changed {
			return err
		}
		return tx.Touch(ctx, cart.ID)
	})
	if err != nil {
		return false, domain.Storage("cart."+op, err)
	}
	if changed {
		s.Invalidate(ctx, cart.ID)
		s.Metrics.CartMutation(op)
	}
	return changed, nil
}

// checkProduct is a soft check only; checkout re-validates under lock.
func (s *CartService) checkProduct(ctx context.Context, tx *repo.GormRepo, productID uuid.UUID, quantity int) (*models.Product, error) {
	product, err := s.Catalog.WithTx(tx.DB).GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	ok, err := s.Ledger.CheckAvailable(ctx, tx.DB, productID, quantity)
	if err != nil {
		return nil, err
	}
	if !ok {
		if !product.IsActive {
			return nil, domain.Conflict(domain.MsgProductUnavailable)
		}
		return nil, domain.Conflict(domain.MsgInsufficientStock)
	}
	return product, nil
}

// AddItem sums into an existing line for the product and refreshes its unit
// price to the current catalog price.
func (s *CartService) AddItem(ctx context.Context, id Identity, productID uuid.UUID, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, domain.Validation("quantity must be at least 1")
	}
	if productID == uuid.Nil {
		return nil, domain.Validation("product id required")
	}
	cart, err := s.GetOrCreateCart(ctx, id)
	if err != nil {
		return nil, err
	}

	var item *models.CartItem
	_, err = s.mutate(ctx, cart, "add", func(tx *repo.GormRepo, cart *models.Cart) (bool, error) {
		existing, err := tx.ItemByProduct(ctx, cart.ID, productID)
		if err != nil {
			return false, err
		}
		total := quantity
		if existing != nil {
			total += existing.Quantity
		}
		product, err := s.checkProduct(ctx, tx, productID, total)
		if err != nil {
			return false, err
		}

		if existing != nil {
			existing.Quantity = total
			existing.UnitPrice = product.Price
			item = existing
			return true, tx.SaveItem(ctx, existing)
		}
		item = &models.CartItem{
			CartID:    cart.ID,
			ProductID: productID,
			Quantity:  quantity,
			UnitPrice: product.Price,
		}
		return true, tx.CreateItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItem replaces the line quantity; the unit price is left as snapshotted.
func (s *CartService) UpdateItem(ctx context.Context, id Identity, lineID uuid.UUID, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, domain.Validation("quantity must be at least 1")
	}
	cart, err := s.FindCart(ctx, id)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, domain.NotFound("cart line")
	}

	var item *models.CartItem
	_, err = s.mutate(ctx, cart, "update", func(tx *repo.GormRepo, cart *models.Cart) (bool, error) {
		existing, err := tx.Item(ctx, cart.ID, lineID)
		if err != nil {
			return false, err
		}
		if existing == nil {
			return false, domain.NotFound("cart line")
		}
		if _, err := s.checkProduct(ctx, tx, existing.ProductID, quantity); err != nil {
			return false, err
		}
		existing.Quantity = quantity
		item = existing
		return true, tx.SaveItem(ctx, existing)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// RemoveItem reports false when there was no such line.
func (s *CartService) RemoveItem(ctx context.Context, id Identity, lineID uuid.UUID) (bool, error) {
	cart, err := s.FindCart(ctx, id)
	if err != nil || cart == nil {
		return false, err
	}
	return s.mutate(ctx, cart, "remove", func(tx *repo.GormRepo, cart *models.Cart) (bool, error) {
		return tx.DeleteItem(ctx, cart.ID, lineID)
	})
}

// ClearCart reports false when the cart was absent or already empty.
func (s *CartService) ClearCart(ctx context.Context, id Identity) (bool, error) {
	cart, err := s.FindCart(ctx, id)
	if err != nil || cart == nil {
		return false, err
	}
	return s.mutate(ctx, cart, "clear", func(tx *repo.GormRepo, cart *models.Cart) (bool, error) {
		n, err := tx.DeleteItems(ctx, cart.ID)
		return n > 0, err
	})
}

// MergeCarts folds the session's anonymous cart into the user's cart. It
// returns the user's cart, or nil when the user has none and there was
// nothing to merge. A second call with the session cart gone changes nothing.
func (s *CartService) MergeCarts(ctx context.Context, userID, sessionID string) (*models.Cart, error) {
	if userID == "" {
		return nil, domain.Validation("user id required")
	}

	var (
		result  *models.Cart
		touched []uuid.UUID
		err     error
	)
	for attempt := 0; attempt < 2; attempt++ {
		result, touched, err = s.merge(ctx, userID, sessionID)
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
		logging.FromContext(ctx).Warn("merge_cart_retry", "user_id", userID, "error", err)
	}
	if err != nil {
		return nil, domain.Storage("cart.merge", err)
	}

	for _, id := range touched {
		s.Invalidate(ctx, id)
	}
	if len(touched) > 0 {
		s.Metrics.CartMutation("merge")
	}
	return result, nil
}

func (s *CartService) merge(ctx context.Context, userID, sessionID string) (*models.Cart, []uuid.UUID, error) {
	var (
		result  *models.Cart
		touched []uuid.UUID
	)
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		var session *models.Cart
		if sessionID != "" {
			var err error
			if session, err = tx.LockAnonymous(ctx, sessionID); err != nil {
				return err
			}
		}
		user, err := tx.FindByUser(ctx, userID)
		if err != nil {
			return err
		}
		result = user
		if session == nil {
			return nil
		}

		lines, err := tx.Items(ctx, session.ID)
		if err != nil || len(lines) == 0 {
			return err
		}

		if user == nil {
			if err := tx.AssignUser(ctx, session.ID, userID); err != nil {
				return err
			}
			session.UserID = &userID
			result = session
			touched = append(touched, session.ID)
			return nil
		}

		if user, err = tx.Lock(ctx, user.ID); err != nil {
			return err
		}
		for _, line := range lines {
			existing, err := tx.ItemByProduct(ctx, user.ID, line.ProductID)
			if err != nil {
				return err
			}
			if existing != nil {
				existing.Quantity += line.Quantity
				if err := tx.SaveItem(ctx, existing); err != nil {
					return err
				}
				continue
			}
			copied := &models.CartItem{
				CartID:    user.ID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
			}
			if err := tx.CreateItem(ctx, copied); err != nil {
				return err
			}
		}

		if _, err := tx.DeleteItems(ctx, session.ID); err != nil {
			return err
		}
		if err := tx.DeleteCart(ctx, session.ID); err != nil {
			return err
		}
		if err := tx.Touch(ctx, user.ID); err != nil {
			return err
		}
		result = user
		touched = append(touched, session.ID, user.ID)
		return nil
	})
	return result, touched, err
}

// Invalidate drops the cached view of a cart. Cache failures are logged; the
// entry still expires on its TTL.
func (s *CartService) Invalidate(ctx context.Context, cartID uuid.UUID) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Delete(ctx, cartID); err != nil {
		logging.FromContext(ctx).Warn("cart_cache_delete_error", "cart_id", cartID, "error", err)
	}
}
