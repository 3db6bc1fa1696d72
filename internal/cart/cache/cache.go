package cache

import (
	"context"
	"errors"

	"github.com/Skotchmaster/shopcore/internal/models"
	"github.com/google/uuid"
)

type CartCache interface {
	Get(ctx context.Context, cartID uuid.UUID) (*models.CartView, error)
	Set(ctx context.Context, view *models.CartView) error
	Delete(ctx context.Context, cartID uuid.UUID) error
}

var ErrCacheMiss = errors.New("cache miss")
