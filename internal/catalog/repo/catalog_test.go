package repo

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Skotchmaster/shopcore/internal/domain"
	"github.com/Skotchmaster/shopcore/internal/models"
	"github.com/Skotchmaster/shopcore/internal/testdb"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestGetProduct(t *testing.T) {
	t.Parallel()
	db := testdb.New(t)
	r := &GormRepo{DB: db}
	p := testdb.Product(t, db, "Lamp", "12.50", 3)

	got, err := r.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lamp", got.Name)
	assert.True(t, decimal.RequireFromString("12.50").Equal(got.Price))

	_, err = r.GetProduct(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCreateProductValidation(t *testing.T) {
	t.Parallel()
	r := &GormRepo{DB: testdb.New(t)}

	tests := []struct {
		name  string
		price string
		stock int
		ok    bool
	}{
		{name: "valid", price: "3.99", stock: 4, ok: true},
		{name: "free", price: "0", stock: 0, ok: true},
		{name: "negative price", price: "-1", stock: 1},
		{name: "negative stock", price: "1", stock: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prod := &models.Product{Name: tt.name, Price: decimal.RequireFromString(tt.price), StockQuantity: tt.stock, IsActive: true}
			_, err := r.CreateProduct(context.Background(), prod)
			if tt.ok {
				require.NoError(t, err)
				assert.NotEqual(t, uuid.Nil, prod.ID)
				return
			}
			assert.True(t, errors.Is(err, domain.ErrValidation))
		})
	}
}

func TestPatchProduct(t *testing.T) {
	t.Parallel()
	db := testdb.New(t)
	r := &GormRepo{DB: db}
	p := testdb.Product(t, db, "Lamp", "12.50", 3)

	name := "Desk lamp"
	stock := 9
	inactive := false
	got, err := r.PatchProduct(context.Background(), PatchProductRequest{Name: &name, StockQuantity: &stock, IsActive: &inactive}, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Desk lamp", got.Name)
	assert.Equal(t, 9, testdb.Stock(t, db, p.ID))
	assert.False(t, got.IsActive)

	neg := -1
	_, err = r.PatchProduct(context.Background(), PatchProductRequest{StockQuantity: &neg}, p.ID)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Equal(t, 9, testdb.Stock(t, db, p.ID))

	_, err = r.PatchProduct(context.Background(), PatchProductRequest{Name: &name}, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

// A checkout decrement landing between the patch's read and its write must
// survive a patch that does not touch stock.
func TestPatchProductKeepsConcurrentStockChange(t *testing.T) {
	t.Parallel()
	db := testdb.New(t)
	r := &GormRepo{DB: db}
	p := testdb.Product(t, db, "Lamp", "12.50", 1)

	var once sync.Once
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("test:interleave_checkout", func(tx *gorm.DB) {
		if tx.Statement.Table != "products" {
			return
		}
		once.Do(func() {
			err := tx.Session(&gorm.Session{NewDB: true}).
				Exec("UPDATE products SET stock_quantity = stock_quantity - 1 WHERE id = ? AND stock_quantity >= 1", p.ID).Error
			require.NoError(t, err)
		})
	}))

	name := "renamed"
	got, err := r.PatchProduct(context.Background(), PatchProductRequest{Name: &name}, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, 0, got.StockQuantity)
	assert.Equal(t, 0, testdb.Stock(t, db, p.ID))
}

func TestPatchProductEmptyRequest(t *testing.T) {
	t.Parallel()
	db := testdb.New(t)
	r := &GormRepo{DB: db}
	p := testdb.Product(t, db, "Lamp", "12.50", 4)

	got, err := r.PatchProduct(context.Background(), PatchProductRequest{}, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lamp", got.Name)
	assert.Equal(t, 4, got.StockQuantity)
}
