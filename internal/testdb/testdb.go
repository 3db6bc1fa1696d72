// Package testdb provides in-memory SQLite databases for package tests.
package testdb

import (
	"context"
	"testing"

	"github.com/Skotchmaster/shopcore/internal/models"
	pkgdb "github.com/Skotchmaster/shopcore/pkg/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func New(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := pkgdb.Open(context.Background(), pkgdb.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))

	t.Cleanup(func() {
		_ = pkgdb.Close(db)
	})
	return db
}

func Product(t testing.TB, db *gorm.DB, name, price string, stock int) models.Product {
	t.Helper()

	p := models.Product{
		Name:          name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsActive:      true,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func Stock(t testing.TB, db *gorm.DB, id any) int {
	t.Helper()

	var p models.Product
	require.NoError(t, db.Where("id = ?", id).First(&p).Error)
	return p.StockQuantity
}

func Deactivate(t testing.TB, db *gorm.DB, id any) {
	t.Helper()
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", id).Update("is_active", false).Error)
}

func Count(t testing.TB, db *gorm.DB, model any) int64 {
	t.Helper()

	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}
