package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/haatbazaar/marketplace-backend/internal/testdb"
	"github.com/haatbazaar/marketplace-backend/pkg/db/models"
	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	pkgerrors "github.com/haatbazaar/marketplace-backend/pkg/errors"
)

func seedProduct(t *testing.T, repo *Repository, stock int, variants ...models.ProductVariant) *models.Product {
	t.Helper()
	product := &models.Product{
		SellerID:   uuid.New(),
		Title:      "Khadi kurta",
		PricePaise: 49900,
		GSTRate:    decimal.NewFromInt(12),
		Stock:      stock,
		Status:     enums.ProductStatusApproved,
		Variants:   variants,
	}
	require.NoError(t, repo.CreateProduct(context.Background(), product))
	return product
}

func TestInventoryReserveDecrementsConditionally(t *testing.T) {
	t.Parallel()

	conn := testdb.Open(t)
	repo := NewRepository(conn)
	inv, err := NewInventory(repo)
	require.NoError(t, err)
	ctx := context.Background()

	productA := seedProduct(t, repo, 5)
	productB := seedProduct(t, repo, 1)

	err = conn.Transaction(func(tx *gorm.DB) error {
		return inv.Reserve(ctx, tx, []StockLine{
			{ItemID: uuid.New(), ProductID: productA.ID, Quantity: 3},
			{ItemID: uuid.New(), ProductID: productB.ID, Quantity: 1},
		})
	})
	require.NoError(t, err)

	a, err := repo.FindProduct(ctx, productA.ID)
	require.NoError(t, err)
	b, err := repo.FindProduct(ctx, productB.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, a.Stock)
	assert.Equal(t, 0, b.Stock)
}

func TestInventoryReserveCollectsViolationsAndRollsBack(t *testing.T) {
	t.Parallel()

	conn := testdb.Open(t)
	repo := NewRepository(conn)
	inv, err := NewInventory(repo)
	require.NoError(t, err)
	ctx := context.Background()

	product := seedProduct(t, repo, 4)
	short := uuid.New()

	err = conn.Transaction(func(tx *gorm.DB) error {
		return inv.Reserve(ctx, tx, []StockLine{
			{ItemID: uuid.New(), ProductID: product.ID, Quantity: 3},
			{ItemID: short, ProductID: product.ID, Quantity: 2},
		})
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStockViolation, typed.Code())
	assert.Equal(t, []Violation{{ItemID: short, Reason: ReasonInsufficientStock}}, typed.Details())

	reloaded, err := repo.FindProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, reloaded.Stock)
}

func TestInventoryVariantStockIsIndependent(t *testing.T) {
	t.Parallel()

	conn := testdb.Open(t)
	repo := NewRepository(conn)
	inv, err := NewInventory(repo)
	require.NoError(t, err)
	ctx := context.Background()

	product := seedProduct(t, repo, 10, models.ProductVariant{Label: "XL", Stock: 2})
	variantID := product.Variants[0].ID

	err = inv.Reserve(ctx, conn, []StockLine{{ItemID: uuid.New(), ProductID: product.ID, VariantID: &variantID, Quantity: 2}})
	require.NoError(t, err)
	err = inv.Reserve(ctx, conn, []StockLine{{ItemID: uuid.New(), ProductID: product.ID, VariantID: &variantID, Quantity: 1}})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStockViolation))

	require.NoError(t, inv.Release(ctx, conn, []StockLine{{ProductID: product.ID, VariantID: &variantID, Quantity: 2}}))

	variants, err := repo.VariantsByIDs(ctx, []uuid.UUID{variantID})
	require.NoError(t, err)
	assert.Equal(t, 2, variants[variantID].Stock)

	reloaded, err := repo.FindProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, reloaded.Stock)
}

func TestRepositoryLookupsIncludeSoftDeleted(t *testing.T) {
	t.Parallel()

	conn := testdb.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	product := seedProduct(t, repo, 3)
	require.NoError(t, conn.Delete(&models.Product{}, "id = ?", product.ID).Error)

	_, err := repo.FindProduct(ctx, product.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	found, err := repo.ProductsByIDs(ctx, []uuid.UUID{product.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.True(t, found[product.ID].DeletedAt.Valid)

	ok, err := repo.DecrementProductStock(ctx, product.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.RestoreProductStock(ctx, product.ID, 2))
	found, err = repo.ProductsByIDs(ctx, []uuid.UUID{product.ID})
	require.NoError(t, err)
	assert.Equal(t, 5, found[product.ID].Stock)
}
