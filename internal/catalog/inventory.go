package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/haatbazaar/marketplace-backend/pkg/errors"
)

// StockLine is one quantity movement against a product or one of its variants.
type StockLine struct {
	ItemID    uuid.UUID
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

// Violation names a cart line that cannot be fulfilled and why.
type Violation struct {
	ItemID uuid.UUID `json:"item_id"`
	Reason string    `json:"reason"`
}

const ReasonInsufficientStock = "insufficient_stock"

// Inventory applies stock movements inside a caller-owned transaction.
type Inventory struct {
	repo *Repository
}

// NewInventory returns the stock mover backed by the catalog repository.
func NewInventory(repo *Repository) (*Inventory, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &Inventory{repo: repo}, nil
}

// Reserve decrements every line with a conditional update. Lines that lose a
// stock race are collected and returned as a STOCK_VIOLATION so the caller
// rolls back the transaction.
func (i *Inventory) Reserve(ctx context.Context, tx *gorm.DB, lines []StockLine) error {
	repo := i.repo.WithTx(tx)
	var violations []Violation
	for _, line := range lines {
		if line.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		var (
			ok  bool
			err error
		)
		if line.VariantID != nil {
			ok, err = repo.DecrementVariantStock(ctx, *line.VariantID, line.Quantity)
		} else {
			ok, err = repo.DecrementProductStock(ctx, line.ProductID, line.Quantity)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
		}
		if !ok {
			violations = append(violations, Violation{ItemID: line.ItemID, Reason: ReasonInsufficientStock})
		}
	}
	if len(violations) > 0 {
		return pkgerrors.New(pkgerrors.CodeStockViolation, "stock changed during checkout").WithDetails(violations)
	}
	return nil
}

// Release returns every line's quantity to stock.
func (i *Inventory) Release(ctx context.Context, tx *gorm.DB, lines []StockLine) error {
	repo := i.repo.WithTx(tx)
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		var err error
		if line.VariantID != nil {
			err = repo.RestoreVariantStock(ctx, *line.VariantID, line.Quantity)
		} else {
			err = repo.RestoreProductStock(ctx, line.ProductID, line.Quantity)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
		}
	}
	return nil
}
