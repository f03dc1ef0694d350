package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/haatbazaar/marketplace-backend/internal/catalog"
	"github.com/haatbazaar/marketplace-backend/pkg/db/models"
	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	pkgerrors "github.com/haatbazaar/marketplace-backend/pkg/errors"
)

// Violation reasons reported per cart line.
const (
	ReasonProductNotFound   = "product_not_found"
	ReasonProductDeleted    = "product_deleted"
	ReasonProductNotListed  = "product_not_approved"
	ReasonVariantNotFound   = "variant_not_found"
	ReasonInvalidQuantity   = "invalid_quantity"
	ReasonInsufficientStock = catalog.ReasonInsufficientStock
)

// Line is a cart item resolved against live catalog records.
type Line struct {
	CartItemID     uuid.UUID
	ProductID      uuid.UUID
	VariantID      *uuid.UUID
	SellerID       uuid.UUID
	Title          string
	Quantity       int
	UnitPricePaise int64
	GSTRate        decimal.Decimal
	AvailableStock int
}

// LineTotalPaise is unit price times quantity.
func (l Line) LineTotalPaise() int64 {
	return l.UnitPricePaise * int64(l.Quantity)
}

// StockLine converts the line into a stock movement.
func (l Line) StockLine() catalog.StockLine {
	return catalog.StockLine{
		ItemID:    l.CartItemID,
		ProductID: l.ProductID,
		VariantID: l.VariantID,
		Quantity:  l.Quantity,
	}
}

// Snapshot is the checkout-time view of a buyer's cart. Lines keep cart order.
type Snapshot struct {
	BuyerID    uuid.UUID
	Lines      []Line
	Violations []catalog.Violation
}

// Valid reports whether the snapshot can be checked out.
func (s *Snapshot) Valid() bool {
	return s != nil && len(s.Violations) == 0
}

type cartReader interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
}

type catalogReader interface {
	ProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	VariantsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.ProductVariant, error)
}

// Service builds cart snapshots.
type Service interface {
	Snapshot(ctx context.Context, buyerID uuid.UUID) (*Snapshot, error)
}

type service struct {
	carts   cartReader
	catalog catalogReader
}

// NewService wires the cart snapshot service.
func NewService(carts cartReader, products catalogReader) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{carts: carts, catalog: products}, nil
}

// Snapshot resolves every cart line to its live product and variant. Prices
// come from the catalog; the cart's cached price is ignored.
func (s *service) Snapshot(ctx context.Context, buyerID uuid.UUID) (*Snapshot, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}

	items, err := s.carts.ListByUser(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}

	productIDs := make([]uuid.UUID, 0, len(items))
	variantIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
		if item.VariantID != nil {
			variantIDs = append(variantIDs, *item.VariantID)
		}
	}

	var (
		products map[uuid.UUID]models.Product
		variants map[uuid.UUID]models.ProductVariant
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = s.catalog.ProductsByIDs(gctx, productIDs)
		return err
	})
	g.Go(func() error {
		var err error
		variants, err = s.catalog.VariantsByIDs(gctx, variantIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load catalog records")
	}

	snap := &Snapshot{BuyerID: buyerID, Lines: make([]Line, 0, len(items))}
	for _, item := range items {
		line, reason := resolveLine(item, products, variants)
		if reason != "" {
			snap.Violations = append(snap.Violations, catalog.Violation{ItemID: item.ID, Reason: reason})
			continue
		}
		snap.Lines = append(snap.Lines, line)
	}
	return snap, nil
}

func resolveLine(item models.CartItem, products map[uuid.UUID]models.Product, variants map[uuid.UUID]models.ProductVariant) (Line, string) {
	if item.Quantity <= 0 {
		return Line{}, ReasonInvalidQuantity
	}
	product, ok := products[item.ProductID]
	if !ok {
		return Line{}, ReasonProductNotFound
	}
	if product.DeletedAt.Valid {
		return Line{}, ReasonProductDeleted
	}
	if product.Status != enums.ProductStatusApproved {
		return Line{}, ReasonProductNotListed
	}

	line := Line{
		CartItemID:     item.ID,
		ProductID:      product.ID,
		SellerID:       product.SellerID,
		Title:          product.Title,
		Quantity:       item.Quantity,
		UnitPricePaise: product.PricePaise,
		GSTRate:        product.GSTRate,
		AvailableStock: product.Stock,
	}

	if item.VariantID != nil {
		variant, ok := variants[*item.VariantID]
		if !ok || variant.DeletedAt.Valid || variant.ProductID != product.ID {
			return Line{}, ReasonVariantNotFound
		}
		variantID := variant.ID
		line.VariantID = &variantID
		line.Title = fmt.Sprintf("%s (%s)", product.Title, variant.Label)
		line.AvailableStock = variant.Stock
		if variant.PricePaise != nil {
			line.UnitPricePaise = *variant.PricePaise
		}
	}

	if line.AvailableStock < item.Quantity {
		return Line{}, ReasonInsufficientStock
	}
	return line, ""
}
