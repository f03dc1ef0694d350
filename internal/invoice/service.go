// Package invoice derives GST-annotated invoice data for an order, one
// section per seller. Rendering the document is left to callers.
package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/haatbazaar/marketplace-backend/internal/orders"
	"github.com/haatbazaar/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/haatbazaar/marketplace-backend/pkg/errors"
	"github.com/haatbazaar/marketplace-backend/pkg/logger"
	"github.com/haatbazaar/marketplace-backend/pkg/tax"
)

// Line is one purchased item with its tax decomposition.
type Line struct {
	ItemID    uuid.UUID       `json:"item_id"`
	ProductID uuid.UUID       `json:"product_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	GSTRate   decimal.Decimal `json:"gst_rate"`
	Tax       tax.LineTax     `json:"tax"`
}

// SellerSection groups the lines sold by one seller under one sub-order.
type SellerSection struct {
	SubOrderID     uuid.UUID                         `json:"sub_order_id"`
	SellerID       uuid.UUID                         `json:"seller_id"`
	BusinessName   string                            `json:"business_name"`
	GSTIN          *string                           `json:"gstin,omitempty"`
	SellerState    string                            `json:"seller_state"`
	InterState     bool                              `json:"inter_state"`
	Lines          []Line                            `json:"lines"`
	TaxableValue   decimal.Decimal                   `json:"taxable_value"`
	TaxAmount      decimal.Decimal                   `json:"tax_amount"`
	Components     map[tax.Component]decimal.Decimal `json:"components"`
	DeliveryCharge decimal.Decimal                   `json:"delivery_charge"`
	Total          decimal.Decimal                   `json:"total"`
}

// Invoice is the tax view of an order.
type Invoice struct {
	OrderID        uuid.UUID       `json:"order_id"`
	BuyerID        uuid.UUID       `json:"buyer_id"`
	PlacedAt       time.Time       `json:"placed_at"`
	BuyerName      string          `json:"buyer_name"`
	BuyerState     string          `json:"buyer_state"`
	Sellers        []SellerSection `json:"sellers"`
	TaxableValue   decimal.Decimal `json:"taxable_value"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Discounts      decimal.Decimal `json:"discounts"`
	DeliveryCharge decimal.Decimal `json:"delivery_charge"`
	Payable        decimal.Decimal `json:"payable"`
}

type orderReader interface {
	GetOrder(ctx context.Context, orderID uuid.UUID, actor orders.Actor) (*models.Order, error)
}

type sellerDirectory interface {
	SellerProfiles(ctx context.Context, sellerIDs []uuid.UUID) (map[uuid.UUID]models.SellerProfile, error)
}

// Service computes invoices.
type Service interface {
	ComputeInvoice(ctx context.Context, orderID uuid.UUID, actor orders.Actor) (*Invoice, error)
}

type service struct {
	orders  orderReader
	sellers sellerDirectory
	logg    *logger.Logger
}

func NewService(orderSvc orderReader, sellers sellerDirectory, logg *logger.Logger) (Service, error) {
	if orderSvc == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if sellers == nil {
		return nil, fmt.Errorf("seller directory required")
	}
	return &service{orders: orderSvc, sellers: sellers, logg: logg}, nil
}

// ComputeInvoice loads the order as the actor may see it and decomposes every
// line. Sellers only receive their own sections.
func (s *service) ComputeInvoice(ctx context.Context, orderID uuid.UUID, actor orders.Actor) (*Invoice, error) {
	order, err := s.orders.GetOrder(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}

	sellerIDs := make([]uuid.UUID, 0, len(order.SubOrders))
	for _, sub := range order.SubOrders {
		sellerIDs = append(sellerIDs, sub.SellerID)
	}
	profiles, err := s.sellers.SellerProfiles(ctx, sellerIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller profiles")
	}

	inv := Build(order, profiles)
	for _, section := range inv.Sellers {
		if section.SellerState == "" && s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{"order_id": order.ID.String(), "seller_id": section.SellerID.String()})
			s.logg.Warn(logCtx, "seller state missing, invoicing as inter-state")
		}
	}
	return inv, nil
}

// Build assembles the invoice from a loaded order. Profiles missing from the
// map leave the seller state empty, which invoices as inter-state.
func Build(order *models.Order, profiles map[uuid.UUID]models.SellerProfile) *Invoice {
	buyerState := order.ShippingAddress.State
	inv := &Invoice{
		OrderID:        order.ID,
		BuyerID:        order.BuyerID,
		PlacedAt:       order.PlacedAt,
		BuyerName:      order.ShippingAddress.Name,
		BuyerState:     buyerState,
		Sellers:        make([]SellerSection, 0, len(order.SubOrders)),
		TaxableValue:   decimal.Zero,
		TaxAmount:      decimal.Zero,
		DeliveryCharge: decimal.Zero,
	}

	for _, sub := range order.SubOrders {
		profile := profiles[sub.SellerID]
		section := SellerSection{
			SubOrderID:     sub.ID,
			SellerID:       sub.SellerID,
			BusinessName:   profile.BusinessName,
			GSTIN:          profile.GSTIN,
			SellerState:    profile.State,
			InterState:     !tax.SameState(buyerState, profile.State),
			Lines:          make([]Line, 0, len(sub.Items)),
			TaxableValue:   decimal.Zero,
			TaxAmount:      decimal.Zero,
			Components:     map[tax.Component]decimal.Decimal{},
			DeliveryCharge: tax.FromPaise(sub.DeliveryChargePaise),
		}
		for _, item := range itemsFor(order, sub) {
			unit := tax.FromPaise(item.UnitPricePaise)
			lineTax := tax.ComputeLineTax(unit, item.Quantity, item.GSTRate, buyerState, profile.State)
			section.Lines = append(section.Lines, Line{
				ItemID:    item.ID,
				ProductID: item.ProductID,
				Title:     item.Title,
				Quantity:  item.Quantity,
				UnitPrice: unit,
				GSTRate:   item.GSTRate,
				Tax:       lineTax,
			})
			section.TaxableValue = section.TaxableValue.Add(lineTax.TaxableValue)
			section.TaxAmount = section.TaxAmount.Add(lineTax.TaxAmount)
			for _, head := range lineTax.Lines {
				section.Components[head.Component] = section.Components[head.Component].Add(head.Amount)
			}
		}
		section.Total = section.TaxableValue.Add(section.TaxAmount).Add(section.DeliveryCharge)

		inv.TaxableValue = inv.TaxableValue.Add(section.TaxableValue)
		inv.TaxAmount = inv.TaxAmount.Add(section.TaxAmount)
		inv.DeliveryCharge = inv.DeliveryCharge.Add(section.DeliveryCharge)
		inv.Sellers = append(inv.Sellers, section)
	}

	discount, payable := visibleTotals(order)
	inv.Discounts = tax.FromPaise(discount)
	inv.Payable = tax.FromPaise(payable)
	return inv
}

// visibleTotals returns the discount and payable amount, in paise, of the
// sub-orders present on the order. A seller-scoped order carries only that
// seller's sub-orders, so it gets the floored proportional share of the
// order discount.
func visibleTotals(order *models.Order) (int64, int64) {
	discount := order.SubtotalPaise + order.DeliveryChargePaise - order.TotalPaise
	var subtotal, delivery int64
	for _, sub := range order.SubOrders {
		subtotal += sub.SubtotalPaise
		delivery += sub.DeliveryChargePaise
	}
	if subtotal >= order.SubtotalPaise {
		return discount, order.TotalPaise
	}
	share := orders.ProportionalShare(discount, subtotal, order.SubtotalPaise)
	return share, subtotal + delivery - share
}

// itemsFor prefers the preloaded sub-order items and falls back to filtering
// the order-level items.
func itemsFor(order *models.Order, sub models.SubOrder) []models.OrderItem {
	if len(sub.Items) > 0 {
		return sub.Items
	}
	var out []models.OrderItem
	for _, item := range order.Items {
		if item.SubOrderID == sub.ID {
			out = append(out, item)
		}
	}
	return out
}
