package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haatbazaar/marketplace-backend/internal/address"
	"github.com/haatbazaar/marketplace-backend/internal/cart"
	"github.com/haatbazaar/marketplace-backend/internal/catalog"
	"github.com/haatbazaar/marketplace-backend/internal/coupons"
	"github.com/haatbazaar/marketplace-backend/internal/orders"
	"github.com/haatbazaar/marketplace-backend/internal/wallet"
	"github.com/haatbazaar/marketplace-backend/pkg/db/models"
	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	pkgerrors "github.com/haatbazaar/marketplace-backend/pkg/errors"
	"github.com/haatbazaar/marketplace-backend/pkg/logger"
	"github.com/haatbazaar/marketplace-backend/pkg/metrics"
	"github.com/haatbazaar/marketplace-backend/pkg/outbox"
	"github.com/haatbazaar/marketplace-backend/pkg/outbox/payloads"
	"github.com/haatbazaar/marketplace-backend/pkg/payments"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type snapshotter interface {
	Snapshot(ctx context.Context, buyerID uuid.UUID) (*cart.Snapshot, error)
}

type cartClearer interface {
	ClearTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

type shippingResolver interface {
	ResolveShipping(ctx context.Context, req address.ShippingRequest) (*address.Shipping, error)
}

type couponResolver interface {
	Resolve(ctx context.Context, code string, subtotalPaise int64) (*coupons.Quote, error)
	Consume(ctx context.Context, tx *gorm.DB, quote *coupons.Quote) error
}

type walletLedger interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*wallet.Balance, error)
	Redeem(ctx context.Context, input wallet.ApplyInput) (*wallet.Result, error)
}

type stockReserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, lines []catalog.StockLine) error
}

// Service places orders from a buyer's cart.
type Service interface {
	Execute(ctx context.Context, input Input) (*models.Order, error)
}

// Dependencies wires the collaborators of the checkout coordinator. Gateway
// may be nil when online payments are disabled; Delivery defaults to free.
type Dependencies struct {
	Tx        txRunner
	Snapshots snapshotter
	Carts     cartClearer
	Addresses shippingResolver
	Coupons   couponResolver
	Wallet    walletLedger
	Inventory stockReserver
	Orders    orders.Repository
	Outbox    outboxPublisher
	Gateway   payments.Gateway
	Delivery  DeliveryPolicy
	Metrics   *metrics.SettlementMetrics
	Logger    *logger.Logger
}

type service struct {
	tx        txRunner
	snapshots snapshotter
	carts     cartClearer
	addresses shippingResolver
	coupons   couponResolver
	wallet    walletLedger
	inventory stockReserver
	orders    orders.Repository
	outbox    outboxPublisher
	gateway   payments.Gateway
	delivery  DeliveryPolicy
	metrics   *metrics.SettlementMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the checkout coordinator.
func NewService(deps Dependencies) (Service, error) {
	if deps.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if deps.Snapshots == nil {
		return nil, fmt.Errorf("cart snapshot service required")
	}
	if deps.Carts == nil {
		return nil, fmt.Errorf("cart clearer required")
	}
	if deps.Addresses == nil {
		return nil, fmt.Errorf("address service required")
	}
	if deps.Coupons == nil {
		return nil, fmt.Errorf("coupon service required")
	}
	if deps.Wallet == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if deps.Inventory == nil {
		return nil, fmt.Errorf("inventory required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	delivery := deps.Delivery
	if delivery == nil {
		delivery = FreeDelivery{}
	}
	return &service{
		tx:        deps.Tx,
		snapshots: deps.Snapshots,
		carts:     deps.Carts,
		addresses: deps.Addresses,
		coupons:   deps.Coupons,
		wallet:    deps.Wallet,
		inventory: deps.Inventory,
		orders:    deps.Orders,
		outbox:    deps.Outbox,
		gateway:   deps.Gateway,
		delivery:  delivery,
		metrics:   deps.Metrics,
		logg:      deps.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Execute validates the cart, discounts and payment, persists the order with
// its sub-orders in one transaction, then debits the wallet. Nothing is
// written when a check fails. A failed debit after commit never undoes the
// order; the queued wallet_debit_requested event retries it.
func (s *service) Execute(ctx context.Context, input Input) (*models.Order, error) {
	order, err := s.execute(ctx, input)
	if err != nil {
		s.metrics.IncCheckout(string(codeOf(err)))
		return nil, err
	}
	s.metrics.IncCheckout("placed")
	return order, nil
}

func (s *service) execute(ctx context.Context, input Input) (*models.Order, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	shipping, err := s.addresses.ResolveShipping(ctx, address.ShippingRequest{
		UserID:    input.BuyerID,
		AddressID: input.AddressID,
		Inline:    input.Shipping,
	})
	if err != nil {
		return nil, err
	}

	snapshot, err := s.snapshots.Snapshot(ctx, input.BuyerID)
	if err != nil {
		return nil, err
	}
	split, err := SplitSnapshot(snapshot, s.delivery)
	if err != nil {
		return nil, err
	}

	var quote *coupons.Quote
	if code := strings.TrimSpace(input.CouponCode); code != "" {
		quote, err = s.coupons.Resolve(ctx, code, split.SubtotalPaise)
		if err != nil {
			return nil, err
		}
	}
	var couponPaise int64
	if quote != nil {
		couponPaise = quote.DiscountPaise
	}

	var balance *wallet.Balance
	if !input.Discounts.IsZero() {
		balance, err = s.wallet.GetBalance(ctx, input.BuyerID)
		if err != nil {
			return nil, err
		}
	}
	if err := ValidateDiscounts(balance, input.Discounts, couponPaise, split.SubtotalPaise, split.DeliveryChargePaise); err != nil {
		return nil, err
	}
	total := OrderTotal(split.SubtotalPaise, split.DeliveryChargePaise, input.Discounts, couponPaise)

	if input.PaymentMethod == enums.PaymentMethodOnline {
		if err := s.verifyPayment(ctx, input.Payment, total); err != nil {
			return nil, err
		}
	}

	order := buildOrder(input, shipping, split, quote, total, s.now())
	debits := walletDebits(input.Discounts)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.inventory.Reserve(ctx, tx, stockLines(split)); err != nil {
			return err
		}
		if quote != nil {
			if err := s.coupons.Consume(ctx, tx, quote); err != nil {
				return err
			}
		}
		if err := s.orders.WithTx(tx).CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := s.carts.ClearTx(ctx, tx, input.BuyerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		if err := s.emitOrderPlaced(ctx, tx, order); err != nil {
			return err
		}
		if len(debits) > 0 {
			if err := s.emitWalletDebit(ctx, tx, order, debits); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if input.PaymentMethod == enums.PaymentMethodOnline && s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"alert":            true,
				"payment_id":       input.Payment.PaymentID,
				"gateway_order_id": input.Payment.GatewayOrderID,
			})
			s.logg.Error(logCtx, "verified payment without a persisted order", err)
		}
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"buyer_id":     order.BuyerID.String(),
			"total_paise":  order.TotalPaise,
			"sub_orders":   len(order.SubOrders),
			"multi_seller": order.MultiSeller,
		})
		s.logg.Info(logCtx, "order placed")
	}

	s.debitWallet(ctx, order, debits)
	return order, nil
}

func (s *service) verifyPayment(ctx context.Context, proof *PaymentProof, total int64) error {
	if s.gateway == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "online payments are not enabled")
	}
	if total <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "nothing to pay online; use cod")
	}
	verification, err := s.gateway.VerifyPayment(ctx, payments.VerifyInput{
		PaymentID:      proof.PaymentID,
		GatewayOrderID: proof.GatewayOrderID,
		Signature:      proof.Signature,
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodePaymentVerification, err, "verify payment")
	}
	if verification == nil || !verification.Success {
		return pkgerrors.New(pkgerrors.CodePaymentVerification, "payment not confirmed by gateway")
	}
	if verification.AmountPaise != total {
		return pkgerrors.New(pkgerrors.CodePaymentVerification, "paid amount does not match order total").
			WithDetails(map[string]any{
				"paid_paise":  verification.AmountPaise,
				"total_paise": total,
			})
	}
	return nil
}

// debitWallet runs after commit. Failures are alerted and left to the outbox
// retry, which reuses the same ledger keys.
func (s *service) debitWallet(ctx context.Context, order *models.Order, debits []payloads.WalletDebit) {
	for _, debit := range debits {
		orderID := order.ID
		_, err := s.wallet.Redeem(ctx, wallet.ApplyInput{
			UserID:         order.BuyerID,
			Pool:           debit.Pool,
			Amount:         debit.Amount,
			Reason:         enums.WalletReasonOrderDebit,
			OrderID:        &orderID,
			IdempotencyKey: wallet.DebitKey(debit.Pool, order.ID),
		})
		if err == nil {
			continue
		}
		s.metrics.IncPostCommitFailure("wallet_debit")
		if s.logg != nil {
			logCtx := s.logg.WithOrderID(ctx, order.ID.String())
			logCtx = s.logg.WithFields(logCtx, map[string]any{
				"alert":  true,
				"pool":   debit.Pool,
				"amount": debit.Amount,
			})
			s.logg.Error(logCtx, "post-commit wallet debit failed", err)
		}
	}
}

func (s *service) emitOrderPlaced(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	subIDs := make([]uuid.UUID, 0, len(order.SubOrders))
	sellerIDs := make([]uuid.UUID, 0, len(order.SubOrders))
	for _, sub := range order.SubOrders {
		subIDs = append(subIDs, sub.ID)
		sellerIDs = append(sellerIDs, sub.SellerID)
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: order.BuyerID, Role: enums.ActorRoleBuyer.String()},
		Data: payloads.OrderPlacedEvent{
			OrderID:       order.ID,
			BuyerID:       order.BuyerID,
			SubOrderIDs:   subIDs,
			SellerIDs:     sellerIDs,
			TotalPaise:    order.TotalPaise,
			PaymentMethod: order.PaymentMethod,
			MultiSeller:   order.MultiSeller,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order placed")
	}
	return nil
}

func (s *service) emitWalletDebit(ctx context.Context, tx *gorm.DB, order *models.Order, debits []payloads.WalletDebit) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventWalletDebitRequested,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: order.BuyerID, Role: enums.ActorRoleBuyer.String()},
		Data: payloads.WalletDebitRequestedEvent{
			OrderID: order.ID,
			BuyerID: order.BuyerID,
			Debits:  debits,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit wallet debit")
	}
	return nil
}

func buildOrder(input Input, shipping *address.Shipping, split *Split, quote *coupons.Quote, total int64, now time.Time) *models.Order {
	order := &models.Order{
		ID:                  uuid.New(),
		BuyerID:             input.BuyerID,
		Status:              enums.OrderStatusPending,
		SubtotalPaise:       split.SubtotalPaise,
		DeliveryChargePaise: split.DeliveryChargePaise,
		WalletCoinsUsed:     input.Discounts.WalletCoins,
		RedeemCoinsUsed:     input.Discounts.RedeemCoins,
		RewardPointsUsed:    input.Discounts.RewardPoints,
		TotalPaise:          total,
		PaymentMethod:       input.PaymentMethod,
		ShippingAddressID:   shipping.AddressID,
		ShippingAddress:     shipping.Address,
		MultiSeller:         split.MultiSeller,
		PlacedAt:            now,
	}
	if quote != nil {
		code := quote.Code
		order.CouponCode = &code
		order.CouponDiscountPaise = quote.DiscountPaise
	}
	if input.PaymentMethod == enums.PaymentMethodOnline && input.Payment != nil {
		paymentID := input.Payment.PaymentID
		gatewayOrderID := input.Payment.GatewayOrderID
		order.PaymentReference = &paymentID
		order.GatewayOrderID = &gatewayOrderID
	}

	position := 0
	for i, draft := range split.SubOrders {
		sub := models.SubOrder{
			ID:                  uuid.New(),
			OrderID:             order.ID,
			SellerID:            draft.SellerID,
			Position:            i,
			SubtotalPaise:       draft.SubtotalPaise,
			DeliveryChargePaise: draft.DeliveryChargePaise,
			Status:              enums.OrderStatusPending,
		}
		for _, line := range draft.Lines {
			item := models.OrderItem{
				ID:             uuid.New(),
				OrderID:        order.ID,
				SubOrderID:     sub.ID,
				ProductID:      line.ProductID,
				VariantID:      line.VariantID,
				SellerID:       line.SellerID,
				Position:       position,
				Title:          line.Title,
				Quantity:       line.Quantity,
				UnitPricePaise: line.UnitPricePaise,
				GSTRate:        line.GSTRate,
				LineTotalPaise: line.LineTotalPaise(),
			}
			position++
			sub.Items = append(sub.Items, item)
			order.Items = append(order.Items, item)
		}
		order.SubOrders = append(order.SubOrders, sub)
	}
	return order
}

func walletDebits(d Discounts) []payloads.WalletDebit {
	var out []payloads.WalletDebit
	for _, pool := range enums.WalletPools() {
		if coins := d.Coins(pool); coins > 0 {
			out = append(out, payloads.WalletDebit{Pool: pool, Amount: coins})
		}
	}
	return out
}

func stockLines(split *Split) []catalog.StockLine {
	var lines []catalog.StockLine
	for _, draft := range split.SubOrders {
		for _, line := range draft.Lines {
			lines = append(lines, line.StockLine())
		}
	}
	return lines
}

func codeOf(err error) pkgerrors.Code {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Code()
	}
	return pkgerrors.CodeInternal
}
