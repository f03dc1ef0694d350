package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/haatbazaar/marketplace-backend/internal/address"
	"github.com/haatbazaar/marketplace-backend/internal/cart"
	"github.com/haatbazaar/marketplace-backend/internal/catalog"
	"github.com/haatbazaar/marketplace-backend/internal/coupons"
	"github.com/haatbazaar/marketplace-backend/internal/orders"
	"github.com/haatbazaar/marketplace-backend/internal/testdb"
	"github.com/haatbazaar/marketplace-backend/internal/wallet"
	"github.com/haatbazaar/marketplace-backend/pkg/config"
	"github.com/haatbazaar/marketplace-backend/pkg/db"
	"github.com/haatbazaar/marketplace-backend/pkg/db/models"
	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	pkgerrors "github.com/haatbazaar/marketplace-backend/pkg/errors"
	"github.com/haatbazaar/marketplace-backend/pkg/outbox"
	"github.com/haatbazaar/marketplace-backend/pkg/payments"
	"github.com/haatbazaar/marketplace-backend/pkg/types"
)

type stubGateway struct {
	verification *payments.Verification
	err          error
	calls        int
}

func (s *stubGateway) CreateOrder(ctx context.Context, input payments.CreateOrderInput) (*payments.GatewayOrder, error) {
	return &payments.GatewayOrder{ID: "pi_test", AmountPaise: input.AmountPaise, Currency: "inr"}, nil
}

func (s *stubGateway) VerifyPayment(ctx context.Context, input payments.VerifyInput) (*payments.Verification, error) {
	s.calls++
	return s.verification, s.err
}

type harness struct {
	conn    *gorm.DB
	svc     Service
	wallet  wallet.Service
	gateway *stubGateway
	buyer   uuid.UUID
	added   int
}

func newHarness(t *testing.T, delivery DeliveryPolicy) *harness {
	t.Helper()
	conn := testdb.Open(t)
	tx := db.FromGorm(conn)

	catalogRepo := catalog.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	snapshots, err := cart.NewService(cartRepo, catalogRepo)
	require.NoError(t, err)
	inventory, err := catalog.NewInventory(catalogRepo)
	require.NoError(t, err)
	addresses, err := address.NewService(address.NewRepository(conn))
	require.NoError(t, err)
	couponSvc, err := coupons.NewService(coupons.NewRepository(conn))
	require.NoError(t, err)
	walletSvc, err := wallet.NewService(wallet.NewRepository(conn), tx, config.WalletConfig{}, nil, nil)
	require.NoError(t, err)
	gateway := &stubGateway{}

	svc, err := NewService(Dependencies{
		Tx:        tx,
		Snapshots: snapshots,
		Carts:     cartRepo,
		Addresses: addresses,
		Coupons:   couponSvc,
		Wallet:    walletSvc,
		Inventory: inventory,
		Orders:    orders.NewRepository(conn),
		Outbox:    outbox.NewService(outbox.NewRepository(conn), nil),
		Gateway:   gateway,
		Delivery:  delivery,
	})
	require.NoError(t, err)

	return &harness{conn: conn, svc: svc, wallet: walletSvc, gateway: gateway, buyer: uuid.New()}
}

func (h *harness) product(t *testing.T, sellerID uuid.UUID, pricePaise int64, stock int) models.Product {
	t.Helper()
	product := models.Product{
		ID:         uuid.New(),
		SellerID:   sellerID,
		Title:      "Handloom saree",
		PricePaise: pricePaise,
		GSTRate:    decimal.NewFromInt(5),
		Stock:      stock,
		Status:     enums.ProductStatusApproved,
	}
	require.NoError(t, h.conn.Create(&product).Error)
	return product
}

func (h *harness) addToCart(t *testing.T, product models.Product, qty int) {
	t.Helper()
	h.added++
	require.NoError(t, cart.NewRepository(h.conn).AddItem(context.Background(), &models.CartItem{
		ID:               uuid.New(),
		UserID:           h.buyer,
		ProductID:        product.ID,
		Quantity:         qty,
		CachedPricePaise: 1,
		CreatedAt:        time.Date(2026, 1, 1, 0, h.added, 0, 0, time.UTC),
	}))
}

func (h *harness) fund(t *testing.T, pool enums.WalletPool, coins int64) {
	t.Helper()
	_, err := h.wallet.Credit(context.Background(), wallet.ApplyInput{
		UserID: h.buyer, Pool: pool, Amount: coins, Reason: enums.WalletReasonAdjustment,
	})
	require.NoError(t, err)
}

func (h *harness) count(t *testing.T, model any, where ...any) int64 {
	t.Helper()
	var n int64
	query := h.conn.Model(model)
	if len(where) > 0 {
		query = query.Where(where[0], where[1:]...)
	}
	require.NoError(t, query.Count(&n).Error)
	return n
}

func (h *harness) codInput() Input {
	return Input{
		BuyerID:       h.buyer,
		PaymentMethod: enums.PaymentMethodCOD,
		Shipping: &types.Address{
			Name: "Ravi", Phone: "9876543210", Line1: "4 Park Street",
			City: "Kolkata", State: "West Bengal", PostalCode: "700016",
		},
	}
}

func TestExecuteSplitsMultiSellerCart(t *testing.T) {
	h := newHarness(t, nil)
	sellerA, sellerB := uuid.New(), uuid.New()
	a := h.product(t, sellerA, 50000, 10)
	b := h.product(t, sellerB, 30000, 10)
	h.addToCart(t, a, 1)
	h.addToCart(t, b, 2)

	order, err := h.svc.Execute(context.Background(), h.codInput())
	require.NoError(t, err)

	assert.Equal(t, int64(110000), order.TotalPaise)
	assert.Equal(t, int64(110000), order.SubtotalPaise)
	assert.True(t, order.MultiSeller)
	require.Len(t, order.SubOrders, 2)
	assert.Equal(t, sellerA, order.SubOrders[0].SellerID)
	assert.Equal(t, int64(50000), order.SubOrders[0].SubtotalPaise)
	assert.Equal(t, sellerB, order.SubOrders[1].SellerID)
	assert.Equal(t, int64(60000), order.SubOrders[1].SubtotalPaise)

	stored, err := orders.NewRepository(h.conn).FindOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	sellerBySub := map[uuid.UUID]uuid.UUID{}
	for _, sub := range stored.SubOrders {
		sellerBySub[sub.ID] = sub.SellerID
	}
	var itemsTotal int64
	for _, item := range stored.Items {
		assert.Equal(t, sellerBySub[item.SubOrderID], item.SellerID)
		itemsTotal += item.UnitPricePaise * int64(item.Quantity)
	}
	assert.Equal(t, int64(110000), itemsTotal)

	assert.Equal(t, int64(0), h.count(t, &models.CartItem{}, "user_id = ?", h.buyer))
	var stockA models.Product
	require.NoError(t, h.conn.First(&stockA, "id = ?", a.ID).Error)
	assert.Equal(t, 9, stockA.Stock)
	assert.Equal(t, int64(1), h.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventOrderPlaced))
	assert.Equal(t, int64(0), h.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventWalletDebitRequested))
}

func TestExecuteRejectsRedeemAboveRedeemedBalance(t *testing.T) {
	h := newHarness(t, nil)
	p := h.product(t, uuid.New(), 500000, 10)
	h.addToCart(t, p, 1)
	h.fund(t, enums.WalletPoolRedeemed, 30)
	h.fund(t, enums.WalletPoolBalance, 500)

	input := h.codInput()
	input.Discounts = Discounts{RedeemCoins: 50}
	_, err := h.svc.Execute(context.Background(), input)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance), "got %v", err)

	assert.Equal(t, int64(0), h.count(t, &models.Order{}))
	assert.Equal(t, int64(0), h.count(t, &models.OutboxEvent{}))
	var stock models.Product
	require.NoError(t, h.conn.First(&stock, "id = ?", p.ID).Error)
	assert.Equal(t, 10, stock.Stock)
}

func TestExecuteRejectsExcessiveDiscount(t *testing.T) {
	h := newHarness(t, nil)
	p := h.product(t, uuid.New(), 1000, 10)
	h.addToCart(t, p, 1)
	h.fund(t, enums.WalletPoolBalance, 100)

	input := h.codInput()
	input.Discounts = Discounts{WalletCoins: 11}
	_, err := h.svc.Execute(context.Background(), input)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeExcessiveDiscount), "got %v", err)
	assert.Equal(t, int64(0), h.count(t, &models.Order{}))
}

func TestExecuteDebitsWalletAfterCommitExactlyOnce(t *testing.T) {
	h := newHarness(t, nil)
	p := h.product(t, uuid.New(), 110000, 10)
	h.addToCart(t, p, 1)
	h.fund(t, enums.WalletPoolBalance, 100)

	input := h.codInput()
	input.Discounts = Discounts{WalletCoins: 40}
	order, err := h.svc.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, int64(110000-4000), order.TotalPaise)
	assert.Equal(t, int64(40), order.WalletCoinsUsed)

	balance, err := h.wallet.GetBalance(context.Background(), h.buyer)
	require.NoError(t, err)
	assert.Equal(t, int64(60), balance.Balance)

	orderID := order.ID
	replay, err := h.wallet.Redeem(context.Background(), wallet.ApplyInput{
		UserID:         h.buyer,
		Pool:           enums.WalletPoolBalance,
		Amount:         40,
		Reason:         enums.WalletReasonOrderDebit,
		OrderID:        &orderID,
		IdempotencyKey: wallet.DebitKey(enums.WalletPoolBalance, order.ID),
	})
	require.NoError(t, err)
	assert.False(t, replay.Applied)
	assert.Equal(t, int64(1), h.count(t, &models.WalletTransaction{}, "order_id = ? AND reason = ?", order.ID, enums.WalletReasonOrderDebit))
	assert.Equal(t, int64(1), h.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventWalletDebitRequested))
}

func TestExecuteRejectsEmptyCart(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.svc.Execute(context.Background(), h.codInput())
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeEmptyCart), "got %v", err)
}

func TestExecuteAbortsOnStockViolation(t *testing.T) {
	h := newHarness(t, nil)
	ok := h.product(t, uuid.New(), 1000, 10)
	short := h.product(t, uuid.New(), 1000, 1)
	h.addToCart(t, ok, 1)
	h.addToCart(t, short, 3)

	_, err := h.svc.Execute(context.Background(), h.codInput())
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStockViolation), "got %v", err)
	violations, isList := pkgerrors.As(err).Details().([]catalog.Violation)
	require.True(t, isList)
	require.Len(t, violations, 1)
	assert.Equal(t, catalog.ReasonInsufficientStock, violations[0].Reason)

	assert.Equal(t, int64(0), h.count(t, &models.Order{}))
	assert.Equal(t, int64(2), h.count(t, &models.CartItem{}, "user_id = ?", h.buyer))
}

func TestExecuteRequiresShipping(t *testing.T) {
	h := newHarness(t, nil)
	input := h.codInput()
	input.Shipping = nil
	_, err := h.svc.Execute(context.Background(), input)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
}

func TestExecuteOnlinePayment(t *testing.T) {
	proof := &PaymentProof{GatewayOrderID: "pi_1", PaymentID: "pi_1", Signature: "secret"}

	t.Run("amount mismatch", func(t *testing.T) {
		h := newHarness(t, nil)
		h.addToCart(t, h.product(t, uuid.New(), 50000, 5), 1)
		h.gateway.verification = &payments.Verification{Success: true, AmountPaise: 100}

		input := h.codInput()
		input.PaymentMethod = enums.PaymentMethodOnline
		input.Payment = proof
		_, err := h.svc.Execute(context.Background(), input)
		require.True(t, pkgerrors.HasCode(err, pkgerrors.CodePaymentVerification), "got %v", err)
		assert.Equal(t, int64(0), h.count(t, &models.Order{}))
	})

	t.Run("gateway error", func(t *testing.T) {
		h := newHarness(t, nil)
		h.addToCart(t, h.product(t, uuid.New(), 50000, 5), 1)
		h.gateway.err = errors.New("timeout")

		input := h.codInput()
		input.PaymentMethod = enums.PaymentMethodOnline
		input.Payment = proof
		_, err := h.svc.Execute(context.Background(), input)
		require.True(t, pkgerrors.HasCode(err, pkgerrors.CodePaymentVerification), "got %v", err)
	})

	t.Run("verified", func(t *testing.T) {
		h := newHarness(t, nil)
		h.addToCart(t, h.product(t, uuid.New(), 50000, 5), 1)
		h.gateway.verification = &payments.Verification{Success: true, AmountPaise: 50000, Currency: "inr"}

		input := h.codInput()
		input.PaymentMethod = enums.PaymentMethodOnline
		input.Payment = proof
		order, err := h.svc.Execute(context.Background(), input)
		require.NoError(t, err)
		require.NotNil(t, order.PaymentReference)
		assert.Equal(t, "pi_1", *order.PaymentReference)
		assert.Equal(t, 1, h.gateway.calls)
	})

	t.Run("missing proof", func(t *testing.T) {
		h := newHarness(t, nil)
		input := h.codInput()
		input.PaymentMethod = enums.PaymentMethodOnline
		_, err := h.svc.Execute(context.Background(), input)
		require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
		assert.Equal(t, 0, h.gateway.calls)
	})
}

func TestExecuteAppliesAndConsumesCoupon(t *testing.T) {
	h := newHarness(t, nil)
	h.addToCart(t, h.product(t, uuid.New(), 50000, 5), 1)
	require.NoError(t, coupons.NewRepository(h.conn).Create(context.Background(), &models.Coupon{
		ID:     uuid.New(),
		Code:   "DIWALI",
		Kind:   enums.CouponKindFlat,
		Value:  5000,
		Active: true,
	}))

	input := h.codInput()
	input.CouponCode = "diwali"
	order, err := h.svc.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), order.CouponDiscountPaise)
	assert.Equal(t, int64(45000), order.TotalPaise)

	var coupon models.Coupon
	require.NoError(t, h.conn.First(&coupon, "code = ?", "DIWALI").Error)
	assert.Equal(t, 1, coupon.UsedCount)
}

func TestExecuteChargesConfiguredDelivery(t *testing.T) {
	h := newHarness(t, FlatDelivery{FeePaise: 4000, FreeAbovePaise: 100000})
	h.addToCart(t, h.product(t, uuid.New(), 50000, 5), 1)
	h.addToCart(t, h.product(t, uuid.New(), 120000, 5), 1)

	order, err := h.svc.Execute(context.Background(), h.codInput())
	require.NoError(t, err)
	assert.Equal(t, int64(4000), order.DeliveryChargePaise)
	assert.Equal(t, int64(4000), order.SubOrders[0].DeliveryChargePaise)
	assert.Equal(t, int64(0), order.SubOrders[1].DeliveryChargePaise)
	assert.Equal(t, int64(174000), order.TotalPaise)
}

func TestOrderTotalInvariant(t *testing.T) {
	h := newHarness(t, FlatDelivery{FeePaise: 2500})
	h.fund(t, enums.WalletPoolBalance, 30)
	h.fund(t, enums.WalletPoolRedeemed, 20)
	h.fund(t, enums.WalletPoolReward, 10)
	h.addToCart(t, h.product(t, uuid.New(), 12345, 5), 2)
	h.addToCart(t, h.product(t, uuid.New(), 999, 5), 3)

	input := h.codInput()
	input.Discounts = Discounts{WalletCoins: 30, RedeemCoins: 20, RewardPoints: 10}
	order, err := h.svc.Execute(context.Background(), input)
	require.NoError(t, err)

	var subtotal, delivery int64
	for _, sub := range order.SubOrders {
		subtotal += sub.SubtotalPaise
		delivery += sub.DeliveryChargePaise
	}
	discounts := (order.WalletCoinsUsed + order.RedeemCoinsUsed + order.RewardPointsUsed) * wallet.CoinValuePaise
	assert.Equal(t, subtotal+delivery-discounts-order.CouponDiscountPaise, order.TotalPaise)
	assert.GreaterOrEqual(t, order.TotalPaise, int64(0))

	balance, err := h.wallet.GetBalance(context.Background(), h.buyer)
	require.NoError(t, err)
	assert.Zero(t, balance.Balance)
	assert.Zero(t, balance.RedeemedBalance)
	assert.Zero(t, balance.RewardPoints)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(Dependencies{})
	require.Error(t, err)
}
