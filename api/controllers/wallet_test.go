package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haatbazaar/marketplace-backend/internal/wallet"
	"github.com/haatbazaar/marketplace-backend/pkg/db/models"
	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	"github.com/haatbazaar/marketplace-backend/pkg/payments"
)

type stubWalletService struct {
	wallet.Service
	balance   *wallet.Balance
	lastInput wallet.ListTransactionsInput
}

func (s *stubWalletService) GetBalance(ctx context.Context, userID uuid.UUID) (*wallet.Balance, error) {
	return s.balance, nil
}

func (s *stubWalletService) ListTransactions(ctx context.Context, input wallet.ListTransactionsInput) (*wallet.TransactionList, error) {
	s.lastInput = input
	return &wallet.TransactionList{Items: []models.WalletTransaction{{ID: uuid.New(), UserID: input.UserID, Pool: enums.WalletPoolBalance, Amount: -20}}}, nil
}

func TestGetWallet(t *testing.T) {
	userID := uuid.New()
	svc := &stubWalletService{balance: &wallet.Balance{UserID: userID, Balance: 120, RedeemedBalance: 30}}
	req := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil), userID, enums.ActorRoleBuyer)
	resp := httptest.NewRecorder()
	GetWallet(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var out wallet.Balance
	decodeData(t, resp.Body.Bytes(), &out)
	assert.Equal(t, int64(120), out.Balance)
	assert.Equal(t, int64(30), out.RedeemedBalance)
}

func TestListWalletTransactionsPoolFilter(t *testing.T) {
	userID := uuid.New()
	svc := &stubWalletService{}
	req := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/wallet/transactions?pool=redeemed_balance", nil), userID, enums.ActorRoleBuyer)
	resp := httptest.NewRecorder()
	ListWalletTransactions(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.NotNil(t, svc.lastInput.Pool)
	assert.Equal(t, enums.WalletPoolRedeemed, *svc.lastInput.Pool)
	var out walletTransactionListResponse
	decodeData(t, resp.Body.Bytes(), &out)
	require.Len(t, out.Items, 1)
	assert.Equal(t, int64(-20), out.Items[0].Amount)
}

func TestListWalletTransactionsRejectsUnknownPool(t *testing.T) {
	req := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/wallet/transactions?pool=gold", nil), uuid.New(), enums.ActorRoleBuyer)
	resp := httptest.NewRecorder()
	ListWalletTransactions(&stubWalletService{}, testLogger())(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

type stubGateway struct {
	input payments.CreateOrderInput
}

func (g *stubGateway) CreateOrder(ctx context.Context, input payments.CreateOrderInput) (*payments.GatewayOrder, error) {
	g.input = input
	return &payments.GatewayOrder{ID: "pi_123", AmountPaise: input.AmountPaise, Currency: "inr"}, nil
}

func (g *stubGateway) VerifyPayment(ctx context.Context, input payments.VerifyInput) (*payments.Verification, error) {
	return &payments.Verification{Success: true}, nil
}

func TestCreatePaymentOrder(t *testing.T) {
	userID := uuid.New()
	gateway := &stubGateway{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/orders", strings.NewReader(`{"amount_paise":45000}`))
	req = withActor(req, userID, enums.ActorRoleBuyer)
	resp := httptest.NewRecorder()
	CreatePaymentOrder(gateway, testLogger())(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, int64(45000), gateway.input.AmountPaise)
	assert.NotEmpty(t, gateway.input.ReceiptID)
	assert.Equal(t, userID.String(), gateway.input.Notes["buyer_id"])
}

func TestCreatePaymentOrderRejectsZeroAmount(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/orders", strings.NewReader(`{"amount_paise":0}`))
	req = withActor(req, uuid.New(), enums.ActorRoleBuyer)
	resp := httptest.NewRecorder()
	CreatePaymentOrder(&stubGateway{}, testLogger())(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
