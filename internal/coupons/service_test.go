package coupons

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/haatbazaar/marketplace-backend/internal/testdb"
	"github.com/haatbazaar/marketplace-backend/pkg/db/models"
	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	pkgerrors "github.com/haatbazaar/marketplace-backend/pkg/errors"
)

func ptr[T any](v T) *T { return &v }

func TestDiscountFor(t *testing.T) {
	cases := []struct {
		name     string
		coupon   models.Coupon
		subtotal int64
		want     int64
	}{
		{"flat", models.Coupon{Kind: enums.CouponKindFlat, Value: 5000}, 20000, 5000},
		{"flat capped at subtotal", models.Coupon{Kind: enums.CouponKindFlat, Value: 5000}, 3000, 3000},
		{"percent floors paise", models.Coupon{Kind: enums.CouponKindPercent, Value: 15}, 9999, 1499},
		{"percent capped by max", models.Coupon{Kind: enums.CouponKindPercent, Value: 50, MaxDiscountPaise: ptr(int64(10000))}, 100000, 10000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DiscountFor(&tc.coupon, tc.subtotal))
		})
	}
}

func newTestService(t *testing.T) (Service, *Repository, *gorm.DB) {
	t.Helper()
	conn := testdb.Open(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo)
	require.NoError(t, err)
	return svc, repo, conn
}

func TestResolveIsCaseInsensitiveAndChecksRules(t *testing.T) {
	t.Parallel()
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Hour)

	require.NoError(t, repo.Create(ctx, &models.Coupon{Code: "diwali10", Kind: enums.CouponKindPercent, Value: 10, MinOrderPaise: 50000, Active: true}))
	require.NoError(t, repo.Create(ctx, &models.Coupon{Code: "OLD", Kind: enums.CouponKindFlat, Value: 100, Active: true, ExpiresAt: &past}))

	quote, err := svc.Resolve(ctx, " Diwali10 ", 60000)
	require.NoError(t, err)
	assert.Equal(t, "DIWALI10", quote.Code)
	assert.Equal(t, int64(6000), quote.DiscountPaise)

	_, err = svc.Resolve(ctx, "diwali10", 40000)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.Resolve(ctx, "old", 60000)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.Resolve(ctx, "missing", 60000)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestConsumeHonoursUsageLimit(t *testing.T) {
	t.Parallel()
	svc, repo, conn := newTestService(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Coupon{Code: "ONCE", Kind: enums.CouponKindFlat, Value: 100, Active: true, UsageLimit: ptr(1)}))
	quote, err := svc.Resolve(ctx, "once", 1000)
	require.NoError(t, err)

	require.NoError(t, svc.Consume(ctx, conn, quote))
	err = svc.Consume(ctx, conn, quote)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	stored, err := repo.FindByCode(ctx, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UsedCount)
}
