package checkout

import (
	"github.com/haatbazaar/marketplace-backend/internal/wallet"
	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	pkgerrors "github.com/haatbazaar/marketplace-backend/pkg/errors"
)

// Discounts are the coins a buyer asks to spend, per pool.
type Discounts struct {
	WalletCoins  int64
	RedeemCoins  int64
	RewardPoints int64
}

// Coins returns the requested amount for a pool.
func (d Discounts) Coins(pool enums.WalletPool) int64 {
	switch pool {
	case enums.WalletPoolBalance:
		return d.WalletCoins
	case enums.WalletPoolRedeemed:
		return d.RedeemCoins
	case enums.WalletPoolReward:
		return d.RewardPoints
	default:
		return 0
	}
}

// IsZero reports whether no coins are requested.
func (d Discounts) IsZero() bool {
	return d.WalletCoins == 0 && d.RedeemCoins == 0 && d.RewardPoints == 0
}

// ValuePaise converts every requested coin into paise.
func (d Discounts) ValuePaise() int64 {
	return (d.WalletCoins + d.RedeemCoins + d.RewardPoints) * wallet.CoinValuePaise
}

func (d Discounts) validate() error {
	for _, pool := range enums.WalletPools() {
		if d.Coins(pool) < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "coin amounts must not be negative").
				WithDetails(map[string]any{"pool": pool})
		}
	}
	return nil
}

// ValidateDiscounts checks every pool against its own balance, then checks
// that coins plus coupon do not exceed the goods and delivery value.
func ValidateDiscounts(balance *wallet.Balance, discounts Discounts, couponPaise, subtotalPaise, deliveryPaise int64) error {
	if err := discounts.validate(); err != nil {
		return err
	}
	for _, pool := range enums.WalletPools() {
		requested := discounts.Coins(pool)
		if requested == 0 {
			continue
		}
		var available int64
		if balance != nil {
			available = balance.Pool(pool)
		}
		if requested > available {
			return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "insufficient "+pool.String()).
				WithDetails(map[string]any{
					"pool":      pool,
					"requested": requested,
					"available": available,
				})
		}
	}
	claimed := discounts.ValuePaise() + couponPaise
	ceiling := subtotalPaise + deliveryPaise
	if claimed > ceiling {
		return pkgerrors.New(pkgerrors.CodeExcessiveDiscount, "discounts exceed order value").
			WithDetails(map[string]any{
				"discount_paise": claimed,
				"order_paise":    ceiling,
			})
	}
	return nil
}

// OrderTotal is subtotal plus delivery minus discounts, floored at zero.
func OrderTotal(subtotalPaise, deliveryPaise int64, discounts Discounts, couponPaise int64) int64 {
	total := subtotalPaise + deliveryPaise - discounts.ValuePaise() - couponPaise
	if total < 0 {
		return 0
	}
	return total
}
