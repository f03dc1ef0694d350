package enums

import "slices"

// WalletPool names one of the independently tracked coin balances of a wallet account.
type WalletPool string

const (
	WalletPoolBalance  WalletPool = "balance"
	WalletPoolRedeemed WalletPool = "redeemed_balance"
	WalletPoolReward   WalletPool = "reward_points"
)

var validWalletPools = []WalletPool{
	WalletPoolBalance,
	WalletPoolRedeemed,
	WalletPoolReward,
}

// WalletPools returns every pool in a stable order.
func WalletPools() []WalletPool {
	out := make([]WalletPool, len(validWalletPools))
	copy(out, validWalletPools)
	return out
}

func (p WalletPool) String() string {
	return string(p)
}

// IsValid reports whether the value is a known WalletPool.
func (p WalletPool) IsValid() bool {
	return slices.Contains(validWalletPools, p)
}

// ParseWalletPool converts raw input into a WalletPool.
func ParseWalletPool(value string) (WalletPool, error) {
	return parse(validWalletPools, value, "wallet pool")
}

// WalletReason is the reason code written on every wallet transaction.
type WalletReason string

const (
	WalletReasonOrderDebit          WalletReason = "order_debit"
	WalletReasonOrderRefund         WalletReason = "order_refund"
	WalletReasonFirstPurchaseReward WalletReason = "first_purchase_reward"
	WalletReasonLoyaltyRedemption   WalletReason = "loyalty_redemption"
	WalletReasonAdjustment          WalletReason = "adjustment"
)

var validWalletReasons = []WalletReason{
	WalletReasonOrderDebit,
	WalletReasonOrderRefund,
	WalletReasonFirstPurchaseReward,
	WalletReasonLoyaltyRedemption,
	WalletReasonAdjustment,
}

func (r WalletReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known WalletReason.
func (r WalletReason) IsValid() bool {
	return slices.Contains(validWalletReasons, r)
}

// ParseWalletReason converts raw input into a WalletReason.
func ParseWalletReason(value string) (WalletReason, error) {
	return parse(validWalletReasons, value, "wallet reason")
}
