package enums

import "slices"

// CouponKind selects how a coupon value is interpreted.
type CouponKind string

const (
	CouponKindFlat    CouponKind = "flat"
	CouponKindPercent CouponKind = "percent"
)

var validCouponKinds = []CouponKind{
	CouponKindFlat,
	CouponKindPercent,
}

// IsValid reports whether the value is a known CouponKind.
func (k CouponKind) IsValid() bool {
	return slices.Contains(validCouponKinds, k)
}

// ParseCouponKind converts raw input into a CouponKind.
func ParseCouponKind(value string) (CouponKind, error) {
	return parse(validCouponKinds, value, "coupon kind")
}
