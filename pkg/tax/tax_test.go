package tax

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeLineTaxIntraState(t *testing.T) {
	t.Parallel()

	got := ComputeLineTax(dec("118"), 1, dec("18"), "Maharashtra", "MH")

	assert.Equal(t, "118.00", got.TotalPrice.StringFixed(2))
	assert.Equal(t, "100.00", got.TaxableValue.StringFixed(2))
	assert.Equal(t, "18.00", got.TaxAmount.StringFixed(2))
	assert.False(t, got.InterState)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, ComponentCGST, got.Lines[0].Component)
	assert.Equal(t, "9.00", got.Lines[0].Amount.StringFixed(2))
	assert.True(t, got.Lines[0].Rate.Equal(dec("9")))
	assert.Equal(t, ComponentSGST, got.Lines[1].Component)
	assert.Equal(t, "9.00", got.Lines[1].Amount.StringFixed(2))
	assert.True(t, got.Lines[1].Rate.Equal(dec("9")))
}

func TestComputeLineTaxInterState(t *testing.T) {
	t.Parallel()

	got := ComputeLineTax(dec("118"), 1, dec("18"), "Karnataka", "Maharashtra")

	assert.True(t, got.InterState)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, ComponentIGST, got.Lines[0].Component)
	assert.True(t, got.Lines[0].Rate.Equal(dec("18")))
	assert.Equal(t, "18.00", got.Lines[0].Amount.StringFixed(2))
	assert.Equal(t, "100.00", got.TaxableValue.StringFixed(2))
}

func TestComputeLineTaxZeroRate(t *testing.T) {
	t.Parallel()

	got := ComputeLineTax(dec("250"), 2, decimal.Zero, "Goa", "Goa")

	assert.Equal(t, "500.00", got.TaxableValue.StringFixed(2))
	assert.True(t, got.TaxAmount.IsZero())
	assert.Empty(t, got.Lines)
}

func TestComputeLineTaxUnresolvableStateDefaultsToIGST(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct{ buyer, seller string }{
		{"", "Maharashtra"},
		{"Maharashtra", ""},
		{"Atlantis", "Atlantis"},
	} {
		got := ComputeLineTax(dec("118"), 1, dec("18"), tc.buyer, tc.seller)
		require.Len(t, got.Lines, 1, "buyer=%q seller=%q", tc.buyer, tc.seller)
		assert.Equal(t, ComponentIGST, got.Lines[0].Component)
	}
}

func TestComputeLineTaxSplitsOddPaise(t *testing.T) {
	t.Parallel()

	got := ComputeLineTax(dec("10.05"), 1, dec("5"), "Delhi", "New Delhi")

	require.Len(t, got.Lines, 2)
	sum := got.Lines[0].Amount.Add(got.Lines[1].Amount)
	assert.True(t, sum.Equal(got.TaxAmount), "components %s must add up to %s", sum, got.TaxAmount)
	assert.True(t, got.TaxableValue.Add(got.TaxAmount).Equal(got.TotalPrice))
}

func TestComputeLineTaxQuantity(t *testing.T) {
	t.Parallel()

	got := ComputeLineTax(dec("59"), 2, dec("18"), "UP", "Uttar Pradesh")

	assert.Equal(t, "118.00", got.TotalPrice.StringFixed(2))
	assert.Equal(t, "100.00", got.TaxableValue.StringFixed(2))
	assert.False(t, got.InterState)
}

func TestNormalizeState(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"MH":             "maharashtra",
		"mh":             "maharashtra",
		"Maharashtra":    "maharashtra",
		" maha-rashtra ": "maharashtra",
		"UP":             "uttarpradesh",
		"Uttar Pradesh":  "uttarpradesh",
		"Orissa":         "odisha",
		"Tamil Nadu":     "tamilnadu",
		"":               "",
		"123":            "",
		"Narnia":         "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeState(in), "input %q", in)
	}
}

func TestPaiseConversion(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "118.00", FromPaise(11800).StringFixed(2))
	assert.Equal(t, int64(11800), ToPaise(dec("118")))
	assert.Equal(t, int64(1001), ToPaise(dec("10.005")))
}
