// Package tax decomposes GST-inclusive prices into taxable value and
// CGST/SGST or IGST components.
package tax

import (
	"github.com/shopspring/decimal"
)

// Component names a GST tax head.
type Component string

const (
	ComponentCGST Component = "CGST"
	ComponentSGST Component = "SGST"
	ComponentIGST Component = "IGST"
)

const moneyPlaces = 2

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

// Line is one tax head on an invoice line.
type Line struct {
	Component Component       `json:"component"`
	Rate      decimal.Decimal `json:"rate"`
	Amount    decimal.Decimal `json:"amount"`
}

// LineTax is the decomposition of a single GST-inclusive invoice line.
// All amounts are rupees rounded to two places.
type LineTax struct {
	TotalPrice   decimal.Decimal `json:"total_price"`
	TaxableValue decimal.Decimal `json:"taxable_value"`
	TaxAmount    decimal.Decimal `json:"tax_amount"`
	InterState   bool            `json:"inter_state"`
	Lines        []Line          `json:"lines"`
}

// ComputeLineTax back-calculates tax from a GST-inclusive unit price.
// A non-positive rate yields no tax lines. Unresolvable or differing states
// produce a single IGST line.
func ComputeLineTax(unitPrice decimal.Decimal, quantity int, gstRate decimal.Decimal, buyerState, sellerState string) LineTax {
	total := unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(moneyPlaces)
	out := LineTax{
		TotalPrice:   total,
		TaxableValue: total,
		TaxAmount:    decimal.Zero,
		InterState:   !SameState(buyerState, sellerState),
		Lines:        []Line{},
	}
	if !gstRate.IsPositive() {
		return out
	}

	taxable := total.Mul(hundred).Div(hundred.Add(gstRate)).Round(moneyPlaces)
	taxAmount := total.Sub(taxable)
	out.TaxableValue = taxable
	out.TaxAmount = taxAmount

	if out.InterState {
		out.Lines = append(out.Lines, Line{Component: ComponentIGST, Rate: gstRate, Amount: taxAmount})
		return out
	}

	halfRate := gstRate.Div(two)
	central := taxAmount.Div(two).Round(moneyPlaces)
	state := taxAmount.Sub(central)
	out.Lines = append(out.Lines,
		Line{Component: ComponentCGST, Rate: halfRate, Amount: central},
		Line{Component: ComponentSGST, Rate: halfRate, Amount: state},
	)
	return out
}

// FromPaise converts minor units into rupees.
func FromPaise(paise int64) decimal.Decimal {
	return decimal.New(paise, -moneyPlaces)
}

// ToPaise converts rupees into minor units, rounding half away from zero.
func ToPaise(amount decimal.Decimal) int64 {
	return amount.Round(moneyPlaces).Shift(moneyPlaces).IntPart()
}
