package helpers

import "github.com/shopspring/decimal"

// Totals are the money columns of an order in whole rupiah.
type Totals struct {
	Subtotal int64
	Tax      int64
	Total    int64
}

// ComputeTotals applies rate to subtotal, rounding tax half away from zero.
func ComputeTotals(subtotal int64, rate decimal.Decimal) Totals {
	tax := decimal.NewFromInt(subtotal).Mul(rate).Round(0).IntPart()
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal + tax,
	}
}
