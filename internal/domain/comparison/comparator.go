package comparison

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/po-reconciler/internal/domain/matching"
	"github.com/FACorreiaa/po-reconciler/pkg/money"
)

var (
	// Differences up to one cent are rounding, not discrepancies.
	discrepancyTolerance = decimal.New(1, -2)
	// A difference of at least 5% of the order total is HIGH.
	highSeverityRatio = decimal.New(5, -2)
)

// Comparator computes the discrepancy record of a matched pair.
type Comparator struct {
	zeroValueSeverity Severity
}

// NewComparator returns a comparator. zeroValueSeverity is used when the order
// total is zero and a discrepancy exists; anything other than LOW means HIGH.
func NewComparator(zeroValueSeverity Severity) Comparator {
	if zeroValueSeverity != SeverityLow {
		zeroValueSeverity = SeverityHigh
	}
	return Comparator{zeroValueSeverity: zeroValueSeverity}
}

// Compare diffs the invoice item of pair against its order item.
func (c Comparator) Compare(pair matching.MatchPair) DiscrepancyRecord {
	order, invoice := pair.OrderItem, pair.InvoiceItem

	rec := DiscrepancyRecord{
		Pair:           pair,
		QuantityDiff:   invoice.Quantity.Sub(order.Quantity),
		UnitPriceDiff:  invoice.UnitPrice.Sub(order.UnitPrice),
		TotalValueDiff: invoice.TotalValue.Sub(order.TotalValue),
	}
	rec.HasDiscrepancy = rec.TotalValueDiff.Abs().GreaterThan(discrepancyTolerance)
	rec.HasQuantityMismatch = !rec.QuantityDiff.IsZero()
	rec.HasPriceMismatch = rec.UnitPriceDiff.Abs().GreaterThan(discrepancyTolerance)
	if pct, ok := money.PercentOf(rec.TotalValueDiff.Abs(), order.TotalValue.Abs()); ok {
		rec.PercentDiff = decimal.NewNullDecimal(pct)
	}
	rec.Severity = c.Classify(rec.TotalValueDiff, order.TotalValue)

	return rec
}

// Classify returns the severity of a total-value difference against the order
// total. The ratio test is done by multiplication so no division rounding can
// move a value across the 5% boundary.
func (c Comparator) Classify(totalDiff, orderTotal decimal.Decimal) Severity {
	diff := totalDiff.Abs()
	if !diff.GreaterThan(discrepancyTolerance) {
		return SeverityNone
	}

	base := orderTotal.Abs()
	if base.IsZero() {
		return c.zeroValueSeverity
	}
	if diff.GreaterThanOrEqual(base.Mul(highSeverityRatio)) {
		return SeverityHigh
	}
	return SeverityLow
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
