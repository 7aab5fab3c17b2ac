package comparison

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/po-reconciler/internal/domain/lineitem"
	"github.com/FACorreiaa/po-reconciler/internal/domain/matching"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func pair(orderQty, orderPrice, invoiceQty, invoicePrice string) matching.MatchPair {
	return matching.MatchPair{
		OrderItem:   lineitem.Fixture(lineitem.KindOrder, 0, "X-1", "Widget", orderQty, orderPrice),
		InvoiceItem: lineitem.Fixture(lineitem.KindInvoice, 0, "X-1", "Widget", invoiceQty, invoicePrice),
		Tier:        matching.TierSKU,
		Score:       100,
	}
}

func doc(kind lineitem.DocumentKind, items ...lineitem.LineItem) lineitem.Document {
	return lineitem.Document{Kind: kind, ID: strings.ToLower(kind.Short()) + ".csv", Items: items}
}

func TestComparator_Boundaries(t *testing.T) {
	c := NewComparator(SeverityHigh)

	tests := []struct {
		name            string
		orderPrice      string
		invoicePrice    string
		wantDiscrepancy bool
		wantSeverity    Severity
	}{
		{"equal", "100", "100", false, SeverityNone},
		{"one cent is tolerance", "100", "100.01", false, SeverityNone},
		{"just over one cent", "100", "100.010001", true, SeverityLow},
		{"under five percent", "100", "104.9999", true, SeverityLow},
		{"exactly five percent", "100", "105", true, SeverityHigh},
		{"negative five percent", "100", "95", true, SeverityHigh},
		{"under one percent", "100.00", "100.77", true, SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := c.Compare(pair("1", tt.orderPrice, "1", tt.invoicePrice))
			assert.Equal(t, tt.wantDiscrepancy, rec.HasDiscrepancy)
			assert.Equal(t, tt.wantSeverity, rec.Severity)
			assert.True(t, rec.TotalValueDiff.Equal(d(tt.invoicePrice).Sub(d(tt.orderPrice))))
		})
	}
}

func TestComparator_WM100(t *testing.T) {
	rec := NewComparator(SeverityHigh).Compare(pair("10", "14.50", "10", "15.95"))

	assert.True(t, rec.TotalValueDiff.Equal(d("14.50")))
	assert.True(t, rec.UnitPriceDiff.Equal(d("1.45")))
	assert.True(t, rec.QuantityDiff.IsZero())
	require.True(t, rec.PercentDiff.Valid)
	assert.True(t, rec.PercentDiff.Decimal.Equal(d("10")))
	assert.True(t, rec.HasPriceMismatch)
	assert.False(t, rec.HasQuantityMismatch)
	assert.Equal(t, SeverityHigh, rec.Severity)
}

func TestComparator_PercentIsUnsigned(t *testing.T) {
	tests := []struct {
		name         string
		orderPrice   string
		invoicePrice string
		wantDiff     string
		wantMessage  string
	}{
		{"under-invoiced", "100", "90", "-10", "Total value discrepancy of -$10.00 (10.0%) for 'Widget'"},
		{"credit line", "-100", "-90", "10", "Total value discrepancy of +$10.00 (10.0%) for 'Widget'"},
		{"credit line grows", "-100", "-110", "-10", "Total value discrepancy of -$10.00 (10.0%) for 'Widget'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewComparator(SeverityHigh).Compare(pair("1", tt.orderPrice, "1", tt.invoicePrice))

			assert.True(t, rec.TotalValueDiff.Equal(d(tt.wantDiff)))
			require.True(t, rec.PercentDiff.Valid)
			assert.True(t, rec.PercentDiff.Decimal.Equal(d("10")), "got %s", rec.PercentDiff.Decimal)
			assert.Equal(t, SeverityHigh, rec.Severity)
			assert.Equal(t, tt.wantMessage, NewAlert(rec, "USD").Message)
		})
	}
}

func TestComparator_QuantityMismatch(t *testing.T) {
	rec := NewComparator(SeverityHigh).Compare(pair("10", "2", "9", "2"))

	assert.True(t, rec.QuantityDiff.Equal(d("-1")))
	assert.True(t, rec.HasQuantityMismatch)
	assert.False(t, rec.HasPriceMismatch)
	assert.Equal(t, SeverityHigh, rec.Severity)
}

func TestComparator_ZeroOrderTotal(t *testing.T) {
	p := pair("1", "0", "1", "3")

	rec := NewComparator(SeverityHigh).Compare(p)
	assert.False(t, rec.PercentDiff.Valid)
	assert.Equal(t, SeverityHigh, rec.Severity)

	rec = NewComparator(SeverityLow).Compare(p)
	assert.Equal(t, SeverityLow, rec.Severity)

	rec = NewComparator(SeverityLow).Compare(pair("1", "0", "1", "0"))
	assert.Equal(t, SeverityNone, rec.Severity)
}

func TestBuildAlerts(t *testing.T) {
	c := NewComparator(SeverityHigh)
	long := strings.Repeat("é", 60)
	small := c.Compare(pair("1", "100", "1", "100.77"))
	big := c.Compare(pair("10", "14.50", "10", "15.95"))
	big.Pair.OrderItem.Description = long
	none := c.Compare(pair("1", "5", "1", "5"))

	alerts := BuildAlerts([]DiscrepancyRecord{small, none, big}, "USD")

	require.Len(t, alerts, 2)
	assert.Equal(t, SeverityHigh, alerts[0].Severity)
	assert.Equal(t, SeverityLow, alerts[1].Severity)

	assert.Len(t, []rune(alerts[0].RelatedItem), relatedItemMaxRunes)
	assert.True(t, strings.HasSuffix(alerts[0].RelatedItem, "..."))
	assert.Equal(t, "Total value discrepancy of +$14.50 (10.0%) for '"+alerts[0].RelatedItem+"'", alerts[0].Message)
	assert.Equal(t, actionHigh, alerts[0].SuggestedAction)

	assert.Equal(t, "Total value discrepancy of +$0.77 (0.8%) for 'Widget'", alerts[1].Message)
	assert.Equal(t, actionLow, alerts[1].SuggestedAction)
}

func TestNewAlert_TwoDecimalsForAnyCurrency(t *testing.T) {
	rec := NewComparator(SeverityHigh).Compare(pair("1", "100.00", "1", "100.77"))

	alert := NewAlert(rec, "JPY")
	assert.Equal(t, "Total value discrepancy of +\u00a50.77 (0.8%) for 'Widget'", alert.Message)
}

func TestBuildAlerts_ZeroValueMessage(t *testing.T) {
	rec := NewComparator(SeverityHigh).Compare(pair("1", "0", "1", "3"))
	alert := NewAlert(rec, "EUR")
	assert.Contains(t, alert.Message, "(n/a)")
	assert.Equal(t, actionZeroValue, alert.SuggestedAction)
}

func TestCompare_EndToEnd(t *testing.T) {
	order := doc(lineitem.KindOrder,
		lineitem.Fixture(lineitem.KindOrder, 0, "WM-100", "Wireless Mouse", "10", "14.50"),
		lineitem.Fixture(lineitem.KindOrder, 1, "", "USB-C Hub", "2", "49.99"),
		lineitem.Fixture(lineitem.KindOrder, 2, "", "Mechanical Keyboard", "1", "89.99"),
	)
	invoice := doc(lineitem.KindInvoice,
		lineitem.Fixture(lineitem.KindInvoice, 0, "wm-100", "Mouse, wireless", "10", "15.95"),
		lineitem.Fixture(lineitem.KindInvoice, 1, "", "usb-c hub", "2", "49.99"),
	)

	result, err := Compare(order, invoice, DefaultOptions())
	require.NoError(t, err)

	require.Len(t, result.Records, 2)
	assert.Equal(t, matching.TierSKU, result.Records[0].Pair.Tier)
	assert.Equal(t, matching.TierExactDescription, result.Records[1].Pair.Tier)
	assert.False(t, result.Records[1].HasDiscrepancy)

	require.Len(t, result.Unmatched, 1)
	assert.Equal(t, "Mechanical Keyboard", result.Unmatched[0].Item.Description)
	assert.Equal(t, matching.ReasonNoCandidate, result.Unmatched[0].Reason)
	assert.Len(t, result.UnmatchedFrom(lineitem.KindOrder), 1)
	assert.Empty(t, result.UnmatchedFrom(lineitem.KindInvoice))

	s := result.Summary
	assert.True(t, s.TotalOrderedValue.Equal(d("334.97")))
	assert.True(t, s.TotalInvoicedValue.Equal(d("259.48")))
	assert.True(t, s.ValueDifference.Equal(d("-75.49")))
	assert.True(t, s.TotalOrderedQuantity.Equal(d("13")))
	assert.True(t, s.TotalInvoicedQuantity.Equal(d("12")))
	assert.True(t, s.QuantityDifference.Equal(d("-1")))
	assert.Equal(t, 1, s.DiscrepancyCount)
	assert.Equal(t, 2, s.MatchedCount)
	assert.Equal(t, 1, s.UnmatchedOrderCount)
	assert.Equal(t, 0, s.UnmatchedInvoiceCount)
	assert.Equal(t, 1, s.HighAlertCount)
	assert.Equal(t, 0, s.LowAlertCount)
	assert.Equal(t, matching.Stats{SKUMatches: 1, ExactMatches: 1}, s.MatchStats)

	require.Len(t, result.Alerts, 1)
	assert.Equal(t, "USD", result.Parameters.Currency)
	assert.Equal(t, "po.csv", result.Parameters.OrderDocumentID)
	assert.NotNil(t, result.Warnings)
}

func TestCompare_EmptyInvoice(t *testing.T) {
	order := doc(lineitem.KindOrder, lineitem.NewTestDataGeneratorWithSeed(3).Items(lineitem.KindOrder, 5)...)

	result, err := Compare(order, doc(lineitem.KindInvoice), DefaultOptions())
	require.NoError(t, err)

	assert.Empty(t, result.Records)
	assert.Empty(t, result.Alerts)
	require.Len(t, result.Unmatched, 5)
	for _, u := range result.Unmatched {
		assert.Equal(t, matching.ReasonNoCandidate, u.Reason)
	}
	assert.True(t, result.Summary.TotalInvoicedValue.IsZero())
	assert.True(t, result.Summary.ValueDifference.Equal(order.TotalValue().Neg()))
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "PI")
}

func TestCompare_Warnings(t *testing.T) {
	item := lineitem.Fixture(lineitem.KindOrder, 4, "", "Widget", "1", "1")
	item.Notes = []string{"total missing; derived from quantity x unit price"}
	order := doc(lineitem.KindOrder, item)
	order.Errors = []lineitem.ParseError{{Document: lineitem.KindOrder, Row: 1, Column: "quantity", Message: "not a number"}}

	result, err := Compare(order, doc(lineitem.KindInvoice, lineitem.Fixture(lineitem.KindInvoice, 0, "", "Widget", "1", "1")), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"PO row 1, column quantity: not a number",
		"PO row 4: total missing; derived from quantity x unit price",
	}, result.Warnings)
}

func TestCompare_ConfigurationErrors(t *testing.T) {
	order := doc(lineitem.KindOrder, lineitem.Fixture(lineitem.KindOrder, 0, "", "Widget", "1", "1"))
	invoice := doc(lineitem.KindInvoice)

	tests := []struct {
		name  string
		opts  Options
		field string
	}{
		{"threshold", Options{FuzzyThreshold: 150}, "fuzzy threshold"},
		{"zero severity", Options{FuzzyThreshold: 80, ZeroValueSeverity: "MEDIUM"}, "zero value severity"},
		{"currency", Options{FuzzyThreshold: 80, Currency: "XYZ"}, "currency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Compare(order, invoice, tt.opts)
			assert.Nil(t, result)
			var cfgErr lineitem.ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestCompare_CurrencyFromMetadata(t *testing.T) {
	order := doc(lineitem.KindOrder, lineitem.Fixture(lineitem.KindOrder, 0, "", "Widget", "1", "100"))
	order.Metadata.Currency = "eur"
	invoice := doc(lineitem.KindInvoice, lineitem.Fixture(lineitem.KindInvoice, 0, "", "Widget", "1", "110"))

	result, err := Compare(order, invoice, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "EUR", result.Parameters.Currency)
	require.Len(t, result.Alerts, 1)
	assert.Contains(t, result.Alerts[0].Message, "€")
}

func TestCompare_Deterministic(t *testing.T) {
	gen := lineitem.NewTestDataGeneratorWithSeed(11)
	orderItems := gen.Items(lineitem.KindOrder, 15)
	invoiceItems := gen.Mirror(orderItems[:10])
	for i := range invoiceItems {
		if i%3 == 0 {
			invoiceItems[i] = lineitem.Reprice(invoiceItems[i], 8)
		}
	}

	first, err := Compare(doc(lineitem.KindOrder, orderItems...), doc(lineitem.KindInvoice, invoiceItems...), DefaultOptions())
	require.NoError(t, err)
	second, err := Compare(doc(lineitem.KindOrder, orderItems...), doc(lineitem.KindInvoice, invoiceItems...), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	for i := 1; i < len(first.Alerts); i++ {
		assert.True(t, first.Alerts[i-1].TotalValueDiff.Abs().GreaterThanOrEqual(first.Alerts[i].TotalValueDiff.Abs()))
	}
	for _, rec := range first.Records {
		assert.Equal(t, rec.HasDiscrepancy, rec.Severity != SeverityNone)
	}
}

func TestOptions_Validate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())

	opts := DefaultOptions()
	opts.FuzzyThreshold = -5
	var cfgErr lineitem.ConfigurationError
	require.True(t, errors.As(opts.Validate(), &cfgErr))
	assert.Equal(t, "fuzzy threshold", cfgErr.Field)
}
