// Package comparison turns matched line items into discrepancy records, a value
// summary and an alert list. Everything here is a pure function of its inputs.
package comparison

import (
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/po-reconciler/internal/domain/lineitem"
	"github.com/FACorreiaa/po-reconciler/internal/domain/matching"
)

// Severity classifies how much attention a discrepancy needs.
type Severity string

const (
	SeverityNone Severity = "NONE"
	SeverityLow  Severity = "LOW"
	SeverityHigh Severity = "HIGH"
)

// ParseSeverity accepts "low" or "high" in any case.
func ParseSeverity(s string) (Severity, bool) {
	switch Severity(upper(s)) {
	case SeverityLow:
		return SeverityLow, true
	case SeverityHigh:
		return SeverityHigh, true
	default:
		return "", false
	}
}

// DiscrepancyRecord holds the differences of one matched pair. All differences
// are invoice minus order.
type DiscrepancyRecord struct {
	Pair                matching.MatchPair  `json:"pair"`
	QuantityDiff        decimal.Decimal     `json:"quantity_diff"`
	UnitPriceDiff       decimal.Decimal     `json:"unit_price_diff"`
	TotalValueDiff      decimal.Decimal     `json:"total_value_diff"`
	PercentDiff         decimal.NullDecimal `json:"percent_diff"` // Unsigned; null when the order total is zero
	HasDiscrepancy      bool                `json:"has_discrepancy"`
	HasQuantityMismatch bool                `json:"has_quantity_mismatch"`
	HasPriceMismatch    bool                `json:"has_price_mismatch"`
	Severity            Severity            `json:"alert_severity"`
}

// Alert is a rendered notice for a record with LOW or HIGH severity.
type Alert struct {
	Severity        Severity        `json:"severity"`
	Message         string          `json:"message"`
	SuggestedAction string          `json:"suggested_action"`
	RelatedItem     string          `json:"related_item"`
	TotalValueDiff  decimal.Decimal `json:"total_value_diff"`
}

// Summary rolls up a comparison run.
type Summary struct {
	TotalOrderedValue     decimal.Decimal `json:"total_ordered_value"`
	TotalInvoicedValue    decimal.Decimal `json:"total_invoiced_value"`
	ValueDifference       decimal.Decimal `json:"value_difference"` // Invoiced minus ordered
	DiscrepancyCount      int             `json:"discrepancy_count"`
	TotalOrderedQuantity  decimal.Decimal `json:"total_ordered_quantity"`
	TotalInvoicedQuantity decimal.Decimal `json:"total_invoiced_quantity"`
	QuantityDifference    decimal.Decimal `json:"quantity_difference"` // Invoiced minus ordered
	MatchedCount          int             `json:"matched_count"`
	UnmatchedOrderCount   int             `json:"unmatched_order_count"`
	UnmatchedInvoiceCount int             `json:"unmatched_invoice_count"`
	HighAlertCount        int             `json:"high_alert_count"`
	LowAlertCount         int             `json:"low_alert_count"`
	MatchStats            matching.Stats  `json:"match_stats"`
}

// Parameters records the inputs of a run for report headers.
type Parameters struct {
	FuzzyThreshold    float64  `json:"fuzzy_threshold"`
	ZeroValueSeverity Severity `json:"zero_value_severity"`
	Currency          string   `json:"currency"`
	OrderDocumentID   string   `json:"order_document_id"`
	InvoiceDocumentID string   `json:"invoice_document_id"`
}

// Result is the complete outcome of comparing an order with an invoice.
type Result struct {
	Parameters      Parameters               `json:"parameters"`
	OrderMetadata   lineitem.Metadata        `json:"order_metadata"`
	InvoiceMetadata lineitem.Metadata        `json:"invoice_metadata"`
	Records         []DiscrepancyRecord      `json:"discrepancies"`
	Unmatched       []matching.UnmatchedItem `json:"unmatched_items"` // Order side first, then invoice side
	Summary         Summary                  `json:"summary"`
	Alerts          []Alert                  `json:"alerts"`
	Warnings        []string                 `json:"warnings"`
}

// UnmatchedFrom returns the unmatched items of one side.
func (r *Result) UnmatchedFrom(kind lineitem.DocumentKind) []matching.UnmatchedItem {
	var out []matching.UnmatchedItem
	for _, u := range r.Unmatched {
		if u.Item.Source == kind {
			out = append(out, u)
		}
	}
	return out
}
