package comparison

import (
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/po-reconciler/internal/domain/matching"
)

// Aggregate builds the run summary. Ordered and invoiced totals cover every item
// of each document, matched or not.
func Aggregate(records []DiscrepancyRecord, match matching.Result, alerts []Alert) Summary {
	s := Summary{
		TotalOrderedValue:     decimal.Zero,
		TotalInvoicedValue:    decimal.Zero,
		TotalOrderedQuantity:  decimal.Zero,
		TotalInvoicedQuantity: decimal.Zero,
		MatchedCount:          len(records),
		UnmatchedOrderCount:   len(match.UnmatchedOrder),
		UnmatchedInvoiceCount: len(match.UnmatchedInvoice),
		MatchStats:            match.Stats,
	}

	for _, rec := range records {
		s.TotalOrderedValue = s.TotalOrderedValue.Add(rec.Pair.OrderItem.TotalValue)
		s.TotalInvoicedValue = s.TotalInvoicedValue.Add(rec.Pair.InvoiceItem.TotalValue)
		s.TotalOrderedQuantity = s.TotalOrderedQuantity.Add(rec.Pair.OrderItem.Quantity)
		s.TotalInvoicedQuantity = s.TotalInvoicedQuantity.Add(rec.Pair.InvoiceItem.Quantity)
		if rec.HasDiscrepancy {
			s.DiscrepancyCount++
		}
	}
	for _, u := range match.UnmatchedOrder {
		s.TotalOrderedValue = s.TotalOrderedValue.Add(u.Item.TotalValue)
		s.TotalOrderedQuantity = s.TotalOrderedQuantity.Add(u.Item.Quantity)
	}
	for _, u := range match.UnmatchedInvoice {
		s.TotalInvoicedValue = s.TotalInvoicedValue.Add(u.Item.TotalValue)
		s.TotalInvoicedQuantity = s.TotalInvoicedQuantity.Add(u.Item.Quantity)
	}
	s.ValueDifference = s.TotalInvoicedValue.Sub(s.TotalOrderedValue)
	s.QuantityDifference = s.TotalInvoicedQuantity.Sub(s.TotalOrderedQuantity)

	for _, a := range alerts {
		switch a.Severity {
		case SeverityHigh:
			s.HighAlertCount++
		case SeverityLow:
			s.LowAlertCount++
		}
	}
	return s
}
