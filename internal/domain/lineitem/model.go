// Package lineitem defines the normalized line-item model shared by extraction,
// matching, comparison and reporting.
package lineitem

import (
	"github.com/shopspring/decimal"
)

// DocumentKind identifies which side of a reconciliation a document belongs to.
type DocumentKind string

const (
	KindOrder   DocumentKind = "ORDER"   // Purchase order (PO)
	KindInvoice DocumentKind = "INVOICE" // Proforma invoice (PI)
)

// Short returns the two-letter label used in reports ("PO" / "PI").
func (k DocumentKind) Short() string {
	switch k {
	case KindOrder:
		return "PO"
	case KindInvoice:
		return "PI"
	default:
		return string(k)
	}
}

// Valid reports whether k is one of the known kinds.
func (k DocumentKind) Valid() bool {
	return k == KindOrder || k == KindInvoice
}

// RawRow is a table row as extracted from a document, before normalization.
// All values are kept as the strings found in the source.
type RawRow struct {
	RowIndex    int // Position in the source table (0-based, data rows only)
	SKU         string
	Description string
	Quantity    string
	UnitPrice   string
	Total       string
}

// LineItem is one normalized product row of an order or invoice.
// Items are values and are not mutated after normalization.
type LineItem struct {
	SKU            string          `json:"sku,omitempty"`
	SKUKey         string          `json:"-"` // Case-insensitive comparison key, empty when absent
	Description    string          `json:"description"`
	DescriptionKey string          `json:"-"` // Lowercased comparison copy of Description
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	TotalValue     decimal.Decimal `json:"total_value"`
	Source         DocumentKind    `json:"source"`
	SourceRowIndex int             `json:"source_row_index"`
	Notes          []string        `json:"notes,omitempty"` // Data-quality notes
}

// HasSKU reports whether the item carries a usable SKU.
func (li LineItem) HasSKU() bool {
	return li.SKUKey != ""
}

// ExpectedTotal returns quantity × unit price.
func (li LineItem) ExpectedTotal() decimal.Decimal {
	return li.Quantity.Mul(li.UnitPrice)
}

// Metadata holds document-level fields found outside the line-item table.
type Metadata struct {
	DocumentNumber string              `json:"document_number,omitempty"`
	Date           string              `json:"date,omitempty"`
	VendorName     string              `json:"vendor_name,omitempty"`
	Currency       string              `json:"currency,omitempty"`
	TotalAmount    decimal.NullDecimal `json:"total_amount"`
	PageCount      int                 `json:"page_count,omitempty"`
}

// Document is a normalized order or invoice.
type Document struct {
	Kind             DocumentKind `json:"kind"`
	ID               string       `json:"id"` // Caller-supplied identifier, usually the file name
	Metadata         Metadata     `json:"metadata"`
	Items            []LineItem   `json:"items"`
	Errors           []ParseError `json:"errors,omitempty"`
	ExtractionMethod string       `json:"extraction_method,omitempty"`
}

// IsEmpty reports whether the document has no valid line items.
func (d Document) IsEmpty() bool {
	return len(d.Items) == 0
}

// TotalValue sums the total value of every item.
func (d Document) TotalValue() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range d.Items {
		sum = sum.Add(item.TotalValue)
	}
	return sum
}
