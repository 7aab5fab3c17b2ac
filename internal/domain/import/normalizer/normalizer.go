// Package normalizer turns raw extracted table rows into validated line items.
// It cleans text, parses amounts into exact decimals and records data-quality notes.
package normalizer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/po-reconciler/internal/domain/lineitem"
	"github.com/FACorreiaa/po-reconciler/pkg/money"
)

// Column names used in parse errors
const (
	ColumnDescription = "description"
	ColumnQuantity    = "quantity"
	ColumnUnitPrice   = "unit_price"
	ColumnTotal       = "total"
)

// totalTolerance is the largest accepted gap between a stated total and quantity × unit price.
var totalTolerance = decimal.New(1, -2)

// quantityUnitPattern strips unit suffixes such as "10 pcs" or "4 ea.".
var quantityUnitPattern = regexp.MustCompile(`(?i)\s*(pcs|pc|pieces|piece|ea|each|units|unit|sets|set|boxes|box)\.?$`)

// Options configures a Normalizer.
type Options struct {
	EuropeanFormat bool        // Amounts use 1.234,56
	Aliases        *AliasTable // Optional SKU aliases, nil for none
}

// Normalizer converts RawRow values to LineItem values. It never mutates its input.
type Normalizer struct {
	opts Options
}

// New creates a normalizer.
func New(opts Options) *Normalizer {
	return &Normalizer{opts: opts}
}

// NormalizeDocument normalizes every row of a document. Rows that fail validation
// are skipped and recorded in Document.Errors; the remaining rows keep their order.
func (n *Normalizer) NormalizeDocument(kind lineitem.DocumentKind, id string, rows []lineitem.RawRow) lineitem.Document {
	doc := lineitem.Document{
		Kind:  kind,
		ID:    id,
		Items: make([]lineitem.LineItem, 0, len(rows)),
	}

	for _, row := range rows {
		item, err := n.NormalizeRow(kind, row)
		if err != nil {
			var parseErr lineitem.ParseError
			if !errors.As(err, &parseErr) {
				parseErr = lineitem.ParseError{Document: kind, Row: row.RowIndex, Message: err.Error()}
			}
			doc.Errors = append(doc.Errors, parseErr)
			continue
		}
		doc.Items = append(doc.Items, item)
	}

	return doc
}

// NormalizeRow validates and converts a single row.
// Description, quantity and unit price are required. A missing total is derived
// from quantity × unit price; a stated total that disagrees with it by more than
// 0.01 is kept and noted.
func (n *Normalizer) NormalizeRow(kind lineitem.DocumentKind, row lineitem.RawRow) (lineitem.LineItem, error) {
	fail := func(column, message, raw string) (lineitem.LineItem, error) {
		return lineitem.LineItem{}, lineitem.ParseError{
			Document: kind,
			Row:      row.RowIndex,
			Column:   column,
			Message:  message,
			RawData:  raw,
		}
	}

	description := CleanText(row.Description)
	if description == "" {
		return fail(ColumnDescription, "missing description", row.Description)
	}

	quantity, err := n.parseQuantity(row.Quantity)
	if err != nil {
		return fail(ColumnQuantity, amountMessage("quantity", err), row.Quantity)
	}

	unitPrice, err := money.ParseDecimal(row.UnitPrice, n.opts.EuropeanFormat)
	if err != nil {
		return fail(ColumnUnitPrice, amountMessage("unit price", err), row.UnitPrice)
	}

	var notes []string
	expected := quantity.Mul(unitPrice)
	total := expected

	if money.IsPlaceholder(row.Total) {
		notes = append(notes, "total missing; derived from quantity × unit price")
	} else {
		total, err = money.ParseDecimal(row.Total, n.opts.EuropeanFormat)
		if err != nil {
			return fail(ColumnTotal, amountMessage("total", err), row.Total)
		}
		if total.Sub(expected).Abs().GreaterThan(totalTolerance) {
			notes = append(notes, fmt.Sprintf("stated total %s differs from quantity × unit price %s",
				total.String(), expected.String()))
		}
	}

	sku := CleanSKU(row.SKU)

	return lineitem.LineItem{
		SKU:            sku,
		SKUKey:         strings.ToLower(n.opts.Aliases.Resolve(sku)),
		Description:    description,
		DescriptionKey: ComparisonKey(description),
		Quantity:       quantity,
		UnitPrice:      unitPrice,
		TotalValue:     total,
		Source:         kind,
		SourceRowIndex: row.RowIndex,
		Notes:          notes,
	}, nil
}

func (n *Normalizer) parseQuantity(raw string) (decimal.Decimal, error) {
	cleaned := quantityUnitPattern.ReplaceAllString(strings.TrimSpace(raw), "")
	return money.ParseDecimal(cleaned, n.opts.EuropeanFormat)
}

func amountMessage(field string, err error) string {
	if errors.Is(err, money.ErrEmptyAmount) {
		return "missing " + field
	}
	return "invalid " + field
}
