package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/po-reconciler/internal/domain/lineitem"
	"github.com/FACorreiaa/po-reconciler/pkg/money"
)

var (
	orderNumberPattern   = regexp.MustCompile(`(?i)\b(?:P\.?O\.?|Purchase\s+Order|Order)\s*(?:No\.?|Number)?\s*#?\s*:?\s*([A-Z0-9][A-Z0-9\-/_.]*\d[A-Z0-9\-/_]*)`)
	invoiceNumberPattern = regexp.MustCompile(`(?i)\b(?:Proforma(?:\s+Invoice)?|Invoice|P\.?I\.?)\s*(?:No\.?|Number)?\s*#?\s*:?\s*([A-Z0-9][A-Z0-9\-/_.]*\d[A-Z0-9\-/_]*)`)
	datePattern          = regexp.MustCompile(`(?i)\bDate\s*:?\s*(\d{4}-\d{2}-\d{2}|\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4})`)
	vendorPattern        = regexp.MustCompile(`(?i)^\s*(?:Vendor|Supplier|Seller|From)\s*:?\s+(.+)$`)
	grandTotalPattern    = regexp.MustCompile(`(?i)^\s*(?:Grand\s+Total|Total\s+Amount|Total\s+Due|Amount\s+Due|Total)\s*:?\s*(.+)$`)
	currencyPattern      = regexp.MustCompile(`\b(USD|EUR|GBP|BRL|CHF|JPY|CNY|INR|CAD|AUD)\b`)
)

// ExtractMetadata pulls the document number, date, vendor, currency and stated
// grand total from the free text around a line-item table. The first match of
// each field wins, except the total, where the last match wins.
func ExtractMetadata(lines []string, europeanFormat bool) lineitem.Metadata {
	var meta lineitem.Metadata

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if meta.DocumentNumber == "" {
			if m := invoiceNumberPattern.FindStringSubmatch(line); m != nil {
				meta.DocumentNumber = m[1]
			} else if m := orderNumberPattern.FindStringSubmatch(line); m != nil {
				meta.DocumentNumber = m[1]
			}
		}
		if meta.Date == "" {
			if m := datePattern.FindStringSubmatch(line); m != nil {
				meta.Date = m[1]
			}
		}
		if meta.VendorName == "" {
			if m := vendorPattern.FindStringSubmatch(line); m != nil {
				meta.VendorName = strings.TrimSpace(m[1])
			}
		}
		if meta.Currency == "" {
			if m := currencyPattern.FindStringSubmatch(line); m != nil {
				meta.Currency = m[1]
			}
		}
		if m := grandTotalPattern.FindStringSubmatch(line); m != nil {
			if amount, err := money.ParseDecimal(m[1], europeanFormat); err == nil {
				meta.TotalAmount = decimal.NewNullDecimal(amount)
			}
		}
	}

	return meta
}
