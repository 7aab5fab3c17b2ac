package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/po-reconciler/internal/domain/comparison"
	"github.com/FACorreiaa/po-reconciler/internal/domain/lineitem"
	"github.com/FACorreiaa/po-reconciler/internal/domain/matching"
)

// Row statuses of the CSV report.
const (
	StatusMatched          = "MATCHED"
	StatusUnmatchedOrder   = "UNMATCHED_PO"
	StatusUnmatchedInvoice = "UNMATCHED_PI"
)

// csvRow is one line of the CSV report: a matched pair or an unmatched item.
type csvRow struct {
	Status              string `csv:"Status"`
	MatchTier           string `csv:"Match_Tier"`
	MatchScore          string `csv:"Match_Score"`
	OrderRow            string `csv:"PO_Row"`
	OrderSKU            string `csv:"PO_SKU"`
	OrderDescription    string `csv:"PO_Description"`
	OrderQuantity       string `csv:"PO_Quantity"`
	OrderUnitPrice      string `csv:"PO_Unit_Price"`
	OrderTotal          string `csv:"PO_Total_Value"`
	InvoiceRow          string `csv:"PI_Row"`
	InvoiceSKU          string `csv:"PI_SKU"`
	InvoiceDescription  string `csv:"PI_Description"`
	InvoiceQuantity     string `csv:"PI_Quantity"`
	InvoiceUnitPrice    string `csv:"PI_Unit_Price"`
	InvoiceTotal        string `csv:"PI_Total_Value"`
	QuantityDiff        string `csv:"Quantity_Difference"`
	UnitPriceDiff       string `csv:"Unit_Price_Difference"`
	TotalValueDiff      string `csv:"Total_Value_Difference"`
	PercentDiff         string `csv:"Percent_Difference"`
	HasDiscrepancy      string `csv:"Has_Discrepancy"`
	HasQuantityMismatch string `csv:"Has_Quantity_Mismatch"`
	HasPriceMismatch    string `csv:"Has_Price_Mismatch"`
	AlertSeverity       string `csv:"Alert_Severity"`
	UnmatchedReason     string `csv:"Unmatched_Reason"`
	Suggestion          string `csv:"Suggested_Counterpart"`
}

// WriteCSV writes the run parameters as '#' comment lines followed by one
// table of matched and unmatched rows.
func WriteCSV(w io.Writer, rep Report, cfg Config) error {
	for _, kv := range header(rep) {
		if _, err := fmt.Fprintf(w, "# %s: %s\n", kv[0], kv[1]); err != nil {
			return fmt.Errorf("failed to write csv header: %w", err)
		}
	}

	rows := csvRows(rep.Result, cfg)
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write csv report: %w", err)
	}
	return nil
}

func csvRows(res *comparison.Result, cfg Config) []csvRow {
	rows := make([]csvRow, 0, len(res.Records)+len(res.Unmatched))

	if cfg.IncludeMatched {
		for _, rec := range res.Records {
			row := csvRow{
				Status:              StatusMatched,
				MatchTier:           string(rec.Pair.Tier),
				MatchScore:          strconv.FormatFloat(rec.Pair.Score, 'f', 2, 64),
				QuantityDiff:        rec.QuantityDiff.String(),
				UnitPriceDiff:       rec.UnitPriceDiff.String(),
				TotalValueDiff:      rec.TotalValueDiff.String(),
				HasDiscrepancy:      strconv.FormatBool(rec.HasDiscrepancy),
				HasQuantityMismatch: strconv.FormatBool(rec.HasQuantityMismatch),
				HasPriceMismatch:    strconv.FormatBool(rec.HasPriceMismatch),
			}
			if rec.PercentDiff.Valid {
				row.PercentDiff = rec.PercentDiff.Decimal.StringFixed(2)
			}
			if rec.Severity != comparison.SeverityNone {
				row.AlertSeverity = string(rec.Severity)
			}
			setOrder(&row, rec.Pair.OrderItem)
			setInvoice(&row, rec.Pair.InvoiceItem)
			rows = append(rows, row)
		}
	}

	if cfg.IncludeUnmatched {
		for _, u := range res.Unmatched {
			row := csvRow{UnmatchedReason: string(u.Reason)}
			if u.Item.Source == lineitem.KindOrder {
				row.Status = StatusUnmatchedOrder
				setOrder(&row, u.Item)
			} else {
				row.Status = StatusUnmatchedInvoice
				setInvoice(&row, u.Item)
			}
			row.Suggestion = suggestionText(u)
			rows = append(rows, row)
		}
	}
	return rows
}

func setOrder(row *csvRow, item lineitem.LineItem) {
	row.OrderRow = strconv.Itoa(item.SourceRowIndex)
	row.OrderSKU = item.SKU
	row.OrderDescription = item.Description
	row.OrderQuantity = item.Quantity.String()
	row.OrderUnitPrice = item.UnitPrice.String()
	row.OrderTotal = item.TotalValue.String()
}

func setInvoice(row *csvRow, item lineitem.LineItem) {
	row.InvoiceRow = strconv.Itoa(item.SourceRowIndex)
	row.InvoiceSKU = item.SKU
	row.InvoiceDescription = item.Description
	row.InvoiceQuantity = item.Quantity.String()
	row.InvoiceUnitPrice = item.UnitPrice.String()
	row.InvoiceTotal = item.TotalValue.String()
}

func suggestionText(u matching.UnmatchedItem) string {
	if u.Suggestion == nil {
		return ""
	}
	return fmt.Sprintf("row %d: %s", u.Suggestion.RowIndex, u.Suggestion.Description)
}
