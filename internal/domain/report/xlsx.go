package report

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/po-reconciler/internal/domain/comparison"
)

// Sheet names of the XLSX report.
const (
	SheetSummary       = "Summary"
	SheetDiscrepancies = "Discrepancies"
	SheetUnmatched     = "Unmatched"
	SheetAlerts        = "Alerts"
	SheetWarnings      = "Warnings"
)

const (
	colorHigh = "FF6B6B"
	colorLow  = "FFFF00"
)

type xlsxStyles struct {
	header int
	high   int
	low    int
}

// WriteXLSX writes a workbook with one sheet per enabled section. Discrepancy
// and alert rows are filled red for HIGH and yellow for LOW when highlighting
// is on.
func WriteXLSX(w io.Writer, rep Report, cfg Config) error {
	f := excelize.NewFile()
	defer f.Close()

	styles, err := newStyles(f)
	if err != nil {
		return err
	}

	sheets := []struct {
		name    string
		enabled bool
		write   func(*excelize.File, string, Report, Config, xlsxStyles) error
	}{
		{SheetSummary, cfg.IncludeSummary, writeSummarySheet},
		{SheetDiscrepancies, cfg.IncludeMatched, writeDiscrepancySheet},
		{SheetUnmatched, cfg.IncludeUnmatched, writeUnmatchedSheet},
		{SheetAlerts, cfg.IncludeAlerts, writeAlertSheet},
		{SheetWarnings, true, writeWarningSheet},
	}

	first := true
	for _, s := range sheets {
		if !s.enabled {
			continue
		}
		if first {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
			first = false
		} else if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", s.name, err)
		}
		if err := s.write(f, s.name, rep, cfg, styles); err != nil {
			return fmt.Errorf("failed to write sheet %s: %w", s.name, err)
		}
	}
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func newStyles(f *excelize.File) (xlsxStyles, error) {
	var s xlsxStyles
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return s, fmt.Errorf("failed to create header style: %w", err)
	}
	if s.high, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{colorHigh}, Pattern: 1},
	}); err != nil {
		return s, fmt.Errorf("failed to create high style: %w", err)
	}
	if s.low, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{colorLow}, Pattern: 1},
	}); err != nil {
		return s, fmt.Errorf("failed to create low style: %w", err)
	}
	return s, nil
}

func writeSummarySheet(f *excelize.File, sheet string, rep Report, _ Config, st xlsxStyles) error {
	s := rep.Result.Summary
	rows := [][]interface{}{{"Metric", "Value"}}
	for _, kv := range header(rep) {
		rows = append(rows, []interface{}{kv[0], kv[1]})
	}
	rows = append(rows,
		[]interface{}{"Total Quantity Ordered", num(s.TotalOrderedQuantity)},
		[]interface{}{"Total Quantity Invoiced", num(s.TotalInvoicedQuantity)},
		[]interface{}{"Quantity Difference", num(s.QuantityDifference)},
		[]interface{}{"Total Value Ordered", num(s.TotalOrderedValue)},
		[]interface{}{"Total Value Invoiced", num(s.TotalInvoicedValue)},
		[]interface{}{"Value Difference", num(s.ValueDifference)},
		[]interface{}{"Items With Discrepancies", s.DiscrepancyCount},
		[]interface{}{"Matched Items", s.MatchedCount},
		[]interface{}{"Unmatched PO Items", s.UnmatchedOrderCount},
		[]interface{}{"Unmatched PI Items", s.UnmatchedInvoiceCount},
		[]interface{}{"SKU Matches", s.MatchStats.SKUMatches},
		[]interface{}{"Exact Description Matches", s.MatchStats.ExactMatches},
		[]interface{}{"Fuzzy Matches", s.MatchStats.FuzzyMatches},
		[]interface{}{"High Alerts", s.HighAlertCount},
		[]interface{}{"Low Alerts", s.LowAlertCount},
	)
	if err := writeRows(f, sheet, rows); err != nil {
		return err
	}
	_ = f.SetColWidth(sheet, "A", "A", 28)
	_ = f.SetColWidth(sheet, "B", "B", 40)
	return f.SetCellStyle(sheet, "A1", "B1", st.header)
}

func writeDiscrepancySheet(f *excelize.File, sheet string, rep Report, cfg Config, st xlsxStyles) error {
	rows := [][]interface{}{{
		"Match Tier", "Match Score",
		"PO SKU", "PO Description", "PO Quantity", "PO Unit Price", "PO Total Value",
		"PI SKU", "PI Description", "PI Quantity", "PI Unit Price", "PI Total Value",
		"Quantity Difference", "Unit Price Difference", "Total Value Difference", "Percent Difference",
		"Has Discrepancy", "Quantity Mismatch", "Price Mismatch", "Alert Severity",
	}}
	for _, rec := range rep.Result.Records {
		o, i := rec.Pair.OrderItem, rec.Pair.InvoiceItem
		var pct interface{}
		if rec.PercentDiff.Valid {
			pct = num(rec.PercentDiff.Decimal)
		}
		severity := ""
		if rec.Severity != comparison.SeverityNone {
			severity = string(rec.Severity)
		}
		rows = append(rows, []interface{}{
			string(rec.Pair.Tier), rec.Pair.Score,
			o.SKU, o.Description, num(o.Quantity), num(o.UnitPrice), num(o.TotalValue),
			i.SKU, i.Description, num(i.Quantity), num(i.UnitPrice), num(i.TotalValue),
			num(rec.QuantityDiff), num(rec.UnitPriceDiff), num(rec.TotalValueDiff), pct,
			rec.HasDiscrepancy, rec.HasQuantityMismatch, rec.HasPriceMismatch, severity,
		})
	}
	if err := writeRows(f, sheet, rows); err != nil {
		return err
	}
	_ = f.SetColWidth(sheet, "D", "D", 36)
	_ = f.SetColWidth(sheet, "I", "I", 36)
	if err := f.SetCellStyle(sheet, "A1", "T1", st.header); err != nil {
		return err
	}

	if !cfg.Highlight {
		return nil
	}
	for idx, rec := range rep.Result.Records {
		if err := highlightRow(f, sheet, idx+2, 20, rec.Severity, st); err != nil {
			return err
		}
	}
	return nil
}

func writeUnmatchedSheet(f *excelize.File, sheet string, rep Report, _ Config, st xlsxStyles) error {
	rows := [][]interface{}{{
		"Document", "Row", "SKU", "Description", "Quantity", "Unit Price", "Total Value",
		"Reason", "Best Score", "Suggested Counterpart",
	}}
	for _, u := range rep.Result.Unmatched {
		item := u.Item
		rows = append(rows, []interface{}{
			item.Source.Short(), item.SourceRowIndex, item.SKU, item.Description,
			num(item.Quantity), num(item.UnitPrice), num(item.TotalValue),
			string(u.Reason), u.BestScore, suggestionText(u),
		})
	}
	if err := writeRows(f, sheet, rows); err != nil {
		return err
	}
	_ = f.SetColWidth(sheet, "D", "D", 36)
	_ = f.SetColWidth(sheet, "J", "J", 40)
	return f.SetCellStyle(sheet, "A1", "J1", st.header)
}

func writeAlertSheet(f *excelize.File, sheet string, rep Report, cfg Config, st xlsxStyles) error {
	rows := [][]interface{}{{"Severity", "Message", "Suggested Action", "Related Item"}}
	for _, a := range rep.Result.Alerts {
		rows = append(rows, []interface{}{string(a.Severity), a.Message, a.SuggestedAction, a.RelatedItem})
	}
	if err := writeRows(f, sheet, rows); err != nil {
		return err
	}
	_ = f.SetColWidth(sheet, "B", "B", 80)
	_ = f.SetColWidth(sheet, "C", "D", 48)
	if err := f.SetCellStyle(sheet, "A1", "D1", st.header); err != nil {
		return err
	}

	if !cfg.Highlight {
		return nil
	}
	for idx, a := range rep.Result.Alerts {
		if err := highlightRow(f, sheet, idx+2, 1, a.Severity, st); err != nil {
			return err
		}
	}
	return nil
}

func writeWarningSheet(f *excelize.File, sheet string, rep Report, _ Config, st xlsxStyles) error {
	rows := [][]interface{}{{"Warning"}}
	for _, w := range rep.Result.Warnings {
		rows = append(rows, []interface{}{w})
	}
	if err := writeRows(f, sheet, rows); err != nil {
		return err
	}
	_ = f.SetColWidth(sheet, "A", "A", 100)
	return f.SetCellStyle(sheet, "A1", "A1", st.header)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

// highlightRow fills columns 1..cols of row according to severity.
func highlightRow(f *excelize.File, sheet string, row, cols int, severity comparison.Severity, st xlsxStyles) error {
	var style int
	switch severity {
	case comparison.SeverityHigh:
		style = st.high
	case comparison.SeverityLow:
		style = st.low
	default:
		return nil
	}
	from, _ := excelize.CoordinatesToCellName(1, row)
	to, _ := excelize.CoordinatesToCellName(cols, row)
	return f.SetCellStyle(sheet, from, to, style)
}

func num(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
