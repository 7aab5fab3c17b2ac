package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/po-reconciler/internal/domain/import/sniffer"
)

// ExcelParser parses XLSX workbooks.
type ExcelParser struct {
	config Config
}

// NewExcelParser creates a new Excel parser
func NewExcelParser(config Config) *ExcelParser {
	return &ExcelParser{config: config}
}

// Parse reads the first sheet that holds a line-item table. Sheets named like
// "Items" or "Order" are tried before the others.
func (p *ExcelParser) Parse(data []byte) (*ParseResult, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	for _, sheetName := range orderSheets(f.GetSheetList()) {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
		}

		headerRow := p.config.HeaderRow
		if headerRow < 0 {
			headerRow = sniffer.FindHeaderRow(rows)
		}
		if headerRow < 0 || headerRow >= len(rows) {
			continue
		}

		cols := *sniffer.SuggestColumns(rows[headerRow])
		if p.config.Columns != nil {
			cols = *p.config.Columns
		}
		if requireColumns(cols) != nil {
			continue
		}

		body := rows[headerRow+1:]
		result := &ParseResult{
			Method:  MethodXLSX,
			Headers: rows[headerRow],
			Columns: cols,
			Dialect: sniffer.ProbeDialect(sampleRows(body, 5), cols.UnitPriceCol, cols.TotalCol),
		}
		for _, row := range rows[:headerRow] {
			if line := joinCells(row); line != "" {
				result.textLines = append(result.textLines, line)
			}
		}

		if err := decodeTable(&sliceSource{rows: body}, cols, p.config.Kind, result); err != nil {
			return nil, err
		}
		result.finish()
		return result, nil
	}

	return nil, fmt.Errorf("%w in workbook", ErrNoLineItemTable)
}

// orderSheets puts sheets with item-like names first, keeping workbook order otherwise.
func orderSheets(sheets []string) []string {
	preferred := []string{"items", "line items", "order", "purchase order", "invoice", "proforma"}

	ordered := make([]string, 0, len(sheets))
	seen := make(map[string]bool, len(sheets))
	for _, name := range preferred {
		for _, sheet := range sheets {
			if !seen[sheet] && strings.EqualFold(strings.TrimSpace(sheet), name) {
				ordered = append(ordered, sheet)
				seen[sheet] = true
			}
		}
	}
	for _, sheet := range sheets {
		if !seen[sheet] {
			ordered = append(ordered, sheet)
		}
	}
	return ordered
}

func sampleRows(rows [][]string, n int) [][]string {
	if len(rows) < n {
		return rows
	}
	return rows[:n]
}
