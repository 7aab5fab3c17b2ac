// Package parser extracts line-item tables from CSV, Excel and PDF documents.
// Every source is reduced to the same canonical table, which gocsv decodes into
// raw rows ready for normalization.
package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/po-reconciler/internal/domain/import/sniffer"
	"github.com/FACorreiaa/po-reconciler/internal/domain/lineitem"
)

// Extraction methods recorded on parsed documents.
const (
	MethodCSV     = "csv"
	MethodXLSX    = "xlsx"
	MethodPDFText = "pdf-text"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoLineItemTable   = errors.New("no line-item table found")
)

// ParseResult contains the results of extracting a document's line-item table.
type ParseResult struct {
	Method      string
	Headers     []string
	Columns     sniffer.ColumnSuggestions
	Dialect     *sniffer.RegionalDialect
	Metadata    lineitem.Metadata
	Rows        []lineitem.RawRow
	Errors      []lineitem.ParseError
	TotalRows   int
	ParsedRows  int
	SkippedRows int

	// textLines holds document text outside the table (preamble, totals) for
	// metadata extraction.
	textLines []string
}

// Config configures table extraction.
type Config struct {
	Kind      lineitem.DocumentKind
	Delimiter rune                       // CSV delimiter (0 = auto-detect)
	HeaderRow int                        // 0-based header row (-1 = auto-detect)
	Columns   *sniffer.ColumnSuggestions // Column override (nil = detect from header)
}

// DefaultConfig returns a config that auto-detects everything.
func DefaultConfig(kind lineitem.DocumentKind) Config {
	return Config{
		Kind:      kind,
		HeaderRow: -1,
	}
}

// Parser extracts raw line-item rows from a document.
type Parser interface {
	Parse(data []byte) (*ParseResult, error)
}

// CSVParser parses delimited text files.
type CSVParser struct {
	config Config
}

// NewCSVParser creates a new CSV parser with the given configuration
func NewCSVParser(config Config) *CSVParser {
	return &CSVParser{config: config}
}

// Parse locates the header line, then decodes every data row below it.
func (p *CSVParser) Parse(data []byte) (*ParseResult, error) {
	fileConfig, err := sniffer.DetectConfigWithOptions(data, &sniffer.DetectOptions{
		HeaderRowIndex: p.config.HeaderRow,
		Delimiter:      p.config.Delimiter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to detect CSV layout: %w", err)
	}

	cols := fileConfig.Columns
	if p.config.Columns != nil {
		cols = *p.config.Columns
	}
	if err := requireColumns(cols); err != nil {
		return nil, err
	}

	result := &ParseResult{
		Method:  MethodCSV,
		Headers: fileConfig.Headers,
		Columns: cols,
		Dialect: sniffer.ProbeDialect(fileConfig.SampleRows, cols.UnitPriceCol, cols.TotalCol),
	}
	result.textLines = preambleLines(data, fileConfig.SkipLines, fileConfig.Delimiter)

	csvReader := csv.NewReader(bytes.NewReader(sniffer.SkipLines(data, fileConfig.SkipLines+1)))
	csvReader.Comma = fileConfig.Delimiter
	csvReader.LazyQuotes = true
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1 // Variable field count

	if err := decodeTable(csvReader, cols, p.config.Kind, result); err != nil {
		return nil, err
	}

	result.finish()
	return result, nil
}

// requireColumns fails when a column the normalizer cannot do without is missing.
func requireColumns(cols sniffer.ColumnSuggestions) error {
	if missing := cols.Missing(); len(missing) > 0 {
		return fmt.Errorf("%w: missing %s column", ErrNoLineItemTable, strings.Join(missing, ", "))
	}
	return nil
}

// finish derives metadata from the text around the table.
func (r *ParseResult) finish() {
	european := r.Dialect != nil && r.Dialect.IsEuropeanFormat
	meta := ExtractMetadata(r.textLines, european)
	meta.PageCount = r.Metadata.PageCount
	if meta.Currency == "" && r.Dialect != nil {
		meta.Currency = r.Dialect.CurrencyHint
	}
	r.Metadata = meta
	r.ParsedRows = len(r.Rows)
}

// rowSource yields raw table rows; *csv.Reader satisfies it.
type rowSource interface {
	Read() ([]string, error)
}

// sliceSource serves rows that were already extracted, such as a worksheet.
type sliceSource struct {
	rows [][]string
	pos  int
}

func (s *sliceSource) Read() ([]string, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

// lineItemRecord is the canonical table every source is decoded into.
type lineItemRecord struct {
	Row         int    `csv:"row"`
	SKU         string `csv:"sku"`
	Description string `csv:"description"`
	Quantity    string `csv:"quantity"`
	UnitPrice   string `csv:"unit_price"`
	Total       string `csv:"total"`
}

var canonicalHeader = []string{"row", "sku", "description", "quantity", "unit_price", "total"}

// tableReader implements gocsv.CSVReader. It emits the canonical header, then
// projects each data row of the source onto the detected columns. Blank rows,
// repeated headers and summary rows are dropped. Free-text rows are dropped
// with a ParseError.
type tableReader struct {
	src        rowSource
	cols       sniffer.ColumnSuggestions
	kind       lineitem.DocumentKind
	result     *ParseResult
	headerSent bool
	next       int
}

func (r *tableReader) Read() ([]string, error) {
	if !r.headerSent {
		r.headerSent = true
		return canonicalHeader, nil
	}

	for {
		record, err := r.src.Read()
		if err == io.EOF {
			return nil, io.EOF
		}

		idx := r.next
		if err != nil {
			var csvErr *csv.ParseError
			if !errors.As(err, &csvErr) {
				return nil, err
			}
			r.next++
			r.result.TotalRows++
			r.result.Errors = append(r.result.Errors, lineitem.ParseError{
				Document: r.kind,
				Row:      idx,
				Message:  csvErr.Err.Error(),
			})
			continue
		}

		if isBlank(record) {
			continue
		}
		r.next++
		r.result.TotalRows++

		if sniffer.IsSummaryRow(record, r.cols) {
			r.result.SkippedRows++
			r.result.textLines = append(r.result.textLines, joinCells(record))
			continue
		}
		if isTextRow(record, r.cols) {
			line := joinCells(record)
			r.result.SkippedRows++
			r.result.textLines = append(r.result.textLines, line)
			r.result.Errors = append(r.result.Errors, lineitem.ParseError{
				Document: r.kind,
				Row:      idx,
				Message:  "no SKU, quantity, unit price or total; row skipped",
				RawData:  line,
			})
			continue
		}
		if sniffer.SuggestColumns(record).IsLineItemHeader() {
			// Header repeated on a later page.
			r.result.SkippedRows++
			continue
		}

		return []string{
			strconv.Itoa(idx),
			sniffer.Cell(record, r.cols.SKUCol),
			sniffer.Cell(record, r.cols.DescCol),
			sniffer.Cell(record, r.cols.QuantityCol),
			sniffer.Cell(record, r.cols.UnitPriceCol),
			sniffer.Cell(record, r.cols.TotalCol),
		}, nil
	}
}

func (r *tableReader) ReadAll() ([][]string, error) {
	var out [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
}

// decodeTable reads every data row from src into result.Rows.
func decodeTable(src rowSource, cols sniffer.ColumnSuggestions, kind lineitem.DocumentKind, result *ParseResult) error {
	reader := &tableReader{src: src, cols: cols, kind: kind, result: result}

	var records []lineItemRecord
	if err := gocsv.UnmarshalCSV(reader, &records); err != nil {
		return fmt.Errorf("failed to decode line items: %w", err)
	}

	result.Rows = make([]lineitem.RawRow, 0, len(records))
	for _, rec := range records {
		result.Rows = append(result.Rows, lineitem.RawRow{
			RowIndex:    rec.Row,
			SKU:         rec.SKU,
			Description: rec.Description,
			Quantity:    rec.Quantity,
			UnitPrice:   rec.UnitPrice,
			Total:       rec.Total,
		})
	}
	return nil
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// isTextRow reports whether a row carries no item data at all, such as a note
// or terms line below the table.
func isTextRow(record []string, cols sniffer.ColumnSuggestions) bool {
	return sniffer.Cell(record, cols.SKUCol) == "" &&
		sniffer.Cell(record, cols.QuantityCol) == "" &&
		sniffer.Cell(record, cols.UnitPriceCol) == "" &&
		sniffer.Cell(record, cols.TotalCol) == ""
}

func joinCells(record []string) string {
	parts := make([]string, 0, len(record))
	for _, cell := range record {
		if c := strings.TrimSpace(cell); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " ")
}

// preambleLines returns the non-empty lines above the header with delimiters
// turned into spaces.
func preambleLines(data []byte, n int, delimiter rune) []string {
	var lines []string
	for i, line := range strings.Split(string(data), "\n") {
		if i >= n {
			break
		}
		line = strings.TrimPrefix(line, "\uFEFF")
		line = strings.Join(strings.Fields(strings.ReplaceAll(line, string(delimiter), " ")), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
