package parser

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/FACorreiaa/po-reconciler/internal/domain/import/sniffer"
)

var (
	ErrInvalidPDF  = errors.New("invalid PDF")
	ErrNoTextLayer = errors.New("PDF has no text layer")
)

const (
	defaultRowTolerance = 2.0
	defaultFontSize     = 10.0
	// A horizontal gap wider than this many font sizes starts a new cell.
	cellGapFactor = 1.5
)

// PDFParser extracts line-item tables from text-based PDFs. Scanned documents
// without a text layer are rejected.
type PDFParser struct {
	config       Config
	rowTolerance float64
}

// NewPDFParser creates a new PDF parser instance.
func NewPDFParser(config Config) *PDFParser {
	return &PDFParser{config: config, rowTolerance: defaultRowTolerance}
}

// Parse validates the file with pdfcpu, then rebuilds table rows from the
// positioned text of every page.
func (p *PDFParser) Parse(data []byte) (*ParseResult, error) {
	pageCount, err := validatePDF(data)
	if err != nil {
		return nil, err
	}

	lines, err := extractLines(data, p.rowTolerance)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrNoTextLayer
	}

	texts := make([][]string, len(lines))
	for i, line := range lines {
		texts[i] = line.texts()
	}

	headerRow := p.config.HeaderRow
	if headerRow < 0 {
		headerRow = sniffer.FindHeaderRow(texts)
	}
	if headerRow < 0 || headerRow >= len(lines) {
		return nil, fmt.Errorf("%w in PDF text", ErrNoLineItemTable)
	}

	cols := *sniffer.SuggestColumns(texts[headerRow])
	if p.config.Columns != nil {
		cols = *p.config.Columns
	}
	if err := requireColumns(cols); err != nil {
		return nil, err
	}

	header := lines[headerRow]
	body := make([][]string, 0, len(lines)-headerRow-1)
	for _, line := range lines[headerRow+1:] {
		body = append(body, header.align(line))
	}

	result := &ParseResult{
		Method:  MethodPDFText,
		Headers: texts[headerRow],
		Columns: cols,
		Dialect: sniffer.ProbeDialect(sampleRows(body, 5), cols.UnitPriceCol, cols.TotalCol),
	}
	result.Metadata.PageCount = pageCount
	for _, row := range texts[:headerRow] {
		result.textLines = append(result.textLines, strings.Join(row, " "))
	}

	if err := decodeTable(&sliceSource{rows: body}, cols, p.config.Kind, result); err != nil {
		return nil, err
	}
	result.finish()
	return result, nil
}

// validatePDF checks the file structure and returns the page count.
func validatePDF(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	return ctx.PageCount, nil
}

// extractLines returns the text lines of every page, top to bottom.
func extractLines(data []byte, tolerance float64) (lines []pdfLine, err error) {
	// The content stream interpreter panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			lines = nil
			err = fmt.Errorf("%w: %v", ErrInvalidPDF, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		lines = append(lines, groupLines(page.Content().Text, tolerance)...)
	}
	return lines, nil
}

type pdfCell struct {
	text   string
	x0, x1 float64
}

func (c pdfCell) center() float64 {
	return (c.x0 + c.x1) / 2
}

type pdfLine struct {
	y     float64
	cells []pdfCell
}

func (l pdfLine) texts() []string {
	out := make([]string, len(l.cells))
	for i, c := range l.cells {
		out[i] = c.text
	}
	return out
}

// align places the cells of line under the columns of header l. Column
// boundaries sit halfway between neighbouring header cells, and each cell goes
// to the column its center falls in.
func (l pdfLine) align(line pdfLine) []string {
	row := make([]string, len(l.cells))
	if len(l.cells) == 0 {
		return row
	}

	bounds := make([]float64, len(l.cells)-1)
	for i := range bounds {
		bounds[i] = (l.cells[i].x1 + l.cells[i+1].x0) / 2
	}

	for _, cell := range line.cells {
		col := sort.SearchFloat64s(bounds, cell.center())
		if row[col] != "" {
			row[col] += " " + cell.text
		} else {
			row[col] = cell.text
		}
	}
	return row
}

// groupLines clusters text fragments sharing a baseline into lines, then splits
// each line into cells on wide horizontal gaps.
func groupLines(texts []pdf.Text, tolerance float64) []pdfLine {
	type bucket struct {
		y     float64
		texts []pdf.Text
	}

	var buckets []bucket
	for _, t := range texts {
		if t.S == "" {
			continue
		}
		placed := false
		for i := range buckets {
			if math.Abs(buckets[i].y-t.Y) < tolerance {
				buckets[i].texts = append(buckets[i].texts, t)
				placed = true
				break
			}
		}
		if !placed {
			buckets = append(buckets, bucket{y: t.Y, texts: []pdf.Text{t}})
		}
	}

	// PDF coordinates grow upwards.
	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].y > buckets[j].y
	})

	lines := make([]pdfLine, 0, len(buckets))
	for _, b := range buckets {
		if cells := splitCells(b.texts); len(cells) > 0 {
			lines = append(lines, pdfLine{y: b.y, cells: cells})
		}
	}
	return lines
}

func splitCells(texts []pdf.Text) []pdfCell {
	sort.SliceStable(texts, func(i, j int) bool {
		return texts[i].X < texts[j].X
	})

	var (
		cells   []pdfCell
		current strings.Builder
		cell    pdfCell
		prevEnd float64
		started bool
	)

	flush := func() {
		if text := strings.Join(strings.Fields(current.String()), " "); text != "" {
			cell.text = text
			cells = append(cells, cell)
		}
		current.Reset()
		started = false
	}

	for _, t := range texts {
		size := t.FontSize
		if size <= 0 {
			size = defaultFontSize
		}
		width := t.W
		if width <= 0 {
			width = float64(utf8.RuneCountInString(t.S)) * size * 0.5
		}

		if started && t.X-prevEnd > size*cellGapFactor {
			flush()
		}
		if strings.TrimSpace(t.S) == "" {
			if started {
				current.WriteByte(' ')
			}
			prevEnd = math.Max(prevEnd, t.X+width)
			continue
		}
		if !started {
			cell = pdfCell{x0: t.X}
			started = true
		} else if t.X-prevEnd > size*0.2 {
			current.WriteByte(' ')
		}
		current.WriteString(t.S)
		cell.x1 = math.Max(cell.x1, t.X+width)
		prevEnd = math.Max(prevEnd, t.X+width)
	}
	flush()

	return cells
}
