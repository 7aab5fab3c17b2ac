// Package report renders comparison results as JSON, CSV and XLSX files.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/po-reconciler/internal/domain/comparison"
)

// Format is an output file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts a format name in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unknown report format %q", s)
	}
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// Config selects report sections and files.
type Config struct {
	Formats          []Format
	BaseName         string // File name without extension
	IncludeMatched   bool
	IncludeUnmatched bool
	IncludeSummary   bool
	IncludeAlerts    bool
	Highlight        bool // Flag and color rows that carry a discrepancy
}

// DefaultConfig enables every section and format.
func DefaultConfig() Config {
	return Config{
		Formats:          []Format{FormatJSON, FormatCSV, FormatXLSX},
		BaseName:         "comparison",
		IncludeMatched:   true,
		IncludeUnmatched: true,
		IncludeSummary:   true,
		IncludeAlerts:    true,
		Highlight:        true,
	}
}

// Report is one comparison run ready to render.
type Report struct {
	RunID       uuid.UUID
	GeneratedAt time.Time
	Result      *comparison.Result
}

// Render writes rep in format f.
func Render(w io.Writer, f Format, rep Report, cfg Config) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, rep, cfg)
	case FormatCSV:
		return WriteCSV(w, rep, cfg)
	case FormatXLSX:
		return WriteXLSX(w, rep, cfg)
	default:
		return fmt.Errorf("unknown report format %q", f)
	}
}

// header lists the run parameters printed at the top of every report.
func header(rep Report) [][2]string {
	p := rep.Result.Parameters
	return [][2]string{
		{"Run ID", rep.RunID.String()},
		{"Generated At", rep.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Purchase Order", p.OrderDocumentID},
		{"Proforma Invoice", p.InvoiceDocumentID},
		{"Fuzzy Threshold", fmt.Sprintf("%g", p.FuzzyThreshold)},
		{"Currency", p.Currency},
	}
}
