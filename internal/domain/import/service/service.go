// Package service provides the import orchestration logic.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/po-reconciler/internal/domain/import/normalizer"
	"github.com/FACorreiaa/po-reconciler/internal/domain/import/parser"
	"github.com/FACorreiaa/po-reconciler/internal/domain/import/sniffer"
	"github.com/FACorreiaa/po-reconciler/internal/domain/lineitem"
)

// Format is a supported input file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

var (
	pdfMagic = []byte("%PDF-")
	zipMagic = []byte("PK\x03\x04")
)

// DetectFormat picks the parser for a file from its magic bytes, falling back to
// the file extension. Plain UTF-8 text without a known extension is read as CSV.
func DetectFormat(filename string, data []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(data, pdfMagic):
		return FormatPDF, nil
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX, nil
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".tsv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".pdf":
		return FormatPDF, nil
	case "":
		if utf8.Valid(stripUTF8BOM(data)) {
			return FormatCSV, nil
		}
	}

	return "", fmt.Errorf("%w: %s", parser.ErrUnsupportedFormat, filename)
}

// IsNoTable reports whether err means the file was readable but held no
// line-item table. Such documents reconcile as empty rather than failing.
func IsNoTable(err error) bool {
	return errors.Is(err, parser.ErrNoLineItemTable) ||
		errors.Is(err, parser.ErrNoTextLayer) ||
		errors.Is(err, sniffer.ErrNoHeadersFound) ||
		errors.Is(err, sniffer.ErrEmptyFile)
}

// Options configures normalization of imported documents.
type Options struct {
	// EuropeanFormat forces comma-decimal parsing. When false the format is
	// detected per document.
	EuropeanFormat bool
	Aliases        *normalizer.AliasTable
}

// ImportService turns uploaded files into normalized documents.
type ImportService struct {
	opts   Options
	logger *slog.Logger
	tracer trace.Tracer
}

// NewImportService creates a new import service
func NewImportService(logger *slog.Logger, opts Options) *ImportService {
	return &ImportService{
		opts:   opts,
		logger: logger,
		tracer: otel.Tracer("po-reconciler/import"),
	}
}

// ImportDocument parses a PO or PI file and normalizes its line items. Rows that
// fail normalization are recorded on the document's Errors and skipped.
func (s *ImportService) ImportDocument(ctx context.Context, kind lineitem.DocumentKind, filename string, data []byte) (lineitem.Document, error) {
	ctx, span := s.tracer.Start(ctx, "import.document", trace.WithAttributes(
		attribute.String("document.kind", string(kind)),
		attribute.String("document.name", filename),
	))
	defer span.End()

	if !kind.Valid() {
		return lineitem.Document{}, lineitem.ConfigurationError{Field: "document kind", Value: string(kind), Message: "must be ORDER or INVOICE"}
	}
	if err := ctx.Err(); err != nil {
		return lineitem.Document{}, err
	}

	format, err := DetectFormat(filename, data)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return lineitem.Document{}, err
	}
	span.SetAttributes(attribute.String("document.format", string(format)))

	cfg := parser.DefaultConfig(kind)
	var p parser.Parser
	switch format {
	case FormatCSV:
		data = normalizeCSVBytes(data)
		p = parser.NewCSVParser(cfg)
	case FormatXLSX:
		p = parser.NewExcelParser(cfg)
	case FormatPDF:
		p = parser.NewPDFParser(cfg)
	}

	result, err := p.Parse(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return lineitem.Document{}, fmt.Errorf("failed to parse %s: %w", filename, err)
	}

	european := s.opts.EuropeanFormat || (result.Dialect != nil && result.Dialect.IsEuropeanFormat)
	norm := normalizer.New(normalizer.Options{EuropeanFormat: european, Aliases: s.opts.Aliases})

	doc := norm.NormalizeDocument(kind, filename, result.Rows)
	doc.Metadata = result.Metadata
	doc.ExtractionMethod = result.Method
	if len(result.Errors) > 0 {
		doc.Errors = append(append([]lineitem.ParseError{}, result.Errors...), doc.Errors...)
	}

	span.SetAttributes(
		attribute.Int("document.rows", result.TotalRows),
		attribute.Int("document.items", len(doc.Items)),
		attribute.Int("document.errors", len(doc.Errors)),
	)
	s.logger.InfoContext(ctx, "document imported",
		slog.String("document", filename),
		slog.String("kind", kind.Short()),
		slog.String("method", result.Method),
		slog.Bool("european_format", european),
		slog.Int("rows_total", result.TotalRows),
		slog.Int("rows_skipped", result.SkippedRows),
		slog.Int("items", len(doc.Items)),
		slog.Int("errors", len(doc.Errors)),
	)

	return doc, nil
}

func normalizeCSVBytes(data []byte) []byte {
	data = stripUTF8BOM(data)
	if utf8.Valid(data) {
		return data
	}
	return decodeLatin1(data)
}

func stripUTF8BOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

// decodeLatin1 maps each byte to the rune of the same value.
func decodeLatin1(data []byte) []byte {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return []byte(string(runes))
}
