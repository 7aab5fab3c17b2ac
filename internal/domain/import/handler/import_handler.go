// Package handler exposes document inspection over HTTP so callers can check
// how a file will be read before reconciling it.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/FACorreiaa/po-reconciler/internal/domain/import/parser"
	importservice "github.com/FACorreiaa/po-reconciler/internal/domain/import/service"
	"github.com/FACorreiaa/po-reconciler/internal/domain/import/sniffer"
	"github.com/FACorreiaa/po-reconciler/internal/domain/lineitem"
)

// ImportHandler handles document analysis and preview requests.
type ImportHandler struct {
	importSvc *importservice.ImportService
	maxUpload int64
	logger    *slog.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(importSvc *importservice.ImportService, maxUpload int64, logger *slog.Logger) *ImportHandler {
	if maxUpload <= 0 {
		maxUpload = 20 << 20
	}
	return &ImportHandler{
		importSvc: importSvc,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// Routes mounts the handler.
func (h *ImportHandler) Routes(r chi.Router) {
	r.Post("/documents/analyze", h.AnalyzeFile)
	r.Post("/documents/{kind}/preview", h.PreviewDocument)
}

type columnSuggestions struct {
	SKUCol       int `json:"sku_col"`
	DescCol      int `json:"description_col"`
	QuantityCol  int `json:"quantity_col"`
	UnitPriceCol int `json:"unit_price_col"`
	TotalCol     int `json:"total_col"`
}

type regionalDialect struct {
	IsEuropeanFormat bool    `json:"is_european_format"`
	CurrencyHint     string  `json:"currency_hint,omitempty"`
	Confidence       float64 `json:"confidence"`
}

type analyzeResponse struct {
	Format        string             `json:"format"`
	Headers       []string           `json:"headers,omitempty"`
	SampleRows    [][]string         `json:"sample_rows,omitempty"`
	Delimiter     string             `json:"delimiter,omitempty"`
	SkipLines     int                `json:"skip_lines"`
	Fingerprint   string             `json:"fingerprint,omitempty"`
	Suggestions   *columnSuggestions `json:"suggestions,omitempty"`
	Missing       []string           `json:"missing_columns,omitempty"`
	ProbedDialect *regionalDialect   `json:"probed_dialect,omitempty"`
	CanAutoImport bool               `json:"can_auto_import"`
}

// AnalyzeFile detects the format of an uploaded file and, for delimited text,
// its delimiter, header row, column roles and number dialect.
func (h *ImportHandler) AnalyzeFile(w http.ResponseWriter, r *http.Request) {
	name, data, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	format, err := importservice.DetectFormat(name, data)
	if err != nil {
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	}

	resp := analyzeResponse{Format: string(format)}
	if format != importservice.FormatCSV {
		// Binary layouts are only known after a full parse; see preview.
		writeJSON(w, http.StatusOK, resp)
		return
	}

	cfg, err := sniffer.DetectConfig(data)
	if err != nil {
		h.logger.InfoContext(r.Context(), "file analysis found no table", slog.String("file", name), slog.Any("error", err))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	cols := cfg.Columns
	resp.Headers = cfg.Headers
	resp.SampleRows = cfg.SampleRows
	resp.Delimiter = string(cfg.Delimiter)
	resp.SkipLines = cfg.SkipLines
	resp.Fingerprint = cfg.Fingerprint
	resp.Suggestions = &columnSuggestions{
		SKUCol:       cols.SKUCol,
		DescCol:      cols.DescCol,
		QuantityCol:  cols.QuantityCol,
		UnitPriceCol: cols.UnitPriceCol,
		TotalCol:     cols.TotalCol,
	}
	resp.Missing = cols.Missing()
	resp.CanAutoImport = cols.IsLineItemHeader()
	if d := sniffer.ProbeDialect(cfg.SampleRows, cols.UnitPriceCol, cols.TotalCol); d != nil {
		resp.ProbedDialect = &regionalDialect{
			IsEuropeanFormat: d.IsEuropeanFormat,
			CurrencyHint:     d.CurrencyHint,
			Confidence:       d.Confidence,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// PreviewDocument imports an uploaded file as a PO or PI and returns the
// normalized document, including row-level parse errors.
func (h *ImportHandler) PreviewDocument(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(chi.URLParam(r, "kind"))
	if !ok {
		writeError(w, http.StatusNotFound, "document kind must be po or pi")
		return
	}

	name, data, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.importSvc.ImportDocument(r.Context(), kind, name, data)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, doc)
	case errors.Is(err, parser.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
	default:
		h.logger.WarnContext(r.Context(), "document preview failed", slog.String("file", name), slog.Any("error", err))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	}
}

func (h *ImportHandler) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return "", nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, errors.New(`missing file field "file"`)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read %s: %w", header.Filename, err)
	}
	return header.Filename, data, nil
}

func parseKind(s string) (lineitem.DocumentKind, bool) {
	switch strings.ToLower(s) {
	case "po", "order":
		return lineitem.KindOrder, true
	case "pi", "invoice":
		return lineitem.KindInvoice, true
	default:
		return "", false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode response", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
