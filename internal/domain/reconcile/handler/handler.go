// Package handler exposes reconciliation runs over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/po-reconciler/internal/domain/comparison"
	"github.com/FACorreiaa/po-reconciler/internal/domain/import/parser"
	"github.com/FACorreiaa/po-reconciler/internal/domain/lineitem"
	"github.com/FACorreiaa/po-reconciler/internal/domain/reconcile"
	"github.com/FACorreiaa/po-reconciler/internal/domain/report"
	"github.com/FACorreiaa/po-reconciler/pkg/storage"
)

// ReconcileHandler serves comparison runs and their stored reports.
type ReconcileHandler struct {
	svc       *reconcile.Service
	store     storage.Storage
	maxUpload int64
	logger    *slog.Logger
}

// NewReconcileHandler creates a new handler. maxUpload bounds the multipart
// body in bytes.
func NewReconcileHandler(svc *reconcile.Service, store storage.Storage, maxUpload int64, logger *slog.Logger) *ReconcileHandler {
	if maxUpload <= 0 {
		maxUpload = 20 << 20
	}
	return &ReconcileHandler{svc: svc, store: store, maxUpload: maxUpload, logger: logger}
}

// Routes mounts the handler.
func (h *ReconcileHandler) Routes(r chi.Router) {
	r.Post("/comparisons", h.CreateComparison)
	r.Get("/comparisons/{id}", h.ListReports)
	r.Get("/comparisons/{id}/{format}", h.DownloadReport)
}

type reportLink struct {
	Format string `json:"format"`
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	URL    string `json:"url"`
}

type comparisonResponse struct {
	RunID   uuid.UUID          `json:"run_id"`
	Reports []reportLink       `json:"reports"`
	Result  *comparison.Result `json:"result"`
}

// CreateComparison accepts multipart fields "order" and "invoice" (files) and
// optional "threshold", "zero_value_severity" and "currency".
func (h *ReconcileHandler) CreateComparison(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	order, err := readPart(r, "order")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	invoice, err := readPart(r, "invoice")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts, err := h.options(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	run, err := h.svc.RunWithOptions(r.Context(), reconcile.Input{Order: order, Invoice: invoice}, opts)
	if err != nil {
		h.logger.WarnContext(r.Context(), "comparison request failed", slog.Any("error", err))
		writeServiceError(w, err)
		return
	}

	resp := comparisonResponse{RunID: run.ID, Reports: links(run.ID, run.Reports), Result: run.Result}
	writeJSON(w, http.StatusCreated, resp)
}

// ListReports returns the stored files of a run.
func (h *ReconcileHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	files, err := h.store.List(r.Context(), runID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "reports": links(runID, files)})
}

// DownloadReport streams one report file.
func (h *ReconcileHandler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}
	format, err := report.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	files, err := h.store.List(r.Context(), runID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var name string
	for _, f := range files {
		if f.ContentType == format.ContentType() {
			name = f.Name
			break
		}
	}
	if name == "" {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no %s report for run %s", format, runID))
		return
	}

	rc, info, err := h.store.Open(r.Context(), runID, name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", info.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "report download interrupted", slog.Any("error", err))
	}
}

func (h *ReconcileHandler) options(r *http.Request) (comparison.Options, error) {
	opts := h.svc.Options().Compare
	if v := r.FormValue("threshold"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, lineitem.ConfigurationError{Field: "fuzzy threshold", Value: v, Message: "not a number"}
		}
		opts.FuzzyThreshold = t
	}
	if v := r.FormValue("zero_value_severity"); v != "" {
		opts.ZeroValueSeverity = comparison.Severity(v)
	}
	if v := r.FormValue("currency"); v != "" {
		opts.Currency = v
	}
	return opts, opts.Validate()
}

func readPart(r *http.Request, field string) (reconcile.File, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return reconcile.File{}, fmt.Errorf("missing file field %q", field)
	}
	defer file.Close()
	return readFile(file, header)
}

func readFile(file multipart.File, header *multipart.FileHeader) (reconcile.File, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return reconcile.File{}, fmt.Errorf("failed to read %s: %w", header.Filename, err)
	}
	return reconcile.File{Name: header.Filename, Data: data}, nil
}

func links(runID uuid.UUID, files []*storage.FileInfo) []reportLink {
	out := make([]reportLink, 0, len(files))
	for _, f := range files {
		format := ""
		for _, candidate := range []report.Format{report.FormatJSON, report.FormatCSV, report.FormatXLSX} {
			if candidate.ContentType() == f.ContentType {
				format = string(candidate)
			}
		}
		out = append(out, reportLink{
			Format: format,
			Name:   f.Name,
			Size:   f.Size,
			URL:    fmt.Sprintf("/v1/comparisons/%s/%s", runID, format),
		})
	}
	return out
}

// writeServiceError maps domain errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var cfgErr lineitem.ConfigurationError
	var importErr reconcile.ImportError
	switch {
	case errors.As(err, &cfgErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, parser.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &importErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
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
