// Package e2etest runs the reconciliation pipeline end to end over HTTP and
// through the inbox scheduler.
package e2etest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/po-reconciler/cmd/api"
	"github.com/FACorreiaa/po-reconciler/internal/domain/reconcile"
	"github.com/FACorreiaa/po-reconciler/pkg/config"
	"github.com/FACorreiaa/po-reconciler/pkg/cron"
)

// invoiceCSV is a European-formatted proforma invoice: semicolons, comma
// decimals and a preamble with document metadata.
const invoiceCSV = "Proforma Invoice: PI-88\nVendor: Acme Supplies\n" +
	"Item Code;Item Description;Qty;Unit Price;Amount\n" +
	"wm-100;Wireless Mouse;10;15,95;159,50\n" +
	"HUB-7;usb-c hub;2;49,99;99,98\n" +
	";Cable HDMI 2m;4;6,00;24,00\n" +
	";Office Chair Ergonomic;1;199,00;199,00\n"

func orderXLSX(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	rows := [][]any{
		{"Purchase Order", "PO-2024-001"},
		{},
		{"SKU", "Description", "Quantity", "Unit Price", "Total"},
		{"WM-100", "Wireless Mouse", 10, 14.50, 145.00},
		{"", "USB-C Hub", 2, 49.99, 99.98},
		{"", "HDMI cable", 4, 6.00, 24.00},
		{"", "Mechanical Keyboard", 1, 89.99, 89.99},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			Host:               "127.0.0.1",
			BaseURL:            "http://localhost:8080",
			RateLimitPerSecond: 100,
			RateLimitBurst:     100,
			CORSOrigins:        []string{"*"},
			MaxUploadBytes:     5 << 20,
		},
		Matching: config.MatchingConfig{FuzzyThreshold: 80, ZeroValueSeverity: "HIGH", Suggestions: true},
		Reports: config.ReportConfig{
			OutputDir:        t.TempDir(),
			Formats:          []string{"json", "csv", "xlsx"},
			IncludeMatched:   true,
			IncludeUnmatched: true,
			IncludeSummary:   true,
			IncludeAlerts:    true,
			Highlight:        true,
		},
		Batch:         config.BatchConfig{Workers: 2},
		Observability: config.ObservabilityConfig{MetricsEnabled: true},
		Notifications: config.NotificationConfig{NotifyOnLevel: "HIGH", Timeout: time.Second},
		Schedule:      config.ScheduleConfig{Spec: "@every 1h", InboxDir: t.TempDir()},
	}
}

func newServer(t *testing.T, cfg *config.Config) (*httptest.Server, *api.Dependencies) {
	t.Helper()
	deps, err := api.InitDependencies(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	srv := httptest.NewServer(api.NewRouter(deps))
	t.Cleanup(srv.Close)
	return srv, deps
}

type comparisonResponse struct {
	RunID   string `json:"run_id"`
	Reports []struct {
		Format string `json:"format"`
		URL    string `json:"url"`
	} `json:"reports"`
	Result struct {
		Parameters struct {
			Currency string `json:"currency"`
		} `json:"parameters"`
		OrderMetadata struct {
			DocumentNumber string `json:"document_number"`
		} `json:"order_metadata"`
		InvoiceMetadata struct {
			VendorName string `json:"vendor_name"`
		} `json:"invoice_metadata"`
		Summary struct {
			TotalOrderedValue     string `json:"total_ordered_value"`
			TotalInvoicedValue    string `json:"total_invoiced_value"`
			ValueDifference       string `json:"value_difference"`
			MatchedCount          int    `json:"matched_count"`
			UnmatchedOrderCount   int    `json:"unmatched_order_count"`
			UnmatchedInvoiceCount int    `json:"unmatched_invoice_count"`
			HighAlertCount        int    `json:"high_alert_count"`
			MatchStats            struct {
				SKUMatches   int `json:"sku_matches"`
				ExactMatches int `json:"exact_description_matches"`
				FuzzyMatches int `json:"fuzzy_matches"`
			} `json:"match_stats"`
		} `json:"summary"`
		Alerts []struct {
			Severity string `json:"severity"`
			Message  string `json:"message"`
		} `json:"alerts"`
	} `json:"result"`
}

func postComparison(t *testing.T, srv *httptest.Server, order, invoice []byte) comparisonResponse {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, f := range map[string]struct {
		name string
		data []byte
	}{
		"order":   {"po.xlsx", order},
		"invoice": {"pi.csv", invoice},
	} {
		part, err := mw.CreateFormFile(field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/v1/comparisons", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var out comparisonResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func download(t *testing.T, srv *httptest.Server, path string) []byte {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return data
}

func TestComparison_XLSXOrderAgainstEuropeanCSVInvoice(t *testing.T) {
	srv, _ := newServer(t, testConfig(t))

	out := postComparison(t, srv, orderXLSX(t), []byte(invoiceCSV))
	res := out.Result

	assert.Equal(t, "PO-2024-001", res.OrderMetadata.DocumentNumber)
	assert.Equal(t, "Acme Supplies", res.InvoiceMetadata.VendorName)
	assert.Equal(t, "USD", res.Parameters.Currency)

	s := res.Summary
	assert.Equal(t, 3, s.MatchedCount)
	assert.Equal(t, 1, s.MatchStats.SKUMatches)
	assert.Equal(t, 1, s.MatchStats.ExactMatches)
	assert.Equal(t, 1, s.MatchStats.FuzzyMatches)
	assert.Equal(t, 1, s.UnmatchedOrderCount)
	assert.Equal(t, 1, s.UnmatchedInvoiceCount)
	assert.Equal(t, "358.97", s.TotalOrderedValue)
	assert.Equal(t, "482.48", s.TotalInvoicedValue)
	assert.Equal(t, "123.51", s.ValueDifference)

	require.Len(t, res.Alerts, 1)
	assert.Equal(t, "HIGH", res.Alerts[0].Severity)
	assert.Equal(t, "Total value discrepancy of +$14.50 (10.0%) for 'Wireless Mouse'", res.Alerts[0].Message)
	assert.Equal(t, 1, s.HighAlertCount)

	require.Len(t, out.Reports, 3)
	files := map[string][]byte{}
	for _, r := range out.Reports {
		files[r.Format] = download(t, srv, r.URL)
	}

	var jsonReport map[string]any
	require.NoError(t, json.Unmarshal(files["json"], &jsonReport))
	assert.Contains(t, jsonReport, "summary")

	csvReport := string(files["csv"])
	assert.Contains(t, csvReport, "UNMATCHED_PO")
	assert.Contains(t, csvReport, "Mechanical Keyboard")

	wb, err := excelize.OpenReader(bytes.NewReader(files["xlsx"]))
	require.NoError(t, err)
	defer wb.Close()
	assert.Equal(t, []string{"Summary", "Discrepancies", "Unmatched", "Alerts", "Warnings"}, wb.GetSheetList())
	rows, err := wb.GetRows("Discrepancies")
	require.NoError(t, err)
	assert.Len(t, rows, 4, "header plus three matched pairs")
}

func TestComparison_ReportsListedAfterwards(t *testing.T) {
	srv, _ := newServer(t, testConfig(t))
	out := postComparison(t, srv, orderXLSX(t), []byte(invoiceCSV))

	var listing struct {
		Reports []struct {
			Name string `json:"name"`
		} `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(download(t, srv, "/v1/comparisons/"+out.RunID), &listing))

	names := make([]string, 0, len(listing.Reports))
	for _, r := range listing.Reports {
		names = append(names, r.Name)
	}
	assert.ElementsMatch(t, []string{"comparison.json", "comparison.csv", "comparison.xlsx"}, names)
}

func TestScheduler_SweepsInbox(t *testing.T) {
	cfg := testConfig(t)
	cfg.Reports.Formats = []string{"json"}
	_, deps := newServer(t, cfg)

	inbox := cfg.Schedule.InboxDir
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "acme_po.xlsx"), orderXLSX(t), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "acme_pi.csv"), []byte(invoiceCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "lonely_po.csv"), []byte("x"), 0o644))

	sched := cron.NewScheduler(cron.Config{Spec: cfg.Schedule.Spec, InboxDir: inbox}, deps.BatchRunner, deps.FileStorage, deps.Logger)
	statuses := sched.Sweep(context.Background())

	require.Len(t, statuses, 1)
	assert.Equal(t, reconcile.StatusOK, statuses[0].Status, statuses[0].Error)
	assert.Equal(t, 3, statuses[0].Matched)
	assert.FileExists(t, filepath.Join(inbox, cron.ProcessedDir, "acme_po.xlsx"))
	assert.FileExists(t, filepath.Join(inbox, "lonely_po.csv"))

	runs, err := deps.FileStorage.Runs(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestMetricsCountRuns(t *testing.T) {
	cfg := testConfig(t)
	srv, deps := newServer(t, cfg)
	postComparison(t, srv, orderXLSX(t), []byte(invoiceCSV))

	rec := httptest.NewRecorder()
	api.NewMetricsRouter(deps).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `po_reconciler_runs_total{outcome="success"} 1`), body)
	assert.Contains(t, body, `po_reconciler_matches_total{tier="SKU"} 1`)
}
