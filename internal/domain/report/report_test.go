package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/po-reconciler/internal/domain/comparison"
	"github.com/FACorreiaa/po-reconciler/internal/domain/lineitem"
	"github.com/FACorreiaa/po-reconciler/pkg/storage"
)

func sampleReport(t *testing.T) Report {
	t.Helper()
	order := lineitem.Document{Kind: lineitem.KindOrder, ID: "po.csv", Items: []lineitem.LineItem{
		lineitem.Fixture(lineitem.KindOrder, 0, "WM-100", "Wireless Mouse", "10", "14.50"),
		lineitem.Fixture(lineitem.KindOrder, 1, "", "USB-C Hub", "2", "49.99"),
		lineitem.Fixture(lineitem.KindOrder, 2, "", "Desk Lamp", "1", "100.00"),
		lineitem.Fixture(lineitem.KindOrder, 3, "", "Mechanical Keyboard", "1", "89.99"),
	}}
	invoice := lineitem.Document{Kind: lineitem.KindInvoice, ID: "pi.xlsx", Items: []lineitem.LineItem{
		lineitem.Fixture(lineitem.KindInvoice, 0, "wm-100", "Mouse, wireless", "10", "15.95"),
		lineitem.Fixture(lineitem.KindInvoice, 1, "", "usb-c hub", "2", "49.99"),
		lineitem.Fixture(lineitem.KindInvoice, 2, "", "desk lamp", "1", "100.77"),
	}}

	result, err := comparison.Compare(order, invoice, comparison.DefaultOptions())
	require.NoError(t, err)
	return Report{
		RunID:       uuid.MustParse("6f1c2b1e-3a5d-4c59-9a53-0d8f2e7f6a10"),
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Result:      result,
	}
}

func TestWriteJSON(t *testing.T) {
	rep := sampleReport(t)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, rep, DefaultConfig()))

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	run := out["run"].(map[string]any)
	assert.Equal(t, rep.RunID.String(), run["run_id"])
	assert.Equal(t, "po.csv", run["parameters"].(map[string]any)["order_document_id"])

	discrepancies := out["discrepancies"].([]any)
	require.Len(t, discrepancies, 3)
	first := discrepancies[0].(map[string]any)
	assert.Equal(t, true, first["flagged"])
	assert.Equal(t, "HIGH", first["alert_severity"])
	assert.Equal(t, "14.5", first["total_value_diff"])

	assert.Len(t, out["unmatched_items"], 1)
	assert.Len(t, out["alerts"], 2)
	assert.Equal(t, "-74.72", out["summary"].(map[string]any)["value_difference"])
}

func TestWriteJSON_SectionToggles(t *testing.T) {
	cfg := Config{IncludeSummary: true}

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleReport(t), cfg))

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Contains(t, out, "summary")
	assert.NotContains(t, out, "discrepancies")
	assert.NotContains(t, out, "unmatched_items")
	assert.NotContains(t, out, "alerts")
	assert.Contains(t, out, "warnings")
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleReport(t), DefaultConfig()))

	assert.True(t, strings.HasPrefix(buf.String(), "# Run ID: 6f1c2b1e-3a5d-4c59-9a53-0d8f2e7f6a10\n"))

	r := csv.NewReader(&buf)
	r.Comment = '#'
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5, "header, three matched rows, one unmatched")

	head := records[0]
	assert.Equal(t, "Status", head[0])
	col := func(name string) int {
		for i, h := range head {
			if h == name {
				return i
			}
		}
		t.Fatalf("column %s missing", name)
		return -1
	}

	assert.Equal(t, StatusMatched, records[1][col("Status")])
	assert.Equal(t, "SKU", records[1][col("Match_Tier")])
	assert.Equal(t, "14.5", records[1][col("Total_Value_Difference")])
	assert.Equal(t, "10.00", records[1][col("Percent_Difference")])
	assert.Equal(t, "HIGH", records[1][col("Alert_Severity")])
	assert.Equal(t, "", records[2][col("Alert_Severity")])
	assert.Equal(t, "LOW", records[3][col("Alert_Severity")])

	assert.Equal(t, StatusUnmatchedOrder, records[4][col("Status")])
	assert.Equal(t, "Mechanical Keyboard", records[4][col("PO_Description")])
	assert.Equal(t, "NO_CANDIDATE", records[4][col("Unmatched_Reason")])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleReport(t), DefaultConfig()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetDiscrepancies, SheetUnmatched, SheetAlerts, SheetWarnings}, f.GetSheetList())

	rows, err := f.GetRows(SheetDiscrepancies)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Wireless Mouse", rows[1][3])

	highStyle, err := f.GetCellStyle(SheetDiscrepancies, "A2")
	require.NoError(t, err)
	plainStyle, err := f.GetCellStyle(SheetDiscrepancies, "A3")
	require.NoError(t, err)
	lowStyle, err := f.GetCellStyle(SheetDiscrepancies, "A4")
	require.NoError(t, err)
	assert.NotEqual(t, highStyle, plainStyle)
	assert.NotEqual(t, highStyle, lowStyle)

	alerts, err := f.GetRows(SheetAlerts)
	require.NoError(t, err)
	require.Len(t, alerts, 3)
	assert.Equal(t, "HIGH", alerts[1][0])
}

func TestWriteXLSX_OnlyAlerts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleReport(t), Config{IncludeAlerts: true}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetAlerts, SheetWarnings}, f.GetSheetList())
}

func TestGenerator_Generate(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	gen := NewGenerator(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rep := sampleReport(t)
	cfg := DefaultConfig()
	cfg.BaseName = "acme"

	files, err := gen.Generate(context.Background(), rep, cfg)
	require.NoError(t, err)
	require.Len(t, files, 3)

	stored, err := store.List(context.Background(), rep.RunID)
	require.NoError(t, err)
	names := make([]string, len(stored))
	for i, f := range stored {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"acme.csv", "acme.json", "acme.xlsx"}, names)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}
