package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/po-reconciler/internal/domain/comparison"
	"github.com/FACorreiaa/po-reconciler/internal/domain/import/parser"
	"github.com/FACorreiaa/po-reconciler/internal/domain/import/service"
	"github.com/FACorreiaa/po-reconciler/internal/domain/lineitem"
	"github.com/FACorreiaa/po-reconciler/internal/domain/report"
	"github.com/FACorreiaa/po-reconciler/pkg/metrics"
	"github.com/FACorreiaa/po-reconciler/pkg/push"
	"github.com/FACorreiaa/po-reconciler/pkg/storage"
)

const orderCSV = `PO Number: PO-2024-001
Vendor: Acme Supplies

SKU,Description,Quantity,Unit Price,Total
WM-100,Wireless Mouse,10,14.50,145.00
,USB-C Hub,2,49.99,99.98
,Mechanical Keyboard,1,89.99,89.99
`

const invoiceCSV = `Invoice No: PI-778
SKU,Description,Qty,Unit Price,Amount
wm-100,"Mouse, wireless",10,15.95,159.50
,usb-c hub,2,49.99,99.98
`

type fakeNotifier struct {
	mu      sync.Mutex
	digests []push.Digest
	err     error
}

func (f *fakeNotifier) Notify(_ context.Context, d push.Digest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.digests = append(f.digests, d)
	return f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) (*Service, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	opts := Options{
		Compare:       comparison.DefaultOptions(),
		Report:        report.DefaultConfig(),
		ReportBaseURL: "http://localhost:8080",
	}
	svc := NewService(
		service.NewImportService(testLogger(), service.Options{}),
		report.NewGenerator(store, testLogger()),
		testLogger(),
		opts,
	)
	return svc, store
}

func input() Input {
	return Input{
		Order:   File{Name: "po.csv", Data: []byte(orderCSV)},
		Invoice: File{Name: "pi.csv", Data: []byte(invoiceCSV)},
	}
}

func TestService_Run(t *testing.T) {
	svc, store := newTestService(t)
	notifier := &fakeNotifier{}
	m := metrics.New()
	svc.WithNotifier(notifier).WithMetrics(m)

	run, err := svc.Run(context.Background(), input())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, run.ID)
	res := run.Result
	assert.Equal(t, 2, res.Summary.MatchedCount)
	assert.Equal(t, 1, res.Summary.UnmatchedOrderCount)
	assert.Equal(t, 1, res.Summary.HighAlertCount)
	assert.Equal(t, "PO-2024-001", res.OrderMetadata.DocumentNumber)

	files, err := store.List(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Len(t, files, 3)
	assert.Len(t, run.Reports, 3)

	require.Len(t, notifier.digests, 1)
	d := notifier.digests[0]
	assert.Equal(t, run.ID.String(), d.RunID)
	require.Len(t, d.Alerts, 1)
	assert.Equal(t, "HIGH", d.Alerts[0].Severity)
	assert.Equal(t, "http://localhost:8080/v1/comparisons/"+run.ID.String()+"/json", d.ReportURL)
}

func TestService_RunNotifiesOnlyAtLevel(t *testing.T) {
	svc, _ := newTestService(t)
	notifier := &fakeNotifier{err: errors.New("webhook down")}
	svc.WithNotifier(notifier)

	in := Input{
		Order:   File{Name: "po.csv", Data: []byte("Description,Quantity,Unit Price\nDesk Lamp,1,100.00\n")},
		Invoice: File{Name: "pi.csv", Data: []byte("Description,Quantity,Unit Price\nDesk Lamp,1,100.77\n")},
	}
	run, err := svc.Run(context.Background(), in)
	require.NoError(t, err, "a failed notification does not fail the run")
	assert.Equal(t, 1, run.Result.Summary.LowAlertCount)
	assert.Empty(t, notifier.digests, "LOW alerts stay below the default HIGH level")
}

func TestService_RunConfigurationError(t *testing.T) {
	svc, _ := newTestService(t)
	m := metrics.New()
	svc.WithMetrics(m)

	opts := comparison.DefaultOptions()
	opts.FuzzyThreshold = 120

	run, err := svc.RunWithOptions(context.Background(), Input{}, opts)
	assert.Nil(t, run)
	var cfgErr lineitem.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, metrics.OutcomeConfigError, outcome(err))
}

func TestService_RunDocumentWithoutTable(t *testing.T) {
	svc, _ := newTestService(t)

	in := input()
	in.Invoice = File{Name: "pi.csv", Data: []byte("Thank you for your order\nSee attached\n")}

	run, err := svc.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 3, run.Result.Summary.UnmatchedOrderCount)
	require.NotEmpty(t, run.Result.Warnings)
	assert.Contains(t, strings.Join(run.Result.Warnings, "\n"), "PI \"pi.csv\" contains no valid line items")
}

func TestService_RunImportError(t *testing.T) {
	svc, _ := newTestService(t)

	in := input()
	in.Order = File{Name: "po.bin", Data: []byte{0x00, 0xff, 0xfe, 0x01}}

	_, err := svc.Run(context.Background(), in)
	var importErr ImportError
	require.True(t, errors.As(err, &importErr))
	assert.Equal(t, lineitem.KindOrder, importErr.Kind)
	assert.ErrorIs(t, err, parser.ErrUnsupportedFormat)
}

func TestService_Deterministic(t *testing.T) {
	svc, _ := newTestService(t)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	first, err := svc.Run(context.Background(), input())
	require.NoError(t, err)
	second, err := svc.Run(context.Background(), input())
	require.NoError(t, err)

	assert.Equal(t, first.Result, second.Result)
	assert.NotEqual(t, first.ID, second.ID)
}
