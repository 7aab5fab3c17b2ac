package reconcile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/po-reconciler/internal/domain/comparison"
)

// Pair statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Pair names one order/invoice pair of a batch manifest.
type Pair struct {
	ID      string `csv:"id"`
	Order   string `csv:"po"`
	Invoice string `csv:"pi"`
}

// PairStatus is the outcome of one pair. A failed pair does not stop the batch.
type PairStatus struct {
	PairID          string              `csv:"id" json:"id"`
	Order           string              `csv:"po" json:"po"`
	Invoice         string              `csv:"pi" json:"pi"`
	Status          string              `csv:"status" json:"status"`
	RunID           string              `csv:"run_id" json:"run_id,omitempty"`
	Matched         int                 `csv:"matched" json:"matched"`
	Discrepancies   int                 `csv:"discrepancies" json:"discrepancies"`
	HighAlerts      int                 `csv:"high_alerts" json:"high_alerts"`
	ValueDifference string              `csv:"value_difference" json:"value_difference,omitempty"`
	Error           string              `csv:"error" json:"error,omitempty"`
	Summary         *comparison.Summary `csv:"-" json:"summary,omitempty"`
}

// LoadManifest reads a CSV manifest with id,po,pi columns. Rows without an id
// are numbered from 1.
func LoadManifest(r io.Reader) ([]Pair, error) {
	var pairs []Pair
	if err := gocsv.Unmarshal(r, &pairs); err != nil {
		return nil, fmt.Errorf("failed to read batch manifest: %w", err)
	}
	for i := range pairs {
		pairs[i].ID = strings.TrimSpace(pairs[i].ID)
		pairs[i].Order = strings.TrimSpace(pairs[i].Order)
		pairs[i].Invoice = strings.TrimSpace(pairs[i].Invoice)
		if pairs[i].ID == "" {
			pairs[i].ID = fmt.Sprintf("%d", i+1)
		}
	}
	return pairs, nil
}

// WriteStatuses writes batch statuses as CSV.
func WriteStatuses(w io.Writer, statuses []PairStatus) error {
	if err := gocsv.Marshal(&statuses, w); err != nil {
		return fmt.Errorf("failed to write batch summary: %w", err)
	}
	return nil
}

// BatchRunner reconciles many pairs with a bounded number of workers.
type BatchRunner struct {
	svc      *Service
	workers  int
	readFile func(string) ([]byte, error)
	logger   *slog.Logger
}

// NewBatchRunner creates a runner; workers below 1 means 1.
func NewBatchRunner(svc *Service, workers int, logger *slog.Logger) *BatchRunner {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchRunner{svc: svc, workers: workers, readFile: os.ReadFile, logger: logger}
}

// Run processes pairs concurrently. Relative paths are resolved against baseDir.
// Statuses are returned in manifest order. The returned error is non-nil only
// when ctx ends before every pair was attempted.
func (b *BatchRunner) Run(ctx context.Context, pairs []Pair, baseDir string) ([]PairStatus, error) {
	statuses := make([]PairStatus, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, pair := range pairs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			statuses[i] = b.runPair(gctx, pair, baseDir)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i := range statuses {
		if statuses[i].Status == "" {
			statuses[i] = PairStatus{
				PairID: pairs[i].ID, Order: pairs[i].Order, Invoice: pairs[i].Invoice,
				Status: StatusFailed, Error: "not started: batch cancelled",
			}
		}
		if statuses[i].Status == StatusFailed {
			failed++
		}
	}
	b.logger.InfoContext(ctx, "batch completed",
		slog.Int("pairs", len(pairs)),
		slog.Int("succeeded", len(pairs)-failed),
		slog.Int("failed", failed),
	)
	return statuses, ctx.Err()
}

func (b *BatchRunner) runPair(ctx context.Context, pair Pair, baseDir string) PairStatus {
	status := PairStatus{PairID: pair.ID, Order: pair.Order, Invoice: pair.Invoice, Status: StatusFailed}

	in, err := b.load(pair, baseDir)
	if err != nil {
		status.Error = err.Error()
		return status
	}

	run, err := b.svc.Run(ctx, in)
	if err != nil {
		status.Error = err.Error()
		b.logger.WarnContext(ctx, "batch pair failed", slog.String("pair", pair.ID), slog.Any("error", err))
		return status
	}

	summary := run.Result.Summary
	status.Status = StatusOK
	status.RunID = run.ID.String()
	status.Matched = summary.MatchedCount
	status.Discrepancies = summary.DiscrepancyCount
	status.HighAlerts = summary.HighAlertCount
	status.ValueDifference = summary.ValueDifference.String()
	status.Summary = &summary
	return status
}

func (b *BatchRunner) load(pair Pair, baseDir string) (Input, error) {
	if pair.Order == "" || pair.Invoice == "" {
		return Input{}, fmt.Errorf("pair %s: both po and pi paths are required", pair.ID)
	}
	orderData, err := b.readFile(resolve(baseDir, pair.Order))
	if err != nil {
		return Input{}, fmt.Errorf("failed to read %s: %w", pair.Order, err)
	}
	invoiceData, err := b.readFile(resolve(baseDir, pair.Invoice))
	if err != nil {
		return Input{}, fmt.Errorf("failed to read %s: %w", pair.Invoice, err)
	}
	return Input{
		Order:   File{Name: filepath.Base(pair.Order), Data: orderData},
		Invoice: File{Name: filepath.Base(pair.Invoice), Data: invoiceData},
	}, nil
}

func resolve(baseDir, path string) string {
	if filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
