// Package reconcile runs complete comparisons: import both documents, compare
// them, write reports and send alert notifications.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/po-reconciler/internal/domain/comparison"
	"github.com/FACorreiaa/po-reconciler/internal/domain/import/service"
	"github.com/FACorreiaa/po-reconciler/internal/domain/lineitem"
	"github.com/FACorreiaa/po-reconciler/internal/domain/matching"
	"github.com/FACorreiaa/po-reconciler/internal/domain/report"
	"github.com/FACorreiaa/po-reconciler/pkg/metrics"
	"github.com/FACorreiaa/po-reconciler/pkg/money"
	"github.com/FACorreiaa/po-reconciler/pkg/push"
	"github.com/FACorreiaa/po-reconciler/pkg/storage"
)

// Importer turns an uploaded file into a normalized document.
type Importer interface {
	ImportDocument(ctx context.Context, kind lineitem.DocumentKind, filename string, data []byte) (lineitem.Document, error)
}

// ReportWriter renders and stores the reports of a run.
type ReportWriter interface {
	Generate(ctx context.Context, rep report.Report, cfg report.Config) ([]*storage.FileInfo, error)
}

// Notifier delivers alert digests.
type Notifier interface {
	Notify(ctx context.Context, d push.Digest) error
}

// File is an input document.
type File struct {
	Name string
	Data []byte
}

// Input is one order/invoice pair.
type Input struct {
	Order   File
	Invoice File
}

// Run is the outcome of one reconciliation.
type Run struct {
	ID        uuid.UUID
	StartedAt time.Time
	Duration  time.Duration
	Result    *comparison.Result
	Reports   []*storage.FileInfo
}

// ImportError reports a document that could not be read at all.
type ImportError struct {
	Kind lineitem.DocumentKind
	Name string
	Err  error
}

func (e ImportError) Error() string {
	return fmt.Sprintf("failed to import %s %q: %v", e.Kind.Short(), e.Name, e.Err)
}

func (e ImportError) Unwrap() error {
	return e.Err
}

// Options configures the service.
type Options struct {
	Compare       comparison.Options
	Report        report.Config
	NotifyLevel   comparison.Severity // Lowest alert severity that triggers a digest
	ReportBaseURL string              // Prefix for report links in digests; empty disables links
}

// Service orchestrates reconciliation runs.
type Service struct {
	importer Importer
	reports  ReportWriter
	notifier Notifier
	metrics  *metrics.Metrics
	opts     Options
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
	newID    func() uuid.UUID
}

// NewService creates a reconciliation service. reports may be nil to skip
// report files.
func NewService(importer Importer, reports ReportWriter, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.NotifyLevel == "" {
		opts.NotifyLevel = comparison.SeverityHigh
	}
	return &Service{
		importer: importer,
		reports:  reports,
		opts:     opts,
		logger:   logger,
		tracer:   otel.Tracer("po-reconciler/reconcile"),
		now:      time.Now,
		newID:    uuid.New,
	}
}

// WithNotifier enables alert digests.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// WithMetrics enables Prometheus recording.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// Options returns the configured options.
func (s *Service) Options() Options {
	return s.opts
}

// Run reconciles one pair with the service options.
func (s *Service) Run(ctx context.Context, in Input) (*Run, error) {
	return s.RunWithOptions(ctx, in, s.opts.Compare)
}

// RunWithOptions reconciles one pair with explicit comparison options.
// Options are validated before any document is read.
func (s *Service) RunWithOptions(ctx context.Context, in Input, opts comparison.Options) (*Run, error) {
	run := &Run{ID: s.newID(), StartedAt: s.now()}
	ctx, span := s.tracer.Start(ctx, "reconcile.run", trace.WithAttributes(
		attribute.String("run.id", run.ID.String()),
		attribute.String("order.name", in.Order.Name),
		attribute.String("invoice.name", in.Invoice.Name),
	))
	defer span.End()

	logger := s.logger.With(slog.String("run_id", run.ID.String()))

	err := s.run(ctx, run, in, opts, logger)
	run.Duration = s.now().Sub(run.StartedAt)
	s.metrics.ObserveRun(outcome(err), run.Duration)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.ErrorContext(ctx, "reconciliation failed", slog.Any("error", err))
		return nil, err
	}
	return run, nil
}

func (s *Service) run(ctx context.Context, run *Run, in Input, opts comparison.Options, logger *slog.Logger) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	var order, invoice lineitem.Document
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		order, err = s.importDocument(gctx, lineitem.KindOrder, in.Order, logger)
		return err
	})
	g.Go(func() error {
		var err error
		invoice, err = s.importDocument(gctx, lineitem.KindInvoice, in.Invoice, logger)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	result, err := comparison.CompareContext(ctx, order, invoice, opts)
	if err != nil {
		return err
	}
	run.Result = result
	s.record(result)

	summary := result.Summary
	logger.InfoContext(ctx, "comparison completed",
		slog.Int("order_items", len(order.Items)),
		slog.Int("invoice_items", len(invoice.Items)),
		slog.Int("matched", summary.MatchedCount),
		slog.Int("unmatched_order", summary.UnmatchedOrderCount),
		slog.Int("unmatched_invoice", summary.UnmatchedInvoiceCount),
		slog.Int("discrepancies", summary.DiscrepancyCount),
		slog.Int("high_alerts", summary.HighAlertCount),
		slog.Int("low_alerts", summary.LowAlertCount),
		slog.String("value_difference", summary.ValueDifference.String()),
	)
	for _, w := range result.Warnings {
		logger.WarnContext(ctx, "data quality warning", slog.String("warning", w))
	}

	if s.reports != nil && len(s.opts.Report.Formats) > 0 {
		files, err := s.reports.Generate(ctx, report.Report{
			RunID:       run.ID,
			GeneratedAt: run.StartedAt,
			Result:      result,
		}, s.opts.Report)
		if err != nil {
			return fmt.Errorf("failed to write reports: %w", err)
		}
		run.Reports = files
	}

	s.notify(ctx, run, logger)
	return nil
}

// importDocument reads one file. A file without a recognizable line-item
// table becomes an empty document; comparison reports it as a warning.
func (s *Service) importDocument(ctx context.Context, kind lineitem.DocumentKind, f File, logger *slog.Logger) (lineitem.Document, error) {
	doc, err := s.importer.ImportDocument(ctx, kind, f.Name, f.Data)
	if err == nil {
		return doc, nil
	}

	var cfgErr lineitem.ConfigurationError
	switch {
	case errors.As(err, &cfgErr), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return lineitem.Document{}, err
	case service.IsNoTable(err):
		logger.WarnContext(ctx, "no line-item table found",
			slog.String("document", f.Name),
			slog.String("kind", kind.Short()),
			slog.Any("error", err),
		)
		return lineitem.Document{Kind: kind, ID: f.Name, Items: []lineitem.LineItem{}}, nil
	default:
		return lineitem.Document{}, ImportError{Kind: kind, Name: f.Name, Err: err}
	}
}

func (s *Service) record(result *comparison.Result) {
	if s.metrics == nil {
		return
	}
	stats := result.Summary.MatchStats
	s.metrics.AddMatches(string(matching.TierSKU), stats.SKUMatches)
	s.metrics.AddMatches(string(matching.TierExactDescription), stats.ExactMatches)
	s.metrics.AddMatches(string(matching.TierFuzzy), stats.FuzzyMatches)
	s.metrics.AddDiscrepancies(string(comparison.SeverityHigh), result.Summary.HighAlertCount)
	s.metrics.AddDiscrepancies(string(comparison.SeverityLow), result.Summary.LowAlertCount)
	for _, u := range result.Unmatched {
		s.metrics.AddUnmatched(u.Item.Source.Short(), string(u.Reason), 1)
	}
}

func (s *Service) notify(ctx context.Context, run *Run, logger *slog.Logger) {
	if s.notifier == nil {
		return
	}
	digest, ok := s.digest(run)
	if !ok {
		return
	}
	if err := s.notifier.Notify(ctx, digest); err != nil {
		logger.WarnContext(ctx, "alert notification failed", slog.Any("error", err))
	}
}

// digest builds the notification for run; ok is false when no alert reaches
// the notify level.
func (s *Service) digest(run *Run) (push.Digest, bool) {
	res := run.Result
	d := push.Digest{
		RunID:           run.ID.String(),
		OrderID:         res.Parameters.OrderDocumentID,
		InvoiceID:       res.Parameters.InvoiceDocumentID,
		ValueDifference: money.FormatSigned(res.Summary.ValueDifference, res.Parameters.Currency),
		HighAlerts:      res.Summary.HighAlertCount,
		LowAlerts:       res.Summary.LowAlertCount,
	}
	for _, a := range res.Alerts {
		if s.opts.NotifyLevel == comparison.SeverityHigh && a.Severity != comparison.SeverityHigh {
			continue
		}
		d.Alerts = append(d.Alerts, push.AlertLine{
			Severity:        string(a.Severity),
			Message:         a.Message,
			SuggestedAction: a.SuggestedAction,
		})
	}
	if s.opts.ReportBaseURL != "" && len(run.Reports) > 0 {
		d.ReportURL = fmt.Sprintf("%s/v1/comparisons/%s/%s", s.opts.ReportBaseURL, run.ID, s.opts.Report.Formats[0])
	}
	return d, len(d.Alerts) > 0
}

func outcome(err error) string {
	var cfgErr lineitem.ConfigurationError
	var importErr ImportError
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.As(err, &cfgErr):
		return metrics.OutcomeConfigError
	case errors.As(err, &importErr):
		return metrics.OutcomeImportError
	default:
		return metrics.OutcomeFailed
	}
}
