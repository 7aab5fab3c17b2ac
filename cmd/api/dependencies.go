package api

import (
	"fmt"
	"log/slog"

	"github.com/FACorreiaa/po-reconciler/internal/domain/comparison"
	importhandler "github.com/FACorreiaa/po-reconciler/internal/domain/import/handler"
	"github.com/FACorreiaa/po-reconciler/internal/domain/import/normalizer"
	importservice "github.com/FACorreiaa/po-reconciler/internal/domain/import/service"
	"github.com/FACorreiaa/po-reconciler/internal/domain/reconcile"
	reconcilehandler "github.com/FACorreiaa/po-reconciler/internal/domain/reconcile/handler"
	"github.com/FACorreiaa/po-reconciler/internal/domain/report"

	"github.com/FACorreiaa/po-reconciler/pkg/config"
	"github.com/FACorreiaa/po-reconciler/pkg/cron"
	"github.com/FACorreiaa/po-reconciler/pkg/metrics"
	"github.com/FACorreiaa/po-reconciler/pkg/push"
	"github.com/FACorreiaa/po-reconciler/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Services
	FileStorage      *storage.LocalStorage
	ImportService    *importservice.ImportService
	ReportGenerator  *report.Generator
	PushService      *push.Service
	ReconcileService *reconcile.Service
	BatchRunner      *reconcile.BatchRunner
	Scheduler        *cron.Scheduler

	// Handlers
	ImportHandler    *importhandler.ImportHandler
	ReconcileHandler *reconcilehandler.ReconcileHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}
	if cfg.Observability.MetricsEnabled {
		deps.Metrics = metrics.New()
	}

	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// ReconcileOptions maps configuration onto the options of a reconciliation run.
func ReconcileOptions(cfg *config.Config) (reconcile.Options, error) {
	formats := make([]report.Format, 0, len(cfg.Reports.Formats))
	for _, f := range cfg.Reports.Formats {
		format, err := report.ParseFormat(f)
		if err != nil {
			return reconcile.Options{}, err
		}
		formats = append(formats, format)
	}

	notifyLevel, ok := comparison.ParseSeverity(cfg.Notifications.NotifyOnLevel)
	if !ok {
		notifyLevel = comparison.SeverityHigh
	}

	opts := reconcile.Options{
		Compare: comparison.Options{
			FuzzyThreshold:    cfg.Matching.FuzzyThreshold,
			ZeroValueSeverity: comparison.Severity(cfg.Matching.ZeroValueSeverity),
			Currency:          cfg.Matching.Currency,
			Suggestions:       cfg.Matching.Suggestions,
		},
		Report: report.Config{
			Formats:          formats,
			BaseName:         report.DefaultConfig().BaseName,
			IncludeMatched:   cfg.Reports.IncludeMatched,
			IncludeUnmatched: cfg.Reports.IncludeUnmatched,
			IncludeSummary:   cfg.Reports.IncludeSummary,
			IncludeAlerts:    cfg.Reports.IncludeAlerts,
			Highlight:        cfg.Reports.Highlight,
		},
		NotifyLevel:   notifyLevel,
		ReportBaseURL: cfg.Server.BaseURL,
	}
	return opts, opts.Compare.Validate()
}

// NewImportService builds the document importer, loading the SKU alias file
// when one is configured.
func NewImportService(cfg *config.Config, logger *slog.Logger) (*importservice.ImportService, error) {
	opts := importservice.Options{EuropeanFormat: cfg.Matching.EuropeanFormat}
	if cfg.Matching.AliasFile != "" {
		aliases, err := normalizer.LoadAliasFile(cfg.Matching.AliasFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load SKU aliases: %w", err)
		}
		opts.Aliases = aliases
		logger.Info("SKU aliases loaded", slog.Int("aliases", aliases.Len()))
	}
	return importservice.NewImportService(logger, opts), nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	opts, err := ReconcileOptions(d.Config)
	if err != nil {
		return err
	}

	d.ImportService, err = NewImportService(d.Config, d.Logger)
	if err != nil {
		return err
	}

	d.FileStorage, err = storage.NewLocalStorage(d.Config.Reports.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to init report storage: %w", err)
	}
	d.ReportGenerator = report.NewGenerator(d.FileStorage, d.Logger)

	n := d.Config.Notifications
	d.PushService = push.NewService(push.Config{
		WebhookURL: n.WebhookURL,
		EmailFrom:  n.EmailFrom,
		EmailTo:    n.EmailTo,
		Timeout:    n.Timeout,
	}, n.ResendAPIKey, d.Logger)

	d.ReconcileService = reconcile.NewService(d.ImportService, d.ReportGenerator, d.Logger, opts).
		WithMetrics(d.Metrics)
	if d.PushService.Enabled() {
		d.ReconcileService.WithNotifier(d.PushService)
	}

	d.BatchRunner = reconcile.NewBatchRunner(d.ReconcileService, d.Config.Batch.Workers, d.Logger)

	if d.Config.Schedule.Enabled {
		d.Scheduler = cron.NewScheduler(cron.Config{
			Spec:      d.Config.Schedule.Spec,
			InboxDir:  d.Config.Schedule.InboxDir,
			Retention: d.Config.Schedule.Retention,
		}, d.BatchRunner, d.FileStorage, d.Logger)
	}

	d.Logger.Info("services initialized",
		slog.String("report_dir", d.FileStorage.BasePath()),
		slog.Bool("notifications", d.PushService.Enabled()),
		slog.Bool("schedule", d.Scheduler != nil),
	)
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() {
	maxUpload := d.Config.Server.MaxUploadBytes
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, maxUpload, d.Logger)
	d.ReconcileHandler = reconcilehandler.NewReconcileHandler(d.ReconcileService, d.FileStorage, maxUpload, d.Logger)

	d.Logger.Info("handlers initialized")
}

// Cleanup stops background jobs
func (d *Dependencies) Cleanup() {
	if d.Scheduler != nil {
		<-d.Scheduler.Stop().Done()
	}
	d.Logger.Info("cleanup completed")
}
