package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/po-reconciler/cmd/api"
	"github.com/FACorreiaa/po-reconciler/internal/domain/lineitem"
	"github.com/FACorreiaa/po-reconciler/internal/domain/reconcile"
	"github.com/FACorreiaa/po-reconciler/internal/domain/report"
	"github.com/FACorreiaa/po-reconciler/pkg/config"
	"github.com/FACorreiaa/po-reconciler/pkg/money"
	"github.com/FACorreiaa/po-reconciler/pkg/storage"
)

type rootFlags struct {
	envFile  string
	logLevel string
	jsonLogs bool
}

type runFlags struct {
	output            string
	threshold         float64
	zeroValueSeverity string
	currency          string
	filename          string
	formats           []string
	workers           int
}

func newRootCmd() *cobra.Command {
	rf := &rootFlags{}
	root := &cobra.Command{
		Use:           "reconcile",
		Short:         "Reconcile purchase orders against proforma invoices",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&rf.envFile, "env", ".env", "dotenv file to load before reading the environment")
	root.PersistentFlags().StringVar(&rf.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
	root.PersistentFlags().BoolVar(&rf.jsonLogs, "json-logs", false, "log as JSON instead of text")

	root.AddCommand(newCompareCmd(rf), newBatchCmd(rf), newServeCmd(rf))
	return root
}

func newCompareCmd(rf *rootFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "compare <po-file> <pi-file>",
		Short: "Compare one purchase order with one proforma invoice",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd, rf, f)
			if err != nil {
				return err
			}
			svc, err := newService(cfg, logger, f)
			if err != nil {
				return err
			}

			in, err := readInput(args[0], args[1])
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			run, err := svc.Run(ctx, in)
			if err != nil {
				return err
			}
			printRun(cmd.OutOrStdout(), run)
			return nil
		},
	}
	addRunFlags(cmd, f)
	return cmd
}

func newBatchCmd(rf *rootFlags) *cobra.Command {
	f := &runFlags{}
	var summaryPath string
	cmd := &cobra.Command{
		Use:   "batch <manifest.csv>",
		Short: "Compare every pair listed in an id,po,pi manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd, rf, f)
			if err != nil {
				return err
			}
			svc, err := newService(cfg, logger, f)
			if err != nil {
				return err
			}

			manifest, err := os.Open(args[0])
			if err != nil {
				return err
			}
			pairs, err := reconcile.LoadManifest(manifest)
			_ = manifest.Close()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runner := reconcile.NewBatchRunner(svc, cfg.Batch.Workers, logger)
			statuses, runErr := runner.Run(ctx, pairs, filepath.Dir(args[0]))

			out := cmd.OutOrStdout()
			if summaryPath != "" {
				file, err := os.Create(summaryPath)
				if err != nil {
					return err
				}
				defer file.Close()
				out = file
			}
			if err := reconcile.WriteStatuses(out, statuses); err != nil {
				return err
			}
			return runErr
		},
	}
	addRunFlags(cmd, f)
	cmd.Flags().IntVar(&f.workers, "workers", 0, "concurrent pairs; overrides BATCH_WORKERS")
	cmd.Flags().StringVar(&summaryPath, "summary", "", "write the status CSV here instead of stdout")
	return cmd
}

func newServeCmd(rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd, rf, &runFlags{})
			if err != nil {
				return err
			}
			deps, err := api.InitDependencies(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return api.Serve(ctx, deps)
		},
	}
}

func addRunFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "report directory; overrides REPORT_DIR")
	cmd.Flags().Float64Var(&f.threshold, "threshold", -1, "fuzzy match threshold 0-100; overrides FUZZY_THRESHOLD")
	cmd.Flags().StringVar(&f.zeroValueSeverity, "zero-value-severity", "", "LOW or HIGH for discrepancies on zero-value order lines")
	cmd.Flags().StringVar(&f.currency, "currency", "", "ISO 4217 currency for reports; default from the documents")
	cmd.Flags().StringVar(&f.filename, "filename", "", "report base name (default \"comparison\")")
	cmd.Flags().StringSliceVar(&f.formats, "format", nil, "report formats: json, csv, xlsx (repeatable)")
}

// setup loads configuration, applies flag overrides and builds the logger.
func setup(cmd *cobra.Command, rf *rootFlags, f *runFlags) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(rf.envFile)
	if err != nil {
		return nil, nil, err
	}

	flags := cmd.Flags()
	if f.output != "" {
		cfg.Reports.OutputDir = f.output
	}
	if flags.Changed("threshold") {
		cfg.Matching.FuzzyThreshold = f.threshold
	}
	if f.zeroValueSeverity != "" {
		cfg.Matching.ZeroValueSeverity = strings.ToUpper(f.zeroValueSeverity)
	}
	if f.currency != "" {
		cfg.Matching.Currency = strings.ToUpper(f.currency)
	}
	if len(f.formats) > 0 {
		cfg.Reports.Formats = make([]string, len(f.formats))
		for i, format := range f.formats {
			cfg.Reports.Formats[i] = strings.ToLower(format)
		}
	}
	if f.workers > 0 {
		cfg.Batch.Workers = f.workers
	}
	if rf.logLevel != "" {
		cfg.Observability.LogLevel = rf.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return cfg, newLogger(cmd.ErrOrStderr(), cfg.Observability.LogLevel, rf.jsonLogs), nil
}

func newLogger(w io.Writer, level string, asJSON bool) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newService(cfg *config.Config, logger *slog.Logger, f *runFlags) (*reconcile.Service, error) {
	opts, err := api.ReconcileOptions(cfg)
	if err != nil {
		return nil, err
	}
	if f.filename != "" {
		opts.Report.BaseName = strings.TrimSuffix(f.filename, filepath.Ext(f.filename))
	}

	importer, err := api.NewImportService(cfg, logger)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewLocalStorage(cfg.Reports.OutputDir)
	if err != nil {
		return nil, err
	}
	return reconcile.NewService(importer, report.NewGenerator(store, logger), logger, opts), nil
}

func readInput(orderPath, invoicePath string) (reconcile.Input, error) {
	orderData, err := os.ReadFile(orderPath)
	if err != nil {
		return reconcile.Input{}, reconcile.ImportError{Kind: lineitem.KindOrder, Name: orderPath, Err: err}
	}
	invoiceData, err := os.ReadFile(invoicePath)
	if err != nil {
		return reconcile.Input{}, reconcile.ImportError{Kind: lineitem.KindInvoice, Name: invoicePath, Err: err}
	}
	return reconcile.Input{
		Order:   reconcile.File{Name: filepath.Base(orderPath), Data: orderData},
		Invoice: reconcile.File{Name: filepath.Base(invoicePath), Data: invoiceData},
	}, nil
}

// printRun writes a human-readable summary of a run.
func printRun(w io.Writer, run *reconcile.Run) {
	res := run.Result
	s := res.Summary
	cur := res.Parameters.Currency

	fmt.Fprintf(w, "Run %s\n", run.ID)
	fmt.Fprintf(w, "  Ordered:    %s (%s units)\n", money.Format(s.TotalOrderedValue, cur), s.TotalOrderedQuantity)
	fmt.Fprintf(w, "  Invoiced:   %s (%s units)\n", money.Format(s.TotalInvoicedValue, cur), s.TotalInvoicedQuantity)
	fmt.Fprintf(w, "  Difference: %s\n", money.FormatSigned(s.ValueDifference, cur))
	fmt.Fprintf(w, "  Matched %d, unmatched %d PO / %d PI, %d discrepancies\n",
		s.MatchedCount, s.UnmatchedOrderCount, s.UnmatchedInvoiceCount, s.DiscrepancyCount)

	if len(res.Alerts) > 0 {
		fmt.Fprintf(w, "Alerts (%d high, %d low):\n", s.HighAlertCount, s.LowAlertCount)
		for _, a := range res.Alerts {
			fmt.Fprintf(w, "  [%s] %s\n", a.Severity, a.Message)
		}
	}
	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}
	for _, f := range run.Reports {
		fmt.Fprintf(w, "Report: %s\n", f.Path)
	}
}
