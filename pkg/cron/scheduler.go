// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/po-reconciler/internal/domain/reconcile"
)

// Inbox subdirectories that receive files after a sweep.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// sweepTimeout bounds a single inbox sweep.
const sweepTimeout = 30 * time.Minute

// PairRunner reconciles a set of document pairs.
type PairRunner interface {
	Run(ctx context.Context, pairs []reconcile.Pair, baseDir string) ([]reconcile.PairStatus, error)
}

// RunStore lists and removes stored runs.
type RunStore interface {
	Runs(ctx context.Context) (map[uuid.UUID]time.Time, error)
	Delete(ctx context.Context, runID uuid.UUID) error
}

// Config drives the scheduler.
type Config struct {
	Spec      string        // Standard 5-field cron expression
	InboxDir  string        // Directory watched for <key>_po.* and <key>_pi.* pairs
	Retention time.Duration // Stored runs older than this are purged; zero keeps everything
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron   *cron.Cron
	cfg    Config
	runner PairRunner
	store  RunStore
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex // One sweep at a time
}

// NewScheduler creates a new job scheduler.
func NewScheduler(cfg Config, runner PairRunner, store RunStore, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:   c,
		cfg:    cfg,
		runner: runner,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.Spec, func() { s.Sweep(context.Background()) }); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.cfg.Spec, err)
	}
	if s.cfg.Retention > 0 {
		if _, err := s.cron.AddFunc("@daily", func() { s.Purge(context.Background()) }); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.String("inbox", s.cfg.InboxDir),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// Sweep reconciles every complete pair waiting in the inbox, then moves the
// files to processed/ or failed/ and writes a status CSV next to them.
// Incomplete pairs stay in the inbox for a later sweep. Duplicate documents for
// a key go straight to failed/ and are listed in the status CSV.
func (s *Scheduler) Sweep(ctx context.Context) []reconcile.PairStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	pairs, duplicates, err := FindPairs(s.cfg.InboxDir)
	if err != nil {
		s.logger.Error("failed to scan inbox", slog.String("inbox", s.cfg.InboxDir), slog.Any("error", err))
		return nil
	}
	if len(pairs) == 0 && len(duplicates) == 0 {
		s.logger.Debug("inbox sweep found no pairs")
		return nil
	}

	for _, dup := range duplicates {
		name := dup.Order + dup.Invoice
		s.logger.Warn("duplicate inbox document", slog.String("key", dup.PairID), slog.String("file", name))
		if err := s.move(name, FailedDir); err != nil {
			s.logger.Warn("failed to move inbox file", slog.String("file", name), slog.Any("error", err))
		}
	}

	var statuses []reconcile.PairStatus
	if len(pairs) > 0 {
		s.logger.Info("starting inbox sweep", slog.Int("pairs", len(pairs)))
		statuses, err = s.runner.Run(ctx, pairs, s.cfg.InboxDir)
		if err != nil {
			s.logger.Warn("inbox sweep interrupted", slog.Any("error", err))
		}
	}

	for _, st := range statuses {
		if strings.HasPrefix(st.Error, "not started") {
			continue
		}
		dest := ProcessedDir
		if st.Status == reconcile.StatusFailed {
			dest = FailedDir
		}
		for _, name := range []string{st.Order, st.Invoice} {
			if err := s.move(name, dest); err != nil {
				s.logger.Warn("failed to move inbox file", slog.String("file", name), slog.Any("error", err))
			}
		}
	}
	statuses = append(statuses, duplicates...)
	if err := s.writeStatuses(statuses); err != nil {
		s.logger.Warn("failed to write sweep statuses", slog.Any("error", err))
	}

	failed := 0
	for _, st := range statuses {
		if st.Status == reconcile.StatusFailed {
			failed++
		}
	}
	s.logger.Info("inbox sweep completed",
		slog.Int("pairs", len(statuses)),
		slog.Int("failed", failed),
	)
	return statuses
}

// Purge deletes stored runs older than the retention period and returns how
// many were removed.
func (s *Scheduler) Purge(ctx context.Context) int {
	if s.cfg.Retention <= 0 {
		return 0
	}
	runs, err := s.store.Runs(ctx)
	if err != nil {
		s.logger.Error("failed to list stored runs", slog.Any("error", err))
		return 0
	}

	cutoff := s.now().Add(-s.cfg.Retention)
	deleted := 0
	for id, created := range runs {
		if !created.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, id); err != nil {
			s.logger.Warn("failed to delete run", slog.String("run_id", id.String()), slog.Any("error", err))
			continue
		}
		deleted++
	}
	s.logger.Info("stored runs purged", slog.Int("deleted", deleted), slog.Time("cutoff", cutoff))
	return deleted
}

// FindPairs groups inbox files named <key>_po.<ext> and <key>_pi.<ext>
// (case-insensitive) into pairs sorted by key. Keys with only one side are
// skipped. When a key has several files for one side the first by name is
// used and the others are returned as failed duplicates.
func FindPairs(dir string) (pairs []reconcile.Pair, duplicates []reconcile.PairStatus, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	orders := map[string]string{}
	invoices := map[string]string{}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		stem := strings.ToLower(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		switch {
		case strings.HasSuffix(stem, "_po"):
			key := strings.TrimSuffix(stem, "_po")
			if _, seen := orders[key]; seen {
				duplicates = append(duplicates, duplicate(key, e.Name(), "", orders[key]))
				continue
			}
			orders[key] = e.Name()
		case strings.HasSuffix(stem, "_pi"):
			key := strings.TrimSuffix(stem, "_pi")
			if _, seen := invoices[key]; seen {
				duplicates = append(duplicates, duplicate(key, "", e.Name(), invoices[key]))
				continue
			}
			invoices[key] = e.Name()
		}
	}

	pairs = make([]reconcile.Pair, 0, len(orders))
	for key, order := range orders {
		invoice, ok := invoices[key]
		if !ok || key == "" {
			continue
		}
		pairs = append(pairs, reconcile.Pair{ID: key, Order: order, Invoice: invoice})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].ID < pairs[j].ID })
	return pairs, duplicates, nil
}

func duplicate(key, order, invoice, kept string) reconcile.PairStatus {
	return reconcile.PairStatus{
		PairID:  key,
		Order:   order,
		Invoice: invoice,
		Status:  reconcile.StatusFailed,
		Error:   fmt.Sprintf("duplicate document for key %q, %s was used", key, kept),
	}
}

func (s *Scheduler) move(name, dest string) error {
	dir := filepath.Join(s.cfg.InboxDir, dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.Rename(filepath.Join(s.cfg.InboxDir, name), filepath.Join(dir, name))
}

func (s *Scheduler) writeStatuses(statuses []reconcile.PairStatus) error {
	dir := filepath.Join(s.cfg.InboxDir, ProcessedDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("sweep_%s.csv", s.now().UTC().Format("20060102T150405"))
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	if err := reconcile.WriteStatuses(f, statuses); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
