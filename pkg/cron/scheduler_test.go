package cron

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/po-reconciler/internal/domain/reconcile"
)

type fakeRunner struct {
	pairs []reconcile.Pair
	fail  map[string]bool
}

func (f *fakeRunner) Run(_ context.Context, pairs []reconcile.Pair, _ string) ([]reconcile.PairStatus, error) {
	f.pairs = pairs
	out := make([]reconcile.PairStatus, len(pairs))
	for i, p := range pairs {
		out[i] = reconcile.PairStatus{PairID: p.ID, Order: p.Order, Invoice: p.Invoice, Status: reconcile.StatusOK}
		if f.fail[p.ID] {
			out[i].Status = reconcile.StatusFailed
			out[i].Error = "boom"
		}
	}
	return out, nil
}

type fakeStore struct {
	runs    map[uuid.UUID]time.Time
	deleted []uuid.UUID
}

func (f *fakeStore) Runs(context.Context) (map[uuid.UUID]time.Time, error) { return f.runs, nil }

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644))
	}
}

func TestFindPairs(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "acme_po.csv", "ACME_PI.pdf", "globex_po.xlsx", "initech_pi.csv", "notes.txt", "_po.csv", "_pi.csv")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "b_po"), 0o755))

	pairs, duplicates, err := FindPairs(dir)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, reconcile.Pair{ID: "acme", Order: "acme_po.csv", Invoice: "ACME_PI.pdf"}, pairs[0])
	assert.Empty(t, duplicates)

	missing, _, err := FindPairs(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestFindPairs_Duplicates(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a_po.csv", "a_po.pdf", "a_pi.xlsx", "b_pi.csv", "B_PI.pdf")

	pairs, duplicates, err := FindPairs(dir)
	require.NoError(t, err)

	require.Len(t, pairs, 1)
	assert.Equal(t, reconcile.Pair{ID: "a", Order: "a_po.csv", Invoice: "a_pi.xlsx"}, pairs[0])

	require.Len(t, duplicates, 2)
	assert.Equal(t, "a", duplicates[0].PairID)
	assert.Equal(t, "a_po.pdf", duplicates[0].Order)
	assert.Equal(t, reconcile.StatusFailed, duplicates[0].Status)
	assert.Contains(t, duplicates[0].Error, "a_po.csv was used")
	assert.Equal(t, "b", duplicates[1].PairID)
	assert.Equal(t, "b_pi.csv", duplicates[1].Invoice)
}

func TestScheduler_SweepMovesDuplicates(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a_po.csv", "a_po.pdf", "a_pi.csv")

	runner := &fakeRunner{}
	s := NewScheduler(Config{Spec: "@every 1h", InboxDir: dir}, runner, &fakeStore{}, testLogger())
	s.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	statuses := s.Sweep(context.Background())
	require.Len(t, statuses, 2)
	assert.Equal(t, reconcile.StatusOK, statuses[0].Status)
	assert.Equal(t, reconcile.StatusFailed, statuses[1].Status)

	assert.FileExists(t, filepath.Join(dir, ProcessedDir, "a_po.csv"))
	assert.FileExists(t, filepath.Join(dir, FailedDir, "a_po.pdf"))
	assert.NoFileExists(t, filepath.Join(dir, "a_po.pdf"))

	report, err := os.ReadFile(filepath.Join(dir, ProcessedDir, "sweep_20240301T120000.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(report), "a_po.pdf")

	assert.Nil(t, s.Sweep(context.Background()), "inbox is empty")
}

func TestScheduler_Sweep(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a_po.csv", "a_pi.csv", "b_po.csv", "b_pi.csv", "c_po.csv")

	runner := &fakeRunner{fail: map[string]bool{"b": true}}
	s := NewScheduler(Config{Spec: "@every 1h", InboxDir: dir}, runner, &fakeStore{}, testLogger())
	s.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	statuses := s.Sweep(context.Background())
	require.Len(t, statuses, 2)
	assert.Equal(t, "a", runner.pairs[0].ID)
	assert.Equal(t, "b", runner.pairs[1].ID)

	assert.FileExists(t, filepath.Join(dir, ProcessedDir, "a_po.csv"))
	assert.FileExists(t, filepath.Join(dir, ProcessedDir, "a_pi.csv"))
	assert.FileExists(t, filepath.Join(dir, FailedDir, "b_po.csv"))
	assert.FileExists(t, filepath.Join(dir, FailedDir, "b_pi.csv"))
	assert.FileExists(t, filepath.Join(dir, "c_po.csv"), "incomplete pair waits")
	assert.FileExists(t, filepath.Join(dir, ProcessedDir, "sweep_20240301T120000.csv"))

	assert.Nil(t, s.Sweep(context.Background()), "nothing left to pair")
}

func TestScheduler_Purge(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	old, recent := uuid.New(), uuid.New()
	store := &fakeStore{runs: map[uuid.UUID]time.Time{
		old:    now.Add(-48 * time.Hour),
		recent: now.Add(-time.Hour),
	}}

	s := NewScheduler(Config{Spec: "@daily", Retention: 24 * time.Hour}, &fakeRunner{}, store, testLogger())
	s.now = func() time.Time { return now }

	assert.Equal(t, 1, s.Purge(context.Background()))
	assert.Equal(t, []uuid.UUID{old}, store.deleted)

	s.cfg.Retention = 0
	assert.Equal(t, 0, s.Purge(context.Background()))
}

func TestScheduler_StartInvalidSpec(t *testing.T) {
	s := NewScheduler(Config{Spec: "not a schedule"}, &fakeRunner{}, &fakeStore{}, testLogger())
	assert.Error(t, s.Start())
}
