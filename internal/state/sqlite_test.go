package state

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/maine/news_digest/internal/logger"
	"github.com/maine/news_digest/internal/news"
)

func openTestSQLite(t *testing.T, path string, keepDays int, now time.Time) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(path, keepDays, fixedClock(now), logger.New(io.Discard, false))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, kst)
	store := openTestSQLite(t, dbPath, 1, now)
	ctx := context.Background()

	empty, err := store.Load(ctx, now)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if empty.Count() != 0 {
		t.Errorf("fresh db Count = %d, want 0", empty.Count())
	}

	ledger := news.NewLedger(now)
	ledger.Add("b")
	ledger.Add("a")
	if err := store.Save(ctx, ledger); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	// Повторное сохранение того же журнала не создаёт дублей.
	ledger.Add("c")
	if err := store.Save(ctx, ledger); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	loaded, err := store.Load(ctx, now)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff([]news.Identity{"a", "b", "c"}, loaded.Identities()); diff != "" {
		t.Errorf("identities mismatch (-want +got):\n%s", diff)
	}
	if !loaded.LastUpdated.Equal(now) {
		t.Errorf("LastUpdated = %v, want %v", loaded.LastUpdated, now)
	}

	stats, err := store.Stats(ctx, now)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	want := news.LedgerStats{Date: "2026-10-14", Count: 3, LastUpdated: "2026-10-14 09:00:00"}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLiteStore_DayRotationAndPrune(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	days := []time.Time{
		time.Date(2026, 10, 12, 9, 0, 0, 0, kst),
		time.Date(2026, 10, 13, 9, 0, 0, 0, kst),
		time.Date(2026, 10, 14, 9, 0, 0, 0, kst),
	}

	writer := openTestSQLite(t, dbPath, 5, days[0])
	for _, day := range days {
		l := news.NewLedger(day)
		l.Add(news.Identity("id-" + day.Format(news.DateLayout)))
		if err := writer.Save(ctx, l); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	store := openTestSQLite(t, dbPath, 1, days[2])
	removed, err := store.Prune(ctx, 2)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Prune(2) removed = %d, want 1", removed)
	}

	yesterday, err := store.Stats(ctx, days[1])
	if err != nil {
		t.Fatal(err)
	}
	if yesterday.Count != 1 {
		t.Errorf("yesterday should survive keepDays=2, count = %d", yesterday.Count)
	}

	// Load с keepDays=1 удаляет и вчерашний день.
	today, err := store.Load(ctx, days[2])
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff([]news.Identity{"id-2026-10-14"}, today.Identities()); diff != "" {
		t.Errorf("today identities mismatch (-want +got):\n%s", diff)
	}
	yesterday, err = store.Stats(ctx, days[1])
	if err != nil {
		t.Fatal(err)
	}
	if yesterday.Count != 0 {
		t.Errorf("yesterday should be pruned on load, count = %d", yesterday.Count)
	}
}
