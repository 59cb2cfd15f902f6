package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	_ "modernc.org/sqlite"

	"storefinder/internal/adapters/http/perf"
	"storefinder/internal/observability"
)

func openTimedTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec("CREATE TABLE kv (id TEXT PRIMARY KEY, val TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// TestTimedDB_RecordsEveryCall verifies each wrapped method lands in the collector.
func TestTimedDB_RecordsEveryCall(t *testing.T) {
	db := openTimedTestDB(t)
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(db, collector, 0)
	ctx := context.Background()

	if _, err := tdb.ExecContext(ctx, "INSERT INTO kv (id, val) VALUES (?, ?)", "1", "hello"); err != nil {
		t.Fatalf("ExecContext: %v", err)
	}
	rows, err := tdb.QueryContext(ctx, "SELECT id FROM kv")
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	rows.Close()
	var val string
	if err := tdb.QueryRowContext(ctx, "SELECT val FROM kv WHERE id = ?", "1").Scan(&val); err != nil {
		t.Fatalf("QueryRowContext: %v", err)
	}
	if val != "hello" {
		t.Errorf("val = %q, want hello", val)
	}
	tx, err := tdb.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	tx.Rollback()

	if collector.TotalRecorded() != 4 {
		t.Errorf("TotalRecorded = %d, want 4", collector.TotalRecorded())
	}
}

// TestTimedDB_ErrorPassthrough verifies SQL errors are returned unchanged and still timed.
func TestTimedDB_ErrorPassthrough(t *testing.T) {
	db := openTimedTestDB(t)
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(db, collector, 0)

	if _, err := tdb.ExecContext(context.Background(), "INSERT INTO missing VALUES (?)", 1); err == nil {
		t.Fatal("expected error from invalid SQL, got nil")
	}
	var val string
	err := tdb.QueryRowContext(context.Background(), "SELECT val FROM kv WHERE id = ?", "nope").Scan(&val)
	if err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
	if collector.TotalRecorded() != 2 {
		t.Errorf("TotalRecorded = %d, want 2 (must record on error)", collector.TotalRecorded())
	}
}

// TestTimedDB_CancelledContext verifies a cancelled context fails the call.
func TestTimedDB_CancelledContext(t *testing.T) {
	db := openTimedTestDB(t)
	tdb := NewTimedDB(db, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tdb.ExecContext(ctx, "INSERT INTO kv (id, val) VALUES (?, ?)", "1", "x"); err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
}

// TestTimedDB_DefaultThreshold verifies a zero threshold falls back to the default.
func TestTimedDB_DefaultThreshold(t *testing.T) {
	db := openTimedTestDB(t)
	if got := NewTimedDB(db, nil, 0).threshold; got != 50 {
		t.Errorf("threshold = %v, want 50", got)
	}
	if got := NewTimedDB(db, nil, 250*time.Millisecond).threshold; got != 250 {
		t.Errorf("threshold = %v, want 250", got)
	}
}

// TestTimedDB_ReportsMetrics verifies query latency reaches Prometheus.
func TestTimedDB_ReportsMetrics(t *testing.T) {
	db := openTimedTestDB(t)
	reg := prometheus.NewRegistry()
	tdb := NewTimedDB(db, nil, 0).WithMetrics(observability.NewMetrics(reg))

	tdb.ExecContext(context.Background(), "INSERT INTO kv (id, val) VALUES (?, ?)", "1", "x")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "storefinder_db_query_duration_seconds" {
			if n := f.GetMetric()[0].GetHistogram().GetSampleCount(); n != 1 {
				t.Errorf("sample count = %d, want 1", n)
			}
			return
		}
	}
	t.Fatal("query duration histogram not found")
}

// TestTimedDB_RawDB verifies RawDB returns the original *sql.DB.
func TestTimedDB_RawDB(t *testing.T) {
	db := openTimedTestDB(t)
	if NewTimedDB(db, nil, 0).RawDB() != db {
		t.Error("RawDB() should return the original *sql.DB")
	}
}

// BenchmarkTimedDB_QueryRow measures per-call overhead of the timing wrapper.
func BenchmarkTimedDB_QueryRow(b *testing.B) {
	db, _ := OpenSQLite(":memory:")
	defer db.Close()
	db.Exec("CREATE TABLE bench (id INTEGER PRIMARY KEY, val TEXT)")
	db.Exec("INSERT INTO bench VALUES (1, 'x')")
	tdb := NewTimedDB(db, perf.NewCollector(perf.DefaultRingSize), 0)

	ctx := context.Background()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var v string
		tdb.QueryRowContext(ctx, "SELECT val FROM bench WHERE id = 1").Scan(&v)
	}
}
