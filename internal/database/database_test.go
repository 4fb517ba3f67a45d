package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func countRows(t *testing.T, db *DB, table string) int {
	t.Helper()
	var n int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestResolveDateIdempotent(t *testing.T) {
	db := openTestDB(t)

	d1, err := ResolveDate(db.conn, day("2020-03-12"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Same calendar day with a time component resolves to the same row.
	d2, err := ResolveDate(db.conn, day("2020-03-12").Add(15*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d1.ID != d2.ID {
		t.Errorf("expected same id, got %d and %d", d1.ID, d2.ID)
	}
	if !d1.Day.Equal(day("2020-03-12")) {
		t.Errorf("unexpected day %v", d1.Day)
	}
	if n := countRows(t, db, "dates"); n != 1 {
		t.Errorf("expected 1 date row, got %d", n)
	}
}

func TestResolveDateRejectsZero(t *testing.T) {
	db := openTestDB(t)
	if _, err := ResolveDate(db.conn, time.Time{}); err == nil {
		t.Fatal("expected error for zero time")
	}
}

func TestResolveRequest(t *testing.T) {
	db := openTestDB(t)

	r1, err := ResolveRequest(db.conn, "https://example.com/data.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r2, err := ResolveRequest(db.conn, "https://example.com/data.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r1.ID != r2.ID {
		t.Errorf("expected same id, got %d and %d", r1.ID, r2.ID)
	}

	other, err := ResolveRequest(db.conn, "file:///tmp/data.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other.ID == r1.ID {
		t.Error("expected distinct origins to get distinct requests")
	}

	if _, err := ResolveRequest(db.conn, "  "); err == nil {
		t.Error("expected error for empty origin")
	}
}

func TestResolveAreaWithParent(t *testing.T) {
	db := openTestDB(t)

	coll, err := ResolveAreaCollection(db.conn, "Россия")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a1, err := ResolveArea(db.conn, "Москва", coll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a1.ParentID == nil || *a1.ParentID != coll.ID {
		t.Fatalf("expected parent %d, got %v", coll.ID, a1.ParentID)
	}

	// An existing area is returned unchanged, parent included.
	a2, err := ResolveArea(db.conn, "Москва", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a2.ID != a1.ID || a2.ParentID == nil {
		t.Errorf("expected existing area with parent, got %+v", a2)
	}

	orphan, err := ResolveArea(db.conn, "Мир", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orphan.ParentID != nil {
		t.Errorf("expected no parent, got %d", *orphan.ParentID)
	}
	if n := countRows(t, db, "areas"); n != 2 {
		t.Errorf("expected 2 areas, got %d", n)
	}
}

func TestResolveDailyStatLifecycle(t *testing.T) {
	db := openTestDB(t)
	d, _ := ResolveDate(db.conn, day("2020-03-12"))
	r, _ := ResolveRequest(db.conn, "https://example.com")
	a, _ := ResolveArea(db.conn, "Omsk", nil)

	s, err := ResolveDailyStat(db.conn, d, r, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Inserted {
		t.Error("expected first resolution to insert")
	}
	if s.DateID != d.ID || s.RequestID != r.ID || s.AreaID != a.ID {
		t.Errorf("row keyed wrong: %+v", s)
	}

	s.Cases, s.Cured, s.Deaths = 10, 2, 1
	if err := SaveDailyStat(db.conn, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	again, err := ResolveDailyStat(db.conn, d, r, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Inserted {
		t.Error("expected second resolution to find the existing row")
	}
	if again.ID != s.ID || again.Cases != 10 || again.Cured != 2 || again.Deaths != 1 {
		t.Errorf("unexpected row %+v", again)
	}
	if n := countRows(t, db, "daily_stats"); n != 1 {
		t.Errorf("expected 1 daily stat, got %d", n)
	}
}

func TestResolveDailyStatDistinguishesKeys(t *testing.T) {
	db := openTestDB(t)
	d1, _ := ResolveDate(db.conn, day("2020-03-12"))
	d2, _ := ResolveDate(db.conn, day("2020-03-13"))
	r, _ := ResolveRequest(db.conn, "https://example.com")
	a, _ := ResolveArea(db.conn, "Omsk", nil)

	s1, err := ResolveDailyStat(db.conn, d1, r, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s2, err := ResolveDailyStat(db.conn, d2, r, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s1.ID == s2.ID {
		t.Error("expected distinct rows for distinct dates")
	}
}

func TestResolveDailyStatRequiresResolvedEntities(t *testing.T) {
	db := openTestDB(t)
	if _, err := ResolveDailyStat(db.conn, nil, &Request{ID: 1}, &Area{ID: 1}); err == nil {
		t.Fatal("expected error for unresolved date")
	}
}

func TestSaveDailyStatMissingRow(t *testing.T) {
	db := openTestDB(t)
	err := SaveDailyStat(db.conn, &DailyStat{ID: 42})
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}
}

func TestResolveInsideTransactionSeesPriorInserts(t *testing.T) {
	db := openTestDB(t)
	tx, err := db.BeginTx(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()

	a1, err := ResolveArea(tx, "Omsk", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a2, err := ResolveArea(tx, "Omsk", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a1.ID != a2.ID {
		t.Errorf("expected same area within transaction, got %d and %d", a1.ID, a2.ID)
	}

	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if n := countRows(t, db, "areas"); n != 0 {
		t.Errorf("expected rollback to discard area, got %d rows", n)
	}
}

func TestAmbiguousKey(t *testing.T) {
	// A hand-made schema without UNIQUE constraints, as an older importer
	// might have left behind.
	conn, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "dup.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Exec(`CREATE TABLE areas (id INTEGER PRIMARY KEY, name TEXT, parent_id INTEGER)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := conn.Exec(`INSERT INTO areas (name) VALUES ('Omsk'), ('Omsk')`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, err = ResolveArea(conn, "Omsk", nil)
	var ake *AmbiguousKeyError
	if !errors.As(err, &ake) {
		t.Fatalf("expected AmbiguousKeyError, got %v", err)
	}
	if ake.Entity != "area" {
		t.Errorf("expected entity 'area', got %q", ake.Entity)
	}
	if ake.Count != 2 {
		t.Errorf("expected count 2, got %d", ake.Count)
	}
}

func TestStorageErrorPropagates(t *testing.T) {
	db := openTestDB(t)
	db.Close()

	_, err := ResolveRequest(db.conn, "https://example.com")
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError on closed database, got %v", err)
	}
}

func TestGetStatsAndSeries(t *testing.T) {
	db := openTestDB(t)

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.DailyStats != 0 || stats.FirstDay != nil {
		t.Errorf("expected empty stats, got %+v", stats)
	}

	r, _ := ResolveRequest(db.conn, "https://example.com")
	coll, _ := ResolveAreaCollection(db.conn, "Россия")
	a, _ := ResolveArea(db.conn, "Omsk", coll)
	for i, d := range []string{"2020-03-13", "2020-03-12"} {
		date, _ := ResolveDate(db.conn, day(d))
		s, err := ResolveDailyStat(db.conn, date, r, a)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		s.Cases = int64(10 - i)
		if err := SaveDailyStat(db.conn, s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	stats, err = db.GetStats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.DailyStats != 2 || stats.Dates != 2 || stats.Areas != 1 || stats.AreaCollections != 1 || stats.Requests != 1 {
		t.Errorf("unexpected counts %+v", stats)
	}
	if stats.FirstDay == nil || *stats.FirstDay != "2020-03-12" || *stats.LastDay != "2020-03-13" {
		t.Errorf("unexpected day range %v..%v", stats.FirstDay, stats.LastDay)
	}

	series, err := db.GetSeries(a.ID, r.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("expected 2 points, got %d", len(series))
	}
	if !series[0].Day.Equal(day("2020-03-12")) || series[0].Cases != 9 || series[1].Cases != 10 {
		t.Errorf("unexpected series %+v", series)
	}

	primary, err := db.GetPrimaryRequestForArea(a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if primary == nil || primary.ID != r.ID {
		t.Errorf("expected primary request %d, got %+v", r.ID, primary)
	}

	summaries, err := db.GetAreaSummaries()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Name != "Omsk" || summaries[0].Days != 2 {
		t.Fatalf("unexpected summaries %+v", summaries)
	}
	if summaries[0].Collection == nil || *summaries[0].Collection != "Россия" {
		t.Errorf("expected collection 'Россия', got %v", summaries[0].Collection)
	}

	requests, err := db.GetAllRequests()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(requests) != 1 {
		t.Errorf("expected 1 request, got %d", len(requests))
	}
}

func TestGetPrimaryRequestForUnknownArea(t *testing.T) {
	db := openTestDB(t)
	r, err := db.GetPrimaryRequestForArea(99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r != nil {
		t.Errorf("expected nil request, got %+v", r)
	}
}
