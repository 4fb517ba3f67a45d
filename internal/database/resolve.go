package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type scanner interface {
	Scan(dest ...any) error
}

// findOne runs a natural-key lookup. It scans the first match with scan and
// returns how many rows matched, capped at 2.
func findOne(ex Executor, query string, args []any, scan func(scanner) error) (int, error) {
	rows, err := ex.Query(query+" LIMIT 2", args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		if n == 0 {
			if err := scan(rows); err != nil {
				return 0, err
			}
		}
		n++
	}
	return n, rows.Err()
}

// getOrCreate is the shared lookup-insert-lookup sequence behind every
// resolver. insert must be conflict tolerant (ON CONFLICT DO NOTHING) so a
// row created concurrently is picked up by the second lookup.
func getOrCreate[T any](entity string, key fmt.Stringer, find func() (*T, error), insert func() error) (*T, bool, error) {
	row, err := find()
	if err != nil || row != nil {
		return row, false, err
	}

	if err := insert(); err != nil {
		return nil, false, storageErr("insert "+entity+" "+key.String(), err)
	}

	row, err = find()
	if err != nil {
		return nil, false, err
	}
	if row == nil {
		return nil, false, &StorageError{
			Op:  "insert " + entity + " " + key.String(),
			Err: errors.New("row not visible after insert"),
		}
	}
	return row, true, nil
}

func checkMatches(entity string, key fmt.Stringer, n int, err error) (bool, error) {
	if err != nil {
		return false, storageErr("lookup "+entity+" "+key.String(), err)
	}
	if n > 1 {
		return false, &AmbiguousKeyError{Entity: entity, Key: key.String(), Count: n}
	}
	return n == 1, nil
}

// FindDate looks up a Date by its natural key. It returns nil if absent.
func FindDate(ex Executor, key DateKey) (*Date, error) {
	var d Date
	var day string
	n, err := findOne(ex, "SELECT id, day FROM dates WHERE day = ?", []any{key.Day},
		func(s scanner) error { return s.Scan(&d.ID, &day) })
	found, err := checkMatches("date", key, n, err)
	if !found {
		return nil, err
	}
	d.Day, err = time.Parse(dayLayout, day)
	if err != nil {
		return nil, storageErr("decode date "+key.String(), err)
	}
	return &d, nil
}

// ResolveDate returns the Date for a calendar day, creating it if needed.
func ResolveDate(ex Executor, day time.Time) (*Date, error) {
	if day.IsZero() {
		return nil, errors.New("resolve date: zero time")
	}
	key := KeyOfDay(day)
	d, _, err := getOrCreate("date", key,
		func() (*Date, error) { return FindDate(ex, key) },
		func() error {
			_, err := ex.Exec(`INSERT INTO dates (day) VALUES (?) ON CONFLICT(day) DO NOTHING`, key.Day)
			return err
		},
	)
	return d, err
}

// FindRequest looks up a Request by origin. It returns nil if absent.
func FindRequest(ex Executor, key RequestKey) (*Request, error) {
	var r Request
	n, err := findOne(ex, "SELECT id, origin FROM requests WHERE origin = ?", []any{key.Origin},
		func(s scanner) error { return s.Scan(&r.ID, &r.Origin) })
	found, err := checkMatches("request", key, n, err)
	if !found {
		return nil, err
	}
	return &r, nil
}

// ResolveRequest returns the Request for a source origin, creating it if needed.
func ResolveRequest(ex Executor, origin string) (*Request, error) {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return nil, errors.New("resolve request: origin must be non-empty")
	}
	key := RequestKey{Origin: origin}
	r, _, err := getOrCreate("request", key,
		func() (*Request, error) { return FindRequest(ex, key) },
		func() error {
			_, err := ex.Exec(`INSERT INTO requests (origin) VALUES (?) ON CONFLICT(origin) DO NOTHING`, origin)
			return err
		},
	)
	return r, err
}

// FindAreaCollection looks up an AreaCollection by name. It returns nil if absent.
func FindAreaCollection(ex Executor, key AreaKey) (*AreaCollection, error) {
	var c AreaCollection
	n, err := findOne(ex, "SELECT id, name FROM area_collections WHERE name = ?", []any{key.Name},
		func(s scanner) error { return s.Scan(&c.ID, &c.Name) })
	found, err := checkMatches("area collection", key, n, err)
	if !found {
		return nil, err
	}
	return &c, nil
}

// ResolveAreaCollection returns the AreaCollection with the given name,
// creating it if needed.
func ResolveAreaCollection(ex Executor, name string) (*AreaCollection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("resolve area collection: name must be non-empty")
	}
	key := AreaKey{Name: name}
	c, _, err := getOrCreate("area collection", key,
		func() (*AreaCollection, error) { return FindAreaCollection(ex, key) },
		func() error {
			_, err := ex.Exec(`INSERT INTO area_collections (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name)
			return err
		},
	)
	return c, err
}

// FindArea looks up an Area by name. It returns nil if absent.
func FindArea(ex Executor, key AreaKey) (*Area, error) {
	var a Area
	var parent sql.NullInt64
	n, err := findOne(ex, "SELECT id, name, parent_id FROM areas WHERE name = ?", []any{key.Name},
		func(s scanner) error { return s.Scan(&a.ID, &a.Name, &parent) })
	found, err := checkMatches("area", key, n, err)
	if !found {
		return nil, err
	}
	if parent.Valid {
		a.ParentID = &parent.Int64
	}
	return &a, nil
}

// ResolveArea returns the Area with the given name, creating it if needed.
// parent is only applied when the area is created; an existing area is
// returned unchanged.
func ResolveArea(ex Executor, name string, parent *AreaCollection) (*Area, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("resolve area: name must be non-empty")
	}
	var parentID any
	if parent != nil {
		parentID = parent.ID
	}
	key := AreaKey{Name: name}
	a, _, err := getOrCreate("area", key,
		func() (*Area, error) { return FindArea(ex, key) },
		func() error {
			_, err := ex.Exec(`INSERT INTO areas (name, parent_id) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`, name, parentID)
			return err
		},
	)
	return a, err
}

// FindDailyStat looks up a DailyStat by its (date, request, area) key.
// It returns nil if absent.
func FindDailyStat(ex Executor, key DailyStatKey) (*DailyStat, error) {
	var s DailyStat
	n, err := findOne(ex,
		`SELECT id, date_id, request_id, area_id, cases, cured, deaths, updated_at
		FROM daily_stats WHERE date_id = ? AND request_id = ? AND area_id = ?`,
		[]any{key.DateID, key.RequestID, key.AreaID},
		func(sc scanner) error {
			return sc.Scan(&s.ID, &s.DateID, &s.RequestID, &s.AreaID, &s.Cases, &s.Cured, &s.Deaths, &s.UpdatedAt)
		})
	found, err := checkMatches("daily stat", key, n, err)
	if !found {
		return nil, err
	}
	return &s, nil
}

// ResolveDailyStat returns the DailyStat for a resolved date, request and
// area, creating a zeroed row if needed. Inserted reports which case applied.
func ResolveDailyStat(ex Executor, date *Date, request *Request, area *Area) (*DailyStat, error) {
	if date == nil || request == nil || area == nil {
		return nil, errors.New("resolve daily stat: date, request and area must be resolved first")
	}
	key := DailyStatKey{DateID: date.ID, RequestID: request.ID, AreaID: area.ID}
	s, inserted, err := getOrCreate("daily stat", key,
		func() (*DailyStat, error) { return FindDailyStat(ex, key) },
		func() error {
			_, err := ex.Exec(
				`INSERT INTO daily_stats (date_id, request_id, area_id, updated_at)
				VALUES (?, ?, ?, datetime('now'))
				ON CONFLICT(date_id, request_id, area_id) DO NOTHING`,
				key.DateID, key.RequestID, key.AreaID,
			)
			return err
		},
	)
	if err != nil {
		return nil, err
	}
	s.Inserted = inserted
	return s, nil
}

// SaveDailyStat writes the counters of a resolved DailyStat.
func SaveDailyStat(ex Executor, s *DailyStat) error {
	res, err := ex.Exec(
		`UPDATE daily_stats SET cases = ?, cured = ?, deaths = ?, updated_at = datetime('now') WHERE id = ?`,
		s.Cases, s.Cured, s.Deaths, s.ID,
	)
	if err != nil {
		return storageErr(fmt.Sprintf("update daily stat %d", s.ID), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(fmt.Sprintf("update daily stat %d", s.ID), err)
	}
	if n != 1 {
		return &StorageError{Op: fmt.Sprintf("update daily stat %d", s.ID), Err: fmt.Errorf("%d rows affected", n)}
	}
	return nil
}
