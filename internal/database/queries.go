package database

import (
	"database/sql"
	"fmt"
	"time"
)

// GetStats returns row counts for every table and the covered day range.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}
	counts := []struct {
		table string
		dest  *int
	}{
		{"dates", &s.Dates},
		{"requests", &s.Requests},
		{"areas", &s.Areas},
		{"area_collections", &s.AreaCollections},
		{"daily_stats", &s.DailyStats},
	}
	for _, c := range counts {
		if err := db.conn.QueryRow("SELECT COUNT(*) FROM " + c.table).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", c.table, err)
		}
	}

	if err := db.conn.QueryRow(
		`SELECT MIN(d.day), MAX(d.day) FROM daily_stats s JOIN dates d ON d.id = s.date_id`,
	).Scan(&s.FirstDay, &s.LastDay); err != nil {
		return nil, fmt.Errorf("reading day range: %w", err)
	}
	return s, nil
}

// GetAllRequests returns every stored request, oldest first.
func (db *DB) GetAllRequests() ([]Request, error) {
	rows, err := db.conn.Query("SELECT id, origin FROM requests ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		var r Request
		if err := rows.Scan(&r.ID, &r.Origin); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetAreaSummaries returns every area that has statistics, grouped by
// collection and then sorted by name.
func (db *DB) GetAreaSummaries() ([]AreaSummary, error) {
	rows, err := db.conn.Query(
		`SELECT a.name, c.name, COUNT(DISTINCT s.date_id), MIN(d.day), MAX(d.day)
		FROM areas a
		LEFT JOIN area_collections c ON c.id = a.parent_id
		JOIN daily_stats s ON s.area_id = a.id
		JOIN dates d ON d.id = s.date_id
		GROUP BY a.id
		ORDER BY c.name IS NULL, c.name, a.name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AreaSummary
	for rows.Next() {
		var a AreaSummary
		if err := rows.Scan(&a.Name, &a.Collection, &a.Days, &a.FirstDay, &a.LastDay); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetPrimaryRequestForArea returns the request that supplied the most days
// for an area, preferring the newest on ties. It returns nil if the area has
// no statistics.
func (db *DB) GetPrimaryRequestForArea(areaID int64) (*Request, error) {
	var r Request
	err := db.conn.QueryRow(
		`SELECT r.id, r.origin FROM daily_stats s JOIN requests r ON r.id = s.request_id
		WHERE s.area_id = ?
		GROUP BY r.id
		ORDER BY COUNT(*) DESC, r.id DESC
		LIMIT 1`, areaID,
	).Scan(&r.ID, &r.Origin)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetSeries returns the stored cumulative counters of an area from one
// request, ordered by day.
func (db *DB) GetSeries(areaID, requestID int64) ([]SeriesPoint, error) {
	rows, err := db.conn.Query(
		`SELECT d.day, s.cases, s.cured, s.deaths
		FROM daily_stats s JOIN dates d ON d.id = s.date_id
		WHERE s.area_id = ? AND s.request_id = ?
		ORDER BY d.day`, areaID, requestID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SeriesPoint
	for rows.Next() {
		var p SeriesPoint
		var day string
		if err := rows.Scan(&day, &p.Cases, &p.Cured, &p.Deaths); err != nil {
			return nil, err
		}
		p.Day, err = time.Parse(dayLayout, day)
		if err != nil {
			return nil, fmt.Errorf("decoding day %q: %w", day, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
