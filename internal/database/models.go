package database

import (
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// Date is the stored identity of one calendar day.
type Date struct {
	ID  int64
	Day time.Time
}

// Request is the stored identity of one ingestion source.
type Request struct {
	ID     int64
	Origin string
}

// AreaCollection groups areas, e.g. all regions of one country.
type AreaCollection struct {
	ID   int64
	Name string
}

// Area is the stored identity of one geographic area.
type Area struct {
	ID       int64
	Name     string
	ParentID *int64
}

// DailyStat holds cumulative counters for one (date, request, area).
type DailyStat struct {
	ID        int64
	DateID    int64
	RequestID int64
	AreaID    int64
	Cases     int64
	Cured     int64
	Deaths    int64
	UpdatedAt *string

	// Inserted is set when the resolution that returned this row created it.
	Inserted bool
}

// DateKey is the natural key of a Date.
type DateKey struct {
	Day string // YYYY-MM-DD
}

// KeyOfDay normalizes a time to its calendar-day key.
func KeyOfDay(t time.Time) DateKey {
	return DateKey{Day: t.Format(dayLayout)}
}

func (k DateKey) String() string { return fmt.Sprintf("(day=%s)", k.Day) }

// RequestKey is the natural key of a Request.
type RequestKey struct {
	Origin string
}

func (k RequestKey) String() string { return fmt.Sprintf("(origin=%s)", k.Origin) }

// AreaKey is the natural key of an Area or AreaCollection.
type AreaKey struct {
	Name string
}

func (k AreaKey) String() string { return fmt.Sprintf("(name=%s)", k.Name) }

// DailyStatKey is the natural key of a DailyStat.
type DailyStatKey struct {
	DateID    int64
	RequestID int64
	AreaID    int64
}

func (k DailyStatKey) String() string {
	return fmt.Sprintf("(date=%d, request=%d, area=%d)", k.DateID, k.RequestID, k.AreaID)
}

// AreaSummary describes an area with stored statistics.
type AreaSummary struct {
	Name       string
	Collection *string
	Days       int
	FirstDay   *string
	LastDay    *string
}

// SeriesPoint is one stored day of an area's cumulative counters.
type SeriesPoint struct {
	Day    time.Time
	Cases  int64
	Cured  int64
	Deaths int64
}

// Stats contains aggregate database statistics.
type Stats struct {
	Dates           int
	Requests        int
	Areas           int
	AreaCollections int
	DailyStats      int
	FirstDay        *string
	LastDay         *string
}
