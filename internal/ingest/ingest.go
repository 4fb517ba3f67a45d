// Package ingest writes a statistics payload into the database, one
// transaction per payload.
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/TobiSchelling/covidstat/internal/database"
	"github.com/TobiSchelling/covidstat/internal/dataset"
)

// Section selects a dataset inside a payload.
type Section struct {
	Key           string
	DefaultRegion string
	// Collection, when set, names the area group every region of this
	// section is created under.
	Collection string
}

// SectionResult counts what one section contributed.
type SectionResult struct {
	Key       string
	Regions   int
	Dates     int
	Created   int
	Updated   int
	Unchanged int
}

// Result holds the results of one payload ingestion.
type Result struct {
	Origin    string
	RequestID int64
	Sections  []SectionResult
}

// Rows returns the number of daily stat rows written or confirmed.
func (r *Result) Rows() int {
	n := 0
	for _, s := range r.Sections {
		n += s.Created + s.Updated + s.Unchanged
	}
	return n
}

// Ingester drives extraction, delta computation and entity resolution.
type Ingester struct {
	db *database.DB
}

// NewIngester creates a new Ingester.
func NewIngester(db *database.DB) *Ingester {
	return &Ingester{db: db}
}

// Ingest stores every configured section of payload under the request
// identified by origin. Either all rows are committed or none are.
func (ig *Ingester) Ingest(ctx context.Context, origin string, payload []byte, sections []Section) (*Result, error) {
	raw, err := dataset.SplitSections(payload)
	if err != nil {
		return nil, err
	}

	tx, err := ig.db.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	request, err := database.ResolveRequest(tx, origin)
	if err != nil {
		return nil, fmt.Errorf("resolving request %s: %w", origin, err)
	}

	result := &Result{Origin: origin, RequestID: request.ID}
	for _, sec := range sections {
		body, ok := raw[sec.Key]
		if !ok {
			return nil, &dataset.MalformedPayloadError{Section: sec.Key, Reason: "section not found in payload"}
		}

		sr, err := ingestSection(tx, request, body, sec)
		if err != nil {
			return nil, fmt.Errorf("section %s: %w", sec.Key, err)
		}
		log.Printf("Section %s: %d regions x %d dates (%d new, %d updated, %d unchanged)",
			sec.Key, sr.Regions, sr.Dates, sr.Created, sr.Updated, sr.Unchanged)
		result.Sections = append(result.Sections, *sr)
	}

	if err := tx.Commit(); err != nil {
		return nil, &database.StorageError{Op: "commit", Err: err}
	}
	committed = true
	return result, nil
}

func ingestSection(tx *sql.Tx, request *database.Request, body []byte, sec Section) (*SectionResult, error) {
	coll, err := dataset.Parse(body, sec.DefaultRegion)
	if err != nil {
		var mpe *dataset.MalformedPayloadError
		if errors.As(err, &mpe) && mpe.Section == "" {
			mpe.Section = sec.Key
		}
		return nil, err
	}

	sr := &SectionResult{Key: sec.Key, Regions: len(coll.Regions()), Dates: len(coll.Days())}

	var parent *database.AreaCollection
	if sec.Collection != "" {
		parent, err = database.ResolveAreaCollection(tx, sec.Collection)
		if err != nil {
			return nil, fmt.Errorf("resolving area collection %s: %w", sec.Collection, err)
		}
	}

	dates := make([]*database.Date, len(coll.Days()))
	for i, day := range coll.Days() {
		dates[i], err = database.ResolveDate(tx, day)
		if err != nil {
			return nil, fmt.Errorf("resolving date %s: %w", coll.Dates()[i], err)
		}
	}

	for _, region := range coll.Regions() {
		if err := ingestRegion(tx, coll, region, dates, request, parent, sr); err != nil {
			return nil, fmt.Errorf("region %s: %w", region.Name, err)
		}
	}
	return sr, nil
}

func ingestRegion(
	tx *sql.Tx,
	coll *dataset.Collection,
	region dataset.Region,
	dates []*database.Date,
	request *database.Request,
	parent *database.AreaCollection,
	sr *SectionResult,
) error {
	area, err := database.ResolveArea(tx, region.Name, parent)
	if err != nil {
		return err
	}

	stats, err := coll.DailyStats(region.ID)
	if err != nil {
		return err
	}

	for i, date := range dates {
		row, err := database.ResolveDailyStat(tx, date, request, area)
		if err != nil {
			return err
		}

		// Cumulative values are stored; deltas are derived on read.
		d := stats[i]
		if !row.Inserted && row.Cases == d.Cases.X && row.Cured == d.Cured.X && row.Deaths == d.Deaths.X {
			sr.Unchanged++
			continue
		}
		row.Cases, row.Cured, row.Deaths = d.Cases.X, d.Cured.X, d.Deaths.X
		if err := database.SaveDailyStat(tx, row); err != nil {
			return err
		}
		if row.Inserted {
			sr.Created++
		} else {
			sr.Updated++
		}
	}
	return nil
}
