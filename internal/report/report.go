// Package report reads stored cumulative series back and derives the
// per-day deltas and growth factors used for charts and tables.
package report

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/TobiSchelling/covidstat/internal/database"
	"github.com/TobiSchelling/covidstat/internal/dataset"
)

// ErrAreaNotFound is returned for an area without stored statistics.
var ErrAreaNotFound = errors.New("area not found")

// Point is one day of an area report.
type Point struct {
	Day    time.Time
	Cases  dataset.Value
	Cured  dataset.Value
	Deaths dataset.Value
	// Growth is the average daily growth of cumulative cases since the
	// base day, in percent. NaN on and before the base day.
	Growth float64
}

// Report is the derived view of one area from one request.
type Report struct {
	Area    string
	Origin  string
	BaseDay int
	Points  []Point
}

// Options tune report construction.
type Options struct {
	// Origin selects the request; empty means the one with the most days.
	Origin string
	// Base is the index of the first day used as growth base. A negative
	// value picks the first day with a non-zero case count.
	Base int
	// Last limits the report to the trailing N days; 0 keeps all.
	Last int
}

// Build loads the series of an area and derives its report.
func Build(db *database.DB, areaName string, opts Options) (*Report, error) {
	area, err := database.FindArea(db.Conn(), database.AreaKey{Name: areaName})
	if err != nil {
		return nil, err
	}
	if area == nil {
		return nil, fmt.Errorf("%w: %s", ErrAreaNotFound, areaName)
	}

	var req *database.Request
	if opts.Origin != "" {
		req, err = database.FindRequest(db.Conn(), database.RequestKey{Origin: opts.Origin})
	} else {
		req, err = db.GetPrimaryRequestForArea(area.ID)
	}
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: no statistics for %s", ErrAreaNotFound, areaName)
	}

	series, err := db.GetSeries(area.ID, req.ID)
	if err != nil {
		return nil, fmt.Errorf("loading series for %s: %w", areaName, err)
	}

	r, err := FromSeries(series, opts.Base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", areaName, err)
	}
	r.Area = area.Name
	r.Origin = req.Origin
	if opts.Last > 0 && len(r.Points) > opts.Last {
		cut := len(r.Points) - opts.Last
		r.Points = r.Points[cut:]
		r.BaseDay -= cut
	}
	return r, nil
}

// FromSeries derives a report from stored cumulative points. A negative base
// picks the first day with cases; an explicit base must be in range and have
// a non-zero case count.
func FromSeries(series []database.SeriesPoint, base int) (*Report, error) {
	cases := make([]int64, len(series))
	cured := make([]int64, len(series))
	deaths := make([]int64, len(series))
	for i, p := range series {
		cases[i], cured[i], deaths[i] = p.Cases, p.Cured, p.Deaths
	}

	explicit := base >= 0
	if !explicit {
		base = firstNonZero(cases)
	} else if base >= len(cases) && len(cases) > 0 {
		return nil, fmt.Errorf("growth base day %d out of range (%d days)", base, len(cases))
	}

	casesV := dataset.Deltas(cases)
	curedV := dataset.Deltas(cured)
	deathsV := dataset.Deltas(deaths)

	r := &Report{BaseDay: base, Points: make([]Point, len(series))}
	for i, p := range series {
		r.Points[i] = Point{
			Day:    p.Day,
			Cases:  casesV[i],
			Cured:  curedV[i],
			Deaths: deathsV[i],
			Growth: math.NaN(),
		}
	}

	if base < len(cases) {
		factors, err := GrowthPercent(cases[base:])
		if err != nil {
			return nil, fmt.Errorf("growth base day %d: %w", base, err)
		}
		for i, f := range factors {
			r.Points[base+1+i].Growth = f
		}
	}
	return r, nil
}

func firstNonZero(values []int64) int {
	for i, v := range values {
		if v > 0 {
			return i
		}
	}
	return len(values)
}

// GrowthFactor is the average daily multiplier that takes base to current
// over days days.
func GrowthFactor(current, base int64, days int) (float64, error) {
	if days <= 0 {
		return 0, errors.New("days count should be at least 1")
	}
	if base <= 0 {
		return 0, errors.New("base should be positive")
	}
	return math.Pow(float64(current)/float64(base), 1/float64(days)), nil
}

// GrowthFactors returns GrowthFactor for every day after the first, using
// the first value as base.
func GrowthFactors(values []int64) ([]float64, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		f, err := GrowthFactor(values[i], values[0], i)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// GrowthPercent is GrowthFactors expressed as percent growth per day.
func GrowthPercent(totals []int64) ([]float64, error) {
	factors, err := GrowthFactors(totals)
	if err != nil {
		return nil, err
	}
	for i, f := range factors {
		factors[i] = (f - 1) * 100
	}
	return factors, nil
}
