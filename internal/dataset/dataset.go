// Package dataset extracts regions, the shared date axis and cumulative
// counters from a raw statistics payload.
package dataset

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// DayLayout is the canonical calendar-day format used across the module.
const DayLayout = "2006-01-02"

// Region is a transient extraction result. ID is the position of the region
// after sorting by name, so the same payload always yields the same IDs.
type Region struct {
	ID   int
	Name string
}

func (r Region) String() string {
	return r.Name
}

// Counters holds the raw cumulative arrays of one region, index-aligned
// with the date axis.
type Counters struct {
	Cases  []int64
	Cured  []int64
	Deaths []int64
}

// DailyStats is the per-day view of one region: each counter paired with
// its delta.
type DailyStats struct {
	Cases  Value
	Cured  Value
	Deaths Value
}

// Collection is a parsed dataset section.
type Collection struct {
	regions       []Region
	counters      []Counters
	dates         []string
	days          []time.Time
	defaultRegion int
}

type regionEntry struct {
	Info struct {
		Name string `json:"name"`
	} `json:"info"`
	Cases  []*int64 `json:"cases"`
	Cured  []*int64 `json:"cured"`
	Deaths []*int64 `json:"deaths"`
}

// counters checks every array against the date axis and drops the pointers.
// A null element is not a count and is rejected rather than read as 0.
func (e regionEntry) counters(name string, n int) (Counters, error) {
	var c Counters
	for _, f := range []struct {
		field  string
		values []*int64
		dest   *[]int64
	}{
		{"cases", e.Cases, &c.Cases},
		{"cured", e.Cured, &c.Cured},
		{"deaths", e.Deaths, &c.Deaths},
	} {
		if len(f.values) != n {
			return Counters{}, &MalformedPayloadError{
				Region: name,
				Reason: fmt.Sprintf("%s has %d values, want %d", f.field, len(f.values), n),
			}
		}
		out := make([]int64, n)
		for i, v := range f.values {
			if v == nil {
				return Counters{}, &MalformedPayloadError{Region: name, Reason: fmt.Sprintf("%s[%d] is null", f.field, i)}
			}
			out[i] = *v
		}
		*f.dest = out
	}
	return c, nil
}

// SplitSections returns the top-level dataset sections of a payload.
func SplitSections(raw []byte) (map[string]json.RawMessage, error) {
	var sections map[string]json.RawMessage
	if err := json.Unmarshal(raw, &sections); err != nil {
		return nil, &MalformedPayloadError{Reason: "decoding payload", Err: err}
	}
	if sections == nil {
		return nil, malformed("payload is not a JSON object")
	}
	return sections, nil
}

// Parse extracts a Collection from one dataset section. defaultRegion names
// the aggregate row consumers look up with DefaultRegion.
func Parse(section []byte, defaultRegion string) (*Collection, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(section, &top); err != nil {
		return nil, &MalformedPayloadError{Reason: "decoding section", Err: err}
	}

	rawDates, ok := top["dates"]
	if !ok {
		return nil, malformed("missing %q key", "dates")
	}
	rawData, ok := top["data"]
	if !ok {
		return nil, malformed("missing %q key", "data")
	}

	var dates []string
	if err := json.Unmarshal(rawDates, &dates); err != nil {
		return nil, &MalformedPayloadError{Reason: "decoding dates", Err: err}
	}
	var data map[string]regionEntry
	if err := json.Unmarshal(rawData, &data); err != nil {
		return nil, &MalformedPayloadError{Reason: "decoding data", Err: err}
	}

	days := make([]time.Time, len(dates))
	seenDays := make(map[string]int, len(dates))
	for i, d := range dates {
		day, err := ParseDay(d)
		if err != nil {
			return nil, &MalformedPayloadError{Reason: fmt.Sprintf("date %d (%q)", i, d), Err: err}
		}
		// Two axis entries on one calendar day would share a stored Date row.
		key := day.Format(DayLayout)
		if prev, dup := seenDays[key]; dup {
			return nil, malformed("dates %d (%q) and %d (%q) fall on the same day", prev, dates[prev], i, d)
		}
		seenDays[key] = i
		days[i] = day
	}

	// Sort keys first so ties on name never depend on map iteration order.
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]regionEntry, len(keys))
	for i, k := range keys {
		entries[i] = data[k]
		entries[i].Info.Name = strings.TrimSpace(entries[i].Info.Name)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Info.Name < entries[j].Info.Name
	})

	c := &Collection{
		regions:  make([]Region, len(entries)),
		counters: make([]Counters, len(entries)),
		dates:    dates,
		days:     days,
	}

	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		name := e.Info.Name
		if name == "" {
			return nil, malformed("region %d has no info.name", i)
		}
		if _, dup := seen[name]; dup {
			return nil, &MalformedPayloadError{Region: name, Reason: "duplicate region name"}
		}
		seen[name] = struct{}{}

		counters, err := e.counters(name, len(dates))
		if err != nil {
			return nil, err
		}

		c.regions[i] = Region{ID: i, Name: name}
		c.counters[i] = counters
		if name == defaultRegion {
			c.defaultRegion = i
		}
	}

	return c, nil
}

// ParseDay parses a source date string into a calendar day at UTC midnight.
func ParseDay(s string) (time.Time, error) {
	t, err := dateparse.ParseIn(strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// Regions returns the regions sorted by name.
func (c *Collection) Regions() []Region {
	return c.regions
}

// Dates returns the raw date axis as found in the payload.
func (c *Collection) Dates() []string {
	return c.dates
}

// Days returns the parsed date axis.
func (c *Collection) Days() []time.Time {
	return c.days
}

// DefaultRegion returns the ID of the region named as the default, or 0 if
// no region carries that name.
func (c *Collection) DefaultRegion() int {
	return c.defaultRegion
}

// Counters returns the raw cumulative arrays of a region.
func (c *Collection) Counters(regionID int) (Counters, error) {
	if regionID < 0 || regionID >= len(c.counters) {
		return Counters{}, fmt.Errorf("unknown region id %d", regionID)
	}
	return c.counters[regionID], nil
}

// DailyStats returns the per-day values and deltas of a region.
func (c *Collection) DailyStats(regionID int) ([]DailyStats, error) {
	counters, err := c.Counters(regionID)
	if err != nil {
		return nil, err
	}

	cases := Deltas(counters.Cases)
	cured := Deltas(counters.Cured)
	deaths := Deltas(counters.Deaths)

	stats := make([]DailyStats, len(cases))
	for i := range stats {
		stats[i] = DailyStats{Cases: cases[i], Cured: cured[i], Deaths: deaths[i]}
	}
	return stats, nil
}
