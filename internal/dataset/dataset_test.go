package dataset

import (
	"errors"
	"testing"
	"time"
)

const sampleSection = `{
	"dates": ["2020-03-12", "2020-03-13", "2020-03-14"],
	"data": {
		"7": {"info": {"name": "Tomsk"}, "cases": [1, 2, 4], "cured": [0, 0, 1], "deaths": [0, 0, 0]},
		"1": {"info": {"name": "Moscow"}, "cases": [10, 15, 20], "cured": [1, 2, 3], "deaths": [0, 1, 1], "cases_delta": [10, 5, 5]},
		"3": {"info": {"name": "Omsk"}, "cases": [0, 0, 3], "cured": [0, 0, 0], "deaths": [0, 0, 0]}
	}
}`

func TestParseSortsRegionsByName(t *testing.T) {
	c, err := Parse([]byte(sampleSection), "Moscow")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"Moscow", "Omsk", "Tomsk"}
	regions := c.Regions()
	if len(regions) != len(want) {
		t.Fatalf("expected %d regions, got %d", len(want), len(regions))
	}
	for i, name := range want {
		if regions[i].ID != i || regions[i].Name != name {
			t.Errorf("region %d: expected %s=%d, got %s=%d", i, name, i, regions[i].Name, regions[i].ID)
		}
	}
}

func TestParseStableAcrossKeyOrder(t *testing.T) {
	reordered := `{
		"dates": ["2020-03-12"],
		"data": {
			"a": {"info": {"name": "Omsk"}, "cases": [3], "cured": [0], "deaths": [0]},
			"b": {"info": {"name": "Tomsk"}, "cases": [4], "cured": [0], "deaths": [0]},
			"c": {"info": {"name": "Moscow"}, "cases": [10], "cured": [0], "deaths": [0]}
		}
	}`
	for i := 0; i < 20; i++ {
		c, err := Parse([]byte(reordered), "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		r := c.Regions()
		if r[0].Name != "Moscow" || r[1].Name != "Omsk" || r[2].Name != "Tomsk" {
			t.Fatalf("unstable order on iteration %d: %v", i, r)
		}
	}
}

func TestParseDefaultRegion(t *testing.T) {
	c, err := Parse([]byte(sampleSection), "Omsk")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.DefaultRegion() != 1 {
		t.Errorf("expected default region 1, got %d", c.DefaultRegion())
	}

	c, err = Parse([]byte(sampleSection), "Nowhere")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.DefaultRegion() != 0 {
		t.Errorf("expected default region fallback 0, got %d", c.DefaultRegion())
	}
}

func TestParseDays(t *testing.T) {
	c, err := Parse([]byte(sampleSection), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	days := c.Days()
	if len(days) != 3 {
		t.Fatalf("expected 3 days, got %d", len(days))
	}
	want := time.Date(2020, 3, 13, 0, 0, 0, 0, time.UTC)
	if !days[1].Equal(want) {
		t.Errorf("expected %v, got %v", want, days[1])
	}
	if c.Dates()[2] != "2020-03-14" {
		t.Errorf("expected raw date preserved, got %q", c.Dates()[2])
	}
}

func TestParseMissingKeys(t *testing.T) {
	for _, payload := range []string{
		`{"data": {}}`,
		`{"dates": []}`,
	} {
		_, err := Parse([]byte(payload), "")
		var mpe *MalformedPayloadError
		if !errors.As(err, &mpe) {
			t.Errorf("payload %s: expected MalformedPayloadError, got %v", payload, err)
		}
	}
}

func TestParseLengthMismatch(t *testing.T) {
	payload := `{
		"dates": ["2020-03-12", "2020-03-13"],
		"data": {"1": {"info": {"name": "Omsk"}, "cases": [1, 2], "cured": [0], "deaths": [0, 0]}}
	}`
	_, err := Parse([]byte(payload), "")
	var mpe *MalformedPayloadError
	if !errors.As(err, &mpe) {
		t.Fatalf("expected MalformedPayloadError, got %v", err)
	}
	if mpe.Region != "Omsk" {
		t.Errorf("expected region 'Omsk' in error, got %q", mpe.Region)
	}
}

func TestParseRejectsBadDate(t *testing.T) {
	payload := `{"dates": ["not a date"], "data": {}}`
	_, err := Parse([]byte(payload), "")
	var mpe *MalformedPayloadError
	if !errors.As(err, &mpe) {
		t.Fatalf("expected MalformedPayloadError, got %v", err)
	}
}

func TestParseRejectsDuplicateNames(t *testing.T) {
	payload := `{
		"dates": ["2020-03-12"],
		"data": {
			"1": {"info": {"name": "Omsk"}, "cases": [1], "cured": [0], "deaths": [0]},
			"2": {"info": {"name": "Omsk"}, "cases": [2], "cured": [0], "deaths": [0]}
		}
	}`
	_, err := Parse([]byte(payload), "")
	var mpe *MalformedPayloadError
	if !errors.As(err, &mpe) {
		t.Fatalf("expected MalformedPayloadError, got %v", err)
	}
}

func TestParseRejectsNullCounter(t *testing.T) {
	payload := `{
		"dates": ["2020-03-12", "2020-03-13", "2020-03-14"],
		"data": {"1": {"info": {"name": "Omsk"}, "cases": [5, null, 7], "cured": [0, 0, 0], "deaths": [0, 0, 0]}}
	}`
	_, err := Parse([]byte(payload), "")
	var mpe *MalformedPayloadError
	if !errors.As(err, &mpe) {
		t.Fatalf("expected MalformedPayloadError, got %v", err)
	}
	if mpe.Region != "Omsk" {
		t.Errorf("expected region 'Omsk' in error, got %q", mpe.Region)
	}
	if mpe.Reason != "cases[1] is null" {
		t.Errorf("unexpected reason %q", mpe.Reason)
	}
}

func TestParseRejectsRepeatedDay(t *testing.T) {
	payload := `{
		"dates": ["2020-03-12", "2020-03-12T00:00:00Z"],
		"data": {"1": {"info": {"name": "Omsk"}, "cases": [5, 9], "cured": [0, 0], "deaths": [0, 0]}}
	}`
	_, err := Parse([]byte(payload), "")
	var mpe *MalformedPayloadError
	if !errors.As(err, &mpe) {
		t.Fatalf("expected MalformedPayloadError, got %v", err)
	}
}

func TestParseSortsTrimmedNames(t *testing.T) {
	payload := `{
		"dates": ["2020-03-12"],
		"data": {
			"1": {"info": {"name": " Zeta"}, "cases": [1], "cured": [0], "deaths": [0]},
			"2": {"info": {"name": "Alpha"}, "cases": [2], "cured": [0], "deaths": [0]}
		}
	}`
	c, err := Parse([]byte(payload), "Zeta")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	regions := c.Regions()
	if regions[0].Name != "Alpha" || regions[1].Name != "Zeta" {
		t.Errorf("expected [Alpha Zeta], got %v", regions)
	}
	if c.DefaultRegion() != 1 {
		t.Errorf("expected default region 1, got %d", c.DefaultRegion())
	}
}

func TestParseEmptyDates(t *testing.T) {
	payload := `{"dates": [], "data": {"1": {"info": {"name": "Omsk"}, "cases": [], "cured": [], "deaths": []}}}`
	c, err := Parse([]byte(payload), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stats, err := c.DailyStats(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stats) != 0 {
		t.Errorf("expected no daily stats, got %d", len(stats))
	}
}

func TestDailyStats(t *testing.T) {
	c, err := Parse([]byte(sampleSection), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stats, err := c.DailyStats(0) // Moscow
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stats) != 3 {
		t.Fatalf("expected 3 stats, got %d", len(stats))
	}
	if stats[1].Cases != (Value{X: 15, DX: 5}) {
		t.Errorf("unexpected cases on day 1: %+v", stats[1].Cases)
	}
	if stats[1].Deaths != (Value{X: 1, DX: 1}) {
		t.Errorf("unexpected deaths on day 1: %+v", stats[1].Deaths)
	}
	if stats[2].Cured != (Value{X: 3, DX: 1}) {
		t.Errorf("unexpected cured on day 2: %+v", stats[2].Cured)
	}

	if _, err := c.DailyStats(99); err == nil {
		t.Error("expected error for unknown region id")
	}
}

func TestSplitSections(t *testing.T) {
	sections, err := SplitSections([]byte(`{"russia_stat_struct": {}, "world_stat_struct": {}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sections) != 2 {
		t.Errorf("expected 2 sections, got %d", len(sections))
	}

	_, err = SplitSections([]byte(`[1, 2]`))
	var mpe *MalformedPayloadError
	if !errors.As(err, &mpe) {
		t.Errorf("expected MalformedPayloadError for array payload, got %v", err)
	}
}
