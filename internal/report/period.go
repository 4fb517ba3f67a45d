package report

import (
	"fmt"
	"time"

	"github.com/TobiSchelling/covidstat/internal/dataset"
)

// FormatDay renders a stored YYYY-MM-DD day as "Mar 12, 2020".
// Unparseable input is returned unchanged.
func FormatDay(day string) string {
	d, err := time.Parse(dataset.DayLayout, day)
	if err != nil {
		return day
	}
	return d.Format("Jan 02, 2006")
}

// FormatRange renders an inclusive day range for display.
// Single day: "Mar 12, 2020"
// Same year: "Mar 12 - Apr 02, 2020"
// Otherwise: "Dec 30, 2020 - Jan 02, 2021"
func FormatRange(first, last string) string {
	if first == "" || last == "" {
		return ""
	}
	if first == last {
		return FormatDay(first)
	}
	start, err := time.Parse(dataset.DayLayout, first)
	if err != nil {
		return first + " .. " + last
	}
	end, err := time.Parse(dataset.DayLayout, last)
	if err != nil {
		return first + " .. " + last
	}
	if start.Year() == end.Year() {
		return fmt.Sprintf("%s - %s", start.Format("Jan 02"), end.Format("Jan 02, 2006"))
	}
	return fmt.Sprintf("%s - %s", start.Format("Jan 02, 2006"), end.Format("Jan 02, 2006"))
}

// FormatRangePtr is FormatRange for nullable columns.
func FormatRangePtr(first, last *string) string {
	if first == nil || last == nil {
		return ""
	}
	return FormatRange(*first, *last)
}
