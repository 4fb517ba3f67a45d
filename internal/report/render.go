package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/TobiSchelling/covidstat/internal/dataset"
)

var header = []string{"Day", "Cases", "New", "Cured", "New", "Deaths", "New", "Growth %"}

func (r *Report) rows() [][]string {
	out := make([][]string, len(r.Points))
	for i, p := range r.Points {
		out[i] = []string{
			p.Day.Format(dataset.DayLayout),
			humanize.Comma(p.Cases.X), signed(p.Cases.DX),
			humanize.Comma(p.Cured.X), signed(p.Cured.DX),
			humanize.Comma(p.Deaths.X), signed(p.Deaths.DX),
			growth(p.Growth),
		}
	}
	return out
}

func signed(v int64) string {
	if v > 0 {
		return "+" + humanize.Comma(v)
	}
	return humanize.Comma(v)
}

func growth(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}

// Markdown renders the report as a markdown document with a table.
func (r *Report) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", r.Area)
	if r.Origin != "" {
		fmt.Fprintf(&b, "Source: `%s`\n\n", r.Origin)
	}
	if len(r.Points) == 0 {
		b.WriteString("No data.\n")
		return b.String()
	}

	first, last := r.Points[0], r.Points[len(r.Points)-1]
	fmt.Fprintf(&b, "- **Period:** %s\n", FormatRange(first.Day.Format(dataset.DayLayout), last.Day.Format(dataset.DayLayout)))
	fmt.Fprintf(&b, "- **Cases:** %s (%s on %s)\n", humanize.Comma(last.Cases.X), signed(last.Cases.DX), last.Day.Format("Jan 02, 2006"))
	fmt.Fprintf(&b, "- **Cured:** %s\n", humanize.Comma(last.Cured.X))
	fmt.Fprintf(&b, "- **Deaths:** %s\n\n", humanize.Comma(last.Deaths.X))

	b.WriteString("| " + strings.Join(header, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" ---: |", len(header)) + "\n")
	for _, row := range r.rows() {
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	return b.String()
}

// Table renders the report as a terminal table.
func (r *Report) Table() string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle(r.Area)

	h := make(table.Row, len(header))
	for i, c := range header {
		h[i] = c
	}
	tbl.AppendHeader(h)

	for _, row := range r.rows() {
		tr := make(table.Row, len(row))
		for i, c := range row {
			tr[i] = c
		}
		tbl.AppendRow(tr)
	}

	configs := make([]table.ColumnConfig, 0, len(header)-1)
	for i := 2; i <= len(header); i++ {
		configs = append(configs, table.ColumnConfig{Number: i, Align: text.AlignRight})
	}
	tbl.SetColumnConfigs(configs)
	tbl.AppendFooter(table.Row{fmt.Sprintf("%d days", len(r.Points))})

	return tbl.Render()
}
