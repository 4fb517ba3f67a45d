package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/dustin/go-humanize"

	"github.com/TobiSchelling/covidstat/internal/config"
	"github.com/TobiSchelling/covidstat/internal/database"
	"github.com/TobiSchelling/covidstat/internal/fetch"
	"github.com/TobiSchelling/covidstat/internal/ingest"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	Steps []StepResult
}

// Err joins the errors of all failed steps, or returns nil.
func (r *Result) Err() error {
	var errs []error
	for _, s := range r.Steps {
		if s.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, s.Err))
		}
	}
	return errors.Join(errs...)
}

// Fetcher supplies raw payload bytes.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// Pipeline fetches and ingests every configured source.
type Pipeline struct {
	cfg      *config.Config
	db       *database.DB
	fetcher  Fetcher
	ingester *ingest.Ingester
}

// New creates a new pipeline.
func New(cfg *config.Config, db *database.DB) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		db:       db,
		fetcher:  fetch.NewFetcher(cfg.FetchTimeout(), cfg.Fetch.UserAgent),
		ingester: ingest.NewIngester(db),
	}
}

// WithFetcher replaces the payload fetcher.
func (p *Pipeline) WithFetcher(f Fetcher) *Pipeline {
	p.fetcher = f
	return p
}

// Run fetches and ingests each source in order. A failed source does not
// stop the following ones; its error is recorded in the step result.
func (p *Pipeline) Run(ctx context.Context) *Result {
	r := &Result{}
	for i, src := range p.cfg.Sources {
		log.Printf("Source %d/%d: %s", i+1, len(p.cfg.Sources), src.SourceName())

		payload, step := p.runFetch(ctx, src)
		r.Steps = append(r.Steps, step)
		if step.Err != nil {
			continue
		}

		r.Steps = append(r.Steps, p.runIngest(ctx, src, payload))
	}
	return r
}

// DryRun shows what would be done without executing.
func (p *Pipeline) DryRun() *Result {
	r := &Result{}
	for _, src := range p.cfg.Sources {
		keys := make([]string, len(src.Sections))
		for i, s := range src.Sections {
			keys[i] = s.Key
		}
		r.Steps = append(r.Steps, StepResult{
			Name:    "Fetch " + src.SourceName(),
			Summary: fmt.Sprintf("[dry-run] Would fetch %s", src.URL),
		})
		r.Steps = append(r.Steps, StepResult{
			Name:    "Ingest " + src.SourceName(),
			Summary: fmt.Sprintf("[dry-run] Would ingest sections %v", keys),
		})
	}

	stats, err := p.db.GetStats()
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Status", Err: err})
		return r
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Status",
		Summary: fmt.Sprintf("[dry-run] %s daily stats already stored", humanize.Comma(int64(stats.DailyStats))),
	})
	return r
}

func (p *Pipeline) runFetch(ctx context.Context, src config.Source) ([]byte, StepResult) {
	name := "Fetch " + src.SourceName()
	payload, err := p.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return nil, StepResult{Name: name, Err: err}
	}
	return payload, StepResult{
		Name:    name,
		Summary: fmt.Sprintf("Fetched %s", humanize.Bytes(uint64(len(payload)))),
	}
}

func (p *Pipeline) runIngest(ctx context.Context, src config.Source, payload []byte) StepResult {
	name := "Ingest " + src.SourceName()
	result, err := p.ingester.Ingest(ctx, src.URL, payload, Sections(src))
	if err != nil {
		return StepResult{Name: name, Err: err}
	}

	var created, updated int
	for _, s := range result.Sections {
		created += s.Created
		updated += s.Updated
	}
	return StepResult{
		Name: name,
		Summary: fmt.Sprintf("%d sections, %s rows (%s new, %s updated)",
			len(result.Sections),
			humanize.Comma(int64(result.Rows())),
			humanize.Comma(int64(created)),
			humanize.Comma(int64(updated)),
		),
	}
}

// Sections converts configured sections to ingest sections.
func Sections(src config.Source) []ingest.Section {
	out := make([]ingest.Section, len(src.Sections))
	for i, s := range src.Sections {
		out[i] = ingest.Section{Key: s.Key, DefaultRegion: s.DefaultRegion, Collection: s.Collection}
	}
	return out
}
