// Package pipeline orchestrates the scrape, tag, and snapshot workflow.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	dateFormat  = "2006-01-02"
	monthFormat = "2006-01"
)

// Paper is the scraped record the pipeline moves between collaborators.
type Paper struct {
	ID            string
	Title         string
	Abstract      string
	PublishedDate string
	HFURL         string
	ArxivURL      string
	PDFURL        string
	Upvotes       int
	Authors       []string
	ContentHash   string
	AppearedDate  string
}

// Taxonomy is the tag vocabulary for one month.
type Taxonomy struct {
	Month            string
	ContributionTags []string
	TaskTags         []string
	ModalityTags     []string
	Definitions      map[string]string
}

// PaperTags is the classification result for one paper.
type PaperTags struct {
	PaperID          string
	Month            string
	Primary          string
	Secondary        []string
	TaskTags         []string
	ModalityTags     []string
	ResearchQuestion string
	Confidence       float64
	Rationale        string
}

// Scraper fetches papers from the listing site.
type Scraper interface {
	ScrapeDay(ctx context.Context, date string) ([]*Paper, error)
	ScrapeMonth(ctx context.Context, month string, progress func(done, total int, paperID string)) ([]*Paper, error)
}

// Store persists scraped papers and their classifications.
type Store interface {
	UpsertPaper(ctx context.Context, paper *Paper) error
	CountPapersByDate(ctx context.Context, date string) (int, error)
	// GetTaxonomy returns nil without error when no taxonomy exists yet.
	GetTaxonomy(ctx context.Context, month string) (*Taxonomy, error)
	SaveTaxonomy(ctx context.Context, tax *Taxonomy) error
	SaveTags(ctx context.Context, tags *PaperTags) error
}

// Classifier produces taxonomies and per-paper tags. Implementations
// never fail; they fall back to defaults internally.
type Classifier interface {
	GenerateTaxonomy(ctx context.Context, papers []*Paper, month string) *Taxonomy
	TagPaper(ctx context.Context, paper *Paper, tax *Taxonomy) *PaperTags
}

// SnapshotWriter persists the daily aggregate once papers are indexed.
type SnapshotWriter interface {
	SnapshotDay(ctx context.Context, date string) error
}

// Notifier announces a completed daily run. Delivery problems are the
// notifier's to log; the pipeline does not see them.
type Notifier interface {
	NotifyDay(ctx context.Context, date string)
}

// Progress receives advancing counts while a run is in flight. stage is
// "scraping" or "tagging".
type Progress func(stage string, done, total int)

// Result reports one indexing run.
type Result struct {
	Date          string `json:"date,omitempty"`
	Month         string `json:"month,omitempty"`
	PapersScraped int    `json:"papers_scraped"`
	PapersTagged  int    `json:"papers_tagged"`
	Message       string `json:"message"`
}

// Runner drives the indexing workflow.
type Runner struct {
	scraper    Scraper
	store      Store
	classifier Classifier
	snapshots  SnapshotWriter
	notifier   Notifier
}

// Option configures the Runner.
type Option func(*Runner)

// WithNotifier sets a notifier invoked after each successful daily run.
func WithNotifier(n Notifier) Option {
	return func(r *Runner) {
		r.notifier = n
	}
}

// NewRunner creates an indexing runner.
func NewRunner(scraper Scraper, store Store, classifier Classifier, snapshots SnapshotWriter, opts ...Option) *Runner {
	r := &Runner{
		scraper:    scraper,
		store:      store,
		classifier: classifier,
		snapshots:  snapshots,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunDay scrapes, tags, and snapshots one day. progress may be nil.
func (r *Runner) RunDay(ctx context.Context, date string, progress Progress) (*Result, error) {
	if _, err := time.Parse(dateFormat, date); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}

	slog.Info("starting daily indexing", "date", date)
	result := &Result{Date: date}

	// Step 1: Scrape the day's papers
	papers, err := r.scraper.ScrapeDay(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("scrape %s: %w", date, err)
	}
	result.PapersScraped = len(papers)
	report(progress, "scraping", len(papers), len(papers))

	if len(papers) == 0 {
		result.Message = "No papers found for this date"
		slog.Info("no papers found", "date", date)
		return result, nil
	}

	// Step 2: Save papers
	for _, p := range papers {
		if err := r.store.UpsertPaper(ctx, p); err != nil {
			return nil, fmt.Errorf("save paper %s: %w", p.ID, err)
		}
	}

	// Step 3: Get or create the month's taxonomy
	tax, err := r.ensureTaxonomy(ctx, papers, date[:7])
	if err != nil {
		return nil, err
	}

	// Step 4: Tag every paper
	if err := r.tagPapers(ctx, papers, tax, result, progress); err != nil {
		return nil, err
	}

	// Step 5: Snapshot the day's aggregates
	if err := r.snapshots.SnapshotDay(ctx, date); err != nil {
		return nil, fmt.Errorf("save snapshot %s: %w", date, err)
	}

	// Step 6: Announce the day
	if r.notifier != nil {
		r.notifier.NotifyDay(ctx, date)
	}

	result.Message = fmt.Sprintf("Successfully indexed %d papers", len(papers))
	slog.Info("daily indexing complete", "date", date, "papers", len(papers))
	return result, nil
}

// RunMonth scrapes and tags a whole month. The monthly listing carries
// no per-day arrival information, so no snapshot is written. progress
// may be nil.
func (r *Runner) RunMonth(ctx context.Context, month string, progress Progress) (*Result, error) {
	if _, err := time.Parse(monthFormat, month); err != nil {
		return nil, fmt.Errorf("invalid month %q: %w", month, err)
	}

	slog.Info("starting monthly indexing", "month", month)
	result := &Result{Month: month}

	// Step 1: Scrape the month's papers
	papers, err := r.scraper.ScrapeMonth(ctx, month, func(done, total int, paperID string) {
		report(progress, "scraping", done, total)
	})
	if err != nil {
		return nil, fmt.Errorf("scrape %s: %w", month, err)
	}
	result.PapersScraped = len(papers)

	if len(papers) == 0 {
		result.Message = "No papers found for this month"
		slog.Info("no papers found", "month", month)
		return result, nil
	}

	// Step 2: Save papers
	for _, p := range papers {
		if err := r.store.UpsertPaper(ctx, p); err != nil {
			return nil, fmt.Errorf("save paper %s: %w", p.ID, err)
		}
	}

	// Step 3: Get or create the month's taxonomy
	tax, err := r.ensureTaxonomy(ctx, papers, month)
	if err != nil {
		return nil, err
	}

	// Step 4: Tag every paper
	if err := r.tagPapers(ctx, papers, tax, result, progress); err != nil {
		return nil, err
	}

	result.Message = fmt.Sprintf("Successfully indexed %d papers", len(papers))
	slog.Info("monthly indexing complete", "month", month, "papers", len(papers))
	return result, nil
}

// Backfill indexes weekdays within the past days that have no stored
// papers yet, oldest first. A day that fails is logged and skipped so
// one bad day does not stop the rest.
func (r *Runner) Backfill(ctx context.Context, days int) ([]*Result, error) {
	slog.Info("checking for missed days", "days", days)

	today := time.Now().UTC()
	results := []*Result{}

	for i := days; i >= 1; i-- {
		day := today.AddDate(0, 0, -i)
		if !isWeekday(day) {
			continue
		}
		date := day.Format(dateFormat)

		count, err := r.store.CountPapersByDate(ctx, date)
		if err != nil {
			return results, fmt.Errorf("check existing papers for %s: %w", date, err)
		}
		if count > 0 {
			slog.Info("already indexed", "date", date, "papers", count)
			continue
		}

		slog.Info("backfilling missed day", "date", date)
		res, err := r.RunDay(ctx, date, nil)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			slog.Warn("backfill failed for day", "date", date, "error", err)
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

func (r *Runner) ensureTaxonomy(ctx context.Context, papers []*Paper, month string) (*Taxonomy, error) {
	tax, err := r.store.GetTaxonomy(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy %s: %w", month, err)
	}
	if tax != nil {
		return tax, nil
	}

	slog.Info("creating taxonomy", "month", month)
	tax = r.classifier.GenerateTaxonomy(ctx, papers, month)
	if err := r.store.SaveTaxonomy(ctx, tax); err != nil {
		return nil, fmt.Errorf("save taxonomy %s: %w", month, err)
	}
	return tax, nil
}

func (r *Runner) tagPapers(ctx context.Context, papers []*Paper, tax *Taxonomy, result *Result, progress Progress) error {
	for i, p := range papers {
		tags := r.classifier.TagPaper(ctx, p, tax)
		if err := r.store.SaveTags(ctx, tags); err != nil {
			return fmt.Errorf("save tags for %s: %w", p.ID, err)
		}
		result.PapersTagged = i + 1
		report(progress, "tagging", i+1, len(papers))

		if (i+1)%10 == 0 {
			slog.Info("tagging progress", "done", i+1, "total", len(papers))
		}
	}
	return nil
}

func isWeekday(d time.Time) bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func report(progress Progress, stage string, done, total int) {
	if progress != nil {
		progress(stage, done, total)
	}
}
