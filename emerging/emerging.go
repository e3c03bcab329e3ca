// Package emerging detects shifts in the paper stream by comparing a
// current window against an earlier comparison window. It combines four
// independent signal detectors into a ranked report.
package emerging

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"time"
)

const dateFormat = "2006-01-02"

// Signal types emitted by the detectors.
const (
	SignalNewCluster       = "new_cluster"
	SignalRapidGrowth      = "rapid_growth"
	SignalUpvoteSurge      = "upvote_surge"
	SignalKeywordEmergence = "keyword_emergence"
)

// Trend directions for cluster signals.
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendStable  = "stable"
)

const (
	defaultLookbackDays          = 14
	defaultComparisonDays        = 30
	defaultTrendWindowDays       = 30
	defaultMinSurgePapers        = 3
	defaultMinKeywordOccurrences = 5
)

// Paper represents a paper for detection purposes.
type Paper struct {
	ID           string
	Title        string
	Abstract     string
	Upvotes      int
	AppearedDate string
}

// Tags holds the classification fields detection cares about.
type Tags struct {
	Primary string
}

// TaggedPaper pairs a paper with its tags. Tags is nil for untagged
// papers, which the detectors skip.
type TaggedPaper struct {
	Paper Paper
	Tags  *Tags
}

// Store provides the range query the detectors need.
type Store interface {
	TaggedPapersRange(ctx context.Context, start, end string) ([]TaggedPaper, error)
}

// Topic is one detected emerging signal.
type Topic struct {
	Name           string   `json:"name"`
	SignalType     string   `json:"signal_type"`
	Confidence     float64  `json:"confidence"`
	Evidence       string   `json:"evidence"`
	FirstSeen      string   `json:"first_seen,omitempty"`
	GrowthRate     float64  `json:"growth_rate,omitempty"`
	SamplePaperIDs []string `json:"sample_paper_ids"`
}

// TrendSignal classifies one cluster's week-over-week movement.
type TrendSignal struct {
	ClusterName    string  `json:"cluster_name"`
	SignalStrength float64 `json:"signal_strength"`
	TrendDirection string  `json:"trend_direction"`
	WeeklyChange   float64 `json:"weekly_change"`
	MonthlyChange  float64 `json:"monthly_change"`
	CurrentCount   int     `json:"current_count"`
	PreviousCount  int     `json:"previous_count"`
}

// Report combines all detector outputs for one analysis period.
type Report struct {
	GeneratedAt    string        `json:"generated_at"`
	AnalysisPeriod string        `json:"analysis_period"`
	EmergingTopics []Topic       `json:"emerging_topics"`
	TrendSignals   []TrendSignal `json:"trend_signals"`
	Summary        string        `json:"summary"`
}

// Detector runs emerging-topic detection over the paper store.
type Detector struct {
	store                 Store
	lookbackDays          int
	comparisonDays        int
	trendWindowDays       int
	minSurgePapers        int
	minKeywordOccurrences int
}

// Option configures the Detector.
type Option func(*Detector)

// WithLookback sets the current-window length in days for reports.
func WithLookback(days int) Option {
	return func(d *Detector) {
		d.lookbackDays = days
	}
}

// WithComparisonWindow sets the comparison-window length in days.
func WithComparisonWindow(days int) Option {
	return func(d *Detector) {
		d.comparisonDays = days
	}
}

// WithTrendWindow sets the month-window length in days for trend signals.
func WithTrendWindow(days int) Option {
	return func(d *Detector) {
		d.trendWindowDays = days
	}
}

// WithMinSurgePapers sets the cluster size floor for upvote-surge detection.
func WithMinSurgePapers(n int) Option {
	return func(d *Detector) {
		d.minSurgePapers = n
	}
}

// WithMinKeywordOccurrences sets the paper count a keyword needs to emerge.
func WithMinKeywordOccurrences(n int) Option {
	return func(d *Detector) {
		d.minKeywordOccurrences = n
	}
}

// NewDetector creates a detector backed by the given store.
func NewDetector(store Store, opts ...Option) *Detector {
	d := &Detector{
		store:                 store,
		lookbackDays:          defaultLookbackDays,
		comparisonDays:        defaultComparisonDays,
		trendWindowDays:       defaultTrendWindowDays,
		minSurgePapers:        defaultMinSurgePapers,
		minKeywordOccurrences: defaultMinKeywordOccurrences,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewClusters detects clusters that are new or grew rapidly in the
// current window compared to the comparison window. Clusters present
// only in the comparison window are silent.
func (d *Detector) NewClusters(ctx context.Context, currentStart, currentEnd, comparisonStart, comparisonEnd string) ([]Topic, error) {
	currentPapers, err := d.store.TaggedPapersRange(ctx, currentStart, currentEnd)
	if err != nil {
		return nil, fmt.Errorf("load current window: %w", err)
	}
	comparisonPapers, err := d.store.TaggedPapersRange(ctx, comparisonStart, comparisonEnd)
	if err != nil {
		return nil, fmt.Errorf("load comparison window: %w", err)
	}

	currentClusters := clusterPaperIDs(currentPapers)
	comparisonClusters := clusterPaperIDs(comparisonPapers)

	topics := []Topic{}
	for _, cluster := range slices.Sorted(maps.Keys(currentClusters)) {
		paperIDs := currentClusters[cluster]
		currentCount := len(paperIDs)
		previousCount := len(comparisonClusters[cluster])

		switch {
		case previousCount <= 2 && currentCount >= 5:
			topics = append(topics, Topic{
				Name:       cluster,
				SignalType: SignalNewCluster,
				Confidence: math.Min(0.9, 0.5+float64(currentCount-previousCount)*0.05),
				Evidence: fmt.Sprintf("Cluster '%s' appeared with %d papers (up from %d in comparison period)",
					cluster, currentCount, previousCount),
				FirstSeen:      currentStart,
				SamplePaperIDs: firstN(paperIDs, 5),
			})
		case previousCount > 2 && currentCount >= previousCount*2:
			growthPct := PercentageChange(currentCount, previousCount)
			topics = append(topics, Topic{
				Name:       cluster,
				SignalType: SignalRapidGrowth,
				Confidence: math.Min(0.95, 0.6+growthPct/500),
				Evidence: fmt.Sprintf("Cluster '%s' grew %.0f%% (%d -> %d papers)",
					cluster, growthPct, previousCount, currentCount),
				GrowthRate:     growthPct,
				SamplePaperIDs: firstN(paperIDs, 5),
			})
		}
	}
	return topics, nil
}

// UpvoteSurges detects clusters whose papers average well above the
// overall upvote level in the window. Clusters below the paper floor
// are excluded from the baseline as well as from the results, so a
// couple of viral papers in a tiny cluster cannot skew the average.
func (d *Detector) UpvoteSurges(ctx context.Context, startDate, endDate string) ([]Topic, error) {
	papers, err := d.store.TaggedPapersRange(ctx, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("load window: %w", err)
	}

	type clusterVotes struct {
		paperIDs []string
		upvotes  []int
	}
	groups := make(map[string]*clusterVotes)
	for _, p := range papers {
		if p.Tags == nil {
			continue
		}
		g := groups[p.Tags.Primary]
		if g == nil {
			g = &clusterVotes{}
			groups[p.Tags.Primary] = g
		}
		g.paperIDs = append(g.paperIDs, p.Paper.ID)
		g.upvotes = append(g.upvotes, p.Paper.Upvotes)
	}

	qualifying := []string{}
	totalVotes, totalPapers := 0, 0
	for _, cluster := range slices.Sorted(maps.Keys(groups)) {
		g := groups[cluster]
		if len(g.upvotes) < d.minSurgePapers {
			continue
		}
		qualifying = append(qualifying, cluster)
		for _, u := range g.upvotes {
			totalVotes += u
		}
		totalPapers += len(g.upvotes)
	}

	topics := []Topic{}
	if totalPapers == 0 {
		return topics, nil
	}
	overallAvg := float64(totalVotes) / float64(totalPapers)

	for _, cluster := range qualifying {
		g := groups[cluster]
		sum := 0
		for _, u := range g.upvotes {
			sum += u
		}
		clusterAvg := float64(sum) / float64(len(g.upvotes))

		if clusterAvg > overallAvg*1.5 {
			ratio := clusterAvg / overallAvg
			topics = append(topics, Topic{
				Name:       cluster,
				SignalType: SignalUpvoteSurge,
				Confidence: math.Min(0.9, 0.5+(ratio-1)*0.2),
				Evidence: fmt.Sprintf("Cluster '%s' papers avg %.0f upvotes (%.1fx the overall average of %.0f)",
					cluster, clusterAvg, ratio, overallAvg),
				SamplePaperIDs: firstN(g.paperIDs, 5),
			})
		}
	}
	return topics, nil
}

// TrendSignals computes week-over-week and month-over-month change per
// cluster, using fixed day offsets from endDate rather than calendar
// boundaries.
func (d *Detector) TrendSignals(ctx context.Context, endDate string) ([]TrendSignal, error) {
	end, err := time.Parse(dateFormat, endDate)
	if err != nil {
		return nil, fmt.Errorf("parse end date: %w", err)
	}
	day := func(offset int) string {
		return end.AddDate(0, 0, -offset).Format(dateFormat)
	}

	currentWeek, err := d.clusterCounts(ctx, day(6), day(0))
	if err != nil {
		return nil, err
	}
	prevWeek, err := d.clusterCounts(ctx, day(13), day(7))
	if err != nil {
		return nil, err
	}
	currentMonth, err := d.clusterCounts(ctx, day(d.trendWindowDays-1), day(0))
	if err != nil {
		return nil, err
	}
	prevMonth, err := d.clusterCounts(ctx, day(2*d.trendWindowDays-1), day(d.trendWindowDays))
	if err != nil {
		return nil, err
	}

	union := make(map[string]struct{})
	for _, counts := range []map[string]int{currentWeek, prevWeek, currentMonth, prevMonth} {
		for cluster := range counts {
			union[cluster] = struct{}{}
		}
	}

	signals := make([]TrendSignal, 0, len(union))
	for _, cluster := range slices.Sorted(maps.Keys(union)) {
		weeklyChange := PercentageChange(currentWeek[cluster], prevWeek[cluster])
		monthlyChange := PercentageChange(currentMonth[cluster], prevMonth[cluster])

		direction := TrendStable
		switch {
		case weeklyChange > 20:
			direction = TrendRising
		case weeklyChange < -20:
			direction = TrendFalling
		}

		signals = append(signals, TrendSignal{
			ClusterName:    cluster,
			SignalStrength: math.Min(1.0, math.Abs(weeklyChange)/100),
			TrendDirection: direction,
			WeeklyChange:   weeklyChange,
			MonthlyChange:  monthlyChange,
			CurrentCount:   currentWeek[cluster],
			PreviousCount:  prevWeek[cluster],
		})
	}

	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].SignalStrength > signals[j].SignalStrength
	})
	return signals, nil
}

// Report runs all detectors against the period ending at endDate and
// assembles a ranked report. An empty endDate means today.
func (d *Detector) Report(ctx context.Context, endDate string) (*Report, error) {
	if endDate == "" {
		endDate = time.Now().UTC().Format(dateFormat)
	}
	end, err := time.Parse(dateFormat, endDate)
	if err != nil {
		return nil, fmt.Errorf("parse end date: %w", err)
	}

	currentStart := end.AddDate(0, 0, -(d.lookbackDays - 1)).Format(dateFormat)
	comparisonEnd := end.AddDate(0, 0, -d.lookbackDays).Format(dateFormat)
	comparisonStart := end.AddDate(0, 0, -(d.lookbackDays + d.comparisonDays - 1)).Format(dateFormat)

	newClusters, err := d.NewClusters(ctx, currentStart, endDate, comparisonStart, comparisonEnd)
	if err != nil {
		return nil, err
	}
	surges, err := d.UpvoteSurges(ctx, currentStart, endDate)
	if err != nil {
		return nil, err
	}
	keywords, err := d.KeywordEmergence(ctx, currentStart, endDate, comparisonStart, comparisonEnd)
	if err != nil {
		return nil, err
	}
	signals, err := d.TrendSignals(ctx, endDate)
	if err != nil {
		return nil, err
	}

	topics := make([]Topic, 0, len(newClusters)+len(surges)+len(keywords))
	topics = append(topics, newClusters...)
	topics = append(topics, surges...)
	topics = append(topics, keywords...)
	sort.SliceStable(topics, func(i, j int) bool {
		return topics[i].Confidence > topics[j].Confidence
	})

	risingCount, fallingCount := 0, 0
	for _, s := range signals {
		switch s.TrendDirection {
		case TrendRising:
			risingCount++
		case TrendFalling:
			fallingCount++
		}
	}

	var summary string
	if len(topics) > 0 {
		summary = fmt.Sprintf("Detected %d emerging signals. Top signal: %s (%s). ",
			len(topics), topics[0].Name, topics[0].SignalType)
	} else {
		summary = "No significant emerging topics detected. "
	}
	summary += fmt.Sprintf("Trend analysis: %d rising, %d falling clusters.", risingCount, fallingCount)

	if len(topics) > 20 {
		topics = topics[:20]
	}
	if len(signals) > 15 {
		signals = signals[:15]
	}

	return &Report{
		GeneratedAt:    time.Now().UTC().Format(time.RFC3339),
		AnalysisPeriod: fmt.Sprintf("%s to %s", currentStart, endDate),
		EmergingTopics: topics,
		TrendSignals:   signals,
		Summary:        summary,
	}, nil
}

// PercentageChange treats growth from zero as exactly +100%, which the
// detector thresholds rely on.
func PercentageChange(current, previous int) float64 {
	if previous == 0 {
		if current > 0 {
			return 100.0
		}
		return 0.0
	}
	return float64(current-previous) / float64(previous) * 100
}

// GrowthRate returns the least-squares slope of counts against their
// index, in papers per day. Fewer than two points yield 0.
func GrowthRate(counts []int) float64 {
	if len(counts) < 2 {
		return 0
	}
	n := len(counts)
	xMean := float64(n-1) / 2
	sum := 0
	for _, c := range counts {
		sum += c
	}
	yMean := float64(sum) / float64(n)

	numerator, denominator := 0.0, 0.0
	for i, c := range counts {
		dx := float64(i) - xMean
		numerator += dx * (float64(c) - yMean)
		denominator += dx * dx
	}
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

func (d *Detector) clusterCounts(ctx context.Context, start, end string) (map[string]int, error) {
	papers, err := d.store.TaggedPapersRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load window %s..%s: %w", start, end, err)
	}
	counts := make(map[string]int)
	for _, p := range papers {
		if p.Tags != nil {
			counts[p.Tags.Primary]++
		}
	}
	return counts, nil
}

func clusterPaperIDs(papers []TaggedPaper) map[string][]string {
	clusters := make(map[string][]string)
	for _, p := range papers {
		if p.Tags != nil {
			clusters[p.Tags.Primary] = append(clusters[p.Tags.Primary], p.Paper.ID)
		}
	}
	return clusters
}

func firstN(ids []string, n int) []string {
	if len(ids) > n {
		return ids[:n]
	}
	return ids
}
