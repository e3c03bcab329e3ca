// Package stats computes daily and weekly aggregates, flow series, and
// cluster trends from tagged papers.
package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"paper-radar/taxonomy"
)

// Uncategorized is the cluster name assigned to papers without tags.
const Uncategorized = "Uncategorized"

// Paper represents a paper for aggregation purposes.
type Paper struct {
	ID           string
	Title        string
	Upvotes      int
	AppearedDate string
}

// Tags holds the classification fields aggregation cares about.
type Tags struct {
	Primary   string
	Secondary []string
	TaskTags  []string
	Modality  []string
}

// TaggedPaper pairs a paper with its tags. Tags is nil for untagged papers.
type TaggedPaper struct {
	Paper Paper
	Tags  *Tags
}

// Snapshot is a persisted per-day aggregate.
type Snapshot struct {
	Date          string
	TotalPapers   int
	ClusterCounts map[string]int
	TopPaperIDs   []string
	NewPaperIDs   []string
}

// Store provides the persistence operations the engine needs.
type Store interface {
	TaggedPapersRange(ctx context.Context, start, end string) ([]TaggedPaper, error)
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error
	RecordUpvote(ctx context.Context, paperID, date string, upvotes int) error
}

// ClusterStats summarizes one cluster within a period.
type ClusterStats struct {
	Name         string   `json:"name"`
	Color        string   `json:"color"`
	PaperCount   int      `json:"paper_count"`
	PaperIDs     []string `json:"paper_ids"`
	TopPapers    []string `json:"top_papers"`
	AvgUpvotes   float64  `json:"avg_upvotes"`
	TotalUpvotes int      `json:"total_upvotes"`
}

// DailyStats aggregates a single day.
type DailyStats struct {
	Date         string         `json:"date"`
	TotalPapers  int            `json:"total_papers"`
	NewPapers    int            `json:"new_papers"`
	Clusters     []ClusterStats `json:"clusters"`
	TopPapers    []string       `json:"top_papers"`
	TotalUpvotes int            `json:"total_upvotes"`
}

// WeeklyStats aggregates a Monday-to-Sunday week.
type WeeklyStats struct {
	WeekStart         string         `json:"week_start"`
	WeekEnd           string         `json:"week_end"`
	TotalPapers       int            `json:"total_papers"`
	NewPapers         int            `json:"new_papers"`
	Clusters          []ClusterStats `json:"clusters"`
	DailyCounts       map[string]int `json:"daily_counts"`
	GrowingClusters   []string       `json:"growing_clusters"`
	DecliningClusters []string       `json:"declining_clusters"`
}

// Engine computes aggregates over the paper store.
type Engine struct {
	store Store
}

// NewEngine creates an aggregation engine backed by the given store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Daily computes statistics for a single day.
func (e *Engine) Daily(ctx context.Context, date string) (*DailyStats, error) {
	papers, err := e.store.TaggedPapersRange(ctx, date, date)
	if err != nil {
		return nil, fmt.Errorf("load papers: %w", err)
	}

	allIDs := make([]string, len(papers))
	allVotes := make([]int, len(papers))
	totalUpvotes := 0
	for i, p := range papers {
		allIDs[i] = p.Paper.ID
		allVotes[i] = p.Paper.Upvotes
		totalUpvotes += p.Paper.Upvotes
	}

	return &DailyStats{
		Date:         date,
		TotalPapers:  len(papers),
		NewPapers:    len(papers),
		Clusters:     buildClusterStats(groupByCluster(papers)),
		TopPapers:    topPaperIDs(allIDs, allVotes, 10),
		TotalUpvotes: totalUpvotes,
	}, nil
}

// Weekly computes statistics for the week containing weekStart. The date
// is normalized to its Monday, so any day of the week may be passed.
func (e *Engine) Weekly(ctx context.Context, weekStart string) (*WeeklyStats, error) {
	start, err := time.Parse(dateFormat, weekStart)
	if err != nil {
		return nil, fmt.Errorf("parse week start: %w", err)
	}
	monday, sunday := WeekBounds(start)
	startStr := monday.Format(dateFormat)
	endStr := sunday.Format(dateFormat)

	papers, err := e.store.TaggedPapersRange(ctx, startStr, endStr)
	if err != nil {
		return nil, fmt.Errorf("load papers: %w", err)
	}

	dailyCounts := make(map[string]int)
	for _, p := range papers {
		if p.Paper.AppearedDate != "" {
			dailyCounts[p.Paper.AppearedDate]++
		}
	}

	return &WeeklyStats{
		WeekStart:         startStr,
		WeekEnd:           endStr,
		TotalPapers:       len(papers),
		NewPapers:         len(papers),
		Clusters:          buildClusterStats(groupByCluster(papers)),
		DailyCounts:       dailyCounts,
		// TODO: compare against the previous week to fill growing and
		// declining clusters.
		GrowingClusters:   []string{},
		DecliningClusters: []string{},
	}, nil
}

// SnapshotDay computes the daily aggregate for a date, persists it, and
// records an upvote history point for every paper of that day.
func (e *Engine) SnapshotDay(ctx context.Context, date string) (*Snapshot, error) {
	daily, err := e.Daily(ctx, date)
	if err != nil {
		return nil, err
	}

	clusterCounts := make(map[string]int, len(daily.Clusters))
	newPaperIDs := []string{}
	for _, c := range daily.Clusters {
		clusterCounts[c.Name] = c.PaperCount
		newPaperIDs = append(newPaperIDs, c.PaperIDs...)
	}

	snapshot := &Snapshot{
		Date:          date,
		TotalPapers:   daily.TotalPapers,
		ClusterCounts: clusterCounts,
		TopPaperIDs:   daily.TopPapers,
		NewPaperIDs:   newPaperIDs,
	}
	if err := e.store.SaveSnapshot(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}

	papers, err := e.store.TaggedPapersRange(ctx, date, date)
	if err != nil {
		return nil, fmt.Errorf("load papers for upvote history: %w", err)
	}
	for _, p := range papers {
		if err := e.store.RecordUpvote(ctx, p.Paper.ID, date, p.Paper.Upvotes); err != nil {
			return nil, fmt.Errorf("record upvotes for %s: %w", p.Paper.ID, err)
		}
	}

	return snapshot, nil
}

type clusterGroup struct {
	paperIDs   []string
	upvotes    []int
	taskCounts map[string]int
	modCounts  map[string]int
}

func groupByCluster(papers []TaggedPaper) map[string]*clusterGroup {
	groups := make(map[string]*clusterGroup)
	for _, p := range papers {
		name := Uncategorized
		if p.Tags != nil {
			name = p.Tags.Primary
		}
		g := groups[name]
		if g == nil {
			g = &clusterGroup{
				taskCounts: make(map[string]int),
				modCounts:  make(map[string]int),
			}
			groups[name] = g
		}
		g.paperIDs = append(g.paperIDs, p.Paper.ID)
		g.upvotes = append(g.upvotes, p.Paper.Upvotes)
		if p.Tags != nil {
			for _, task := range p.Tags.TaskTags {
				g.taskCounts[task]++
			}
			for _, mod := range p.Tags.Modality {
				g.modCounts[mod]++
			}
		}
	}
	return groups
}

func buildClusterStats(groups map[string]*clusterGroup) []ClusterStats {
	clusters := make([]ClusterStats, 0, len(groups))
	for name, g := range groups {
		total := 0
		for _, u := range g.upvotes {
			total += u
		}
		avg := 0.0
		if len(g.upvotes) > 0 {
			avg = float64(total) / float64(len(g.upvotes))
		}
		clusters = append(clusters, ClusterStats{
			Name:         name,
			Color:        taxonomy.ColorFor(name, taxonomy.KindContribution),
			PaperCount:   len(g.paperIDs),
			PaperIDs:     g.paperIDs,
			TopPapers:    topPaperIDs(g.paperIDs, g.upvotes, 5),
			AvgUpvotes:   avg,
			TotalUpvotes: total,
		})
	}

	// Largest clusters first, names break ties for a stable order
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].PaperCount != clusters[j].PaperCount {
			return clusters[i].PaperCount > clusters[j].PaperCount
		}
		return clusters[i].Name < clusters[j].Name
	})
	return clusters
}

// topPaperIDs returns up to n paper IDs ordered by upvotes descending,
// preserving input order among equal counts.
func topPaperIDs(ids []string, upvotes []int, n int) []string {
	idx := make([]int, len(ids))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return upvotes[idx[a]] > upvotes[idx[b]] })
	if len(idx) > n {
		idx = idx[:n]
	}
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = ids[j]
	}
	return out
}
