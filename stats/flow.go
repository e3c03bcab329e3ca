package stats

import (
	"context"
	"fmt"
	"sort"

	"paper-radar/taxonomy"
)

// FlowPoint holds per-cluster counts for one date.
type FlowPoint struct {
	Date          string         `json:"date"`
	ClusterCounts map[string]int `json:"cluster_counts"`
}

// FlowData feeds stacked-area charts of cluster volume over time.
type FlowData struct {
	StartDate string            `json:"start_date"`
	EndDate   string            `json:"end_date"`
	Clusters  []string          `json:"clusters"`
	Colors    map[string]string `json:"colors"`
	DailyData []FlowPoint       `json:"daily_data"`
}

// TrendPoint is one date in a cluster's trend series.
type TrendPoint struct {
	Date       string `json:"date"`
	Count      int    `json:"count"`
	Cumulative int    `json:"cumulative"`
}

// TrendData tracks a single cluster's daily and cumulative counts.
type TrendData struct {
	ClusterName string       `json:"cluster_name"`
	Color       string       `json:"color"`
	DataPoints  []TrendPoint `json:"data_points"`
}

// Flow computes per-day cluster counts across a date range. Every cluster
// seen in the range appears in every daily point, zero-filled where absent.
// Dates with no papers are not emitted.
func (e *Engine) Flow(ctx context.Context, startDate, endDate string) (*FlowData, error) {
	papers, err := e.store.TaggedPapersRange(ctx, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("load papers: %w", err)
	}

	dateClusterCounts := make(map[string]map[string]int)
	colors := make(map[string]string)

	for _, p := range papers {
		if p.Paper.AppearedDate == "" {
			continue
		}
		name := Uncategorized
		if p.Tags != nil {
			name = p.Tags.Primary
		}

		counts := dateClusterCounts[p.Paper.AppearedDate]
		if counts == nil {
			counts = make(map[string]int)
			dateClusterCounts[p.Paper.AppearedDate] = counts
		}
		counts[name]++

		if _, ok := colors[name]; !ok {
			colors[name] = taxonomy.ColorFor(name, taxonomy.KindContribution)
		}
	}

	clusters := make([]string, 0, len(colors))
	for name := range colors {
		clusters = append(clusters, name)
	}
	sort.Strings(clusters)

	dates := make([]string, 0, len(dateClusterCounts))
	for d := range dateClusterCounts {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	dailyData := make([]FlowPoint, 0, len(dates))
	for _, d := range dates {
		counts := make(map[string]int, len(clusters))
		for _, name := range clusters {
			counts[name] = dateClusterCounts[d][name]
		}
		dailyData = append(dailyData, FlowPoint{Date: d, ClusterCounts: counts})
	}

	return &FlowData{
		StartDate: startDate,
		EndDate:   endDate,
		Clusters:  clusters,
		Colors:    colors,
		DailyData: dailyData,
	}, nil
}

// Trend computes the daily and cumulative paper counts for one cluster.
// The cluster name must match the stored primary tag exactly.
func (e *Engine) Trend(ctx context.Context, clusterName, startDate, endDate string) (*TrendData, error) {
	papers, err := e.store.TaggedPapersRange(ctx, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("load papers: %w", err)
	}

	dailyCounts := make(map[string]int)
	for _, p := range papers {
		if p.Paper.AppearedDate == "" {
			continue
		}
		name := Uncategorized
		if p.Tags != nil {
			name = p.Tags.Primary
		}
		if name == clusterName {
			dailyCounts[p.Paper.AppearedDate]++
		}
	}

	dates := make([]string, 0, len(dailyCounts))
	for d := range dailyCounts {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	dataPoints := make([]TrendPoint, 0, len(dates))
	cumulative := 0
	for _, d := range dates {
		cumulative += dailyCounts[d]
		dataPoints = append(dataPoints, TrendPoint{Date: d, Count: dailyCounts[d], Cumulative: cumulative})
	}

	return &TrendData{
		ClusterName: clusterName,
		Color:       taxonomy.ColorFor(clusterName, taxonomy.KindContribution),
		DataPoints:  dataPoints,
	}, nil
}
