package stats

import (
	"context"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"paper-radar/taxonomy"
)

// ClusterSummary describes one cluster of a month's tagged papers.
type ClusterSummary struct {
	ClusterID     string   `json:"cluster_id"`
	Name          string   `json:"name"`
	Color         string   `json:"color"`
	PaperCount    int      `json:"paper_count"`
	TopTaskTags   []string `json:"top_task_tags"`
	TopModalities []string `json:"top_modalities"`
}

// ClusterNode is one node of the cluster graph with its member papers.
type ClusterNode struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Color         string   `json:"color"`
	PaperCount    int      `json:"paper_count"`
	TopTaskTags   []string `json:"top_task_tags"`
	TopModalities []string `json:"top_modalities"`
	PaperIDs      []string `json:"paper_ids"`
}

// ClusterLink connects two clusters that share papers or task tags.
type ClusterLink struct {
	Source         string   `json:"source"`
	Target         string   `json:"target"`
	SharedCount    int      `json:"shared_count"`
	SharedPaperIDs []string `json:"shared_paper_ids"`
}

// ClusterGraph is a month's cluster relationship graph.
type ClusterGraph struct {
	Nodes []ClusterNode `json:"nodes"`
	Links []ClusterLink `json:"links"`
}

// MonthSummary rolls up one month's papers.
type MonthSummary struct {
	Month        string           `json:"month"`
	TotalPapers  int              `json:"total_papers"`
	TotalUpvotes int              `json:"total_upvotes"`
	Clusters     []ClusterSummary `json:"clusters"`
	TopPapers    []string         `json:"top_papers"`
}

var (
	slugStripPattern = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpacePattern = regexp.MustCompile(`\s+`)
)

// Slugify converts a cluster name to a URL-friendly identifier.
func Slugify(text string) string {
	text = strings.ToLower(text)
	text = slugStripPattern.ReplaceAllString(text, "")
	text = slugSpacePattern.ReplaceAllString(text, "-")
	return strings.Trim(text, "-")
}

// MonthClusters summarizes the month's clusters, largest first.
// Untagged papers are excluded.
func (e *Engine) MonthClusters(ctx context.Context, month string) ([]ClusterSummary, error) {
	papers, err := e.monthPapers(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("load papers: %w", err)
	}
	return buildClusterSummaries(papers), nil
}

// Graph builds the cluster relationship graph for a month. Clusters are
// linked when papers in one carry the other as a secondary tag, or when
// both clusters share task tags.
func (e *Engine) Graph(ctx context.Context, month string) (*ClusterGraph, error) {
	papers, err := e.monthPapers(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("load papers: %w", err)
	}
	return buildClusterGraph(papers), nil
}

// Summary rolls up a month's totals, clusters, and top papers.
func (e *Engine) Summary(ctx context.Context, month string) (*MonthSummary, error) {
	papers, err := e.monthPapers(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("load papers: %w", err)
	}

	ids := make([]string, len(papers))
	votes := make([]int, len(papers))
	totalUpvotes := 0
	for i, p := range papers {
		ids[i] = p.Paper.ID
		votes[i] = p.Paper.Upvotes
		totalUpvotes += p.Paper.Upvotes
	}

	return &MonthSummary{
		Month:        month,
		TotalPapers:  len(papers),
		TotalUpvotes: totalUpvotes,
		Clusters:     buildClusterSummaries(papers),
		TopPapers:    topPaperIDs(ids, votes, 10),
	}, nil
}

func (e *Engine) monthPapers(ctx context.Context, month string) ([]TaggedPaper, error) {
	first, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, fmt.Errorf("parse month: %w", err)
	}
	start, end := MonthBounds(first)
	return e.store.TaggedPapersRange(ctx, start.Format(dateFormat), end.Format(dateFormat))
}

func tagged(papers []TaggedPaper) []TaggedPaper {
	out := make([]TaggedPaper, 0, len(papers))
	for _, p := range papers {
		if p.Tags != nil {
			out = append(out, p)
		}
	}
	return out
}

func buildClusterSummaries(papers []TaggedPaper) []ClusterSummary {
	groups := groupByCluster(tagged(papers))

	summaries := make([]ClusterSummary, 0, len(groups))
	for name, g := range groups {
		summaries = append(summaries, ClusterSummary{
			ClusterID:     Slugify(name),
			Name:          name,
			Color:         taxonomy.ColorFor(name, taxonomy.KindContribution),
			PaperCount:    len(g.paperIDs),
			TopTaskTags:   topCounted(g.taskCounts, 5),
			TopModalities: topCounted(g.modCounts, 3),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].PaperCount != summaries[j].PaperCount {
			return summaries[i].PaperCount > summaries[j].PaperCount
		}
		return summaries[i].Name < summaries[j].Name
	})
	return summaries
}

func buildClusterGraph(papers []TaggedPaper) *ClusterGraph {
	papers = tagged(papers)
	groups := groupByCluster(papers)

	// A paper belongs to its primary cluster and references every other
	// cluster named in its secondary tags.
	refs := make(map[string]map[string]bool)
	taskPapers := make(map[string]map[string]bool)
	for _, p := range papers {
		r := refs[p.Paper.ID]
		if r == nil {
			r = make(map[string]bool)
			refs[p.Paper.ID] = r
		}
		r[p.Tags.Primary] = true
		for _, s := range p.Tags.Secondary {
			r[s] = true
		}
		for _, task := range p.Tags.TaskTags {
			tp := taskPapers[task]
			if tp == nil {
				tp = make(map[string]bool)
				taskPapers[task] = tp
			}
			tp[p.Paper.ID] = true
		}
	}

	names := slices.Sorted(maps.Keys(groups))

	nodes := make([]ClusterNode, 0, len(names))
	for _, name := range names {
		g := groups[name]
		nodes = append(nodes, ClusterNode{
			ID:            Slugify(name),
			Name:          name,
			Color:         taxonomy.ColorFor(name, taxonomy.KindContribution),
			PaperCount:    len(g.paperIDs),
			TopTaskTags:   topCounted(g.taskCounts, 5),
			TopModalities: topCounted(g.modCounts, 3),
			PaperIDs:      g.paperIDs,
		})
	}
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].PaperCount > nodes[j].PaperCount })

	links := []ClusterLink{}
	for i, first := range names {
		for _, second := range names[i+1:] {
			if link := linkBetween(groups, refs, taskPapers, first, second); link != nil {
				links = append(links, *link)
			}
		}
	}
	sort.SliceStable(links, func(i, j int) bool { return links[i].SharedCount > links[j].SharedCount })

	return &ClusterGraph{Nodes: nodes, Links: links}
}

// linkBetween computes the connection between two clusters: papers that
// reference both, plus papers sharing a task tag present in both. Link
// strength is the shared paper count plus the common task count.
func linkBetween(groups map[string]*clusterGroup, refs, taskPapers map[string]map[string]bool, first, second string) *ClusterLink {
	shared := make(map[string]bool)
	for _, id := range groups[first].paperIDs {
		if refs[id][second] {
			shared[id] = true
		}
	}
	for _, id := range groups[second].paperIDs {
		if refs[id][first] {
			shared[id] = true
		}
	}

	commonTasks := 0
	for task := range groups[first].taskCounts {
		if _, ok := groups[second].taskCounts[task]; !ok {
			continue
		}
		commonTasks++
		for _, id := range groups[first].paperIDs {
			if taskPapers[task][id] {
				shared[id] = true
			}
		}
		for _, id := range groups[second].paperIDs {
			if taskPapers[task][id] {
				shared[id] = true
			}
		}
	}

	strength := len(shared) + commonTasks
	if strength == 0 {
		return nil
	}

	// Collect shared IDs in cluster paper order for a stable result.
	ids := make([]string, 0, len(shared))
	seen := make(map[string]bool)
	for _, id := range append(append([]string{}, groups[first].paperIDs...), groups[second].paperIDs...) {
		if shared[id] && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) > 10 {
		ids = ids[:10]
	}

	return &ClusterLink{
		Source:         Slugify(first),
		Target:         Slugify(second),
		SharedCount:    strength,
		SharedPaperIDs: ids,
	}
}

// topCounted returns up to n keys ordered by count descending, names
// breaking ties.
func topCounted(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
