package emerging

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
)

func TestPercentageChange(t *testing.T) {
	tests := []struct {
		current  int
		previous int
		want     float64
	}{
		{10, 10, 0},
		{20, 10, 100},
		{5, 10, -50},
		{10, 0, 100},
		{0, 10, -100},
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := PercentageChange(tt.current, tt.previous); got != tt.want {
			t.Errorf("PercentageChange(%d, %d) = %f, want %f", tt.current, tt.previous, got, tt.want)
		}
	}
}

func TestGrowthRate(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
		want   float64
	}{
		{"increasing", []int{1, 2, 3, 4, 5}, 1.0},
		{"decreasing", []int{5, 4, 3, 2, 1}, -1.0},
		{"single point", []int{5}, 0},
		{"empty", []int{}, 0},
		{"constant", []int{3, 3, 3}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GrowthRate(tt.counts)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("GrowthRate(%v) = %f, want %f", tt.counts, got, tt.want)
			}
		})
	}
}

func TestNewClusters(t *testing.T) {
	store := &mockStore{}
	// Comparison period
	store.add("Fresh Topic", 1, "2024-12-15", 10)
	store.add("Growing", 3, "2024-12-20", 10)
	store.add("Steady", 4, "2024-12-22", 10)
	store.add("Gone", 5, "2024-12-28", 10)
	// Current period
	store.add("Fresh Topic", 6, "2025-01-10", 10)
	store.add("Growing", 6, "2025-01-12", 10)
	store.add("Steady", 5, "2025-01-14", 10)

	d := NewDetector(store)
	topics, err := d.NewClusters(context.Background(), "2025-01-08", "2025-01-21", "2024-12-09", "2025-01-07")
	if err != nil {
		t.Fatalf("NewClusters failed: %v", err)
	}

	if len(topics) != 2 {
		t.Fatalf("got %d topics, want 2: %+v", len(topics), topics)
	}

	var fresh, growing *Topic
	for i := range topics {
		switch topics[i].Name {
		case "Fresh Topic":
			fresh = &topics[i]
		case "Growing":
			growing = &topics[i]
		}
	}

	if fresh == nil {
		t.Fatal("missing new_cluster signal for Fresh Topic")
	}
	if fresh.SignalType != SignalNewCluster {
		t.Errorf("Fresh Topic signal = %s", fresh.SignalType)
	}
	if math.Abs(fresh.Confidence-0.75) > 1e-9 {
		t.Errorf("Fresh Topic confidence = %f, want 0.75", fresh.Confidence)
	}
	if fresh.FirstSeen != "2025-01-08" {
		t.Errorf("FirstSeen = %s", fresh.FirstSeen)
	}
	if len(fresh.SamplePaperIDs) != 5 {
		t.Errorf("sample ids = %d, want capped at 5", len(fresh.SamplePaperIDs))
	}
	if !strings.Contains(fresh.Evidence, "6 papers") || !strings.Contains(fresh.Evidence, "up from 1") {
		t.Errorf("evidence = %q", fresh.Evidence)
	}

	if growing == nil {
		t.Fatal("missing rapid_growth signal for Growing")
	}
	if growing.SignalType != SignalRapidGrowth {
		t.Errorf("Growing signal = %s", growing.SignalType)
	}
	if math.Abs(growing.Confidence-0.8) > 1e-9 {
		t.Errorf("Growing confidence = %f, want 0.8", growing.Confidence)
	}
	if growing.GrowthRate != 100 {
		t.Errorf("GrowthRate = %f, want 100", growing.GrowthRate)
	}
	if !strings.Contains(growing.Evidence, "grew 100%") {
		t.Errorf("evidence = %q", growing.Evidence)
	}
}

func TestUpvoteSurges(t *testing.T) {
	store := &mockStore{}
	store.add("Hot", 3, "2025-01-10", 60)
	store.add("Cold", 3, "2025-01-11", 10)
	// Untagged papers never count toward the baseline
	store.papers = append(store.papers, TaggedPaper{
		Paper: Paper{ID: "untagged", Upvotes: 500, AppearedDate: "2025-01-12"},
	})

	d := NewDetector(store)
	topics, err := d.UpvoteSurges(context.Background(), "2025-01-08", "2025-01-21")
	if err != nil {
		t.Fatalf("UpvoteSurges failed: %v", err)
	}

	if len(topics) != 1 {
		t.Fatalf("got %d topics, want 1: %+v", len(topics), topics)
	}
	hot := topics[0]
	if hot.Name != "Hot" || hot.SignalType != SignalUpvoteSurge {
		t.Errorf("topic = %+v", hot)
	}
	// Baseline avg is 35 across the six qualifying papers
	wantConfidence := 0.5 + (60.0/35.0-1)*0.2
	if math.Abs(hot.Confidence-wantConfidence) > 1e-9 {
		t.Errorf("confidence = %f, want %f", hot.Confidence, wantConfidence)
	}
	if !strings.Contains(hot.Evidence, "avg 60 upvotes") || !strings.Contains(hot.Evidence, "1.7x") {
		t.Errorf("evidence = %q", hot.Evidence)
	}
}

func TestUpvoteSurgesMinPapers(t *testing.T) {
	store := &mockStore{}
	// Two viral papers are below the floor: excluded from both the
	// results and the baseline average
	store.add("Tiny", 2, "2025-01-10", 1000)
	store.add("Base", 3, "2025-01-11", 10)

	d := NewDetector(store)
	topics, err := d.UpvoteSurges(context.Background(), "2025-01-08", "2025-01-21")
	if err != nil {
		t.Fatalf("UpvoteSurges failed: %v", err)
	}
	if len(topics) != 0 {
		t.Errorf("got %d topics, want none: %+v", len(topics), topics)
	}
}

func TestUpvoteSurgesEmpty(t *testing.T) {
	d := NewDetector(&mockStore{})
	topics, err := d.UpvoteSurges(context.Background(), "2025-01-08", "2025-01-21")
	if err != nil {
		t.Fatalf("UpvoteSurges failed: %v", err)
	}
	if len(topics) != 0 {
		t.Errorf("expected no topics, got %+v", topics)
	}
}

func TestExtractKeywords(t *testing.T) {
	keywords := extractKeywords("The Quantized Attention is All")

	for _, want := range []string{"quantized", "attention", "quantized attention"} {
		if !keywords[want] {
			t.Errorf("missing keyword %q in %v", want, keywords)
		}
	}
	if keywords["the"] || keywords["is"] {
		t.Error("stopwords should be filtered")
	}
	if keywords["all"] {
		t.Error("short words should be filtered")
	}
	if keywords["the quantized"] || keywords["is all"] {
		t.Error("bigrams containing stopwords should be filtered")
	}

	// Punctuation splits into plain words
	hyphenated := extractKeywords("Chain-of-Thought prompting")
	for _, want := range []string{"chain", "thought", "prompting"} {
		if !hyphenated[want] {
			t.Errorf("missing keyword %q in %v", want, hyphenated)
		}
	}
}

func TestKeywordEmergence(t *testing.T) {
	store := &mockStore{}
	for i := 0; i < 5; i++ {
		store.papers = append(store.papers, TaggedPaper{
			Paper: Paper{
				ID:           fmt.Sprintf("cur-%d", i),
				Title:        "Sparse Attention Revisited",
				AppearedDate: "2025-01-10",
			},
			Tags: &Tags{Primary: "Architecture / Model Design"},
		})
	}
	// One prior occurrence still counts as emerging
	store.papers = append(store.papers, TaggedPaper{
		Paper: Paper{ID: "old", Title: "Sparse Attention Prototype", AppearedDate: "2024-12-20"},
		Tags:  &Tags{Primary: "Architecture / Model Design"},
	})

	d := NewDetector(store)
	topics, err := d.KeywordEmergence(context.Background(), "2025-01-08", "2025-01-21", "2024-12-09", "2025-01-07")
	if err != nil {
		t.Fatalf("KeywordEmergence failed: %v", err)
	}

	var found *Topic
	for i := range topics {
		if topics[i].Name == "Keyword: sparse attention" {
			found = &topics[i]
		}
	}
	if found == nil {
		t.Fatalf("missing sparse attention keyword in %+v", topics)
	}
	if found.SignalType != SignalKeywordEmergence {
		t.Errorf("signal = %s", found.SignalType)
	}
	if math.Abs(found.Confidence-0.65) > 1e-9 {
		t.Errorf("confidence = %f, want 0.65 for 5 papers", found.Confidence)
	}
	if len(found.SamplePaperIDs) != 3 {
		t.Errorf("sample ids = %d, want capped at 3", len(found.SamplePaperIDs))
	}
	if !strings.Contains(found.Evidence, "appeared in 5 papers") || !strings.Contains(found.Evidence, "was in 1 papers") {
		t.Errorf("evidence = %q", found.Evidence)
	}
}

func TestKeywordEmergenceCap(t *testing.T) {
	store := &mockStore{}
	title := "modular gradient rewiring synthetic curriculum distillation overshoot harmonic recursive liquid emergent"
	for i := 0; i < 5; i++ {
		store.papers = append(store.papers, TaggedPaper{
			Paper: Paper{ID: fmt.Sprintf("p-%d", i), Title: title, AppearedDate: "2025-01-10"},
			Tags:  &Tags{Primary: "Architecture / Model Design"},
		})
	}

	d := NewDetector(store)
	topics, err := d.KeywordEmergence(context.Background(), "2025-01-08", "2025-01-21", "2024-12-09", "2025-01-07")
	if err != nil {
		t.Fatalf("KeywordEmergence failed: %v", err)
	}
	if len(topics) != 10 {
		t.Errorf("got %d topics, want capped at 10", len(topics))
	}
}

func TestTrendSignals(t *testing.T) {
	store := &mockStore{}
	// Previous week (2025-01-18..24)
	store.add("Rising", 2, "2025-01-20", 10)
	store.add("Falling", 4, "2025-01-19", 10)
	store.add("Steady", 3, "2025-01-21", 10)
	// Current week (2025-01-25..31)
	store.add("Rising", 5, "2025-01-28", 10)
	store.add("Falling", 1, "2025-01-26", 10)
	store.add("Steady", 3, "2025-01-27", 10)

	d := NewDetector(store)
	signals, err := d.TrendSignals(context.Background(), "2025-01-31")
	if err != nil {
		t.Fatalf("TrendSignals failed: %v", err)
	}

	if len(signals) != 3 {
		t.Fatalf("got %d signals, want 3", len(signals))
	}
	// Sorted by signal strength: Rising (150% capped to 1.0) first
	if signals[0].ClusterName != "Rising" || signals[0].TrendDirection != TrendRising {
		t.Errorf("signals[0] = %+v", signals[0])
	}
	if signals[0].WeeklyChange != 150 || signals[0].SignalStrength != 1.0 {
		t.Errorf("Rising change/strength = %f/%f", signals[0].WeeklyChange, signals[0].SignalStrength)
	}
	if signals[0].CurrentCount != 5 || signals[0].PreviousCount != 2 {
		t.Errorf("Rising counts = %d/%d", signals[0].CurrentCount, signals[0].PreviousCount)
	}
	// Both weeks fall inside the current month window, previous month empty
	if signals[0].MonthlyChange != 100 {
		t.Errorf("Rising monthly change = %f, want 100", signals[0].MonthlyChange)
	}

	if signals[1].ClusterName != "Falling" || signals[1].TrendDirection != TrendFalling {
		t.Errorf("signals[1] = %+v", signals[1])
	}
	if signals[1].WeeklyChange != -75 || signals[1].SignalStrength != 0.75 {
		t.Errorf("Falling change/strength = %f/%f", signals[1].WeeklyChange, signals[1].SignalStrength)
	}

	if signals[2].ClusterName != "Steady" || signals[2].TrendDirection != TrendStable {
		t.Errorf("signals[2] = %+v", signals[2])
	}
}

func TestTrendSignalsBadDate(t *testing.T) {
	d := NewDetector(&mockStore{})
	if _, err := d.TrendSignals(context.Background(), "31/01/2025"); err == nil {
		t.Error("expected error for invalid date")
	}
}

func TestReport(t *testing.T) {
	store := &mockStore{}
	for i := 1; i <= 6; i++ {
		store.papers = append(store.papers, TaggedPaper{
			Paper: Paper{
				ID:           fmt.Sprintf("fresh-%d", i),
				Title:        fmt.Sprintf("Neuromorphic Computing Alpha%d", i),
				Upvotes:      10,
				AppearedDate: "2025-01-28",
			},
			Tags: &Tags{Primary: "Fresh"},
		})
	}
	base := []string{"One", "Two", "Three"}
	for i, suffix := range base {
		store.papers = append(store.papers, TaggedPaper{
			Paper: Paper{
				ID:           fmt.Sprintf("base-%d", i),
				Title:        "Baseline Method " + suffix,
				Upvotes:      10,
				AppearedDate: "2025-01-28",
			},
			Tags: &Tags{Primary: "Base"},
		})
	}

	d := NewDetector(store)
	report, err := d.Report(context.Background(), "2025-01-31")
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	if report.AnalysisPeriod != "2025-01-18 to 2025-01-31" {
		t.Errorf("AnalysisPeriod = %q", report.AnalysisPeriod)
	}
	if report.GeneratedAt == "" {
		t.Error("GeneratedAt not set")
	}

	// One new cluster plus three emergent keywords, ranked by confidence
	if len(report.EmergingTopics) != 4 {
		t.Fatalf("got %d topics, want 4: %+v", len(report.EmergingTopics), report.EmergingTopics)
	}
	top := report.EmergingTopics[0]
	if top.Name != "Fresh" || top.SignalType != SignalNewCluster {
		t.Errorf("top topic = %+v", top)
	}
	if math.Abs(top.Confidence-0.8) > 1e-9 {
		t.Errorf("top confidence = %f, want 0.8", top.Confidence)
	}

	if len(report.TrendSignals) != 2 {
		t.Errorf("got %d trend signals, want 2", len(report.TrendSignals))
	}

	want := "Detected 4 emerging signals. Top signal: Fresh (new_cluster). Trend analysis: 2 rising, 0 falling clusters."
	if report.Summary != want {
		t.Errorf("Summary = %q\nwant      %q", report.Summary, want)
	}
}

func TestReportEmpty(t *testing.T) {
	d := NewDetector(&mockStore{})
	report, err := d.Report(context.Background(), "2025-01-31")
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if len(report.EmergingTopics) != 0 || len(report.TrendSignals) != 0 {
		t.Errorf("expected empty report, got %+v", report)
	}
	want := "No significant emerging topics detected. Trend analysis: 0 rising, 0 falling clusters."
	if report.Summary != want {
		t.Errorf("Summary = %q", report.Summary)
	}
}

func TestReportBadDate(t *testing.T) {
	d := NewDetector(&mockStore{})
	if _, err := d.Report(context.Background(), "soon"); err == nil {
		t.Error("expected error for invalid date")
	}
}

// Mock store

type mockStore struct {
	papers []TaggedPaper
	err    error
}

func (m *mockStore) TaggedPapersRange(ctx context.Context, start, end string) ([]TaggedPaper, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []TaggedPaper
	for _, p := range m.papers {
		if p.Paper.AppearedDate >= start && p.Paper.AppearedDate <= end {
			out = append(out, p)
		}
	}
	return out, nil
}

// add appends n tagged papers in the given cluster, all on one date.
func (m *mockStore) add(cluster string, n int, date string, upvotes int) {
	for i := 0; i < n; i++ {
		m.papers = append(m.papers, TaggedPaper{
			Paper: Paper{
				ID:           fmt.Sprintf("%s-%s-%d", cluster, date, i),
				Title:        "Untitled Draft",
				Upvotes:      upvotes,
				AppearedDate: date,
			},
			Tags: &Tags{Primary: cluster},
		})
	}
}
