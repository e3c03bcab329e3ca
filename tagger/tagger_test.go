package tagger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"paper-radar/llm"
)

type fakeCompleter struct {
	response   string
	err        error
	lastSystem string
	lastUser   string
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string, opts llm.Options) (*llm.Response, error) {
	f.lastSystem = systemPrompt
	f.lastUser = userPrompt
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.response, Provider: "fake"}, nil
}

func newTestTagger(client Completer) *Tagger {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTagger(client, WithLogger(logger))
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
		wantErr  bool
	}{
		{
			name:     "fenced json block",
			response: "Here is the result:\n```json\n{\"a\": 1}\n```\nDone.",
			want:     "{\"a\": 1}",
		},
		{
			name:     "fenced block without language",
			response: "```\n{\"a\": 1}\n```",
			want:     "{\"a\": 1}",
		},
		{
			name:     "bare object with prose",
			response: "The taxonomy is {\"a\": 1} as requested.",
			want:     "{\"a\": 1}",
		},
		{
			name:     "no json",
			response: "I cannot answer that.",
			wantErr:  true,
		},
		{
			name:     "empty object",
			response: "{}",
			wantErr:  true,
		},
		{
			name:     "invalid json",
			response: "{not json}",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.response)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("extractJSON(%q) expected error, got %q", tt.response, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("extractJSON(%q) returned error: %v", tt.response, err)
			}
			if string(got) != tt.want {
				t.Errorf("extractJSON(%q) = %q, want %q", tt.response, got, tt.want)
			}
		})
	}
}

func TestGenerateTaxonomy(t *testing.T) {
	client := &fakeCompleter{
		response: "```json\n{\"contribution_tags\": [\"OTHER\", \"New Idea\"], " +
			"\"task_tags\": [\"Robotics\"], \"modality_tags\": [\"text\", \"vision\"], " +
			"\"definitions\": {\"New Idea\": \"Something novel\"}}\n```",
	}
	tagger := newTestTagger(client)

	papers := []Paper{
		{ID: "2501.00001", Title: "Attention Everywhere", Abstract: "We look at attention."},
		{ID: "2501.00002", Title: "Sparse Models", Abstract: "Sparsity helps."},
	}
	tax := tagger.GenerateTaxonomy(context.Background(), papers, "2025-01")

	if tax.Month != "2025-01" {
		t.Errorf("Month = %q, want %q", tax.Month, "2025-01")
	}
	if want := []string{"OTHER", "New Idea"}; !reflect.DeepEqual(tax.ContributionTags, want) {
		t.Errorf("ContributionTags = %v, want %v", tax.ContributionTags, want)
	}
	if want := []string{"Robotics"}; !reflect.DeepEqual(tax.TaskTags, want) {
		t.Errorf("TaskTags = %v, want %v", tax.TaskTags, want)
	}
	if want := []string{"text", "vision"}; !reflect.DeepEqual(tax.ModalityTags, want) {
		t.Errorf("ModalityTags = %v, want %v", tax.ModalityTags, want)
	}
	if got := tax.Definitions["New Idea"]; got != "Something novel" {
		t.Errorf("Definitions[New Idea] = %q, want %q", got, "Something novel")
	}

	if !strings.Contains(client.lastUser, "Analyze the following 2 papers from 2025-01") {
		t.Errorf("user prompt missing paper count: %q", client.lastUser)
	}
	if !strings.Contains(client.lastUser, "- 2501.00001: Attention Everywhere") {
		t.Errorf("user prompt missing paper summary: %q", client.lastUser)
	}
	if !strings.Contains(client.lastSystem, "expert ML/AI research curator") {
		t.Errorf("system prompt missing curator role: %q", client.lastSystem)
	}
}

func TestGenerateTaxonomyCapsPapers(t *testing.T) {
	client := &fakeCompleter{err: errors.New("unavailable")}
	tagger := newTestTagger(client)

	papers := make([]Paper, 120)
	for i := range papers {
		papers[i] = Paper{ID: "p", Title: "Untitled", Abstract: "None"}
	}
	tagger.GenerateTaxonomy(context.Background(), papers, "2025-01")

	if !strings.Contains(client.lastUser, "Analyze the following 120 papers") {
		t.Errorf("user prompt should report the full paper count: %q", client.lastUser[:80])
	}
	if got := strings.Count(client.lastUser, "\n  Abstract:"); got != 100 {
		t.Errorf("summarized papers = %d, want 100", got)
	}
}

func TestGenerateTaxonomyFallback(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeCompleter
	}{
		{"provider error", &fakeCompleter{err: errors.New("boom")}},
		{"unusable response", &fakeCompleter{response: "Sorry, I cannot help with that."}},
		{"empty object", &fakeCompleter{response: "{}"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tagger := newTestTagger(tt.client)
			tax := tagger.GenerateTaxonomy(context.Background(), []Paper{{ID: "x"}}, "2025-02")

			if tax.Month != "2025-02" {
				t.Errorf("Month = %q, want %q", tax.Month, "2025-02")
			}
			if len(tax.ContributionTags) != 16 {
				t.Errorf("len(ContributionTags) = %d, want 16", len(tax.ContributionTags))
			}
			if len(tax.TaskTags) != 22 {
				t.Errorf("len(TaskTags) = %d, want 22", len(tax.TaskTags))
			}
			if len(tax.ModalityTags) != 7 {
				t.Errorf("len(ModalityTags) = %d, want 7", len(tax.ModalityTags))
			}
			if tax.Definitions == nil {
				t.Error("Definitions should be an empty map, not nil")
			}
		})
	}
}

func TestGenerateTaxonomyPartialResponse(t *testing.T) {
	client := &fakeCompleter{response: "{\"contribution_tags\": [\"Only Tag\"]}"}
	tagger := newTestTagger(client)

	tax := tagger.GenerateTaxonomy(context.Background(), nil, "2025-03")

	if want := []string{"Only Tag"}; !reflect.DeepEqual(tax.ContributionTags, want) {
		t.Errorf("ContributionTags = %v, want %v", tax.ContributionTags, want)
	}
	if len(tax.TaskTags) != 22 {
		t.Errorf("missing task_tags should fall back to defaults, got %d", len(tax.TaskTags))
	}
	if len(tax.ModalityTags) != 7 {
		t.Errorf("missing modality_tags should fall back to defaults, got %d", len(tax.ModalityTags))
	}
}

func TestTagPaper(t *testing.T) {
	client := &fakeCompleter{
		response: "```json\n{" +
			"\"primary_contribution_tag\": \"Architecture / Model Design\", " +
			"\"secondary_contribution_tags\": [\"Systems / Efficiency\"], " +
			"\"task_tags\": [\"Long-context\", \"General NLP\"], " +
			"\"modality_tags\": [\"text\"], " +
			"\"research_question\": \"Can attention be linear?\", " +
			"\"confidence\": 0.85, " +
			"\"rationale\": \"Introduces a new attention variant.\"}\n```",
	}
	tagger := newTestTagger(client)
	tax := DefaultTaxonomy("2025-01")

	paper := Paper{ID: "2501.12345", Title: "Linear Attention", Abstract: "We propose linear attention."}
	tags := tagger.TagPaper(context.Background(), paper, tax)

	if tags.PaperID != "2501.12345" {
		t.Errorf("PaperID = %q, want %q", tags.PaperID, "2501.12345")
	}
	if tags.Month != "2025-01" {
		t.Errorf("Month = %q, want %q", tags.Month, "2025-01")
	}
	if tags.Primary != "Architecture / Model Design" {
		t.Errorf("Primary = %q, want %q", tags.Primary, "Architecture / Model Design")
	}
	if want := []string{"Systems / Efficiency"}; !reflect.DeepEqual(tags.Secondary, want) {
		t.Errorf("Secondary = %v, want %v", tags.Secondary, want)
	}
	if want := []string{"Long-context", "General NLP"}; !reflect.DeepEqual(tags.TaskTags, want) {
		t.Errorf("TaskTags = %v, want %v", tags.TaskTags, want)
	}
	if want := []string{"text"}; !reflect.DeepEqual(tags.ModalityTags, want) {
		t.Errorf("ModalityTags = %v, want %v", tags.ModalityTags, want)
	}
	if tags.ResearchQuestion != "Can attention be linear?" {
		t.Errorf("ResearchQuestion = %q", tags.ResearchQuestion)
	}
	if tags.Confidence != 0.85 {
		t.Errorf("Confidence = %v, want 0.85", tags.Confidence)
	}
	if tags.Rationale != "Introduces a new attention variant." {
		t.Errorf("Rationale = %q", tags.Rationale)
	}

	if !strings.Contains(client.lastSystem, "\"Architecture / Model Design\"") {
		t.Error("system prompt should embed the contribution tag list")
	}
	if !strings.Contains(client.lastSystem, "Do not invent new tags.") {
		t.Error("system prompt missing the exact-tags instruction")
	}
	wantUser := "Tag this paper:\n\nTitle: Linear Attention\n\nAbstract: We propose linear attention.\n\nArXiv ID: 2501.12345"
	if client.lastUser != wantUser {
		t.Errorf("user prompt = %q, want %q", client.lastUser, wantUser)
	}
}

func TestTagPaperInvalidTags(t *testing.T) {
	client := &fakeCompleter{
		response: "{" +
			"\"primary_contribution_tag\": \"Made Up Tag\", " +
			"\"secondary_contribution_tags\": [\"Benchmark / Evaluation\", \"Theory / Analysis\", \"Survey / Tutorial\"], " +
			"\"task_tags\": [\"Nonexistent\", \"RAG\", \"Math Reasoning\", \"Planning / Search\", \"General NLP\"], " +
			"\"modality_tags\": [\"hologram\"], " +
			"\"confidence\": 0.9}",
	}
	tagger := newTestTagger(client)
	tax := DefaultTaxonomy("2025-01")

	tags := tagger.TagPaper(context.Background(), Paper{ID: "p1"}, tax)

	if tags.Primary != "OTHER" {
		t.Errorf("unknown primary should become OTHER, got %q", tags.Primary)
	}
	if want := []string{"Benchmark / Evaluation", "Theory / Analysis"}; !reflect.DeepEqual(tags.Secondary, want) {
		t.Errorf("Secondary = %v, want first two valid tags %v", tags.Secondary, want)
	}
	if want := []string{"RAG", "Math Reasoning", "Planning / Search"}; !reflect.DeepEqual(tags.TaskTags, want) {
		t.Errorf("TaskTags = %v, want %v", tags.TaskTags, want)
	}
	if want := []string{"text"}; !reflect.DeepEqual(tags.ModalityTags, want) {
		t.Errorf("unknown modalities should fall back to %v, got %v", want, tags.ModalityTags)
	}
}

func TestTagPaperMissingFields(t *testing.T) {
	client := &fakeCompleter{response: "{\"primary_contribution_tag\": \"Benchmark / Evaluation\"}"}
	tagger := newTestTagger(client)
	tax := DefaultTaxonomy("2025-01")

	tags := tagger.TagPaper(context.Background(), Paper{ID: "p1"}, tax)

	if tags.Primary != "Benchmark / Evaluation" {
		t.Errorf("Primary = %q", tags.Primary)
	}
	if tags.Confidence != 0.5 {
		t.Errorf("missing confidence should default to 0.5, got %v", tags.Confidence)
	}
	if want := []string{"text"}; !reflect.DeepEqual(tags.ModalityTags, want) {
		t.Errorf("missing modalities should default to %v, got %v", want, tags.ModalityTags)
	}
	if len(tags.Secondary) != 0 || len(tags.TaskTags) != 0 {
		t.Errorf("missing tag lists should be empty, got %v / %v", tags.Secondary, tags.TaskTags)
	}
	if tags.ResearchQuestion != "" {
		t.Errorf("ResearchQuestion = %q, want empty", tags.ResearchQuestion)
	}
}

func TestTagPaperFailure(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeCompleter
	}{
		{"provider error", &fakeCompleter{err: errors.New("boom")}},
		{"no json in response", &fakeCompleter{response: "I refuse."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tagger := newTestTagger(tt.client)
			tags := tagger.TagPaper(context.Background(), Paper{ID: "p9"}, DefaultTaxonomy("2025-01"))

			if tags.Primary != "OTHER" {
				t.Errorf("Primary = %q, want OTHER", tags.Primary)
			}
			if want := []string{"OTHER"}; !reflect.DeepEqual(tags.TaskTags, want) {
				t.Errorf("TaskTags = %v, want %v", tags.TaskTags, want)
			}
			if want := []string{"text"}; !reflect.DeepEqual(tags.ModalityTags, want) {
				t.Errorf("ModalityTags = %v, want %v", tags.ModalityTags, want)
			}
			if tags.Confidence != 0.0 {
				t.Errorf("Confidence = %v, want 0", tags.Confidence)
			}
			if tags.Rationale != "Tagging failed" {
				t.Errorf("Rationale = %q, want %q", tags.Rationale, "Tagging failed")
			}
		})
	}
}

func TestHeuristicTags(t *testing.T) {
	tax := DefaultTaxonomy("2025-01")

	tests := []struct {
		name         string
		title        string
		abstract     string
		wantPrimary  string
		wantTasks    []string
		wantModality []string
	}{
		{
			name:         "benchmark paper",
			title:        "A New Leaderboard for Code Models",
			abstract:     "We evaluate models on programming tasks.",
			wantPrimary:  "Benchmark / Evaluation",
			wantTasks:    []string{"Coding / SWE Agents"},
			wantModality: []string{"code"},
		},
		{
			name:         "earlier rule wins",
			title:        "A Dataset for Agent Training",
			abstract:     "Annotated trajectories for agents.",
			wantPrimary:  "Dataset / Data Curation",
			wantTasks:    []string{},
			wantModality: []string{"text"},
		},
		{
			name:         "reasoning paper",
			title:        "Mathematical Reasoning with Chain-of-Thought",
			abstract:     "Step-by-step solutions to competition problems.",
			wantPrimary:  "Reasoning / Test-time Compute",
			wantTasks:    []string{"Math Reasoning"},
			wantModality: []string{"text"},
		},
		{
			name:         "task cap at three",
			title:        "Video and Audio Generation from Images",
			abstract:     "A synthesis approach across modalities.",
			wantPrimary:  "Foundational Research",
			wantTasks:    []string{"Video Reasoning", "Generation / Synthesis", "Speech / Audio Processing"},
			wantModality: []string{"video", "vision", "audio"},
		},
		{
			name:         "no keywords",
			title:        "On Bird Migration",
			abstract:     "A curious phenomenon.",
			wantPrimary:  "Foundational Research",
			wantTasks:    []string{},
			wantModality: []string{"text"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tags := HeuristicTags(Paper{ID: "p1", Title: tt.title, Abstract: tt.abstract}, tax)

			if tags.Primary != tt.wantPrimary {
				t.Errorf("Primary = %q, want %q", tags.Primary, tt.wantPrimary)
			}
			if !reflect.DeepEqual(tags.TaskTags, tt.wantTasks) {
				t.Errorf("TaskTags = %v, want %v", tags.TaskTags, tt.wantTasks)
			}
			if !reflect.DeepEqual(tags.ModalityTags, tt.wantModality) {
				t.Errorf("ModalityTags = %v, want %v", tags.ModalityTags, tt.wantModality)
			}
			if tags.Confidence != 0.6 {
				t.Errorf("Confidence = %v, want 0.6", tags.Confidence)
			}
			if tags.Rationale != "Heuristic tagging" {
				t.Errorf("Rationale = %q", tags.Rationale)
			}
			if len(tags.Secondary) != 0 {
				t.Errorf("Secondary = %v, want empty", tags.Secondary)
			}
		})
	}
}

func TestHeuristicTagsRestrictedTaxonomy(t *testing.T) {
	tax := &Taxonomy{
		Month:            "2025-01",
		ContributionTags: []string{"Application / Domain-Specific", "Something Else"},
		TaskTags:         []string{"General NLP"},
		ModalityTags:     []string{"vision"},
	}

	tags := HeuristicTags(Paper{ID: "p1", Title: "A Benchmark for Language Models", Abstract: "Image and text evaluation."}, tax)

	// Benchmark / Evaluation matched but is not in the taxonomy, so the
	// fallback chain picks Application / Domain-Specific.
	if tags.Primary != "Application / Domain-Specific" {
		t.Errorf("Primary = %q, want %q", tags.Primary, "Application / Domain-Specific")
	}
	if want := []string{"General NLP"}; !reflect.DeepEqual(tags.TaskTags, want) {
		t.Errorf("TaskTags = %v, want %v", tags.TaskTags, want)
	}
	// Both vision and text match, but only vision survives the taxonomy filter.
	if want := []string{"vision"}; !reflect.DeepEqual(tags.ModalityTags, want) {
		t.Errorf("ModalityTags = %v, want %v", tags.ModalityTags, want)
	}
}

func TestHeuristicTagsFirstTagFallback(t *testing.T) {
	tax := &Taxonomy{
		Month:            "2025-01",
		ContributionTags: []string{"Alpha", "Beta"},
		TaskTags:         []string{},
		ModalityTags:     []string{"text"},
	}

	tags := HeuristicTags(Paper{ID: "p1", Title: "On Bird Migration", Abstract: "Nothing matches."}, tax)

	if tags.Primary != "Alpha" {
		t.Errorf("Primary = %q, want first taxonomy tag", tags.Primary)
	}
}
