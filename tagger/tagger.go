// Package tagger classifies papers against a monthly taxonomy, using an
// LLM when one is configured and keyword heuristics otherwise.
package tagger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"paper-radar/llm"
)

const (
	maxTaxonomyPapers    = 100
	abstractSummaryChars = 300
)

// Default tag lists used when taxonomy generation is disabled or fails.
var DefaultContributionTags = []string{
	"Benchmark / Evaluation",
	"Dataset / Data Curation",
	"Architecture / Model Design",
	"Training Recipe / Scaling / Distillation",
	"Post-training / Alignment",
	"Reasoning / Test-time Compute",
	"Agents / Tool Use / Workflow",
	"Multimodal Method",
	"RAG / Retrieval / Memory",
	"Safety / Robustness / Interpretability",
	"Systems / Efficiency",
	"Survey / Tutorial",
	"Technical Report / Model Release",
	"Theory / Analysis",
	"Application / Domain-Specific",
	"Foundational Research",
}

var DefaultTaskTags = []string{
	"RAG",
	"Coding / SWE Agents",
	"Video Reasoning",
	"Long-context",
	"Scientific Reasoning",
	"Medical Imaging",
	"Evaluation Frameworks",
	"Alignment / Preference Learning",
	"World Models / 3D / 4D",
	"Multimodal Understanding",
	"Language Understanding",
	"Generation / Synthesis",
	"Embedding / Representation",
	"Knowledge Graphs",
	"Robotics / Embodied AI",
	"Speech / Audio Processing",
	"Document Understanding",
	"Math Reasoning",
	"Planning / Search",
	"Multi-agent Systems",
	"General NLP",
	"Computer Vision",
}

var DefaultModalityTags = []string{
	"text",
	"vision",
	"video",
	"audio",
	"multimodal",
	"code",
	"3D",
}

// Paper carries the fields classification reads.
type Paper struct {
	ID       string
	Title    string
	Abstract string
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

// DefaultTaxonomy returns the built-in tag vocabulary for a month.
func DefaultTaxonomy(month string) *Taxonomy {
	return &Taxonomy{
		Month:            month,
		ContributionTags: DefaultContributionTags,
		TaskTags:         DefaultTaskTags,
		ModalityTags:     DefaultModalityTags,
		Definitions:      map[string]string{},
	}
}

// Completer is the LLM operation the tagger needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, opts llm.Options) (*llm.Response, error)
}

// Tagger drives taxonomy generation and per-paper tagging.
type Tagger struct {
	client Completer
	logger *slog.Logger
}

// Option configures the Tagger.
type Option func(*Tagger)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tagger) {
		t.logger = logger
	}
}

// NewTagger creates a tagger backed by the given LLM client.
func NewTagger(client Completer, opts ...Option) *Tagger {
	t := &Tagger{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

const taxonomySystemPrompt = `You are an expert ML/AI research curator. Your task is to analyze a collection of research papers and propose a structured taxonomy for categorizing them.

Output a JSON object with the following structure:
{
    "contribution_tags": ["tag1", "tag2", ...],  // 12-18 tags for primary contribution type
    "task_tags": ["tag1", "tag2", ...],  // 12-25 tags for research task/application area
    "modality_tags": ["text", "vision", "video", "audio", "multimodal", "code", "3D"],  // Data modalities
    "definitions": {
        "tag_name": "Brief definition of when to use this tag"
    }
}

Guidelines:
- Contribution tags should be orthogonal and contribution-first (what the paper introduces)
- Task tags should reflect the application domain or specific research area
- Always include an "OTHER" tag for edge cases
- Keep tags concise but descriptive
- Focus on tags that will be useful for clustering papers`

type llmTaxonomyResponse struct {
	ContributionTags []string          `json:"contribution_tags"`
	TaskTags         []string          `json:"task_tags"`
	ModalityTags     []string          `json:"modality_tags"`
	Definitions      map[string]string `json:"definitions"`
}

// GenerateTaxonomy asks the LLM to propose a tag vocabulary for the
// month's papers. Any failure falls back to the default taxonomy.
func (t *Tagger) GenerateTaxonomy(ctx context.Context, papers []Paper, month string) *Taxonomy {
	summaries := make([]string, 0, len(papers))
	for i, p := range papers {
		if i >= maxTaxonomyPapers {
			break
		}
		summaries = append(summaries, fmt.Sprintf("- %s: %s\n  Abstract: %s...",
			p.ID, p.Title, truncateRunes(p.Abstract, abstractSummaryChars)))
	}
	userPrompt := fmt.Sprintf(`Analyze the following %d papers from %s and propose a taxonomy:

%s

Generate a comprehensive taxonomy JSON that can categorize all these papers effectively.`,
		len(papers), month, strings.Join(summaries, "\n"))

	resp, err := t.client.Complete(ctx, taxonomySystemPrompt, userPrompt, llm.Options{})
	if err != nil {
		t.logger.Warn("llm taxonomy generation failed", "month", month, "error", err)
		return DefaultTaxonomy(month)
	}

	raw, err := extractJSON(resp.Content)
	if err != nil {
		t.logger.Warn("llm taxonomy response unusable", "month", month, "error", err)
		return DefaultTaxonomy(month)
	}
	var data llmTaxonomyResponse
	if err := json.Unmarshal(raw, &data); err != nil {
		t.logger.Warn("llm taxonomy response unusable", "month", month, "error", err)
		return DefaultTaxonomy(month)
	}

	tax := &Taxonomy{
		Month:            month,
		ContributionTags: data.ContributionTags,
		TaskTags:         data.TaskTags,
		ModalityTags:     data.ModalityTags,
		Definitions:      data.Definitions,
	}
	if len(tax.ContributionTags) == 0 {
		tax.ContributionTags = DefaultContributionTags
	}
	if len(tax.TaskTags) == 0 {
		tax.TaskTags = DefaultTaskTags
	}
	if len(tax.ModalityTags) == 0 {
		tax.ModalityTags = DefaultModalityTags
	}
	if tax.Definitions == nil {
		tax.Definitions = map[string]string{}
	}
	return tax
}

const tagSystemPromptTemplate = `You are an expert ML/AI research curator. Tag the given paper using ONLY the tags from the provided taxonomy.

AVAILABLE TAGS:

Contribution Tags (choose exactly 1 primary, 0-2 secondary):
%s

Task Tags (choose 0-3):
%s

Modality Tags (choose 1+):
%s

Output a JSON object with this exact structure:
{
    "primary_contribution_tag": "exactly one tag from contribution_tags",
    "secondary_contribution_tags": ["0-2 additional contribution tags"],
    "task_tags": ["0-3 task tags"],
    "modality_tags": ["1+ modality tags"],
    "research_question": "One sentence describing the main research question",
    "confidence": 0.0-1.0,
    "rationale": "Brief explanation for the tagging choices"
}

IMPORTANT: Only use tags that are EXACTLY in the provided lists. Do not invent new tags.`

type llmTagResponse struct {
	Primary          string   `json:"primary_contribution_tag"`
	Secondary        []string `json:"secondary_contribution_tags"`
	TaskTags         []string `json:"task_tags"`
	ModalityTags     []string `json:"modality_tags"`
	ResearchQuestion string   `json:"research_question"`
	Confidence       *float64 `json:"confidence"`
	Rationale        string   `json:"rationale"`
}

// TagPaper classifies one paper against the taxonomy via the LLM,
// filtering the reply down to tags the taxonomy actually contains.
// Failures produce an OTHER-tagged result rather than an error.
func (t *Tagger) TagPaper(ctx context.Context, paper Paper, tax *Taxonomy) *PaperTags {
	system := fmt.Sprintf(tagSystemPromptTemplate,
		marshalTagList(tax.ContributionTags),
		marshalTagList(tax.TaskTags),
		marshalTagList(tax.ModalityTags))
	user := fmt.Sprintf("Tag this paper:\n\nTitle: %s\n\nAbstract: %s\n\nArXiv ID: %s",
		paper.Title, paper.Abstract, paper.ID)

	resp, err := t.client.Complete(ctx, system, user, llm.Options{})
	if err != nil {
		t.logger.Warn("llm tagging failed", "paper_id", paper.ID, "error", err)
		return failedTags(paper.ID, tax.Month)
	}

	raw, err := extractJSON(resp.Content)
	if err != nil {
		t.logger.Warn("llm tag response unusable", "paper_id", paper.ID, "error", err)
		return failedTags(paper.ID, tax.Month)
	}
	var data llmTagResponse
	if err := json.Unmarshal(raw, &data); err != nil {
		t.logger.Warn("llm tag response unusable", "paper_id", paper.ID, "error", err)
		return failedTags(paper.ID, tax.Month)
	}

	primary := data.Primary
	if !slices.Contains(tax.ContributionTags, primary) {
		primary = "OTHER"
	}

	modality := data.ModalityTags
	if modality == nil {
		modality = []string{"text"}
	}
	modality = filterToTaxonomy(modality, tax.ModalityTags, 0)
	if len(modality) == 0 {
		modality = []string{"text"}
	}

	confidence := 0.5
	if data.Confidence != nil {
		confidence = *data.Confidence
	}

	return &PaperTags{
		PaperID:          paper.ID,
		Month:            tax.Month,
		Primary:          primary,
		Secondary:        filterToTaxonomy(data.Secondary, tax.ContributionTags, 2),
		TaskTags:         filterToTaxonomy(data.TaskTags, tax.TaskTags, 3),
		ModalityTags:     modality,
		ResearchQuestion: data.ResearchQuestion,
		Confidence:       confidence,
		Rationale:        data.Rationale,
	}
}

func failedTags(paperID, month string) *PaperTags {
	return &PaperTags{
		PaperID:      paperID,
		Month:        month,
		Primary:      "OTHER",
		Secondary:    []string{},
		TaskTags:     []string{"OTHER"},
		ModalityTags: []string{"text"},
		Confidence:   0.0,
		Rationale:    "Tagging failed",
	}
}

var jsonBlockPattern = regexp.MustCompile("```(?:json)?\\s*(\\{[\\s\\S]*\\})\\s*```")

// extractJSON pulls the JSON object out of an LLM reply, preferring a
// fenced code block over bare braces. Empty objects count as missing.
func extractJSON(response string) ([]byte, error) {
	var candidates [][]byte
	if m := jsonBlockPattern.FindStringSubmatch(response); m != nil {
		candidates = append(candidates, []byte(m[1]))
	}
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start != -1 && end > start {
		candidates = append(candidates, []byte(response[start:end+1]))
	}

	for _, c := range candidates {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(c, &obj); err == nil && len(obj) > 0 {
			return c, nil
		}
	}
	return nil, errors.New("no json object in response")
}

func marshalTagList(tags []string) string {
	b, _ := json.MarshalIndent(tags, "", "  ")
	return string(b)
}

// filterToTaxonomy keeps tags present in allowed, preserving order,
// capped at limit when limit is positive.
func filterToTaxonomy(tags, allowed []string, limit int) []string {
	out := []string{}
	for _, tag := range tags {
		if !slices.Contains(allowed, tag) {
			continue
		}
		out = append(out, tag)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
