// Package taxonomy provides the curated category lists for research papers
// with stable display colors, so the same cluster keeps the same color
// across months and charts.
package taxonomy

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// Kinds of category lists.
const (
	KindContribution = "contribution"
	KindTask         = "task"
	KindModality     = "modality"
)

// Category is a curated topic with a stable color and alias list.
type Category struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Color       string   `json:"color"`
	Description string   `json:"description"`
	Aliases     []string `json:"aliases,omitempty"`
}

// Contribution categories describe what a paper introduces.
var contributionCategories = []Category{
	{
		ID:          "benchmark",
		Name:        "Benchmark / Evaluation",
		Color:       "#3B82F6",
		Description: "New benchmarks, evaluation frameworks, or systematic assessments",
		Aliases:     []string{"evaluation", "benchmark", "leaderboard", "assessment"},
	},
	{
		ID:          "dataset",
		Name:        "Dataset / Data Curation",
		Color:       "#10B981",
		Description: "New datasets, data collection, annotation, or curation methods",
		Aliases:     []string{"dataset", "corpus", "data collection", "annotation"},
	},
	{
		ID:          "architecture",
		Name:        "Architecture / Model Design",
		Color:       "#8B5CF6",
		Description: "Novel model architectures, attention mechanisms, or structural innovations",
		Aliases:     []string{"architecture", "transformer", "model design", "neural network"},
	},
	{
		ID:          "training",
		Name:        "Training / Scaling / Optimization",
		Color:       "#F59E0B",
		Description: "Training recipes, scaling laws, distillation, or optimization techniques",
		Aliases:     []string{"training", "scaling", "distillation", "pre-training", "optimization"},
	},
	{
		ID:          "alignment",
		Name:        "Post-training / Alignment",
		Color:       "#EC4899",
		Description: "RLHF, DPO, instruction tuning, preference learning, and alignment methods",
		Aliases:     []string{"alignment", "rlhf", "dpo", "instruction tuning", "preference"},
	},
	{
		ID:          "reasoning",
		Name:        "Reasoning / Inference",
		Color:       "#6366F1",
		Description: "Chain-of-thought, test-time compute, reasoning capabilities",
		Aliases:     []string{"reasoning", "chain-of-thought", "cot", "inference", "test-time"},
	},
	{
		ID:          "agents",
		Name:        "Agents / Tool Use",
		Color:       "#14B8A6",
		Description: "Autonomous agents, tool use, workflows, and planning systems",
		Aliases:     []string{"agent", "tool use", "workflow", "planning", "autonomous"},
	},
	{
		ID:          "multimodal",
		Name:        "Multimodal Learning",
		Color:       "#F97316",
		Description: "Vision-language models, cross-modal learning, multimodal fusion",
		Aliases:     []string{"multimodal", "vision-language", "vlm", "cross-modal"},
	},
	{
		ID:          "retrieval",
		Name:        "RAG / Retrieval / Memory",
		Color:       "#06B6D4",
		Description: "Retrieval-augmented generation, memory systems, knowledge bases",
		Aliases:     []string{"rag", "retrieval", "memory", "knowledge base"},
	},
	{
		ID:          "safety",
		Name:        "Safety / Interpretability",
		Color:       "#EF4444",
		Description: "Safety, robustness, interpretability, fairness, and bias mitigation",
		Aliases:     []string{"safety", "interpretability", "robustness", "fairness", "bias"},
	},
	{
		ID:          "efficiency",
		Name:        "Efficiency / Systems",
		Color:       "#84CC16",
		Description: "Quantization, pruning, efficient inference, serving systems",
		Aliases:     []string{"efficiency", "quantization", "pruning", "inference", "serving"},
	},
	{
		ID:          "generation",
		Name:        "Generation / Synthesis",
		Color:       "#A855F7",
		Description: "Text, image, video, or audio generation methods",
		Aliases:     []string{"generation", "synthesis", "generative", "diffusion"},
	},
	{
		ID:          "understanding",
		Name:        "Understanding / Analysis",
		Color:       "#0EA5E9",
		Description: "NLU, document understanding, semantic analysis",
		Aliases:     []string{"understanding", "nlu", "semantic", "analysis"},
	},
	{
		ID:          "application",
		Name:        "Domain Application",
		Color:       "#78716C",
		Description: "Domain-specific applications (medical, legal, scientific, etc.)",
		Aliases:     []string{"medical", "clinical", "legal", "scientific", "domain"},
	},
	{
		ID:          "survey",
		Name:        "Survey / Tutorial",
		Color:       "#64748B",
		Description: "Literature surveys, tutorials, comprehensive reviews",
		Aliases:     []string{"survey", "tutorial", "review", "overview"},
	},
	{
		ID:          "release",
		Name:        "Model Release / Report",
		Color:       "#FFD21E",
		Description: "Technical reports, model releases, system descriptions",
		Aliases:     []string{"release", "technical report", "model card"},
	},
}

// Task categories describe what research area the paper addresses.
var taskCategories = []Category{
	{
		ID:          "nlp-general",
		Name:        "Natural Language Processing",
		Color:       "#3B82F6",
		Description: "General NLP tasks and methods",
		Aliases:     []string{"nlp", "natural language", "text processing"},
	},
	{
		ID:          "cv-general",
		Name:        "Computer Vision",
		Color:       "#10B981",
		Description: "Image and video understanding",
		Aliases:     []string{"computer vision", "image", "visual"},
	},
	{
		ID:          "speech",
		Name:        "Speech / Audio",
		Color:       "#8B5CF6",
		Description: "Speech recognition, synthesis, audio processing",
		Aliases:     []string{"speech", "audio", "asr", "tts", "voice"},
	},
	{
		ID:          "code",
		Name:        "Code / Software Engineering",
		Color:       "#F59E0B",
		Description: "Code generation, program synthesis, SWE agents",
		Aliases:     []string{"code", "programming", "software", "github"},
	},
	{
		ID:          "math",
		Name:        "Mathematical Reasoning",
		Color:       "#EC4899",
		Description: "Math problem solving, theorem proving",
		Aliases:     []string{"math", "mathematical", "theorem", "proof"},
	},
	{
		ID:          "science",
		Name:        "Scientific Discovery",
		Color:       "#6366F1",
		Description: "Scientific reasoning, chemistry, biology, physics",
		Aliases:     []string{"science", "scientific", "chemistry", "biology", "physics"},
	},
	{
		ID:          "medical",
		Name:        "Medical / Healthcare",
		Color:       "#EF4444",
		Description: "Medical imaging, clinical NLP, healthcare AI",
		Aliases:     []string{"medical", "clinical", "healthcare", "diagnosis"},
	},
	{
		ID:          "robotics",
		Name:        "Robotics / Embodied AI",
		Color:       "#14B8A6",
		Description: "Robotic control, embodied agents, physical AI",
		Aliases:     []string{"robotics", "embodied", "robot", "manipulation"},
	},
	{
		ID:          "long-context",
		Name:        "Long Context",
		Color:       "#F97316",
		Description: "Extended context windows, long document processing",
		Aliases:     []string{"long-context", "long context", "extended context"},
	},
	{
		ID:          "multilingual",
		Name:        "Multilingual / Cross-lingual",
		Color:       "#06B6D4",
		Description: "Multilingual models, translation, cross-lingual transfer",
		Aliases:     []string{"multilingual", "cross-lingual", "translation"},
	},
	{
		ID:          "3d-world",
		Name:        "3D / World Models",
		Color:       "#84CC16",
		Description: "3D understanding, world models, spatial reasoning",
		Aliases:     []string{"3d", "world model", "spatial", "point cloud"},
	},
	{
		ID:          "video",
		Name:        "Video Understanding",
		Color:       "#A855F7",
		Description: "Video analysis, temporal reasoning, action recognition",
		Aliases:     []string{"video", "temporal", "action recognition"},
	},
	{
		ID:          "document",
		Name:        "Document Understanding",
		Color:       "#0EA5E9",
		Description: "PDF parsing, OCR, document QA, layout analysis",
		Aliases:     []string{"document", "pdf", "ocr", "layout"},
	},
	{
		ID:          "knowledge",
		Name:        "Knowledge / Reasoning",
		Color:       "#78716C",
		Description: "Knowledge graphs, commonsense reasoning, QA",
		Aliases:     []string{"knowledge", "reasoning", "qa", "commonsense"},
	},
}

// Modality categories describe the data a paper works with.
var modalityCategories = []Category{
	{ID: "text", Name: "Text", Color: "#3B82F6", Description: "Text/language data"},
	{ID: "image", Name: "Image", Color: "#10B981", Description: "Static images"},
	{ID: "video", Name: "Video", Color: "#8B5CF6", Description: "Video/temporal data"},
	{ID: "audio", Name: "Audio", Color: "#F59E0B", Description: "Audio/speech data"},
	{ID: "code", Name: "Code", Color: "#EC4899", Description: "Source code"},
	{ID: "3d", Name: "3D", Color: "#14B8A6", Description: "3D geometry/point clouds"},
	{ID: "multimodal", Name: "Multimodal", Color: "#F97316", Description: "Multiple modalities"},
}

// Categories returns the curated list for the given kind.
// Unknown kinds fall back to the contribution list.
func Categories(kind string) []Category {
	switch kind {
	case KindTask:
		return taskCategories
	case KindModality:
		return modalityCategories
	default:
		return contributionCategories
	}
}

// ColorFor returns the display color for a category name, matching on
// name, id, or alias. Unknown names get a stable hash-derived color.
func ColorFor(name, kind string) string {
	lower := strings.ToLower(name)
	for _, cat := range Categories(kind) {
		if cat.Name == name || cat.ID == name {
			return cat.Color
		}
		for _, alias := range cat.Aliases {
			if strings.ToLower(alias) == lower {
				return cat.Color
			}
		}
	}
	return colorFromString(name)
}

// colorFromString derives a deterministic mid-brightness color from the
// md5 of the name, keeping each channel in the 100-199 range.
func colorFromString(s string) string {
	sum := md5.Sum([]byte(s))
	r := 100 + int(sum[0])%100
	g := 100 + int(sum[1])%100
	b := 100 + int(sum[2])%100
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// BestMatch maps a free-form tag to its canonical category, trying exact
// name/id, then alias containment, then partial name containment.
// Returns nil when nothing matches.
func BestMatch(query, kind string) *Category {
	cats := Categories(kind)
	lower := strings.ToLower(query)

	for i := range cats {
		if strings.ToLower(cats[i].Name) == lower || cats[i].ID == lower {
			return &cats[i]
		}
	}

	for i := range cats {
		for _, alias := range cats[i].Aliases {
			a := strings.ToLower(alias)
			if strings.Contains(lower, a) || strings.Contains(a, lower) {
				return &cats[i]
			}
		}
	}

	for i := range cats {
		name := strings.ToLower(cats[i].Name)
		if strings.Contains(lower, name) || strings.Contains(name, lower) {
			return &cats[i]
		}
	}

	return nil
}

// ContributionTags returns the contribution category names.
func ContributionTags() []string {
	return names(contributionCategories)
}

// TaskTags returns the task category names.
func TaskTags() []string {
	return names(taskCategories)
}

// ModalityTags returns the modality category names.
func ModalityTags() []string {
	return names(modalityCategories)
}

func names(cats []Category) []string {
	out := make([]string, len(cats))
	for i, cat := range cats {
		out[i] = cat.Name
	}
	return out
}

// WithColors returns the full curated taxonomy keyed by kind, for clients
// that render cluster charts.
func WithColors() map[string][]Category {
	return map[string][]Category{
		KindContribution: stripAliases(contributionCategories),
		KindTask:         stripAliases(taskCategories),
		KindModality:     stripAliases(modalityCategories),
	}
}

func stripAliases(cats []Category) []Category {
	out := make([]Category, len(cats))
	for i, cat := range cats {
		out[i] = Category{ID: cat.ID, Name: cat.Name, Color: cat.Color, Description: cat.Description}
	}
	return out
}
