package tagger

import (
	"slices"
	"strings"
)

// keywordRule maps a tag to the substrings that trigger it. Rules are
// evaluated in declaration order and the first match wins.
type keywordRule struct {
	tag      string
	keywords []string
}

var contributionRules = []keywordRule{
	{"Benchmark / Evaluation", []string{"benchmark", "evaluation", "assess", "leaderboard", "metric"}},
	{"Dataset / Data Curation", []string{"dataset", "corpus", "data curation", "annotation", "labeled data"}},
	{"Architecture / Model Design", []string{"architecture", "transformer", "attention", "model design", "neural network", "layer"}},
	{"Training Recipe / Scaling / Distillation", []string{"training", "scaling", "distillation", "pre-training", "pretraining", "fine-tuning"}},
	{"Post-training / Alignment", []string{"alignment", "rlhf", "dpo", "sft", "preference", "human feedback", "instruction tuning"}},
	{"Reasoning / Test-time Compute", []string{"reasoning", "chain-of-thought", "test-time", "cot", "step-by-step", "think"}},
	{"Agents / Tool Use / Workflow", []string{"agent", "tool use", "workflow", "planning", "action", "environment"}},
	{"Multimodal Method", []string{"multimodal", "vision-language", "vlm", "image-text", "visual question"}},
	{"RAG / Retrieval / Memory", []string{"rag", "retrieval", "memory", "knowledge base", "external knowledge"}},
	{"Safety / Robustness / Interpretability", []string{"safety", "robustness", "interpretab", "explain", "bias", "fairness", "toxic"}},
	{"Systems / Efficiency", []string{"efficient", "quantization", "serving", "latency", "inference", "compression", "pruning"}},
	{"Survey / Tutorial", []string{"survey", "tutorial", "review", "overview", "comprehensive study"}},
	{"Technical Report / Model Release", []string{"technical report", "release", "introducing", "we present", "we release"}},
	{"Theory / Analysis", []string{"theory", "analysis", "theoretical", "prove", "theorem", "bound"}},
	{"Application / Domain-Specific", []string{"medical", "clinical", "health", "drug", "disease", "patient", "diagnosis", "legal", "law", "finance", "financial", "education", "scientific"}},
}

var taskRules = []keywordRule{
	{"RAG", []string{"rag", "retrieval-augmented", "retrieval augmented"}},
	{"Coding / SWE Agents", []string{"code", "programming", "software engineer", "github", "repository", "developer"}},
	{"Video Reasoning", []string{"video", "temporal", "frame", "clip"}},
	{"Long-context", []string{"long-context", "long context", "extended context", "128k", "1m token"}},
	{"Math Reasoning", []string{"math", "mathematical", "arithmetic", "geometry", "algebra"}},
	{"Scientific Reasoning", []string{"scientific", "science", "chemistry", "physics", "biology"}},
	{"Multimodal Understanding", []string{"multimodal", "multi-modal", "cross-modal"}},
	{"Language Understanding", []string{"language understanding", "nlp", "nlu", "semantic", "syntactic"}},
	{"Generation / Synthesis", []string{"generation", "synthesis", "generate", "create", "produce"}},
	{"Embedding / Representation", []string{"embedding", "representation", "encode", "vector"}},
	{"Document Understanding", []string{"document", "pdf", "ocr", "layout"}},
	{"Speech / Audio Processing", []string{"speech", "audio", "voice", "acoustic", "asr", "tts"}},
	{"Planning / Search", []string{"planning", "search", "monte carlo", "tree search", "mcts"}},
	{"Multi-agent Systems", []string{"multi-agent", "multiple agents", "agent collaboration"}},
	{"General NLP", []string{"nlp", "natural language", "text", "linguistic"}},
	{"Computer Vision", []string{"image", "visual", "object detection", "segmentation", "recognition"}},
}

var modalityRules = []keywordRule{
	{"video", []string{"video"}},
	{"vision", []string{"image", "vision", "visual", "picture", "photo"}},
	{"audio", []string{"audio", "speech", "voice", "sound"}},
	{"code", []string{"code", "programming", "python", "java", "repository"}},
	{"3D", []string{"3d", "three-dimensional", "point cloud", "mesh"}},
	{"multimodal", []string{"multimodal", "multi-modal"}},
}

var textModalityKeywords = []string{"text", "language", "nlp", "document"}

// HeuristicTags classifies a paper by keyword matching against its
// title and abstract. Used when no LLM provider is configured.
func HeuristicTags(paper Paper, tax *Taxonomy) *PaperTags {
	combined := strings.ToLower(paper.Title) + " " + strings.ToLower(paper.Abstract)

	primary := "Foundational Research"
	for _, rule := range contributionRules {
		if containsAny(combined, rule.keywords) {
			primary = rule.tag
			break
		}
	}
	if !slices.Contains(tax.ContributionTags, primary) {
		switch {
		case slices.Contains(tax.ContributionTags, "Foundational Research"):
			primary = "Foundational Research"
		case slices.Contains(tax.ContributionTags, "Application / Domain-Specific"):
			primary = "Application / Domain-Specific"
		case len(tax.ContributionTags) > 0:
			primary = tax.ContributionTags[0]
		default:
			primary = "Foundational Research"
		}
	}

	taskTags := []string{}
	for _, rule := range taskRules {
		if !containsAny(combined, rule.keywords) || !slices.Contains(tax.TaskTags, rule.tag) {
			continue
		}
		taskTags = append(taskTags, rule.tag)
		if len(taskTags) == 3 {
			break
		}
	}
	if len(taskTags) == 0 {
		if containsAny(combined, []string{"image", "vision", "visual"}) {
			if slices.Contains(tax.TaskTags, "Computer Vision") {
				taskTags = append(taskTags, "Computer Vision")
			}
		} else if containsAny(combined, []string{"text", "language", "nlp"}) &&
			slices.Contains(tax.TaskTags, "General NLP") {
			taskTags = append(taskTags, "General NLP")
		}
	}

	modality := []string{}
	for _, rule := range modalityRules {
		if containsAny(combined, rule.keywords) {
			modality = append(modality, rule.tag)
		}
	}
	if len(modality) == 0 || containsAny(combined, textModalityKeywords) {
		modality = append(modality, "text")
	}
	modality = filterToTaxonomy(modality, tax.ModalityTags, 0)
	if len(modality) == 0 {
		modality = []string{"text"}
	}

	return &PaperTags{
		PaperID:      paper.ID,
		Month:        tax.Month,
		Primary:      primary,
		Secondary:    []string{},
		TaskTags:     taskTags,
		ModalityTags: modality,
		Confidence:   0.6,
		Rationale:    "Heuristic tagging",
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
