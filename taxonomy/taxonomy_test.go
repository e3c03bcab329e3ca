package taxonomy

import (
	"strconv"
	"strings"
	"testing"
)

func TestColorForExactName(t *testing.T) {
	color := ColorFor("Benchmark / Evaluation", KindContribution)
	if color != "#3B82F6" {
		t.Errorf("color = %q, want #3B82F6", color)
	}
}

func TestColorForID(t *testing.T) {
	color := ColorFor("retrieval", KindContribution)
	if color != "#06B6D4" {
		t.Errorf("color = %q, want #06B6D4", color)
	}
}

func TestColorForAlias(t *testing.T) {
	// Alias matching is case-insensitive
	color := ColorFor("RLHF", KindContribution)
	if color != "#EC4899" {
		t.Errorf("color = %q, want alignment color #EC4899", color)
	}
}

func TestColorForTaskKind(t *testing.T) {
	color := ColorFor("Video Understanding", KindTask)
	if color != "#A855F7" {
		t.Errorf("color = %q, want #A855F7", color)
	}
}

func TestColorForUnknownIsStable(t *testing.T) {
	first := ColorFor("Quantum Basket Weaving", KindContribution)
	second := ColorFor("Quantum Basket Weaving", KindContribution)
	if first != second {
		t.Errorf("fallback color not deterministic: %q vs %q", first, second)
	}
	if len(first) != 7 || !strings.HasPrefix(first, "#") {
		t.Fatalf("fallback color %q not in #rrggbb form", first)
	}
	// Channels stay in the mid-brightness 100-199 range
	for i := 1; i < 7; i += 2 {
		v, err := strconv.ParseInt(first[i:i+2], 16, 0)
		if err != nil {
			t.Fatalf("parsing channel: %v", err)
		}
		if v < 100 || v > 199 {
			t.Errorf("channel %d = %d, want 100-199", i/2, v)
		}
	}
}

func TestBestMatchExact(t *testing.T) {
	cat := BestMatch("benchmark / evaluation", KindContribution)
	if cat == nil || cat.ID != "benchmark" {
		t.Errorf("BestMatch = %+v, want benchmark category", cat)
	}
}

func TestBestMatchAlias(t *testing.T) {
	cat := BestMatch("a new leaderboard for agents", KindContribution)
	if cat == nil || cat.ID != "benchmark" {
		t.Errorf("BestMatch = %+v, want benchmark via leaderboard alias", cat)
	}
}

func TestBestMatchPartialName(t *testing.T) {
	cat := BestMatch("Long Context Windows", KindTask)
	if cat == nil || cat.ID != "long-context" {
		t.Errorf("BestMatch = %+v, want long-context category", cat)
	}
}

func TestBestMatchNone(t *testing.T) {
	if cat := BestMatch("zzzz", KindModality); cat != nil {
		t.Errorf("BestMatch = %+v, want nil", cat)
	}
}

func TestCategoriesByKind(t *testing.T) {
	if got := len(Categories(KindTask)); got != 14 {
		t.Errorf("task categories = %d, want 14", got)
	}
	if got := len(Categories(KindModality)); got != 7 {
		t.Errorf("modality categories = %d, want 7", got)
	}
	if got := len(Categories("unknown")); got != 16 {
		t.Errorf("unknown kind should fall back to contribution list, got %d", got)
	}
}

func TestTagLists(t *testing.T) {
	if got := len(ContributionTags()); got != 16 {
		t.Errorf("contribution tags = %d, want 16", got)
	}
	if got := len(TaskTags()); got != 14 {
		t.Errorf("task tags = %d, want 14", got)
	}
	if got := len(ModalityTags()); got != 7 {
		t.Errorf("modality tags = %d, want 7", got)
	}
	if ContributionTags()[0] != "Benchmark / Evaluation" {
		t.Errorf("first contribution tag = %q", ContributionTags()[0])
	}
}

func TestWithColors(t *testing.T) {
	full := WithColors()
	for _, kind := range []string{KindContribution, KindTask, KindModality} {
		cats, ok := full[kind]
		if !ok || len(cats) == 0 {
			t.Errorf("missing %s categories", kind)
			continue
		}
		for _, cat := range cats {
			if cat.Color == "" {
				t.Errorf("%s category %s has no color", kind, cat.ID)
			}
			if len(cat.Aliases) != 0 {
				t.Errorf("%s category %s should not expose aliases", kind, cat.ID)
			}
		}
	}
}
