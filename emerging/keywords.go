package emerging

import (
	"context"
	"fmt"
	"maps"
	"math"
	"regexp"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"
)

const abstractKeywordChars = 500

var nonWordPattern = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"were": true, "for": true, "on": true, "in": true, "to": true, "of": true,
	"and": true, "with": true, "from": true, "by": true, "we": true, "our": true,
	"this": true, "that": true, "these": true, "their": true, "can": true,
	"which": true, "using": true, "based": true, "via": true, "through": true,
	"into": true, "its": true, "be": true, "as": true, "at": true, "or": true,
	"have": true, "has": true, "been": true, "more": true, "new": true,
}

// KeywordEmergence detects keywords that appear across several current
// papers but were absent (or nearly so) in the comparison window.
// Results are capped to the top 10 by confidence.
func (d *Detector) KeywordEmergence(ctx context.Context, currentStart, currentEnd, comparisonStart, comparisonEnd string) ([]Topic, error) {
	currentPapers, err := d.store.TaggedPapersRange(ctx, currentStart, currentEnd)
	if err != nil {
		return nil, fmt.Errorf("load current window: %w", err)
	}
	comparisonPapers, err := d.store.TaggedPapersRange(ctx, comparisonStart, comparisonEnd)
	if err != nil {
		return nil, fmt.Errorf("load comparison window: %w", err)
	}

	currentCounts := make(map[string]int)
	currentPaperIDs := make(map[string][]string)
	for _, p := range currentPapers {
		for kw := range paperKeywords(p.Paper) {
			currentCounts[kw]++
			currentPaperIDs[kw] = append(currentPaperIDs[kw], p.Paper.ID)
		}
	}

	comparisonCounts := make(map[string]int)
	for _, p := range comparisonPapers {
		for kw := range paperKeywords(p.Paper) {
			comparisonCounts[kw]++
		}
	}

	topics := []Topic{}
	for _, kw := range slices.Sorted(maps.Keys(currentCounts)) {
		count := currentCounts[kw]
		if count < d.minKeywordOccurrences {
			continue
		}
		previous := comparisonCounts[kw]
		if previous > 1 {
			continue
		}
		topics = append(topics, Topic{
			Name:       "Keyword: " + kw,
			SignalType: SignalKeywordEmergence,
			Confidence: math.Min(0.85, 0.4+float64(count)*0.05),
			Evidence: fmt.Sprintf("New keyword '%s' appeared in %d papers (was in %d papers before)",
				kw, count, previous),
			FirstSeen:      currentStart,
			SamplePaperIDs: firstN(currentPaperIDs[kw], 3),
		})
	}

	sort.SliceStable(topics, func(i, j int) bool {
		return topics[i].Confidence > topics[j].Confidence
	})
	if len(topics) > 10 {
		topics = topics[:10]
	}
	return topics, nil
}

// paperKeywords extracts the candidate keyword set for one paper from
// its title and the start of its abstract. Each paper contributes a
// keyword at most once.
func paperKeywords(p Paper) map[string]bool {
	return extractKeywords(p.Title + " " + truncateRunes(p.Abstract, abstractKeywordChars))
}

// extractKeywords retains single tokens longer than 4 characters that
// are not stopwords, plus every adjacent bigram whose members are both
// non-stopwords.
func extractKeywords(text string) map[string]bool {
	text = strings.ToLower(text)
	text = nonWordPattern.ReplaceAllString(text, " ")
	words := strings.Fields(text)

	keywords := make(map[string]bool)
	for _, w := range words {
		if utf8.RuneCountInString(w) > 4 && !stopwords[w] {
			keywords[w] = true
		}
	}
	for i := 0; i+1 < len(words); i++ {
		if !stopwords[words[i]] && !stopwords[words[i+1]] {
			keywords[words[i]+" "+words[i+1]] = true
		}
	}
	return keywords
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
