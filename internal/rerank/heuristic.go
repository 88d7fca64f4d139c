package rerank

import (
	"context"
	"regexp"
	"strings"
)

var (
	wordPattern   = regexp.MustCompile(`\b\w+\b`)
	phrasePattern = regexp.MustCompile(`\b\w+(?:\s+\w+){1,5}\b`)
)

// relevanceKeywords mark explanatory content, listed in summation order.
var relevanceKeywords = []struct {
	word   string
	weight float64
}{
	{"definition", 3.0},
	{"example", 2.5},
	{"implementation", 2.0},
	{"configuration", 2.0},
	{"explanation", 2.0},
	{"overview", 1.5},
	{"summary", 1.5},
	{"guide", 1.5},
	{"tutorial", 1.5},
	{"setup", 1.5},
	{"syntax", 1.5},
	{"reference", 1.0},
	{"details", 1.0},
}

var docTypeWeights = map[string]float64{
	"overview":    1.5,
	"use_case":    1.3,
	"parser":      1.2,
	"rule":        1.2,
	"model":       1.2,
	"data_source": 1.1,
	"reference":   0.9,
}

// HeuristicReranker scores documents locally from term overlap, exact phrases,
// explanatory keywords and document type. It makes no external calls.
type HeuristicReranker struct{}

// NewHeuristicReranker returns a HeuristicReranker.
func NewHeuristicReranker() *HeuristicReranker {
	return &HeuristicReranker{}
}

// Name returns "heuristic".
func (h *HeuristicReranker) Name() string { return "heuristic" }

// Rerank scores every document. Scores are capped at 1.
func (h *HeuristicReranker) Rerank(ctx context.Context, query string, docs []Document) ([]Score, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	queryTerms := termSet(q)
	var phrases []string
	if len(query) > 5 {
		for _, p := range phrasePattern.FindAllString(q, -1) {
			if len(p) > 5 {
				phrases = append(phrases, p)
			}
		}
	}

	scores := make([]Score, len(docs))
	for i, d := range docs {
		scores[i] = Score{ID: d.ID, Score: score(queryTerms, phrases, d)}
	}
	return scores, nil
}

func score(queryTerms map[string]struct{}, phrases []string, d Document) float64 {
	s := 0.5
	text := strings.ToLower(d.Text)
	docTerms := termSet(text)
	if len(queryTerms) > 0 && len(docTerms) > 0 {
		overlap := 0
		for t := range queryTerms {
			if _, ok := docTerms[t]; ok {
				overlap++
			}
		}
		s += 0.3 * float64(overlap) / float64(len(queryTerms))
	}
	for _, p := range phrases {
		if strings.Contains(text, p) {
			s += 0.15
		}
	}
	for _, kw := range relevanceKeywords {
		if strings.Contains(text, kw.word) {
			s += 0.05 * kw.weight
		}
	}
	if w, ok := docTypeWeights[strings.ToLower(d.DocumentType)]; ok {
		s *= w
	}
	if s > 1 {
		s = 1
	}
	return s
}

func termSet(s string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, t := range wordPattern.FindAllString(s, -1) {
		terms[t] = struct{}{}
	}
	return terms
}
