package extractive

import (
	"context"
	"math"
	"sort"
	"strings"

	"manualrag/internal/domain"
	"manualrag/internal/textproc"
)

// Generator answers offline by picking the context sentences that share the
// most query terms. It never calls a model.
type Generator struct {
	maxSentences int
}

// New creates an extractive generator returning at most maxSentences.
func New(maxSentences int) *Generator {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return &Generator{maxSentences: maxSentences}
}

// Name returns the identifier of this generator implementation.
func (g *Generator) Name() string { return "extractive" }

// Generate returns the best-scoring sentences in context order, or
// req.NoAnswer when no sentence shares a term with the query.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	query := map[string]struct{}{}
	for _, tok := range textproc.Tokens(req.Query) {
		query[tok] = struct{}{}
	}

	type scored struct {
		idx   int
		score float64
	}
	var sentences []string
	var scores []scored
	for _, c := range req.Contexts {
		for _, sent := range textproc.Sentences(c) {
			toks := textproc.Tokens(sent)
			if len(toks) == 0 {
				continue
			}
			hits := 0.0
			seen := map[string]struct{}{}
			for _, tok := range toks {
				if _, ok := query[tok]; !ok {
					continue
				}
				if _, dup := seen[tok]; dup {
					continue
				}
				seen[tok] = struct{}{}
				hits++
			}
			if hits == 0 {
				continue
			}
			// Normalize by sentence length to avoid bias
			scores = append(scores, scored{idx: len(sentences), score: hits / math.Sqrt(float64(len(toks)))})
			sentences = append(sentences, sent)
		}
	}
	if len(scores) == 0 {
		return req.NoAnswer, nil
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	n := min(g.maxSentences, len(scores))
	// Keep original order among selected
	selected := make([]int, n)
	for i := 0; i < n; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, n)
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " "), nil
}
