package extractive

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"medbot/internal/domain"
)

// Generator answers offline by picking the context sentences that best
// match the question, ranked by term frequency across the passages.
type Generator struct {
	maxSentences int
	tokenPattern *regexp.Regexp
	splitter     *regexp.Regexp
	stopwords    map[string]struct{}
}

// New creates an extractive generator that returns at most maxSentences.
func New(maxSentences int) *Generator {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return &Generator{
		maxSentences: maxSentences,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:['’]\p{L}+)*`),
		splitter:     regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`),
		stopwords:    defaultStopwords(),
	}
}

func (g *Generator) Name() string { return "extractive" }

// Generate ignores decoding parameters. A question that shares no terms
// with the context gets an empty completion.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (domain.Completion, error) {
	if err := ctx.Err(); err != nil {
		return domain.Completion{}, err
	}
	query := map[string]struct{}{}
	for _, tok := range g.tokens(req.User) {
		query[tok] = struct{}{}
	}

	var sentences []string
	seen := map[string]struct{}{}
	for _, passage := range req.Context {
		for _, s := range g.splitter.FindAllString(passage, -1) {
			s = strings.Join(strings.Fields(s), " ")
			key := strings.ToLower(s)
			if s == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			sentences = append(sentences, s)
		}
	}

	freq := map[string]float64{}
	for _, s := range sentences {
		for _, tok := range g.tokens(s) {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}

	type pair struct {
		idx   int
		score float64
	}
	var ranked []pair
	for i, s := range sentences {
		toks := g.tokens(s)
		if len(toks) == 0 {
			continue
		}
		overlap, score := 0, 0.0
		for _, tok := range toks {
			score += freq[tok] / maxF
			if _, ok := query[tok]; ok {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		score = score/math.Sqrt(float64(len(toks))) + float64(overlap)
		ranked = append(ranked, pair{i, score})
	}
	if len(ranked) == 0 {
		return domain.Completion{Model: g.Name()}, nil
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > g.maxSentences {
		ranked = ranked[:g.maxSentences]
	}
	// Keep original order among selected
	selected := make([]int, len(ranked))
	for i, p := range ranked {
		selected[i] = p.idx
	}
	sort.Ints(selected)
	out := make([]string, len(selected))
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return domain.Completion{Text: strings.Join(out, " "), Model: g.Name()}, nil
}

func (g *Generator) tokens(text string) []string {
	raw := g.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := g.stopwords[t]; !stop {
			out = append(out, t)
		}
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those",
		"from", "up", "down", "over", "under", "than", "so", "such", "into", "about", "between", "through",
		"during", "before", "after", "out", "off", "same", "too", "very", "can", "will", "just", "should", "now",
		"what", "which", "who", "how", "do", "does", "i", "you", "my", "me", "have", "has",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
