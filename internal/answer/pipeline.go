package answer

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"medbot/internal/domain"
	"medbot/internal/metrics"
	"medbot/internal/resilience"
)

// Options tunes a Pipeline.
type Options struct {
	TopK   int
	Params domain.GenerationParams
	// CacheSize 0 disables the answer cache.
	CacheSize int
	CacheTTL  time.Duration
}

// DefaultParams is greedy decoding with repetition suppression.
func DefaultParams() domain.GenerationParams {
	return domain.GenerationParams{
		MaxTokens:         256,
		Temperature:       0,
		RepetitionPenalty: 1.2,
		NoRepeatNgramSize: 3,
	}
}

// Pipeline answers a query from retrieved context. It is safe for
// concurrent use once built.
type Pipeline struct {
	retriever domain.Retriever
	generator domain.Generator
	prompt    *PromptBuilder
	opts      Options
	policy    resilience.Policy
	cache     *expirable.LRU[string, string]
	log       *zap.Logger
}

func NewPipeline(retriever domain.Retriever, generator domain.Generator, prompt *PromptBuilder, opts Options, policy resilience.Policy, log *zap.Logger) *Pipeline {
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pipeline{
		retriever: retriever,
		generator: generator,
		prompt:    prompt,
		opts:      opts,
		policy:    policy,
		log:       log,
	}
	if opts.CacheSize > 0 {
		p.cache = expirable.NewLRU[string, string](opts.CacheSize, nil, opts.CacheTTL)
	}
	return p
}

// Answer retrieves the top-k chunks for query and asks the generator to
// answer from them. The generated text is returned unmodified; a blank
// generation, or no usable context, yields FallbackAnswer.
func (p *Pipeline) Answer(ctx context.Context, query string) (string, error) {
	start := time.Now()
	if p.cache != nil {
		if text, ok := p.cache.Get(query); ok {
			metrics.IncCacheHit()
			metrics.ObserveAnswer("cached", start)
			return text, nil
		}
	}

	chunks, err := p.retriever.SimilaritySearch(ctx, query, p.opts.TopK)
	if err != nil {
		return "", p.fail("retrieve", err, start)
	}
	if len(chunks) == 0 {
		p.log.Debug("no context retrieved", zap.String("query", query))
		metrics.ObserveAnswer("fallback", start)
		return FallbackAnswer, nil
	}

	req, err := p.prompt.Build(query, chunks, p.opts.Params)
	if err != nil {
		return "", err
	}
	var out domain.Completion
	err = p.policy.Do(ctx, "generate", func(ctx context.Context) error {
		var err error
		out, err = p.generator.Generate(ctx, req)
		return err
	})
	if err != nil {
		return "", p.fail("generate", err, start)
	}

	if strings.TrimSpace(out.Text) == "" {
		p.log.Debug("generator returned no answer", zap.String("model", out.Model))
		metrics.ObserveAnswer("fallback", start)
		return FallbackAnswer, nil
	}
	if p.cache != nil {
		p.cache.Add(query, out.Text)
	}
	p.log.Debug("answer generated",
		zap.String("model", out.Model),
		zap.Int("chunks", len(chunks)),
		zap.Int("context_passages", len(req.Context)),
		zap.Duration("took", time.Since(start)),
	)
	metrics.ObserveAnswer("answer", start)
	return out.Text, nil
}

func (p *Pipeline) fail(op string, err error, start time.Time) error {
	uerr := &UpstreamError{Op: op, Err: err}
	outcome := "error"
	if uerr.Timeout() {
		outcome = "timeout"
	}
	metrics.IncUpstreamError(op)
	metrics.ObserveAnswer(outcome, start)
	return uerr
}
