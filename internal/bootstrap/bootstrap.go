// Package bootstrap assembles the service components from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"medbot/internal/answer"
	"medbot/internal/assistant"
	"medbot/internal/chunker"
	"medbot/internal/config"
	"medbot/internal/domain"
	"medbot/internal/embedding/huggingface"
	"medbot/internal/embedding/openai"
	"medbot/internal/embedding/tfidf"
	"medbot/internal/generator/anthropic"
	"medbot/internal/generator/extractive"
	hfgen "medbot/internal/generator/huggingface"
	oaigen "medbot/internal/generator/openai"
	"medbot/internal/httpx"
	"medbot/internal/ingest"
	"medbot/internal/query"
	"medbot/internal/resilience"
	"medbot/internal/retrieval"
	"medbot/internal/vectorstore"
	"medbot/internal/vectorstore/memory"
	"medbot/internal/vectorstore/milvus"
	"medbot/internal/vectorstore/pinecone"
	"medbot/internal/vectorstore/qdrant"
)

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

// Assistant builds the request-path front end around state. It only
// needs the query tables, so it is ready before the pipeline is.
func Assistant(cfg *config.AppConfig, state *assistant.State, log *zap.Logger) (*assistant.Assistant, error) {
	table, err := query.NewCorrectionsTable(query.MergeCorrections(cfg.Query.Corrections))
	if err != nil {
		return nil, err
	}
	greetings := cfg.Query.Greetings
	if len(greetings) == 0 {
		greetings = query.DefaultGreetings()
	}
	pronouns := cfg.Query.VaguePronouns
	if len(pronouns) == 0 {
		pronouns = query.DefaultVaguePronouns()
	}
	rules := query.DefaultRules()
	if len(cfg.Query.RewriteRules) > 0 {
		rules = make([]query.Rule, 0, len(cfg.Query.RewriteRules))
		for _, r := range cfg.Query.RewriteRules {
			rules = append(rules, query.Rule{Name: r.Name, Terms: r.Terms, Template: r.Template})
		}
	}
	rewriter, err := query.NewRewriter(rules)
	if err != nil {
		return nil, err
	}
	return assistant.New(
		query.NewGuards(greetings, pronouns, cfg.Query.VagueMaxTokens),
		query.NewNormalizer(table),
		rewriter,
		state,
		secs(cfg.Server.RequestTimeoutSecs),
		log,
	), nil
}

// Embedder returns the configured query embedder.
func Embedder(cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case "tfidf":
		return tfidf.NewEmbedder(), nil
	case "huggingface":
		if cfg.HuggingFace == nil {
			return nil, errors.New("huggingface embedder config missing")
		}
		hf := cfg.HuggingFace
		return huggingface.NewClient(huggingface.Config{
			BaseURL:   hf.BaseURL,
			APIKeyEnv: hf.APIKeyEnv,
			Model:     hf.Model,
		}, httpx.New(secs(hf.TimeoutSecs)))
	case "openai":
		if cfg.OpenAI == nil {
			return nil, errors.New("openai embedder config missing")
		}
		return openai.NewClient(openai.Config{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Model:     cfg.OpenAI.Model,
			Timeout:   secs(cfg.OpenAI.TimeoutSecs),
		})
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

// Store opens the configured vector index.
func Store(ctx context.Context, cfg config.VectorStoreConfig) (vectorstore.Storage, error) {
	switch cfg.Type {
	case "memory":
		return memory.NewStorage(), nil
	case "pinecone":
		if cfg.Pinecone == nil {
			return nil, errors.New("pinecone config missing")
		}
		p := cfg.Pinecone
		return pinecone.Open(ctx, pinecone.Config{
			APIKeyEnv: p.APIKeyEnv,
			Index:     p.Index,
			Host:      p.Host,
			Namespace: p.Namespace,
			TextKey:   p.TextKey,
			SourceKey: p.SourceKey,
		})
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, errors.New("qdrant config missing")
		}
		q := cfg.Qdrant
		return qdrant.NewStorage(qdrant.Config{
			URL:        q.URL,
			APIKeyEnv:  q.APIKeyEnv,
			Collection: q.Collection,
		}, httpx.New(secs(q.TimeoutSecs))), nil
	case "milvus":
		if cfg.Milvus == nil {
			return nil, errors.New("milvus config missing")
		}
		m := cfg.Milvus
		return milvus.Open(ctx, milvus.Config{
			Address:     m.Address,
			APIKeyEnv:   m.APIKeyEnv,
			Collection:  m.Collection,
			VectorField: m.VectorField,
			TextField:   m.TextField,
			SourceField: m.SourceField,
		})
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}

// Generator returns the configured completion model.
func Generator(cfg config.GeneratorConfig) (domain.Generator, error) {
	switch cfg.Type {
	case "extractive":
		return extractive.New(cfg.MaxSentences), nil
	case "huggingface":
		if cfg.HuggingFace == nil {
			return nil, errors.New("huggingface generator config missing")
		}
		hf := cfg.HuggingFace
		return hfgen.NewClient(hfgen.Config{
			BaseURL:   hf.BaseURL,
			APIKeyEnv: hf.APIKeyEnv,
			Model:     hf.Model,
		}, httpx.New(secs(hf.TimeoutSecs)))
	case "openai":
		if cfg.OpenAI == nil {
			return nil, errors.New("openai generator config missing")
		}
		return oaigen.NewClient(oaigen.Config{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Model:     cfg.OpenAI.Model,
			Timeout:   secs(cfg.OpenAI.TimeoutSecs),
		})
	case "anthropic":
		if cfg.Anthropic == nil {
			return nil, errors.New("anthropic generator config missing")
		}
		return anthropic.NewClient(anthropic.Config{
			BaseURL:   cfg.Anthropic.BaseURL,
			APIKeyEnv: cfg.Anthropic.APIKeyEnv,
			Model:     cfg.Anthropic.Model,
			Timeout:   secs(cfg.Anthropic.TimeoutSecs),
		})
	default:
		return nil, fmt.Errorf("unknown generator: %s", cfg.Type)
	}
}

// Params converts the decoding section. A positive temperature turns on
// sampling.
func Params(cfg config.GeneratorConfig) domain.GenerationParams {
	p := answer.DefaultParams()
	p.MaxTokens = cfg.MaxTokens
	p.Temperature = cfg.Temperature
	p.RepetitionPenalty = cfg.RepetitionPenalty
	p.NoRepeatNgramSize = cfg.NoRepeatNgramSize
	p.Sample = cfg.Temperature > 0
	return p
}

// Components is a built answer pipeline and the store behind it.
type Components struct {
	Pipeline *answer.Pipeline
	Store    vectorstore.Storage
}

// Close releases the vector index connection.
func (c *Components) Close(ctx context.Context) error {
	if c == nil || c.Store == nil {
		return nil
	}
	return c.Store.Close(ctx)
}

// Pipeline builds everything the answer path needs. The memory store is
// filled here from its data directory; remote indexes are expected to be
// populated by the ingest command.
func Pipeline(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*Components, error) {
	if log == nil {
		log = zap.NewNop()
	}
	policy := resilience.FromConfig(cfg.Resilience, log)

	emb, err := Embedder(cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	gen, err := Generator(cfg.Generator)
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}
	store, err := Store(ctx, cfg.VectorStore)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	fail := func(err error) (*Components, error) {
		if cerr := store.Close(context.Background()); cerr != nil {
			err = multierror.Append(err, cerr)
		}
		return nil, err
	}

	if m := cfg.VectorStore.Memory; cfg.VectorStore.Type == "memory" && m != nil {
		stats, err := IndexDir(ctx, m.DataDir, ingest.Options{
			ChunkSize:    m.ChunkSize,
			ChunkOverlap: m.ChunkOverlap,
			BatchSize:    cfg.Ingest.BatchSize,
		}, emb, store, policy, log)
		if err != nil {
			return fail(fmt.Errorf("load %s: %w", m.DataDir, err))
		}
		log.Info("memory index loaded",
			zap.Int("documents", stats.Documents),
			zap.Int("chunks", stats.Chunks),
			zap.Int("dimension", stats.Dimension),
		)
	}

	counter := answer.NewTokenCounter(cfg.Prompt.Tokenizer, cfg.Prompt.Encoding, log)
	prompt, err := answer.NewPromptBuilder(cfg.Prompt.System, counter, cfg.Prompt.MaxContextTokens)
	if err != nil {
		return fail(fmt.Errorf("prompt: %w", err))
	}
	retriever := retrieval.New(emb, store, policy, log)
	p := answer.NewPipeline(retriever, gen, prompt, answer.Options{
		TopK:      cfg.Retrieval.TopK,
		Params:    Params(cfg.Generator),
		CacheSize: cfg.Cache.Size,
		CacheTTL:  cfg.Cache.TTL(),
	}, policy, log)

	log.Info("pipeline ready",
		zap.String("embedder", emb.Name()),
		zap.String("store", store.Name()),
		zap.String("generator", gen.Name()),
		zap.Int("top_k", cfg.Retrieval.TopK),
	)
	return &Components{Pipeline: p, Store: store}, nil
}

// IndexDir loads every document under dir and writes it to store.
func IndexDir(ctx context.Context, dir string, opts ingest.Options, emb domain.Embedder, store domain.Indexer, policy resilience.Policy, log *zap.Logger) (ingest.Stats, error) {
	docs, err := ingest.LoadDir(dir)
	if err != nil {
		return ingest.Stats{}, err
	}
	ch := chunker.NewRecursiveChunker(opts.ChunkSize, opts.ChunkOverlap)
	return ingest.NewIndexer(ch, emb, store, policy, opts.BatchSize, log).Run(ctx, docs)
}

// Ingest runs the offline loader against the configured remote index.
func Ingest(ctx context.Context, cfg *config.AppConfig, dir string, log *zap.Logger) (ingest.Stats, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dir == "" {
		dir = cfg.Ingest.DataDir
	}
	if cfg.VectorStore.Type == "memory" {
		return ingest.Stats{}, errors.New("the memory store is filled at startup; ingest needs a persistent index")
	}
	emb, err := Embedder(cfg.Embedder)
	if err != nil {
		return ingest.Stats{}, fmt.Errorf("embedder: %w", err)
	}
	store, err := Store(ctx, cfg.VectorStore)
	if err != nil {
		return ingest.Stats{}, fmt.Errorf("vector store: %w", err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.Warn("close store", zap.Error(err))
		}
	}()
	return IndexDir(ctx, dir, ingest.Options{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
		BatchSize:    cfg.Ingest.BatchSize,
	}, emb, store, resilience.FromConfig(cfg.Resilience, log), log)
}
