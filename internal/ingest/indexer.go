package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"medbot/internal/domain"
	"medbot/internal/resilience"
)

// Stats summarizes one indexing run.
type Stats struct {
	Documents int
	Chunks    int
	Dimension int
}

// Options sizes chunks and embedding batches.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

// Indexer chunks documents, embeds the chunks, and writes them to a store.
type Indexer struct {
	chunker     domain.Chunker
	embedder    domain.Embedder
	store       domain.Indexer
	policy      resilience.Policy
	batchSize   int
	concurrency int
	log         *zap.Logger
}

func NewIndexer(chunker domain.Chunker, embedder domain.Embedder, store domain.Indexer, policy resilience.Policy, batchSize int, log *zap.Logger) *Indexer {
	if batchSize <= 0 {
		batchSize = 64
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Indexer{
		chunker:     chunker,
		embedder:    embedder,
		store:       store,
		policy:      policy,
		batchSize:   batchSize,
		concurrency: 4,
		log:         log,
	}
}

// Run indexes documents. Embedders that need the corpus (TF-IDF) are
// prepared on the chunk texts first.
func (ix *Indexer) Run(ctx context.Context, documents []domain.Document) (Stats, error) {
	var chunks []domain.Chunk
	for _, d := range documents {
		cs, err := ix.chunker.Chunk(d)
		if err != nil {
			return Stats{}, fmt.Errorf("chunk %s: %w", d.Source, err)
		}
		chunks = append(chunks, cs...)
	}
	if len(chunks) == 0 {
		return Stats{}, errors.New("documents produced no chunks")
	}
	if p, ok := ix.embedder.(domain.Preparer); ok {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		if err := p.Prepare(texts); err != nil {
			return Stats{}, fmt.Errorf("prepare %s embedder: %w", ix.embedder.Name(), err)
		}
	}

	stats := Stats{Documents: len(documents), Chunks: len(chunks)}
	for start := 0; start < len(chunks); start += ix.batchSize {
		end := min(start+ix.batchSize, len(chunks))
		batch := chunks[start:end]
		vectors, err := ix.embedBatch(ctx, batch)
		if err != nil {
			return stats, err
		}
		if start == 0 {
			stats.Dimension = len(vectors[0])
			if err := ix.store.Init(ctx, stats.Dimension); err != nil {
				return stats, fmt.Errorf("init store: %w", err)
			}
		}
		err = ix.policy.Do(ctx, "upsert", func(ctx context.Context) error {
			return ix.store.Upsert(ctx, batch, vectors)
		})
		if err != nil {
			return stats, fmt.Errorf("upsert chunks %d-%d: %w", start, end, err)
		}
		ix.log.Info("indexed batch", zap.Int("from", start), zap.Int("to", end), zap.Int("total", len(chunks)))
	}
	return stats, nil
}

func (ix *Indexer) embedBatch(ctx context.Context, batch []domain.Chunk) ([][]float64, error) {
	vectors := make([][]float64, len(batch))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)
	for i := range batch {
		g.Go(func() error {
			return ix.policy.Do(ctx, "embed", func(ctx context.Context) error {
				v, err := ix.embedder.Embed(ctx, batch[i].Text)
				if err != nil {
					return err
				}
				vectors[i] = v
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	return vectors, nil
}
