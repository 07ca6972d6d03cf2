package retrieval

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"medbot/internal/domain"
	"medbot/internal/resilience"
)

// Retriever embeds a query and looks up its nearest chunks.
type Retriever struct {
	embedder domain.Embedder
	store    domain.VectorStore
	policy   resilience.Policy
	log      *zap.Logger
}

func New(embedder domain.Embedder, store domain.VectorStore, policy resilience.Policy, log *zap.Logger) *Retriever {
	if log == nil {
		log = zap.NewNop()
	}
	return &Retriever{embedder: embedder, store: store, policy: policy, log: log}
}

// SimilaritySearch returns at most k chunks ordered by decreasing
// similarity. Chunks without text are dropped. A query whose embedding
// is all zeros (no known terms) matches nothing.
func (r *Retriever) SimilaritySearch(ctx context.Context, query string, k int) ([]domain.RetrievedChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	var vec []float64
	err := r.policy.Do(ctx, "embed", func(ctx context.Context) error {
		var err error
		vec, err = r.embedder.Embed(ctx, query)
		return err
	})
	if err != nil {
		return nil, &StageError{Stage: "embed", Err: err}
	}
	if isZero(vec) {
		r.log.Debug("query embedding is empty", zap.String("embedder", r.embedder.Name()))
		return nil, nil
	}

	var hits []domain.RetrievedChunk
	err = r.policy.Do(ctx, "search", func(ctx context.Context) error {
		var err error
		hits, err = r.store.Search(ctx, vec, k)
		return err
	})
	if err != nil {
		return nil, &StageError{Stage: "search", Err: err}
	}

	out := hits[:0]
	for _, h := range hits {
		if strings.TrimSpace(h.Text) == "" {
			continue
		}
		out = append(out, h)
	}
	if len(out) > k {
		out = out[:k]
	}
	r.log.Debug("retrieved context", zap.Int("hits", len(out)))
	return out, nil
}

// StageError tags a retrieval failure with the stage that failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

func isZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
