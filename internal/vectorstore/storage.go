package vectorstore

import (
	"context"

	"medbot/internal/domain"
)

// Storage is a vector index the service can both query and fill.
type Storage interface {
	domain.VectorStore
	domain.Indexer
	Name() string
	Close(ctx context.Context) error
}

// Float32s converts a query vector for the SDKs that take float32.
func Float32s(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
