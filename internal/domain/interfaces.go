package domain

import "context"

// Document represents a single source file loaded by the offline loader.
type Document struct {
	ID      string
	Source  string
	Content string
}

// Chunk is a part of a document stored in the vector index.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Source     string
	Text       string
	Index      int
}

// RetrievedChunk is a chunk returned by a similarity search, with the
// originating document name and the similarity score reported by the index.
type RetrievedChunk struct {
	ID     string
	Text   string
	Source string
	Score  float64
}

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Preparer is implemented by embedders that must see the corpus before
// they can embed anything (TF-IDF).
type Preparer interface {
	Prepare(corpus []string) error
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// VectorStore supports nearest-neighbour search over stored vectors.
type VectorStore interface {
	Search(ctx context.Context, vector []float64, topK int) ([]RetrievedChunk, error)
}

// Indexer writes vectors into a store. Only the offline loader uses it.
type Indexer interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, chunks []Chunk, vectors [][]float64) error
}

// Retriever returns the k chunks most similar to a query.
type Retriever interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]RetrievedChunk, error)
}

// GenerationParams controls decoding. Temperature 0 with Sample false
// means greedy decoding.
type GenerationParams struct {
	MaxTokens         int
	Temperature       float64
	RepetitionPenalty float64
	NoRepeatNgramSize int
	Sample            bool
}

// GenerationRequest is a single completion request: a system instruction
// that already carries the retrieved context, and the user question.
// Context holds the same passages unformatted, in rank order.
type GenerationRequest struct {
	System  string
	User    string
	Context []string
	Params  GenerationParams
}

// Completion is the model output. An empty Text means the model
// returned no answer.
type Completion struct {
	Text  string
	Model string
}

// Generator is a black-box text completion model.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req GenerationRequest) (Completion, error)
}
