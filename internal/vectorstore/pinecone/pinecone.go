package pinecone

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/pinecone-io/go-pinecone/v4/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"medbot/internal/domain"
	"medbot/internal/vectorstore"
)

// indexConn is the part of *pinecone.IndexConnection the store uses.
type indexConn interface {
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	Close() error
}

// Storage queries a pre-built Pinecone index whose records carry the chunk
// text and source document in metadata.
type Storage struct {
	conn      indexConn
	index     string
	textKey   string
	sourceKey string
}

type Config struct {
	APIKeyEnv string
	Index     string
	Host      string
	Namespace string
	TextKey   string
	SourceKey string
}

// Open resolves the index host and opens a data-plane connection.
func Open(ctx context.Context, cfg Config) (*Storage, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	pc, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: key})
	if err != nil {
		return nil, fmt.Errorf("pinecone client: %w", err)
	}
	host := cfg.Host
	if host == "" {
		idx, err := pc.DescribeIndex(ctx, cfg.Index)
		if err != nil {
			return nil, fmt.Errorf("describe pinecone index %q: %w", cfg.Index, err)
		}
		host = idx.Host
	}
	conn, err := pc.Index(pinecone.NewIndexConnParams{Host: host, Namespace: cfg.Namespace})
	if err != nil {
		return nil, fmt.Errorf("connect pinecone index %q: %w", cfg.Index, err)
	}
	return newStorage(conn, cfg), nil
}

func newStorage(conn indexConn, cfg Config) *Storage {
	if cfg.TextKey == "" {
		cfg.TextKey = "text"
	}
	if cfg.SourceKey == "" {
		cfg.SourceKey = "source"
	}
	return &Storage{conn: conn, index: cfg.Index, textKey: cfg.TextKey, sourceKey: cfg.SourceKey}
}

func (s *Storage) Name() string { return "pinecone" }

// Init is a no-op: the index is provisioned outside the service.
func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.RetrievedChunk, error) {
	if topK <= 0 {
		return nil, nil
	}
	resp, err := s.conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vectorstore.Float32s(vector),
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("pinecone query %s: %w", s.index, err)
	}
	if resp == nil {
		return nil, nil
	}
	out := make([]domain.RetrievedChunk, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		rc := domain.RetrievedChunk{ID: m.Vector.Id, Score: float64(m.Score)}
		if m.Vector.Metadata != nil {
			md := m.Vector.Metadata.GetFields()
			if f, ok := md[s.textKey]; ok {
				rc.Text = f.GetStringValue()
			}
			if f, ok := md[s.sourceKey]; ok {
				rc.Source = f.GetStringValue()
			}
		}
		out = append(out, rc)
	}
	return out, nil
}

// Upsert writes chunks with the same metadata layout the search reads.
func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	recs := make([]*pinecone.Vector, len(chunks))
	for i, c := range chunks {
		md, err := structpb.NewStruct(map[string]any{
			s.textKey:   c.Text,
			s.sourceKey: c.Source,
		})
		if err != nil {
			return err
		}
		values := vectorstore.Float32s(vectors[i])
		recs[i] = &pinecone.Vector{Id: c.ChunkID, Values: &values, Metadata: md}
	}
	if _, err := s.conn.UpsertVectors(ctx, recs); err != nil {
		return fmt.Errorf("pinecone upsert %s: %w", s.index, err)
	}
	return nil
}

func (s *Storage) Close(context.Context) error { return s.conn.Close() }
