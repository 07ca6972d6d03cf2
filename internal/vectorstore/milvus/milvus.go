package milvus

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"medbot/internal/domain"
	"medbot/internal/vectorstore"
)

const idField = "id"

type Config struct {
	Address     string
	APIKeyEnv   string
	Collection  string
	VectorField string
	TextField   string
	SourceField string
}

// backend is the slice of the Milvus client the store drives.
type backend interface {
	search(ctx context.Context, vector []float32, topK int) ([]client.SearchResult, error)
	ensure(ctx context.Context, dim int) error
	upsert(ctx context.Context, cols ...entity.Column) error
	close() error
}

// Storage searches a Milvus collection with cosine similarity.
type Storage struct {
	db  backend
	cfg Config
}

// Open connects to Milvus.
func Open(ctx context.Context, cfg Config) (*Storage, error) {
	c, err := client.NewClient(ctx, client.Config{
		Address: cfg.Address,
		APIKey:  os.Getenv(cfg.APIKeyEnv),
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus %s: %w", cfg.Address, err)
	}
	return &Storage{db: &sdkBackend{c: c, cfg: cfg}, cfg: cfg}, nil
}

func (s *Storage) Name() string { return "milvus" }

func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	return s.db.ensure(ctx, dimension)
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.RetrievedChunk, error) {
	if topK <= 0 {
		return nil, nil
	}
	results, err := s.db.search(ctx, vectorstore.Float32s(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("milvus search %s: %w", s.cfg.Collection, err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return s.toChunks(results[0])
}

func (s *Storage) toChunks(r client.SearchResult) ([]domain.RetrievedChunk, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	text := r.Fields.GetColumn(s.cfg.TextField)
	if text == nil {
		return nil, fmt.Errorf("milvus result has no %q field", s.cfg.TextField)
	}
	source := r.Fields.GetColumn(s.cfg.SourceField)
	out := make([]domain.RetrievedChunk, 0, r.ResultCount)
	for i := 0; i < r.ResultCount; i++ {
		rc := domain.RetrievedChunk{}
		if r.IDs != nil {
			rc.ID, _ = r.IDs.GetAsString(i)
		}
		if i < len(r.Scores) {
			rc.Score = float64(r.Scores[i])
		}
		var err error
		if rc.Text, err = text.GetAsString(i); err != nil {
			return nil, err
		}
		if source != nil {
			rc.Source, _ = source.GetAsString(i)
		}
		out = append(out, rc)
	}
	return out, nil
}

func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	if len(chunks) == 0 {
		return nil
	}
	ids := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	sources := make([]string, len(chunks))
	vecs := make([][]float32, len(chunks))
	for i, c := range chunks {
		ids[i], texts[i], sources[i] = c.ChunkID, c.Text, c.Source
		vecs[i] = vectorstore.Float32s(vectors[i])
	}
	return s.db.upsert(ctx,
		entity.NewColumnVarChar(idField, ids),
		entity.NewColumnVarChar(s.cfg.TextField, texts),
		entity.NewColumnVarChar(s.cfg.SourceField, sources),
		entity.NewColumnFloatVector(s.cfg.VectorField, len(vecs[0]), vecs),
	)
}

func (s *Storage) Close(context.Context) error { return s.db.close() }

// Schema describes the collection the loader creates.
func Schema(cfg Config, dim int) *entity.Schema {
	return entity.NewSchema().
		WithName(cfg.Collection).
		WithDescription("medical document chunks").
		WithField(entity.NewField().WithName(idField).WithDataType(entity.FieldTypeVarChar).WithIsPrimaryKey(true).WithMaxLength(256)).
		WithField(entity.NewField().WithName(cfg.TextField).WithDataType(entity.FieldTypeVarChar).WithMaxLength(8192)).
		WithField(entity.NewField().WithName(cfg.SourceField).WithDataType(entity.FieldTypeVarChar).WithMaxLength(1024)).
		WithField(entity.NewField().WithName(cfg.VectorField).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(dim)))
}

type sdkBackend struct {
	c   client.Client
	cfg Config
}

func (b *sdkBackend) search(ctx context.Context, vector []float32, topK int) ([]client.SearchResult, error) {
	sp, err := entity.NewIndexAUTOINDEXSearchParam(1)
	if err != nil {
		return nil, err
	}
	return b.c.Search(ctx, b.cfg.Collection, nil, "",
		[]string{b.cfg.TextField, b.cfg.SourceField},
		[]entity.Vector{entity.FloatVector(vector)},
		b.cfg.VectorField, entity.COSINE, topK, sp)
}

func (b *sdkBackend) ensure(ctx context.Context, dim int) error {
	ok, err := b.c.HasCollection(ctx, b.cfg.Collection)
	if err != nil {
		return err
	}
	if !ok {
		if err := b.c.CreateCollection(ctx, Schema(b.cfg, dim), 1); err != nil {
			return fmt.Errorf("create collection %s: %w", b.cfg.Collection, err)
		}
		idx, err := entity.NewIndexAUTOINDEX(entity.COSINE)
		if err != nil {
			return err
		}
		if err := b.c.CreateIndex(ctx, b.cfg.Collection, b.cfg.VectorField, idx, false); err != nil {
			return fmt.Errorf("create index on %s: %w", b.cfg.VectorField, err)
		}
	}
	return b.c.LoadCollection(ctx, b.cfg.Collection, false)
}

func (b *sdkBackend) upsert(ctx context.Context, cols ...entity.Column) error {
	_, err := b.c.Upsert(ctx, b.cfg.Collection, "", cols...)
	return err
}

func (b *sdkBackend) close() error { return b.c.Close() }
