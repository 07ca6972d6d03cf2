package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"medbot/internal/domain"
	"medbot/internal/httpx"
)

// Storage is a minimal REST client to Qdrant.
// It assumes cosine distance and creates the collection if missing.
type Storage struct {
	url        string
	collection string
	header     http.Header
	http       *httpx.Client
}

type Config struct {
	URL        string
	APIKeyEnv  string
	Collection string
}

func NewStorage(cfg Config, hc *httpx.Client) *Storage {
	h := http.Header{}
	if key := os.Getenv(cfg.APIKeyEnv); cfg.APIKeyEnv != "" && key != "" {
		h.Set("api-key", key)
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		collection: cfg.Collection,
		header:     h,
		http:       hc,
	}
}

func (s *Storage) Name() string { return "qdrant" }

// Init creates the collection unless it already exists.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	_, err := s.http.Send(ctx, http.MethodGet, s.collectionURL(""), s.header, nil)
	if err == nil {
		return nil
	}
	var se *httpx.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		return err
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	_, err = s.http.Send(ctx, http.MethodPut, s.collectionURL(""), s.header, body)
	return err
}

// Upsert writes points keyed by a UUID derived from the chunk ID, so
// re-running the loader overwrites instead of duplicating.
func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	points := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		points[i] = map[string]any{
			"id":     PointID(c.ChunkID),
			"vector": vectors[i],
			"payload": map[string]any{
				"document_id": c.DocumentID,
				"chunk_id":    c.ChunkID,
				"index":       c.Index,
				"source":      c.Source,
				"text":        c.Text,
			},
		}
	}
	_, err := s.http.Send(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), s.header, map[string]any{"points": points})
	return err
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.RetrievedChunk, error) {
	if topK <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	payload, err := s.http.PostJSON(ctx, s.collectionURL("/points/search"), s.header, req)
	if err != nil {
		return nil, err
	}
	hits := gjson.GetBytes(payload, "result").Array()
	results := make([]domain.RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		id := h.Get("payload.chunk_id").String()
		if id == "" {
			id = h.Get("id").String()
		}
		results = append(results, domain.RetrievedChunk{
			ID:     id,
			Text:   h.Get("payload.text").String(),
			Source: h.Get("payload.source").String(),
			Score:  h.Get("score").Float(),
		})
	}
	return results, nil
}

func (s *Storage) Close(context.Context) error { return nil }

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

// PointID maps a chunk ID onto the UUID space Qdrant accepts.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}
