package huggingface

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/atomic"

	"medbot/internal/httpx"
)

// Client embeds text with a sentence-transformers model served by the
// Hugging Face feature-extraction pipeline.
type Client struct {
	http      *httpx.Client
	url       string
	apiKey    string
	model     string
	dimension atomic.Int64
}

// Config configures the feature-extraction client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
}

// NewClient creates a new embeddings client. The token is optional for
// self-hosted endpoints.
func NewClient(cfg Config, hc *httpx.Client) (*Client, error) {
	if cfg.Model == "" {
		return nil, errors.New("huggingface embedder: model is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://router.huggingface.co/hf-inference"
	}
	return &Client{
		http:   hc,
		url:    fmt.Sprintf("%s/models/%s/pipeline/feature-extraction", strings.TrimRight(cfg.BaseURL, "/"), cfg.Model),
		apiKey: os.Getenv(cfg.APIKeyEnv),
		model:  cfg.Model,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "huggingface" }

// Dimension is known after the first successful Embed.
func (c *Client) Dimension() int { return int(c.dimension.Load()) }

// Embed returns the sentence embedding for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	body := map[string]any{
		"inputs":  text,
		"options": map[string]any{"wait_for_model": true},
	}
	payload, err := c.http.PostJSON(ctx, c.url, httpx.Bearer(c.apiKey), body)
	if err != nil {
		return nil, err
	}
	v, err := parseEmbedding(payload)
	if err != nil {
		return nil, fmt.Errorf("huggingface %s: %w", c.model, err)
	}
	c.dimension.CompareAndSwap(0, int64(len(v)))
	return v, nil
}

// parseEmbedding accepts a pooled vector [f, ...], a batch of one
// [[f, ...]], or token embeddings [[f, ...], ...] which are mean-pooled.
func parseEmbedding(payload []byte) ([]float64, error) {
	root := gjson.ParseBytes(payload)
	if err := httpx.ModelError("inference error", root); err != nil {
		return nil, err
	}
	if !root.IsArray() {
		return nil, errors.New("unexpected response shape")
	}
	rows := root.Array()
	if len(rows) == 0 {
		return nil, errors.New("empty embedding")
	}
	if !rows[0].IsArray() {
		return toFloats(rows), nil
	}
	// Unwrap a batch of one that holds token rows.
	if len(rows) == 1 && rows[0].Array()[0].IsArray() {
		rows = rows[0].Array()
	}
	if len(rows) == 1 {
		return toFloats(rows[0].Array()), nil
	}
	var mean []float64
	for _, row := range rows {
		vals := toFloats(row.Array())
		if mean == nil {
			mean = make([]float64, len(vals))
		}
		if len(vals) != len(mean) {
			return nil, errors.New("ragged token embeddings")
		}
		for i, v := range vals {
			mean[i] += v
		}
	}
	for i := range mean {
		mean[i] /= float64(len(rows))
	}
	return mean, nil
}

func toFloats(vals []gjson.Result) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = v.Float()
	}
	return out
}
