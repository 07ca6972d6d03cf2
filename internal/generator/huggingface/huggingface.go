package huggingface

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"medbot/internal/domain"
	"medbot/internal/httpx"
)

// Client calls a text2text-generation model (flan-t5 by default) on the
// Hugging Face inference API.
type Client struct {
	http   *httpx.Client
	url    string
	apiKey string
	model  string
}

type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
}

func NewClient(cfg Config, hc *httpx.Client) (*Client, error) {
	if cfg.Model == "" {
		return nil, errors.New("huggingface generator: model is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://router.huggingface.co/hf-inference"
	}
	return &Client{
		http:   hc,
		url:    fmt.Sprintf("%s/models/%s", strings.TrimRight(cfg.BaseURL, "/"), cfg.Model),
		apiKey: os.Getenv(cfg.APIKeyEnv),
		model:  cfg.Model,
	}, nil
}

func (c *Client) Name() string { return "huggingface" }

// Generate sends the system and user turns as one seq2seq prompt.
func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest) (domain.Completion, error) {
	params := map[string]any{
		"max_new_tokens":   req.Params.MaxTokens,
		"do_sample":        req.Params.Sample,
		"return_full_text": false,
	}
	if req.Params.RepetitionPenalty > 0 {
		params["repetition_penalty"] = req.Params.RepetitionPenalty
	}
	if req.Params.NoRepeatNgramSize > 0 {
		params["no_repeat_ngram_size"] = req.Params.NoRepeatNgramSize
	}
	// The endpoint rejects temperature 0; greedy decoding is do_sample=false.
	if req.Params.Sample && req.Params.Temperature > 0 {
		params["temperature"] = req.Params.Temperature
	}
	body := map[string]any{
		"inputs":     Prompt(req),
		"parameters": params,
		"options":    map[string]any{"wait_for_model": true},
	}
	payload, err := c.http.PostJSON(ctx, c.url, httpx.Bearer(c.apiKey), body)
	if err != nil {
		return domain.Completion{}, err
	}
	root := gjson.ParseBytes(payload)
	if err := httpx.ModelError("huggingface "+c.model, root); err != nil {
		return domain.Completion{}, err
	}
	text := root.Get("0.generated_text")
	if !text.Exists() {
		text = root.Get("generated_text")
	}
	return domain.Completion{Text: text.String(), Model: c.model}, nil
}

// Prompt flattens a request the way a chat template renders for a
// non-chat model.
func Prompt(req domain.GenerationRequest) string {
	return "System: " + req.System + "\nHuman: " + req.User
}
