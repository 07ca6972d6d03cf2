package openai

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"medbot/internal/domain"
	embedopenai "medbot/internal/embedding/openai"
)

// Client generates answers with an OpenAI-compatible chat completions API.
type Client struct {
	api   openai.Client
	model string
}

type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &Client{api: openai.NewClient(opts...), model: cfg.Model}, nil
}

func (c *Client) Name() string { return "openai" }

// Generate maps the repetition penalty onto frequency_penalty, the
// closest chat-API control; n-gram blocking has no equivalent.
func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest) (domain.Completion, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Temperature: openai.Float(req.Params.Temperature),
	}
	if req.Params.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.Params.MaxTokens))
	}
	if rp := req.Params.RepetitionPenalty; rp > 1 {
		params.FrequencyPenalty = openai.Float(min(rp-1, 2))
	}
	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return domain.Completion{}, embedopenai.ClassifyError(err)
	}
	if len(resp.Choices) == 0 {
		return domain.Completion{Model: resp.Model}, nil
	}
	return domain.Completion{Text: resp.Choices[0].Message.Content, Model: resp.Model}, nil
}
