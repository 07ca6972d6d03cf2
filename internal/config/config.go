package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr               string `yaml:"addr"`
	ReadTimeoutSecs    int    `yaml:"read_timeout_secs"`
	WriteTimeoutSecs   int    `yaml:"write_timeout_secs"`
	RequestTimeoutSecs int    `yaml:"request_timeout_secs"`
	ShutdownSecs       int    `yaml:"shutdown_secs"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// RewriteRuleConfig is one entry of the ordered rewrite table.
type RewriteRuleConfig struct {
	Name     string   `yaml:"name"`
	Terms    []string `yaml:"terms"`
	Template string   `yaml:"template"`
}

// QueryConfig holds the lookup tables used before retrieval.
type QueryConfig struct {
	Corrections    map[string]string   `yaml:"corrections,omitempty"`
	Greetings      []string            `yaml:"greetings,omitempty"`
	VaguePronouns  []string            `yaml:"vague_pronouns,omitempty"`
	VagueMaxTokens int                 `yaml:"vague_max_tokens"`
	RewriteRules   []RewriteRuleConfig `yaml:"rewrite_rules,omitempty"`
}

// RetrievalConfig configures the similarity search.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// PromptConfig configures prompt assembly and the context window policy.
type PromptConfig struct {
	System           string `yaml:"system,omitempty"`
	MaxContextTokens int    `yaml:"max_context_tokens"`
	Tokenizer        string `yaml:"tokenizer"` // tiktoken or words
	Encoding         string `yaml:"encoding"`
}

// HuggingFaceConfig holds connection details for the Hugging Face inference API.
type HuggingFaceConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// OpenAIConfig holds connection details for an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// AnthropicConfig holds connection details for the Anthropic Messages API.
type AnthropicConfig struct {
	BaseURL     string `yaml:"base_url,omitempty"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the query embedder.
type EmbedderConfig struct {
	Type        string             `yaml:"type"`
	HuggingFace *HuggingFaceConfig `yaml:"huggingface,omitempty"`
	OpenAI      *OpenAIConfig      `yaml:"openai,omitempty"`
}

// PineconeConfig contains connection details for a Pinecone index.
type PineconeConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Index     string `yaml:"index"`
	Host      string `yaml:"host,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
	TextKey   string `yaml:"text_key"`
	SourceKey string `yaml:"source_key"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// MilvusConfig contains connection details for a Milvus collection.
type MilvusConfig struct {
	Address     string `yaml:"address"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	VectorField string `yaml:"vector_field"`
	TextField   string `yaml:"text_field"`
	SourceField string `yaml:"source_field"`
}

// MemoryConfig configures the in-process store. The store is filled at
// startup by running the document loader over DataDir.
type MemoryConfig struct {
	DataDir      string `yaml:"data_dir"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
}

// VectorStoreConfig selects and configures the vector index.
type VectorStoreConfig struct {
	Type     string          `yaml:"type"`
	Pinecone *PineconeConfig `yaml:"pinecone,omitempty"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	Milvus   *MilvusConfig   `yaml:"milvus,omitempty"`
	Memory   *MemoryConfig   `yaml:"memory,omitempty"`
}

// GeneratorConfig selects the generation model and its decoding parameters.
type GeneratorConfig struct {
	Type              string             `yaml:"type"`
	MaxTokens         int                `yaml:"max_tokens"`
	Temperature       float64            `yaml:"temperature"`
	RepetitionPenalty float64            `yaml:"repetition_penalty"`
	NoRepeatNgramSize int                `yaml:"no_repeat_ngram_size"`
	HuggingFace       *HuggingFaceConfig `yaml:"huggingface,omitempty"`
	OpenAI            *OpenAIConfig      `yaml:"openai,omitempty"`
	Anthropic         *AnthropicConfig   `yaml:"anthropic,omitempty"`
	MaxSentences      int                `yaml:"max_sentences"`
}

// ResilienceConfig bounds every call to the index and the model.
// Retries is a pointer so that an explicit 0 turns retrying off.
type ResilienceConfig struct {
	TimeoutSecs  int  `yaml:"timeout_secs"`
	Retries      *int `yaml:"retries"`
	BackoffMinMs int  `yaml:"backoff_min_ms"`
	BackoffMaxMs int  `yaml:"backoff_max_ms"`
}

// RetryCount is Retries, or zero when unset.
func (r ResilienceConfig) RetryCount() int {
	if r.Retries == nil {
		return 0
	}
	return *r.Retries
}

// CacheConfig configures the answer cache. Size 0 disables it; an
// explicit ttl_secs of 0 keeps entries until they are evicted by size.
type CacheConfig struct {
	Size    int  `yaml:"size"`
	TTLSecs *int `yaml:"ttl_secs"`
}

// TTL is the entry lifetime, zero meaning no expiry.
func (c CacheConfig) TTL() time.Duration {
	if c.TTLSecs == nil {
		return 0
	}
	return time.Duration(*c.TTLSecs) * time.Second
}

// IngestConfig configures the offline document loader.
type IngestConfig struct {
	DataDir      string `yaml:"data_dir"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	BatchSize    int    `yaml:"batch_size"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Query       QueryConfig       `yaml:"query"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Prompt      PromptConfig      `yaml:"prompt"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Resilience  ResilienceConfig  `yaml:"resilience"`
	Cache       CacheConfig       `yaml:"cache"`
	Ingest      IngestConfig      `yaml:"ingest"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML and fills every field left empty with its default.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/medbot/config.yaml.
// If neither exists, it writes defaults to ~/.config/medbot/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "medbot", "config.yaml"), nil
}

// Default returns the configuration the service runs with when no file is given.
func Default() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "huggingface"},
		VectorStore: VectorStoreConfig{Type: "pinecone"},
		Generator:   GeneratorConfig{Type: "huggingface"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "127.0.0.1:5000"
	}
	if cfg.Server.ReadTimeoutSecs == 0 {
		cfg.Server.ReadTimeoutSecs = 10
	}
	if cfg.Server.RequestTimeoutSecs == 0 {
		cfg.Server.RequestTimeoutSecs = 60
	}
	if cfg.Server.WriteTimeoutSecs == 0 {
		cfg.Server.WriteTimeoutSecs = cfg.Server.RequestTimeoutSecs + 5
	}
	if cfg.Server.ShutdownSecs == 0 {
		cfg.Server.ShutdownSecs = 10
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Query.VagueMaxTokens == 0 {
		cfg.Query.VagueMaxTokens = 6
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Prompt.MaxContextTokens == 0 {
		cfg.Prompt.MaxContextTokens = 1500
	}
	if cfg.Prompt.Tokenizer == "" {
		cfg.Prompt.Tokenizer = "tiktoken"
	}
	if cfg.Prompt.Encoding == "" {
		cfg.Prompt.Encoding = "cl100k_base"
	}
	applyEmbedderDefaults(&cfg.Embedder)
	applyVectorStoreDefaults(&cfg.VectorStore)
	applyGeneratorDefaults(&cfg.Generator)
	if cfg.Resilience.TimeoutSecs == 0 {
		cfg.Resilience.TimeoutSecs = 30
	}
	if cfg.Resilience.Retries == nil {
		cfg.Resilience.Retries = intPtr(2)
	}
	if cfg.Resilience.BackoffMinMs == 0 {
		cfg.Resilience.BackoffMinMs = 200
	}
	if cfg.Resilience.BackoffMaxMs == 0 {
		cfg.Resilience.BackoffMaxMs = 5000
	}
	if cfg.Cache.TTLSecs == nil {
		cfg.Cache.TTLSecs = intPtr(600)
	}
	if cfg.Ingest.DataDir == "" {
		cfg.Ingest.DataDir = "data"
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 500
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 20
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 64
	}
}

func applyEmbedderDefaults(e *EmbedderConfig) {
	if e.Type == "" {
		e.Type = "huggingface"
	}
	switch e.Type {
	case "huggingface":
		if e.HuggingFace == nil {
			e.HuggingFace = &HuggingFaceConfig{}
		}
		if e.HuggingFace.BaseURL == "" {
			e.HuggingFace.BaseURL = "https://router.huggingface.co/hf-inference"
		}
		if e.HuggingFace.APIKeyEnv == "" {
			e.HuggingFace.APIKeyEnv = "HF_API_TOKEN"
		}
		if e.HuggingFace.Model == "" {
			e.HuggingFace.Model = "sentence-transformers/all-MiniLM-L6-v2"
		}
		if e.HuggingFace.TimeoutSecs == 0 {
			e.HuggingFace.TimeoutSecs = 30
		}
	case "openai":
		if e.OpenAI == nil {
			e.OpenAI = &OpenAIConfig{}
		}
		applyOpenAIDefaults(e.OpenAI, "text-embedding-3-small")
	}
}

func applyOpenAIDefaults(o *OpenAIConfig, model string) {
	if o.BaseURL == "" {
		o.BaseURL = "https://api.openai.com/v1"
	}
	if o.APIKeyEnv == "" {
		o.APIKeyEnv = "OPENAI_API_KEY"
	}
	if o.Model == "" {
		o.Model = model
	}
	if o.TimeoutSecs == 0 {
		o.TimeoutSecs = 30
	}
}

func applyVectorStoreDefaults(v *VectorStoreConfig) {
	if v.Type == "" {
		v.Type = "pinecone"
	}
	switch v.Type {
	case "pinecone":
		if v.Pinecone == nil {
			v.Pinecone = &PineconeConfig{}
		}
		if v.Pinecone.APIKeyEnv == "" {
			v.Pinecone.APIKeyEnv = "PINECONE_API_KEY"
		}
		if v.Pinecone.Index == "" {
			v.Pinecone.Index = "medical-chatbot"
		}
		if v.Pinecone.TextKey == "" {
			v.Pinecone.TextKey = "text"
		}
		if v.Pinecone.SourceKey == "" {
			v.Pinecone.SourceKey = "source"
		}
	case "qdrant":
		if v.Qdrant == nil {
			v.Qdrant = &QdrantConfig{}
		}
		if v.Qdrant.URL == "" {
			v.Qdrant.URL = "http://localhost:6333"
		}
		if v.Qdrant.Collection == "" {
			v.Qdrant.Collection = "medical-chatbot"
		}
		if v.Qdrant.TimeoutSecs == 0 {
			v.Qdrant.TimeoutSecs = 15
		}
	case "milvus":
		if v.Milvus == nil {
			v.Milvus = &MilvusConfig{}
		}
		if v.Milvus.Address == "" {
			v.Milvus.Address = "localhost:19530"
		}
		if v.Milvus.Collection == "" {
			v.Milvus.Collection = "medical_chatbot"
		}
		if v.Milvus.VectorField == "" {
			v.Milvus.VectorField = "vector"
		}
		if v.Milvus.TextField == "" {
			v.Milvus.TextField = "text"
		}
		if v.Milvus.SourceField == "" {
			v.Milvus.SourceField = "source"
		}
	case "memory":
		if v.Memory == nil {
			v.Memory = &MemoryConfig{}
		}
		if v.Memory.DataDir == "" {
			v.Memory.DataDir = "data"
		}
		if v.Memory.ChunkSize == 0 {
			v.Memory.ChunkSize = 500
		}
		if v.Memory.ChunkOverlap == 0 {
			v.Memory.ChunkOverlap = 20
		}
	}
}

func applyGeneratorDefaults(g *GeneratorConfig) {
	if g.Type == "" {
		g.Type = "huggingface"
	}
	if g.MaxTokens == 0 {
		g.MaxTokens = 256
	}
	if g.RepetitionPenalty == 0 {
		g.RepetitionPenalty = 1.2
	}
	if g.NoRepeatNgramSize == 0 {
		g.NoRepeatNgramSize = 3
	}
	if g.MaxSentences == 0 {
		g.MaxSentences = 3
	}
	switch g.Type {
	case "huggingface":
		if g.HuggingFace == nil {
			g.HuggingFace = &HuggingFaceConfig{}
		}
		if g.HuggingFace.BaseURL == "" {
			g.HuggingFace.BaseURL = "https://router.huggingface.co/hf-inference"
		}
		if g.HuggingFace.APIKeyEnv == "" {
			g.HuggingFace.APIKeyEnv = "HF_API_TOKEN"
		}
		if g.HuggingFace.Model == "" {
			g.HuggingFace.Model = "google/flan-t5-small"
		}
		if g.HuggingFace.TimeoutSecs == 0 {
			g.HuggingFace.TimeoutSecs = 60
		}
	case "openai":
		if g.OpenAI == nil {
			g.OpenAI = &OpenAIConfig{}
		}
		applyOpenAIDefaults(g.OpenAI, "gpt-4o-mini")
	case "anthropic":
		if g.Anthropic == nil {
			g.Anthropic = &AnthropicConfig{}
		}
		if g.Anthropic.APIKeyEnv == "" {
			g.Anthropic.APIKeyEnv = "ANTHROPIC_API_KEY"
		}
		if g.Anthropic.Model == "" {
			g.Anthropic.Model = "claude-3-5-haiku-latest"
		}
		if g.Anthropic.TimeoutSecs == 0 {
			g.Anthropic.TimeoutSecs = 60
		}
	}
}

// Validate reports every problem in cfg at once. A vector index that needs an
// API key must have it present in the environment, so a missing secret
// stops the process before it accepts requests.
func (cfg *AppConfig) Validate() error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	if cfg.Retrieval.TopK <= 0 {
		add("retrieval.top_k must be positive")
	}
	if cfg.Query.VagueMaxTokens < 0 {
		add("query.vague_max_tokens must not be negative")
	}
	if cfg.Prompt.MaxContextTokens < 0 {
		add("prompt.max_context_tokens must not be negative")
	}
	switch cfg.Prompt.Tokenizer {
	case "tiktoken", "words":
	default:
		add("unknown prompt tokenizer: %s", cfg.Prompt.Tokenizer)
	}
	for i, r := range cfg.Query.RewriteRules {
		if len(r.Terms) == 0 {
			add("query.rewrite_rules[%d] has no terms", i)
		}
		if strings.TrimSpace(r.Template) == "" {
			add("query.rewrite_rules[%d] has an empty template", i)
		}
	}

	switch cfg.Embedder.Type {
	case "huggingface", "openai", "tfidf":
	default:
		add("unknown embedder: %s", cfg.Embedder.Type)
	}

	switch cfg.VectorStore.Type {
	case "pinecone":
		p := cfg.VectorStore.Pinecone
		if p == nil {
			add("pinecone config missing")
			break
		}
		requireEnv(add, "vector_store.pinecone.api_key_env", p.APIKeyEnv)
		if p.Index == "" && p.Host == "" {
			add("vector_store.pinecone needs index or host")
		}
	case "qdrant":
		if q := cfg.VectorStore.Qdrant; q == nil {
			add("qdrant config missing")
		} else if q.APIKeyEnv != "" {
			requireEnv(add, "vector_store.qdrant.api_key_env", q.APIKeyEnv)
		}
	case "milvus":
		if m := cfg.VectorStore.Milvus; m == nil {
			add("milvus config missing")
		} else if m.APIKeyEnv != "" {
			requireEnv(add, "vector_store.milvus.api_key_env", m.APIKeyEnv)
		}
	case "memory":
		if cfg.VectorStore.Memory == nil {
			add("memory config missing")
		}
	default:
		add("unknown vector store: %s", cfg.VectorStore.Type)
	}
	if cfg.Embedder.Type == "tfidf" && cfg.VectorStore.Type != "memory" {
		add("tfidf embedder only works with the memory vector store")
	}

	switch cfg.Generator.Type {
	case "huggingface", "openai", "anthropic", "extractive":
	default:
		add("unknown generator: %s", cfg.Generator.Type)
	}
	if cfg.Generator.MaxTokens <= 0 {
		add("generator.max_tokens must be positive")
	}
	if cfg.Resilience.RetryCount() < 0 {
		add("resilience.retries must not be negative")
	}
	if cfg.Resilience.TimeoutSecs < 0 {
		add("resilience.timeout_secs must not be negative")
	}
	if cfg.Resilience.BackoffMinMs < 0 {
		add("resilience.backoff_min_ms must not be negative")
	}
	if cfg.Resilience.BackoffMaxMs < 0 {
		add("resilience.backoff_max_ms must not be negative")
	}
	if cfg.Cache.Size < 0 {
		add("cache.size must not be negative")
	}
	if cfg.Cache.TTLSecs != nil && *cfg.Cache.TTLSecs < 0 {
		add("cache.ttl_secs must not be negative")
	}
	if cfg.Resilience.BackoffMaxMs < cfg.Resilience.BackoffMinMs {
		add("resilience.backoff_max_ms must be >= backoff_min_ms")
	}
	return result.ErrorOrNil()
}

func intPtr(n int) *int { return &n }

func requireEnv(add func(string, ...any), field, name string) {
	if name == "" {
		add("%s is empty", field)
		return
	}
	if os.Getenv(name) == "" {
		add("missing API key in env %s (%s)", name, field)
	}
}
