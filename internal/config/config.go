package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PathsConfig locates the artifacts of the build pipeline.
type PathsConfig struct {
	PDF    string `yaml:"pdf"`
	Text   string `yaml:"text"`
	Chunks string `yaml:"chunks"`
	Index  string `yaml:"index"`
}

// OpenAIConfig configures an OpenAI-compatible endpoint. APIKey wins over
// APIKeyEnv; the env variable is read once by Load.
type OpenAIConfig struct {
	BaseURL         string `yaml:"base_url,omitempty"`
	APIKey          string `yaml:"api_key,omitempty"`
	APIKeyEnv       string `yaml:"api_key_env"`
	Model           string `yaml:"model"`
	TimeoutSecs     int    `yaml:"timeout_secs"`
	MaxRetries      int    `yaml:"max_retries,omitempty"`
	MaxOutputTokens int    `yaml:"max_output_tokens,omitempty"`
}

// GeminiConfig configures the Google Generative AI client.
type GeminiConfig struct {
	APIKey            string  `yaml:"api_key,omitempty"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	MaxOutputTokens   int     `yaml:"max_output_tokens,omitempty"`
	Temperature       float32 `yaml:"temperature,omitempty"`
	RequestsPerMinute int     `yaml:"requests_per_minute,omitempty"`
}

// HashingConfig configures the offline embedder.
type HashingConfig struct {
	Dimension int `yaml:"dimension"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string        `yaml:"type"`
	BatchSize int           `yaml:"batch_size"`
	Hashing   HashingConfig `yaml:"hashing"`
	OpenAI    *OpenAIConfig `yaml:"openai,omitempty"`
	Gemini    *GeminiConfig `yaml:"gemini,omitempty"`
}

// ExtractiveConfig configures the offline generator.
type ExtractiveConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// GeneratorConfig selects and configures the answer generator.
type GeneratorConfig struct {
	Type       string           `yaml:"type"`
	Extractive ExtractiveConfig `yaml:"extractive"`
	OpenAI     *OpenAIConfig    `yaml:"openai,omitempty"`
	Gemini     *GeminiConfig    `yaml:"gemini,omitempty"`
}

// VectorStoreConfig selects where queries are served from.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for the Qdrant mirror.
type QdrantConfig struct {
	Addr       string `yaml:"addr"`
	APIKey     string `yaml:"api_key,omitempty"`
	APIKeyEnv  string `yaml:"api_key_env,omitempty"`
	Collection string `yaml:"collection"`
	BatchSize  int    `yaml:"batch_size,omitempty"`
}

// SearchConfig sets retrieval depth.
type SearchConfig struct {
	ChatTopK int `yaml:"chat_top_k"`
	EvalTopK int `yaml:"eval_top_k"`
}

// AnswersConfig overrides the fixed answer texts and the evaluation set.
type AnswersConfig struct {
	NoAnswerEN    string `yaml:"no_answer_en,omitempty"`
	NoAnswerSV    string `yaml:"no_answer_sv,omitempty"`
	QuotaAdvisory string `yaml:"quota_advisory,omitempty"`
	QuestionsFile string `yaml:"questions_file,omitempty"`
	Language      string `yaml:"language"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Paths       PathsConfig       `yaml:"paths"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Generator   GeneratorConfig   `yaml:"generator"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Search      SearchConfig      `yaml:"search"`
	Answers     AnswersConfig     `yaml:"answers"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			resolveKeys(cfg)
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	resolveKeys(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/manualrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/manualrag/config.yaml and returns them.
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
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	resolveKeys(cfg)
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

// Validate rejects unknown component types.
func (c *AppConfig) Validate() error {
	switch c.Embedder.Type {
	case "hashing", "openai", "gemini":
	default:
		return fmt.Errorf("unknown embedder: %q", c.Embedder.Type)
	}
	switch c.Generator.Type {
	case "extractive", "openai", "gemini":
	default:
		return fmt.Errorf("unknown generator: %q", c.Generator.Type)
	}
	switch c.VectorStore.Type {
	case "memory", "qdrant":
	default:
		return fmt.Errorf("unknown vector store: %q", c.VectorStore.Type)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format: %q", c.Log.Format)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "manualrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Paths.PDF == "" {
		cfg.Paths.PDF = filepath.Join("data", "Ableton_12_manual.pdf")
	}
	if cfg.Paths.Text == "" {
		cfg.Paths.Text = filepath.Join("data", "full_manual_text.txt")
	}
	if cfg.Paths.Chunks == "" {
		cfg.Paths.Chunks = filepath.Join("data", "chunks.jsonl")
	}
	if cfg.Paths.Index == "" {
		cfg.Paths.Index = filepath.Join("index", "embeddings.parquet")
	}

	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hashing"
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 100
	}
	if cfg.Embedder.Hashing.Dimension == 0 {
		cfg.Embedder.Hashing.Dimension = 384
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI == nil {
		cfg.Embedder.OpenAI = &OpenAIConfig{}
	}
	if cfg.Embedder.OpenAI != nil {
		applyOpenAIDefaults(cfg.Embedder.OpenAI, "text-embedding-3-small")
	}
	if cfg.Embedder.Type == "gemini" && cfg.Embedder.Gemini == nil {
		cfg.Embedder.Gemini = &GeminiConfig{}
	}
	if cfg.Embedder.Gemini != nil {
		applyGeminiDefaults(cfg.Embedder.Gemini, "text-embedding-004")
	}

	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "gemini"
	}
	if cfg.Generator.Extractive.MaxSentences == 0 {
		cfg.Generator.Extractive.MaxSentences = 3
	}
	if cfg.Generator.Type == "openai" && cfg.Generator.OpenAI == nil {
		cfg.Generator.OpenAI = &OpenAIConfig{}
	}
	if cfg.Generator.OpenAI != nil {
		applyOpenAIDefaults(cfg.Generator.OpenAI, "gpt-4o-mini")
		if cfg.Generator.OpenAI.MaxOutputTokens == 0 {
			cfg.Generator.OpenAI.MaxOutputTokens = 1000
		}
	}
	if cfg.Generator.Type == "gemini" && cfg.Generator.Gemini == nil {
		cfg.Generator.Gemini = &GeminiConfig{}
	}
	if cfg.Generator.Gemini != nil {
		applyGeminiDefaults(cfg.Generator.Gemini, "gemini-2.0-flash")
		if cfg.Generator.Gemini.MaxOutputTokens == 0 {
			cfg.Generator.Gemini.MaxOutputTokens = 1000
		}
		if cfg.Generator.Gemini.RequestsPerMinute == 0 {
			cfg.Generator.Gemini.RequestsPerMinute = 10
		}
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.VectorStore.Type == "qdrant" && cfg.VectorStore.Qdrant == nil {
		cfg.VectorStore.Qdrant = &QdrantConfig{}
	}
	if q := cfg.VectorStore.Qdrant; q != nil {
		if q.Addr == "" {
			q.Addr = "localhost:6334"
		}
		if q.Collection == "" {
			q.Collection = "manual"
		}
	}

	if cfg.Search.ChatTopK == 0 {
		cfg.Search.ChatTopK = 5
	}
	if cfg.Search.EvalTopK == 0 {
		cfg.Search.EvalTopK = 15
	}
	if cfg.Answers.Language == "" {
		cfg.Answers.Language = "en"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func applyOpenAIDefaults(c *OpenAIConfig, model string) {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 30
	}
}

func applyGeminiDefaults(c *GeminiConfig, model string) {
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "GEMINI_API_KEY"
	}
	if c.Model == "" {
		c.Model = model
	}
}

// resolveKeys fills empty api_key fields from their env variables.
func resolveKeys(cfg *AppConfig) {
	for _, c := range []*OpenAIConfig{cfg.Embedder.OpenAI, cfg.Generator.OpenAI} {
		if c != nil && c.APIKey == "" && c.APIKeyEnv != "" {
			c.APIKey = os.Getenv(c.APIKeyEnv)
		}
	}
	for _, c := range []*GeminiConfig{cfg.Embedder.Gemini, cfg.Generator.Gemini} {
		if c != nil && c.APIKey == "" && c.APIKeyEnv != "" {
			c.APIKey = os.Getenv(c.APIKeyEnv)
		}
	}
	if q := cfg.VectorStore.Qdrant; q != nil && q.APIKey == "" && q.APIKeyEnv != "" {
		q.APIKey = os.Getenv(q.APIKeyEnv)
	}
}
