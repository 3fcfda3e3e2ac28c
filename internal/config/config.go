package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"nordbot/internal/domain"
)

// GeminiConfig holds connection settings for the Gemini REST API.
type GeminiConfig struct {
	BaseURL     string `yaml:"base_url" validate:"required,url"`
	APIKeyEnv   string `yaml:"api_key_env" validate:"required"`
	Model       string `yaml:"model" validate:"required"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"gte=0"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url" validate:"required,url"`
	APIKeyEnv   string `yaml:"api_key_env" validate:"required"`
	Model       string `yaml:"model" validate:"required"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"gte=0"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type" validate:"oneof=gemini openai"`
	Gemini *GeminiConfig         `yaml:"gemini,omitempty" validate:"required_if=Type gemini"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty" validate:"required_if=Type openai"`
}

// StageTemperatures sets the sampling temperature of each pipeline stage.
// Pointers distinguish an explicit 0.0 from an unset value.
type StageTemperatures struct {
	Answer    *float64 `yaml:"answer" validate:"omitempty,gte=0,lte=2"`
	Grounding *float64 `yaml:"grounding" validate:"omitempty,gte=0,lte=2"`
	RAG       *float64 `yaml:"rag" validate:"omitempty,gte=0,lte=2"`
	Synthesis *float64 `yaml:"synthesis" validate:"omitempty,gte=0,lte=2"`
}

// GenerationConfig configures the text generation model and its sampling.
type GenerationConfig struct {
	GeminiConfig    `yaml:",inline"`
	TopP            float64           `yaml:"top_p" validate:"gte=0,lte=1"`
	MaxOutputTokens int               `yaml:"max_output_tokens" validate:"gt=0"`
	CandidateCount  int               `yaml:"candidate_count" validate:"gte=1,lte=8"`
	Temperature     StageTemperatures `yaml:"temperature"`
}

// Stage returns the sampling parameters for a stage run at temperature t.
func (g GenerationConfig) Stage(t *float64) domain.GenerationConfig {
	cfg := domain.GenerationConfig{
		TopP:            g.TopP,
		MaxOutputTokens: g.MaxOutputTokens,
		CandidateCount:  g.CandidateCount,
	}
	if t != nil {
		cfg.Temperature = *t
	}
	return cfg
}

// VectorIndexConfig selects and configures the vector index implementation.
type VectorIndexConfig struct {
	Type     string          `yaml:"type" validate:"oneof=pinecone qdrant"`
	Pinecone *PineconeConfig `yaml:"pinecone,omitempty" validate:"required_if=Type pinecone"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty" validate:"required_if=Type qdrant"`
}

// PineconeConfig contains connection and bootstrap details for a Pinecone index.
type PineconeConfig struct {
	Index          string `yaml:"index" validate:"required"`
	APIKeyEnv      string `yaml:"api_key_env" validate:"required"`
	EnvironmentEnv string `yaml:"environment_env"`
	ControllerURL  string `yaml:"controller_url" validate:"required,url"`
	// Host skips the describe-index lookup when set.
	Host        string `yaml:"host,omitempty"`
	Dimension   int    `yaml:"dimension" validate:"gt=0"`
	Metric      string `yaml:"metric" validate:"oneof=cosine euclidean dotproduct"`
	Cloud       string `yaml:"cloud" validate:"required"`
	Region      string `yaml:"region" validate:"required"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"gte=0"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url" validate:"required,url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection" validate:"required"`
	Distance    string `yaml:"distance" validate:"oneof=Cosine Dot Euclid"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"gte=0"`
}

// PipelineConfig selects the answer pipeline variant.
type PipelineConfig struct {
	Variant string `yaml:"variant" validate:"oneof=single grounded"`
	TopK    int    `yaml:"top_k" validate:"gt=0,lte=100"`
}

// ChunkerConfig configures how documents are split into chunks on ingest.
type ChunkerConfig struct {
	Type              string `yaml:"type" validate:"oneof=sentence"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk" validate:"gt=0"`
	OverlapSentences  int    `yaml:"overlap_sentences" validate:"gte=0,ltfield=SentencesPerChunk"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
	// File receives log output in TUI mode, where stdout is taken.
	File string `yaml:"file"`
}

// ServerConfig configures the web surface.
type ServerConfig struct {
	Addr                  string `yaml:"addr" validate:"required"`
	ReadHeaderTimeoutSecs int    `yaml:"read_header_timeout_secs" validate:"gte=0"`
}

// SearchConfig names the web-search key. It is reported at startup only.
type SearchConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Generation  GenerationConfig  `yaml:"generation"`
	VectorIndex VectorIndexConfig `yaml:"vector_index"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Logging     LoggingConfig     `yaml:"logging"`
	Server      ServerConfig      `yaml:"server"`
	Search      SearchConfig      `yaml:"search"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return finish(defaultConfig())
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return finish(&cfg)
}

// LoadDefault tries ./config.yaml first, then ~/.config/nordbot/config.yaml.
// If neither exists, it writes defaults to ~/.config/nordbot/config.yaml and returns them.
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
	cfg, err = finish(cfg)
	return cfg, userPath, err
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

func finish(cfg *AppConfig) (*AppConfig, error) {
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "nordbot", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "gemini"},
		VectorIndex: VectorIndexConfig{Type: "pinecone"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func ptr(v float64) *float64 { return &v }

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "gemini"
	}
	switch cfg.Embedder.Type {
	case "gemini":
		if cfg.Embedder.Gemini == nil {
			cfg.Embedder.Gemini = &GeminiConfig{}
		}
		geminiDefaults(cfg.Embedder.Gemini, "models/embedding-001")
	case "openai":
		if cfg.Embedder.OpenAI != nil {
			o := cfg.Embedder.OpenAI
			if o.BaseURL == "" {
				o.BaseURL = "https://api.openai.com/v1"
			}
			if o.APIKeyEnv == "" {
				o.APIKeyEnv = "OPENAI_API_KEY"
			}
			if o.Model == "" {
				o.Model = "text-embedding-3-small"
			}
			if o.TimeoutSecs == 0 {
				o.TimeoutSecs = 30
			}
		}
	}

	g := &cfg.Generation
	geminiDefaults(&g.GeminiConfig, "gemini-2.0-flash-exp")
	if g.TopP == 0 {
		g.TopP = 0.7
	}
	if g.MaxOutputTokens == 0 {
		g.MaxOutputTokens = 1096
	}
	if g.CandidateCount == 0 {
		g.CandidateCount = 1
	}
	if g.Temperature.Answer == nil {
		g.Temperature.Answer = ptr(0.0)
	}
	if g.Temperature.Grounding == nil {
		g.Temperature.Grounding = ptr(0.7)
	}
	if g.Temperature.RAG == nil {
		g.Temperature.RAG = ptr(0.0)
	}
	if g.Temperature.Synthesis == nil {
		g.Temperature.Synthesis = ptr(0.4)
	}

	if cfg.VectorIndex.Type == "" {
		cfg.VectorIndex.Type = "pinecone"
	}
	if cfg.VectorIndex.Type == "pinecone" {
		if cfg.VectorIndex.Pinecone == nil {
			cfg.VectorIndex.Pinecone = &PineconeConfig{}
		}
		p := cfg.VectorIndex.Pinecone
		if p.Index == "" {
			p.Index = "nordbot"
		}
		if p.APIKeyEnv == "" {
			p.APIKeyEnv = "PINECONE_API_KEY"
		}
		if p.EnvironmentEnv == "" {
			p.EnvironmentEnv = "PINECONE_ENV"
		}
		if p.ControllerURL == "" {
			p.ControllerURL = "https://api.pinecone.io"
		}
		if p.Dimension == 0 {
			p.Dimension = 768
		}
		if p.Metric == "" {
			p.Metric = "cosine"
		}
		if p.Cloud == "" {
			p.Cloud = "aws"
		}
		if p.Region == "" {
			p.Region = "us-east-1"
		}
		if p.TimeoutSecs == 0 {
			p.TimeoutSecs = 15
		}
	}
	if q := cfg.VectorIndex.Qdrant; q != nil {
		if q.Distance == "" {
			q.Distance = "Cosine"
		}
		if q.TimeoutSecs == 0 {
			q.TimeoutSecs = 15
		}
	}

	if cfg.Pipeline.Variant == "" {
		cfg.Pipeline.Variant = "single"
	}
	if cfg.Pipeline.TopK == 0 {
		cfg.Pipeline.TopK = 5
	}
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "sentence"
	}
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
		if cfg.Chunker.OverlapSentences == 0 {
			cfg.Chunker.OverlapSentences = 1
		}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = "nordbot.log"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadHeaderTimeoutSecs == 0 {
		cfg.Server.ReadHeaderTimeoutSecs = 5
	}
	if cfg.Search.APIKeyEnv == "" {
		cfg.Search.APIKeyEnv = "SERPAPI_KEY"
	}
}

func geminiDefaults(g *GeminiConfig, model string) {
	if g.BaseURL == "" {
		g.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if g.APIKeyEnv == "" {
		g.APIKeyEnv = "GOOGLE_API_KEY"
	}
	if g.Model == "" {
		g.Model = model
	}
	if g.TimeoutSecs == 0 {
		g.TimeoutSecs = 60
	}
}

// applyEnvOverrides lets PINECONE_ENV (or the configured variable) pick the
// serverless region.
func applyEnvOverrides(cfg *AppConfig) {
	p := cfg.VectorIndex.Pinecone
	if p == nil || p.EnvironmentEnv == "" {
		return
	}
	if region := os.Getenv(p.EnvironmentEnv); region != "" {
		p.Region = region
	}
}
