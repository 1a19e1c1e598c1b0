package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/contractreview/internal/llm"
	"gopkg.in/yaml.v3"
)

// Model types accepted in AI_MODEL_TYPE.
const (
	ModelLocal    = "local"
	ModelCloud    = "cloud"
	ModelOpenAI   = "openai"
	ModelDeepSeek = "deepseek"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Model backend
	ModelType     string
	OllamaBaseURL string
	OllamaModel   string
	OpenAIAPIKey  string
	OpenAIAPIBase string
	OpenAIModel   string
	DeepSeekKey   string
	DeepSeekBase  string
	DeepSeekModel string

	LLMTimeout   time.Duration
	LLMMaxTokens int
	LLMRateLimit float64

	// Review stages
	ChecklistTemperature float64
	ReviewTemperature    float64
	MaxContractChars     int

	// Directories
	OutputDir string
	CacheDir  string
	TempDir   string

	HistoryMaxRecords   int
	DefaultExportFormat string

	// Worker pool
	MaxConcurrentReviews int
	MaxQueueSize         int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// PDF
	PDFFallbackPdftotext bool
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Port:                 "8090",
		ModelType:            ModelLocal,
		OllamaBaseURL:        "http://localhost:11434",
		OllamaModel:          "qwen2.5:7b",
		OpenAIAPIBase:        "https://api.openai.com/v1",
		OpenAIModel:          "gpt-4",
		DeepSeekBase:         "https://api.deepseek.com/v1",
		DeepSeekModel:        "deepseek-chat",
		LLMTimeout:           120 * time.Second,
		LLMMaxTokens:         4096,
		ChecklistTemperature: 0.3,
		ReviewTemperature:    0.5,
		MaxContractChars:     12000,
		OutputDir:            "./output",
		CacheDir:             "./cache",
		TempDir:              "./temp",
		HistoryMaxRecords:    100,
		DefaultExportFormat:  "word",
		MaxConcurrentReviews: 3,
		MaxQueueSize:         50,
		MaxUploadBytes:       52428800, // 50MB
		JobTTL:               1 * time.Hour,
		LogLevel:             "info",
		LogFormat:            "text",
		PDFFallbackPdftotext: true,
	}
}

// Load reads the configuration from the environment over the defaults.
func Load() Config {
	return fromEnv(Defaults())
}

// LoadFile layers a YAML file over the defaults and the environment over both.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", filepath.Base(path), err)
	}
	return fromEnv(fc.apply(Defaults())), nil
}

func fromEnv(base Config) Config {
	cfg := Config{
		Port: envOr("PORT", base.Port),

		APIKey: envOr("API_KEY", base.APIKey),

		ModelType:     strings.ToLower(envOr("AI_MODEL_TYPE", base.ModelType)),
		OllamaBaseURL: envOr("OLLAMA_BASE_URL", base.OllamaBaseURL),
		OllamaModel:   envOr("OLLAMA_MODEL", base.OllamaModel),
		OpenAIAPIKey:  envOr("OPENAI_API_KEY", base.OpenAIAPIKey),
		OpenAIAPIBase: envOr("OPENAI_API_BASE", base.OpenAIAPIBase),
		OpenAIModel:   envOr("OPENAI_MODEL", base.OpenAIModel),
		DeepSeekKey:   envOr("DEEPSEEK_API_KEY", base.DeepSeekKey),
		DeepSeekBase:  envOr("DEEPSEEK_API_BASE", base.DeepSeekBase),
		DeepSeekModel: envOr("DEEPSEEK_MODEL", base.DeepSeekModel),

		LLMTimeout:   envDuration("LLM_TIMEOUT", base.LLMTimeout),
		LLMMaxTokens: envInt("LLM_MAX_TOKENS", base.LLMMaxTokens),
		LLMRateLimit: envFloat("LLM_RATE_LIMIT", base.LLMRateLimit),

		ChecklistTemperature: envFloat("CHECKLIST_TEMPERATURE", base.ChecklistTemperature),
		ReviewTemperature:    envFloat("REVIEW_TEMPERATURE", base.ReviewTemperature),
		MaxContractChars:     envInt("MAX_CONTRACT_CHARS", base.MaxContractChars),

		OutputDir: envOr("OUTPUT_DIR", base.OutputDir),
		CacheDir:  envOr("CACHE_DIR", base.CacheDir),
		TempDir:   envOr("TEMP_DIR", base.TempDir),

		HistoryMaxRecords:   envInt("HISTORY_MAX_RECORDS", base.HistoryMaxRecords),
		DefaultExportFormat: strings.ToLower(envOr("DEFAULT_EXPORT_FORMAT", base.DefaultExportFormat)),

		MaxConcurrentReviews: envInt("MAX_CONCURRENT_REVIEWS", base.MaxConcurrentReviews),
		MaxQueueSize:         envInt("MAX_QUEUE_SIZE", base.MaxQueueSize),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", base.MaxUploadBytes),

		JobTTL: envDuration("JOB_TTL", base.JobTTL),

		LogLevel:  envOr("LOG_LEVEL", base.LogLevel),
		LogFormat: envOr("LOG_FORMAT", base.LogFormat),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", base.PDFFallbackPdftotext),
	}

	d := Defaults()
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = d.LLMTimeout
	}
	if cfg.LLMMaxTokens <= 0 {
		cfg.LLMMaxTokens = d.LLMMaxTokens
	}
	if cfg.HistoryMaxRecords <= 0 {
		cfg.HistoryMaxRecords = d.HistoryMaxRecords
	}
	if cfg.MaxConcurrentReviews <= 0 {
		cfg.MaxConcurrentReviews = d.MaxConcurrentReviews
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = d.MaxQueueSize
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = d.MaxUploadBytes
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = d.JobTTL
	}

	return cfg
}

func (c Config) Validate() error {
	var errs []error
	switch c.ModelType {
	case ModelLocal:
	case ModelCloud, ModelOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the cloud model"))
		}
	case ModelDeepSeek:
		if c.DeepSeekKey == "" {
			errs = append(errs, errors.New("DEEPSEEK_API_KEY is required for the deepseek model"))
		}
	default:
		errs = append(errs, fmt.Errorf("AI_MODEL_TYPE %q is not one of local, cloud, openai, deepseek", c.ModelType))
	}
	if c.ChecklistTemperature < 0 || c.ChecklistTemperature > 2 {
		errs = append(errs, fmt.Errorf("CHECKLIST_TEMPERATURE %v out of range [0,2]", c.ChecklistTemperature))
	}
	if c.ReviewTemperature < 0 || c.ReviewTemperature > 2 {
		errs = append(errs, fmt.Errorf("REVIEW_TEMPERATURE %v out of range [0,2]", c.ReviewTemperature))
	}
	if c.MaxContractChars <= 0 {
		errs = append(errs, fmt.Errorf("MAX_CONTRACT_CHARS must be positive, got %d", c.MaxContractChars))
	}
	switch c.DefaultExportFormat {
	case "word", "docx", "markdown", "md", "html":
	default:
		errs = append(errs, fmt.Errorf("DEFAULT_EXPORT_FORMAT %q is not supported", c.DefaultExportFormat))
	}
	return errors.Join(errs...)
}

// Backend returns the model backend selected by ModelType.
func (c Config) Backend() llm.Backend {
	switch c.ModelType {
	case ModelCloud, ModelOpenAI:
		return llm.Backend{Kind: llm.KindCloud, BaseURL: c.OpenAIAPIBase, Model: c.OpenAIModel, APIKey: c.OpenAIAPIKey}
	case ModelDeepSeek:
		return llm.Backend{Kind: llm.KindCloud, BaseURL: c.DeepSeekBase, Model: c.DeepSeekModel, APIKey: c.DeepSeekKey}
	default:
		return llm.Backend{Kind: llm.KindLocal, BaseURL: c.OllamaBaseURL, Model: c.OllamaModel}
	}
}

// LLMOptions returns the client tuning derived from the configuration.
func (c Config) LLMOptions() llm.Options {
	return llm.Options{
		Timeout:   c.LLMTimeout,
		MaxTokens: c.LLMMaxTokens,
		RateLimit: c.LLMRateLimit,
	}
}

// HistoryFile is the path of the review history list.
func (c Config) HistoryFile() string {
	return filepath.Join(c.CacheDir, "review_history.json")
}

// EnsureDirs creates the output, cache and temp directories.
func (c Config) EnsureDirs() error {
	for _, dir := range []string{c.OutputDir, c.CacheDir, c.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
