package config

import "time"

// fileConfig is the YAML layout of a config file. Unset keys keep the
// value they are applied over.
type fileConfig struct {
	Server struct {
		Port   string `yaml:"port"`
		APIKey string `yaml:"api_key"`
	} `yaml:"server"`

	LLM struct {
		Type          string        `yaml:"type"`
		OllamaBaseURL string        `yaml:"ollama_base_url"`
		OllamaModel   string        `yaml:"ollama_model"`
		APIKey        string        `yaml:"api_key"`
		APIBase       string        `yaml:"api_base"`
		Model         string        `yaml:"model"`
		DeepSeekKey   string        `yaml:"deepseek_api_key"`
		DeepSeekBase  string        `yaml:"deepseek_api_base"`
		DeepSeekModel string        `yaml:"deepseek_model"`
		Timeout       time.Duration `yaml:"timeout"`
		MaxTokens     int           `yaml:"max_tokens"`
		RateLimit     float64       `yaml:"rate_limit"`
	} `yaml:"llm"`

	Review struct {
		ChecklistTemperature *float64 `yaml:"checklist_temperature"`
		ReviewTemperature    *float64 `yaml:"review_temperature"`
		MaxContractChars     int      `yaml:"max_contract_chars"`
		DefaultExportFormat  string   `yaml:"default_export_format"`
	} `yaml:"review"`

	Dirs struct {
		Output string `yaml:"output"`
		Cache  string `yaml:"cache"`
		Temp   string `yaml:"temp"`
	} `yaml:"dirs"`

	History struct {
		MaxRecords int `yaml:"max_records"`
	} `yaml:"history"`

	Jobs struct {
		MaxConcurrentReviews int           `yaml:"max_concurrent_reviews"`
		MaxQueueSize         int           `yaml:"max_queue_size"`
		MaxUploadBytes       int64         `yaml:"max_upload_bytes"`
		TTL                  time.Duration `yaml:"ttl"`
	} `yaml:"jobs"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	PDF struct {
		FallbackPdftotext *bool `yaml:"fallback_pdftotext"`
	} `yaml:"pdf"`
}

func (f fileConfig) apply(c Config) Config {
	setStr(&c.Port, f.Server.Port)
	setStr(&c.APIKey, f.Server.APIKey)

	setStr(&c.ModelType, f.LLM.Type)
	setStr(&c.OllamaBaseURL, f.LLM.OllamaBaseURL)
	setStr(&c.OllamaModel, f.LLM.OllamaModel)
	setStr(&c.OpenAIAPIKey, f.LLM.APIKey)
	setStr(&c.OpenAIAPIBase, f.LLM.APIBase)
	setStr(&c.OpenAIModel, f.LLM.Model)
	setStr(&c.DeepSeekKey, f.LLM.DeepSeekKey)
	setStr(&c.DeepSeekBase, f.LLM.DeepSeekBase)
	setStr(&c.DeepSeekModel, f.LLM.DeepSeekModel)
	if f.LLM.Timeout > 0 {
		c.LLMTimeout = f.LLM.Timeout
	}
	if f.LLM.MaxTokens > 0 {
		c.LLMMaxTokens = f.LLM.MaxTokens
	}
	if f.LLM.RateLimit > 0 {
		c.LLMRateLimit = f.LLM.RateLimit
	}

	if f.Review.ChecklistTemperature != nil {
		c.ChecklistTemperature = *f.Review.ChecklistTemperature
	}
	if f.Review.ReviewTemperature != nil {
		c.ReviewTemperature = *f.Review.ReviewTemperature
	}
	if f.Review.MaxContractChars > 0 {
		c.MaxContractChars = f.Review.MaxContractChars
	}
	setStr(&c.DefaultExportFormat, f.Review.DefaultExportFormat)

	setStr(&c.OutputDir, f.Dirs.Output)
	setStr(&c.CacheDir, f.Dirs.Cache)
	setStr(&c.TempDir, f.Dirs.Temp)

	if f.History.MaxRecords > 0 {
		c.HistoryMaxRecords = f.History.MaxRecords
	}

	if f.Jobs.MaxConcurrentReviews > 0 {
		c.MaxConcurrentReviews = f.Jobs.MaxConcurrentReviews
	}
	if f.Jobs.MaxQueueSize > 0 {
		c.MaxQueueSize = f.Jobs.MaxQueueSize
	}
	if f.Jobs.MaxUploadBytes > 0 {
		c.MaxUploadBytes = f.Jobs.MaxUploadBytes
	}
	if f.Jobs.TTL > 0 {
		c.JobTTL = f.Jobs.TTL
	}

	setStr(&c.LogLevel, f.Log.Level)
	setStr(&c.LogFormat, f.Log.Format)

	if f.PDF.FallbackPdftotext != nil {
		c.PDFFallbackPdftotext = *f.PDF.FallbackPdftotext
	}
	return c
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
