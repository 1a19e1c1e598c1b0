package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/contractreview/internal/llm"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	if cfg.ModelType != ModelLocal {
		t.Errorf("expected local model type, got %q", cfg.ModelType)
	}
	if cfg.LLMTimeout != 120*time.Second || cfg.MaxContractChars != 12000 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.ChecklistTemperature != 0.3 || cfg.ReviewTemperature != 0.5 {
		t.Errorf("unexpected temperatures %v / %v", cfg.ChecklistTemperature, cfg.ReviewTemperature)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AI_MODEL_TYPE", "DeepSeek")
	t.Setenv("DEEPSEEK_API_KEY", "sk-ds")
	t.Setenv("MAX_CONCURRENT_REVIEWS", "7")
	t.Setenv("LLM_TIMEOUT", "45s")
	t.Setenv("JOB_TTL", "not-a-duration")

	cfg := Load()
	if cfg.ModelType != ModelDeepSeek {
		t.Errorf("expected deepseek, got %q", cfg.ModelType)
	}
	if cfg.MaxConcurrentReviews != 7 || cfg.LLMTimeout != 45*time.Second {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if cfg.JobTTL != time.Hour {
		t.Errorf("expected invalid duration to fall back, got %v", cfg.JobTTL)
	}

	b := cfg.Backend()
	want := llm.Backend{Kind: llm.KindCloud, BaseURL: "https://api.deepseek.com/v1", Model: "deepseek-chat", APIKey: "sk-ds"}
	if b != want {
		t.Errorf("expected %+v, got %+v", want, b)
	}
}

func TestLoadFile_LayersFileUnderEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contractreview.yaml")
	yaml := `
llm:
  type: cloud
  api_key: sk-file
  model: gpt-4o
  timeout: 90s
review:
  checklist_temperature: 0
  default_export_format: markdown
dirs:
  output: /srv/reports
jobs:
  max_queue_size: 5
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OPENAI_MODEL", "gpt-4.1")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ModelType != ModelCloud || cfg.OpenAIAPIKey != "sk-file" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.OpenAIModel != "gpt-4.1" {
		t.Errorf("expected env to win over file, got %q", cfg.OpenAIModel)
	}
	if cfg.LLMTimeout != 90*time.Second || cfg.MaxQueueSize != 5 || cfg.OutputDir != "/srv/reports" {
		t.Errorf("unexpected values %+v", cfg)
	}
	if cfg.ChecklistTemperature != 0 {
		t.Errorf("expected explicit zero temperature to be kept, got %v", cfg.ChecklistTemperature)
	}
	if cfg.ReviewTemperature != 0.5 {
		t.Errorf("expected unset key to keep default, got %v", cfg.ReviewTemperature)
	}
	if cfg.Backend().Kind != llm.KindCloud {
		t.Errorf("expected cloud backend")
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("llm: [unclosed"), 0o644)
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown model", func(c *Config) { c.ModelType = "gemini" }, "AI_MODEL_TYPE"},
		{"cloud without key", func(c *Config) { c.ModelType = ModelCloud }, "OPENAI_API_KEY"},
		{"deepseek without key", func(c *Config) { c.ModelType = ModelDeepSeek }, "DEEPSEEK_API_KEY"},
		{"temperature", func(c *Config) { c.ReviewTemperature = 2.5 }, "REVIEW_TEMPERATURE"},
		{"max chars", func(c *Config) { c.MaxContractChars = 0 }, "MAX_CONTRACT_CHARS"},
		{"export format", func(c *Config) { c.DefaultExportFormat = "pdf" }, "DEFAULT_EXPORT_FORMAT"},
	}
	for _, tt := range tests {
		cfg := Defaults()
		tt.mutate(&cfg)
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: expected error mentioning %s, got %v", tt.name, tt.want, err)
		}
	}
}

func TestEnsureDirs(t *testing.T) {
	root := t.TempDir()
	cfg := Defaults()
	cfg.OutputDir = filepath.Join(root, "out")
	cfg.CacheDir = filepath.Join(root, "cache")
	cfg.TempDir = filepath.Join(root, "tmp", "uploads")
	if err := cfg.EnsureDirs(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	for _, d := range []string{cfg.OutputDir, cfg.CacheDir, cfg.TempDir} {
		if st, err := os.Stat(d); err != nil || !st.IsDir() {
			t.Errorf("expected directory %s", d)
		}
	}
	if cfg.HistoryFile() != filepath.Join(root, "cache", "review_history.json") {
		t.Errorf("unexpected history file %s", cfg.HistoryFile())
	}
}
