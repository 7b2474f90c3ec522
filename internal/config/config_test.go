package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"biaseval/internal/dataset"
	"biaseval/internal/prompt"
)

const validConfig = `
[eval]
output_dir = "output"
max_requests_per_minute = 120
workers = 8

[model]
base_url = "https://api.openai.com/v1"
name = "gpt-3.5-turbo"
temperature = 0.0
request_timeout_seconds = 30

[datasets.bbq]
data_glob = "data/bbq/*.jsonl"
metadata_path = "data/bbq/metadata.csv"

[datasets.law]
path = "data/law/bar_pass.csv"

[datasets.winogender]
sentences_path = "data/winogender/all_sentences.tsv"
bls_path = "data/winogender/occupations-stats.tsv"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, _, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Eval.MaxRequestsPerMinute != 120 {
		t.Errorf("MaxRequestsPerMinute = %d, want 120", cfg.Eval.MaxRequestsPerMinute)
	}
	if cfg.Eval.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Eval.Workers)
	}
	if cfg.Model.Name != "gpt-3.5-turbo" {
		t.Errorf("model name = %q", cfg.Model.Name)
	}
	if cfg.Datasets.Law.Path != "data/law/bar_pass.csv" {
		t.Errorf("law path = %q", cfg.Datasets.Law.Path)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	minimal := `
[model]
base_url = "http://localhost:8080/v1"
name = "test-model"
`
	cfg, _, err := Load(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Eval.OutputDir != "output" {
		t.Errorf("OutputDir = %q, want output", cfg.Eval.OutputDir)
	}
	if cfg.Eval.MaxRequestsPerMinute != 60 {
		t.Errorf("MaxRequestsPerMinute = %d, want default 60", cfg.Eval.MaxRequestsPerMinute)
	}
	if cfg.Eval.Workers != 16 {
		t.Errorf("Workers = %d, want default 16", cfg.Eval.Workers)
	}
	if cfg.Eval.RateLimitBackoffSeconds != 10 {
		t.Errorf("RateLimitBackoffSeconds = %d, want default 10", cfg.Eval.RateLimitBackoffSeconds)
	}
	if cfg.Eval.MaxTransientRetries != 5 {
		t.Errorf("MaxTransientRetries = %d, want default 5", cfg.Eval.MaxTransientRetries)
	}
	if cfg.Eval.ShutdownGraceSeconds != 5 {
		t.Errorf("ShutdownGraceSeconds = %d, want default 5", cfg.Eval.ShutdownGraceSeconds)
	}
	if cfg.Model.RequestTimeoutSeconds != 30 {
		t.Errorf("RequestTimeoutSeconds = %d, want default 30", cfg.Model.RequestTimeoutSeconds)
	}
	if cfg.Model.CompletionCount != 1 {
		t.Errorf("CompletionCount = %d, want default 1", cfg.Model.CompletionCount)
	}
}

func TestLoadExplicitZeroRetries(t *testing.T) {
	content := `
[eval]
max_transient_retries = -1

[model]
base_url = "http://localhost:8080/v1"
name = "test-model"
`
	cfg, _, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Eval.MaxTransientRetries != 0 {
		t.Errorf("MaxTransientRetries = %d, want 0 for explicit -1", cfg.Eval.MaxTransientRetries)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "negative rate ceiling",
			content: `
[eval]
max_requests_per_minute = -10
[model]
base_url = "http://localhost:8080/v1"
name = "m"
`,
			wantErr: "max_requests_per_minute",
		},
		{
			name: "negative workers",
			content: `
[eval]
workers = -1
[model]
base_url = "http://localhost:8080/v1"
name = "m"
`,
			wantErr: "workers",
		},
		{
			name: "missing model name",
			content: `
[model]
base_url = "http://localhost:8080/v1"
`,
			wantErr: "model.name",
		},
		{
			name: "missing base url",
			content: `
[model]
name = "m"
`,
			wantErr: "model.base_url",
		},
		{
			name:    "malformed toml",
			content: "[eval\nworkers = ",
			wantErr: "parse",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRun(t *testing.T) {
	for _, name := range dataset.Names() {
		for _, style := range prompt.Styles() {
			if err := ValidateRun(name, style); err != nil {
				t.Errorf("ValidateRun(%q, %q) error = %v", name, style, err)
			}
		}
	}
	if err := ValidateRun("imdb", prompt.StyleQuestion); err == nil {
		t.Error("ValidateRun() = nil for unknown dataset, want error")
	}
	if err := ValidateRun(dataset.NameBBQ, prompt.Style("haiku")); err == nil {
		t.Error("ValidateRun() = nil for unknown style, want error")
	}
}

func TestLoadSecrets(t *testing.T) {
	t.Setenv("API_KEY", "generic-key")
	t.Setenv("OPENAI_API_KEY", "openai-key")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("TOGETHER_API_KEY", "")

	secrets, err := LoadSecrets()
	if err != nil {
		t.Fatalf("LoadSecrets() error = %v", err)
	}
	if secrets.APIKeys["generic"] != "generic-key" {
		t.Errorf("generic key = %q", secrets.APIKeys["generic"])
	}
	if secrets.APIKeys["openai"] != "openai-key" {
		t.Errorf("openai key = %q", secrets.APIKeys["openai"])
	}
}

func TestGetAPIKey(t *testing.T) {
	secrets := &Secrets{APIKeys: map[string]string{
		"generic": "generic-key",
		"openai":  "openai-key",
	}}

	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{"openai endpoint", "https://api.openai.com/v1", "openai-key"},
		{"other endpoint falls back to generic", "http://localhost:8080/v1", "generic-key"},
		{"anthropic without key falls back", "https://api.anthropic.com/v1", "generic-key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := secrets.GetAPIKey(tt.baseURL); got != tt.want {
				t.Errorf("GetAPIKey(%q) = %q, want %q", tt.baseURL, got, tt.want)
			}
		})
	}
}
