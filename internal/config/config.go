package config

import (
	"fmt"
	"os"
	"strings"

	"biaseval/internal/dataset"
	"biaseval/internal/prompt"
)

// Config represents the complete application configuration
type Config struct {
	Eval     EvalConfig     `toml:"eval"`
	Model    ModelConfig    `toml:"model"`
	Datasets DatasetsConfig `toml:"datasets"`
}

// EvalConfig holds pipeline-wide settings
type EvalConfig struct {
	OutputDir               string `toml:"output_dir"`
	MaxRequestsPerMinute    int    `toml:"max_requests_per_minute"`
	Workers                 int    `toml:"workers"`
	QueueSize               int    `toml:"queue_size"`                 // Optional: request queue capacity (default: workers)
	RateLimitBackoffSeconds int    `toml:"rate_limit_backoff_seconds"` // Worker pause after a rate-limited reply (default: 10)
	MaxTransientRetries     int    `toml:"max_transient_retries"`      // Retries per request for transient server faults (default: 5)
	ShutdownGraceSeconds    int    `toml:"shutdown_grace_seconds"`     // Wait per stage during shutdown (default: 5)
}

// ModelConfig holds the target model endpoint settings
type ModelConfig struct {
	BaseURL               string  `toml:"base_url"`
	Name                  string  `toml:"name"`
	Temperature           float64 `toml:"temperature"`
	MaxOutputTokens       int     `toml:"max_output_tokens"` // 0 = per-dataset default
	RequestTimeoutSeconds int     `toml:"request_timeout_seconds"`
	CompletionCount       int     `toml:"completion_count"`
}

// DatasetsConfig holds the file locations for each benchmark dataset
type DatasetsConfig struct {
	BBQ        BBQDatasetConfig        `toml:"bbq"`
	Law        LawDatasetConfig        `toml:"law"`
	Winogender WinogenderDatasetConfig `toml:"winogender"`
}

// BBQDatasetConfig locates the BBQ category files and bias-target metadata
type BBQDatasetConfig struct {
	DataGlob     string `toml:"data_glob"`
	MetadataPath string `toml:"metadata_path"`
}

// LawDatasetConfig locates the law school admissions CSV
type LawDatasetConfig struct {
	Path string `toml:"path"`
}

// WinogenderDatasetConfig locates the sentence templates and the BLS
// occupation statistics
type WinogenderDatasetConfig struct {
	SentencesPath string `toml:"sentences_path"`
	BLSPath       string `toml:"bls_path"`
}

// Secrets holds sensitive credentials loaded from environment variables
type Secrets struct {
	APIKeys map[string]string
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Eval.OutputDir == "" {
		return fmt.Errorf("eval.output_dir must not be empty")
	}
	if c.Eval.MaxRequestsPerMinute <= 0 {
		return fmt.Errorf("eval.max_requests_per_minute must be positive (got %d)", c.Eval.MaxRequestsPerMinute)
	}
	if c.Eval.Workers < 1 {
		return fmt.Errorf("eval.workers must be at least 1 (got %d)", c.Eval.Workers)
	}
	if c.Eval.QueueSize < 0 {
		return fmt.Errorf("eval.queue_size must not be negative (got %d)", c.Eval.QueueSize)
	}
	if c.Eval.MaxTransientRetries < 0 {
		return fmt.Errorf("eval.max_transient_retries must not be negative (got %d)", c.Eval.MaxTransientRetries)
	}
	if c.Model.BaseURL == "" {
		return fmt.Errorf("model.base_url must not be empty")
	}
	if c.Model.Name == "" {
		return fmt.Errorf("model.name must not be empty")
	}
	if c.Model.Temperature < 0 {
		return fmt.Errorf("model.temperature must not be negative (got %g)", c.Model.Temperature)
	}
	if c.Model.MaxOutputTokens < 0 {
		return fmt.Errorf("model.max_output_tokens must not be negative (got %d)", c.Model.MaxOutputTokens)
	}
	if c.Model.CompletionCount < 1 {
		return fmt.Errorf("model.completion_count must be at least 1 (got %d)", c.Model.CompletionCount)
	}
	return nil
}

// ValidateRun checks the per-invocation dataset and prompt style choices
func ValidateRun(datasetName string, style prompt.Style) error {
	known := false
	for _, name := range dataset.Names() {
		if name == datasetName {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown dataset %q (valid: %s)", datasetName, strings.Join(dataset.Names(), ", "))
	}
	switch style {
	case prompt.StyleQuestion, prompt.StyleInstruction, prompt.StyleChainOfThought:
		return nil
	}
	return fmt.Errorf("unknown prompt style %q", style)
}

// LoadSecrets loads sensitive credentials from environment variables
func LoadSecrets() (*Secrets, error) {
	secrets := &Secrets{
		APIKeys: make(map[string]string),
	}

	// Generic API key works with any endpoint; provider keys override it.
	if key := os.Getenv("API_KEY"); key != "" {
		secrets.APIKeys["generic"] = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		secrets.APIKeys["openai"] = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		secrets.APIKeys["anthropic"] = key
	}
	if key := os.Getenv("TOGETHER_API_KEY"); key != "" {
		secrets.APIKeys["together"] = key
	}

	return secrets, nil
}

// GetAPIKey returns the API key for a given base URL
func (s *Secrets) GetAPIKey(baseURL string) string {
	if strings.Contains(baseURL, "openai.com") {
		if key := s.APIKeys["openai"]; key != "" {
			return key
		}
	}
	if strings.Contains(baseURL, "anthropic.com") {
		if key := s.APIKeys["anthropic"]; key != "" {
			return key
		}
	}
	if strings.Contains(baseURL, "together.xyz") || strings.Contains(baseURL, "together.ai") {
		if key := s.APIKeys["together"]; key != "" {
			return key
		}
	}
	return s.APIKeys["generic"]
}
