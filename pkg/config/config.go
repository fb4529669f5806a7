// Package config loads the application configuration and the routing policy.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	ListenAddr      string
	OllamaBaseURL   string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string
	AuditLogPath    string
	CacheTTLSeconds int
	CacheMaxItems   int
	// RequestTimeoutSeconds bounds one backend call, retries included.
	RequestTimeoutSeconds int
	Policy                *Policy
	ConfigDir             string
}

// FileConfig represents the structure of ~/.routegate/config.yaml.
type FileConfig struct {
	Listen  string        `yaml:"listen"`
	Ollama  OllamaConfig  `yaml:"ollama"`
	APIKeys APIKeysConfig `yaml:"api_keys"`
	Audit   AuditConfig   `yaml:"audit"`
	Cache   CacheConfig   `yaml:"cache"`
	Request RequestConfig `yaml:"request"`
}

// OllamaConfig holds the local backend endpoint.
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"`
}

// APIKeysConfig holds API key configuration from file.
type APIKeysConfig struct {
	Anthropic string `yaml:"anthropic"`
	OpenAI    string `yaml:"openai"`
	Google    string `yaml:"google"`
}

// AuditConfig holds the audit log destination.
type AuditConfig struct {
	LogPath string `yaml:"log_path"`
}

// CacheConfig holds the response cache bounds.
type CacheConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
	MaxItems   int `yaml:"max_items"`
}

// RequestConfig holds per-request limits.
type RequestConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Load reads configuration from config files and environment variables.
// Environment variables take precedence over file configuration.
// policyPath overrides the default policy file location; when given, the file
// must exist and parse, otherwise startup fails.
func Load(policyPath string) (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	fileConfig := loadFileConfig(filepath.Join(configDir, "config.yaml"))

	cfg := &Config{
		ListenAddr:            getEnvOrDefault("ROUTEGATE_LISTEN", fileConfig.Listen),
		OllamaBaseURL:         getEnvOrDefault("OLLAMA_BASE_URL", fileConfig.Ollama.BaseURL),
		AnthropicAPIKey:       getEnvOrDefault("ANTHROPIC_API_KEY", fileConfig.APIKeys.Anthropic),
		OpenAIAPIKey:          getEnvOrDefault("OPENAI_API_KEY", fileConfig.APIKeys.OpenAI),
		GoogleAPIKey:          getEnvOrDefault("GOOGLE_API_KEY", fileConfig.APIKeys.Google),
		AuditLogPath:          getEnvOrDefault("ROUTEGATE_AUDIT_LOG", fileConfig.Audit.LogPath),
		CacheTTLSeconds:       fileConfig.Cache.TTLSeconds,
		CacheMaxItems:         fileConfig.Cache.MaxItems,
		RequestTimeoutSeconds: fileConfig.Request.TimeoutSeconds,
		ConfigDir:             configDir,
	}
	applyConfigDefaults(cfg)

	if policyPath != "" {
		pol, err := LoadPolicy(policyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load policy from %s: %w", policyPath, err)
		}
		cfg.Policy = pol
		return cfg, nil
	}

	defaultPolicyPath := filepath.Join(configDir, "policy.yaml")
	if _, err := os.Stat(defaultPolicyPath); err == nil {
		pol, err := LoadPolicy(defaultPolicyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load policy: %w", err)
		}
		cfg.Policy = pol
	} else {
		cfg.Policy = DefaultPolicy()
	}

	return cfg, nil
}

// HasBackend returns true if the named backend is usable with the current
// configuration. The local ollama backend needs no key.
func (c *Config) HasBackend(name string) bool {
	switch name {
	case "ollama", "mock":
		return true
	case "anthropic":
		return c.AnthropicAPIKey != ""
	case "openai":
		return c.OpenAIAPIKey != ""
	case "google":
		return c.GoogleAPIKey != ""
	default:
		return false
	}
}

func applyConfigDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.OllamaBaseURL == "" {
		cfg.OllamaBaseURL = "http://localhost:11434"
	}
	if cfg.AuditLogPath == "" {
		cfg.AuditLogPath = "logs/router.jsonl"
	}
	if cfg.CacheTTLSeconds == 0 {
		cfg.CacheTTLSeconds = 3600
	}
	if cfg.CacheMaxItems == 0 {
		cfg.CacheMaxItems = 500
	}
	if cfg.RequestTimeoutSeconds == 0 {
		cfg.RequestTimeoutSeconds = 180
	}
}

// loadFileConfig reads the config file, returning empty config if not found.
func loadFileConfig(path string) *FileConfig {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return &FileConfig{}
	}

	return cfg
}

func getConfigDir() (string, error) {
	if dir := os.Getenv("ROUTEGATE_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".routegate"), nil
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
