package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the workspace config file.
const FileName = "tally.yaml"

// Config represents the top-level tally.yaml configuration.
type Config struct {
	Owner       string            `yaml:"owner"`
	Database    DatabaseConfig    `yaml:"database"`
	Import      ImportConfig      `yaml:"import"`
	Categorizer CategorizerConfig `yaml:"categorizer"`
	Log         LogConfig         `yaml:"log"`
	Git         GitConfig         `yaml:"git"`
}

// DatabaseConfig locates the SQLite store.
type DatabaseConfig struct {
	Path        string        `yaml:"path"` // relative to the workspace root
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// Dedup policies.
const (
	DedupLoose  = "loose"  // account, date, amount, direction
	DedupStrict = "strict" // loose key plus description hash
)

// ImportConfig controls statement ingestion.
type ImportConfig struct {
	Dir                 string `yaml:"dir"`
	DefaultCurrency     string `yaml:"default_currency"`
	DateFallbackToToday bool   `yaml:"date_fallback_to_today"`
	DedupPolicy         string `yaml:"dedup_policy"`
}

// CategorizerConfig selects and tunes the automatic categorizers.
type CategorizerConfig struct {
	Providers   []string      `yaml:"providers"` // tried in order: keyword, openai
	RulesFile   string        `yaml:"rules_file"`
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
	OpenAI      OpenAIConfig  `yaml:"openai"`
}

// OpenAIConfig configures the chat-completion categorizer.
type OpenAIConfig struct {
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url,omitempty"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// GitConfig controls git integration.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Load reads a tally.yaml file from disk. Missing keys keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default("")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new workspace.
func Default(owner string) *Config {
	return &Config{
		Owner: owner,
		Database: DatabaseConfig{
			Path:        "data/tally.db",
			BusyTimeout: 5 * time.Second,
		},
		Import: ImportConfig{
			Dir:             "import",
			DefaultCurrency: "INR",
			DedupPolicy:     DedupLoose,
		},
		Categorizer: CategorizerConfig{
			Providers:   []string{"keyword"},
			RulesFile:   "rules/categorization-rules.yaml",
			Timeout:     3 * time.Second,
			Concurrency: 4,
			OpenAI: OpenAIConfig{
				Model:     "gpt-4o-mini",
				APIKeyEnv: "OPENAI_API_KEY",
			},
		},
		Log: LogConfig{Level: "info"},
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "Tally",
			AuthorEmail: "tally@cleared.dev",
		},
	}
}

// Validate rejects values the rest of the program cannot act on.
func (c *Config) Validate() error {
	switch c.Import.DedupPolicy {
	case DedupLoose, DedupStrict:
	default:
		return fmt.Errorf("invalid import.dedup_policy %q (want %s or %s)", c.Import.DedupPolicy, DedupLoose, DedupStrict)
	}
	for _, p := range c.Categorizer.Providers {
		switch p {
		case "keyword", "openai":
		default:
			return fmt.Errorf("invalid categorizer provider %q", p)
		}
	}
	if c.Categorizer.Concurrency < 0 {
		return fmt.Errorf("categorizer.concurrency must not be negative")
	}
	return nil
}

// ApplyEnv overrides config values from TALLY_* environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("TALLY_OWNER"); v != "" {
		c.Owner = v
	}
	if v := getenv("TALLY_DB"); v != "" {
		c.Database.Path = v
	}
	if v := getenv("TALLY_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("TALLY_CATEGORIZER"); v != "" {
		if v == "none" {
			c.Categorizer.Providers = nil
		} else {
			c.Categorizer.Providers = strings.Split(v, ",")
		}
	}
}
