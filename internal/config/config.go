package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

const (
	defaultHomeRelPath   = ".postai"
	defaultConfigRelPath = ".postai/config.yaml"
)

type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	// TimeoutSeconds bounds one completion call.
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	// MaxRetries counts retries after a 429 or 5xx reply. 0 takes the
	// default and a negative value turns retrying off.
	MaxRetries int `yaml:"max_retries"`
	// Disabled turns off the classifier and the semantic search fallback.
	Disabled bool `yaml:"disabled"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"` // file | sqlite
	Dir     string `yaml:"dir"`
	DSN     string `yaml:"dsn"`
}

type RequestConfig struct {
	TimeoutMs int               `yaml:"timeout_ms"`
	BaseURL   string            `yaml:"base_url"`
	Headers   map[string]string `yaml:"headers"`
}

type LoaderConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// MaxRetries counts retries after a transient fetch failure, with the
	// same zero and negative rules as LLMConfig.MaxRetries.
	MaxRetries int `yaml:"max_retries"`
}

// Retries is the number of retries the completion client may make.
func (c LLMConfig) Retries() int { return max(c.MaxRetries, 0) }

// Attempts is the total number of fetches the document loader may make.
func (c LoaderConfig) Attempts() int { return max(c.MaxRetries, 0) + 1 }

type SearchConfig struct {
	CacheSize       int  `yaml:"cache_size"`
	DisableSemantic bool `yaml:"disable_semantic"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	LLM     LLMConfig     `yaml:"llm"`
	Store   StoreConfig   `yaml:"store"`
	Request RequestConfig `yaml:"request"`
	Loader  LoaderConfig  `yaml:"loader"`
	Search  SearchConfig  `yaml:"search"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`

	// Path is the file the config was read from, empty when none existed.
	Path string `yaml:"-"`
}

// DefaultPath is ~/.postai/config.yaml.
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, defaultConfigRelPath), nil
}

// Load reads the YAML config at configPath (or the default path), loads
// envFiles into the process environment without overriding existing
// variables, then applies POSTAI_* overrides. A missing config file is
// not an error.
func Load(configPath string, envFiles ...string) (*Config, error) {
	cfg := &Config{}
	cfg.SetDefaults()

	if configPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}
	configPath, err := homedir.Expand(configPath)
	if err != nil {
		return nil, fmt.Errorf("expand config path: %w", err)
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", configPath, err)
		}
		cfg.Path = configPath
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	cfg.SetDefaults()
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFiles(files []string) error {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func (c *Config) SetDefaults() {
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "http://localhost:11434/v1"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gemma3:12b"
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 60
	}
	if c.LLM.Burst == 0 {
		c.LLM.Burst = 1
	}
	if c.LLM.MaxRetries == 0 {
		c.LLM.MaxRetries = 2
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "file"
	}
	if c.Store.Dir == "" {
		c.Store.Dir = "~/" + defaultHomeRelPath + "/swagger"
	}
	if c.Store.DSN == "" {
		c.Store.DSN = "~/" + defaultHomeRelPath + "/postai.db"
	}
	if c.Request.TimeoutMs == 0 {
		c.Request.TimeoutMs = 5000
	}
	if c.Loader.TimeoutSeconds == 0 {
		c.Loader.TimeoutSeconds = 10
	}
	if c.Loader.MaxRetries == 0 {
		c.Loader.MaxRetries = 2
	}
	if c.Search.CacheSize == 0 {
		c.Search.CacheSize = 128
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Store.Dir, &c.Store.DSN} {
		if strings.HasPrefix(*p, "file:") || *p == ":memory:" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expand %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("store.backend must be file or sqlite, got %q", c.Store.Backend)
	}
	if hclog.LevelFromString(c.Log.Level) == hclog.NoLevel {
		return fmt.Errorf("log.level %q is not a valid level", c.Log.Level)
	}
	if c.Request.TimeoutMs < 0 {
		return errors.New("request.timeout_ms cannot be negative")
	}
	if c.LLM.RequestsPerSecond < 0 {
		return errors.New("llm.requests_per_second cannot be negative")
	}
	return nil
}

func applyEnvOverrides(c *Config) {
	setString(&c.LLM.BaseURL, "POSTAI_LLM_BASE_URL")
	setString(&c.LLM.Model, "POSTAI_LLM_MODEL")
	setString(&c.LLM.APIKey, "POSTAI_LLM_API_KEY")
	setFloat(&c.LLM.Temperature, "POSTAI_LLM_TEMPERATURE")
	setBool(&c.LLM.Disabled, "POSTAI_LLM_DISABLED")
	setString(&c.Store.Backend, "POSTAI_STORE_BACKEND")
	setString(&c.Store.Dir, "POSTAI_STORE_DIR")
	setString(&c.Store.DSN, "POSTAI_STORE_DSN")
	setInt(&c.Request.TimeoutMs, "POSTAI_REQUEST_TIMEOUT_MS")
	setString(&c.Request.BaseURL, "POSTAI_BASE_URL")
	setString(&c.Log.Level, "POSTAI_LOG_LEVEL")
	setString(&c.Metrics.Addr, "POSTAI_METRICS_ADDR")
	// Ollama ignores the key; hosted OpenAI-compatible services read this one.
	if c.LLM.APIKey == "" {
		setString(&c.LLM.APIKey, "OPENAI_API_KEY")
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
