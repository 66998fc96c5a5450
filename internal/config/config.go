// Package config loads meetscope settings from a YAML file, environment
// variables and defaults, in that order of precedence (env wins over file).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigDir   = ".meetscope"
	DefaultConfigFile  = "config.yaml"
	DefaultModel       = "gemini-2.5-pro"
	DefaultTemperature = 1.0
	DefaultLanguage    = "English"
	DefaultTimeout     = 10 * time.Minute
	DefaultServerAddr  = "127.0.0.1:8080"
	DefaultBodyLimitMB = 512
	DefaultCacheTTL    = 46 * time.Hour
)

type CacheBackend string

const (
	CacheMemory CacheBackend = "memory"
	CacheRedis  CacheBackend = "redis"
	CacheNone   CacheBackend = "none"
)

type GeminiConfig struct {
	APIKey      string        `yaml:"api_key,omitempty"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	Language    string        `yaml:"language"`
	Timeout     time.Duration `yaml:"timeout"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	BodyLimitMB int    `yaml:"body_limit_mb"`
}

type StorageConfig struct {
	DataDir   string `yaml:"data_dir"`
	HistoryDB string `yaml:"history_db"`
}

type CacheConfig struct {
	Backend  CacheBackend  `yaml:"backend"`
	RedisURL string        `yaml:"redis_url,omitempty"`
	TTL      time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Gemini  GeminiConfig  `yaml:"gemini"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Cache   CacheConfig   `yaml:"cache"`
	Log     LogConfig     `yaml:"log"`
}

func Default() *Config {
	dataDir := filepath.Join(homeDir(), DefaultConfigDir, "data")
	return &Config{
		Gemini: GeminiConfig{
			Model:       DefaultModel,
			Temperature: DefaultTemperature,
			Language:    DefaultLanguage,
			Timeout:     DefaultTimeout,
		},
		Server: ServerConfig{
			Addr:        DefaultServerAddr,
			BodyLimitMB: DefaultBodyLimitMB,
		},
		Storage: StorageConfig{
			DataDir:   dataDir,
			HistoryDB: filepath.Join(dataDir, "history.duckdb"),
		},
		Cache: CacheConfig{
			Backend: CacheMemory,
			TTL:     DefaultCacheTTL,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func DefaultPath() string {
	return filepath.Join(homeDir(), DefaultConfigDir, DefaultConfigFile)
}

// Load reads path (or the default location when empty). A missing file is
// not an error; defaults and environment overrides still apply.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	cfg := Default()

	data, err := os.ReadFile(expandPath(path))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv("MEETSCOPE_MODEL"); v != "" {
		c.Gemini.Model = v
	}
	if v := os.Getenv("MEETSCOPE_TEMPERATURE"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid MEETSCOPE_TEMPERATURE %q: %w", v, err)
		}
		c.Gemini.Temperature = t
	}
	if v := os.Getenv("MEETSCOPE_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
		c.Storage.HistoryDB = filepath.Join(v, "history.duckdb")
	}
	if v := os.Getenv("MEETSCOPE_REDIS_URL"); v != "" {
		c.Cache.RedisURL = v
		c.Cache.Backend = CacheRedis
	}
	if v := os.Getenv("MEETSCOPE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.Gemini.Model == "" {
		c.Gemini.Model = d.Gemini.Model
	}
	if c.Gemini.Language == "" {
		c.Gemini.Language = d.Gemini.Language
	}
	if c.Gemini.Timeout == 0 {
		c.Gemini.Timeout = d.Gemini.Timeout
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.BodyLimitMB <= 0 {
		c.Server.BodyLimitMB = d.Server.BodyLimitMB
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = d.Storage.DataDir
	}
	c.Storage.DataDir = expandPath(c.Storage.DataDir)
	c.Storage.HistoryDB = expandPath(c.Storage.HistoryDB)
	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheMemory
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = d.Cache.TTL
	}
}

func (c *Config) Validate() error {
	if c.Gemini.Temperature < 0 || c.Gemini.Temperature > 2 {
		return fmt.Errorf("gemini.temperature must be between 0 and 2, got %v", c.Gemini.Temperature)
	}
	switch c.Cache.Backend {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache.redis_url is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("unknown cache.backend %q", c.Cache.Backend)
	}
	return nil
}

// Save writes the config without the API key; keys belong in the keyring or
// the environment.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	path = expandPath(path)

	out := *c
	out.Gemini.APIKey = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) BodyLimitBytes() int {
	return c.Server.BodyLimitMB * 1024 * 1024
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
