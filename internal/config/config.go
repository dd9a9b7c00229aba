package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// PathEnv names the variable holding the config file path.
const PathEnv = "EDUVIA_CONFIG"

const envPrefix = "EDUVIA_"

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `koanf:"basic_config"`
	Provider    ProviderConfig            `koanf:"provider"`
	Databases   map[string]DatabaseConfig `koanf:"databases"`
	Redis       RedisConfig               `koanf:"redis"`
	Library     LibraryConfig             `koanf:"library"`
}

type BasicConfig struct {
	ServerAddress        string          `koanf:"server_address"`
	Database             string          `koanf:"database"`
	HistoryWindow        int             `koanf:"history_window"`
	StreamTimeoutSeconds int             `koanf:"stream_timeout_seconds"`
	RateLimit            RateLimitConfig `koanf:"rate_limit"`
	Telemetry            bool            `koanf:"telemetry"`
	LogLevel             string          `koanf:"log_level"`
}

// RateLimitConfig bounds chat requests per client address. Zero disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
}

type ProviderConfig struct {
	Name    string   `koanf:"name"`
	Model   string   `koanf:"model"`
	BaseURL string   `koanf:"base_url"`
	APIKeys []string `koanf:"api_keys"`
}

type DatabaseConfig struct {
	DSN      string `koanf:"dsn"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	DBName   string `koanf:"db_name"`
	Params   string `koanf:"params"`
}

type RedisConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	Username   string `koanf:"username"`
	Password   string `koanf:"password"`
	DB         int    `koanf:"db"`
	TTLSeconds int    `koanf:"ttl_seconds"`
}

type LibraryConfig struct {
	BaseURL string `koanf:"base_url"`
	PerPage int    `koanf:"per_page"`
	Mailto  string `koanf:"mailto"`
}

// Load reads configuration from the provided path (defaults to config.json),
// then applies .env and EDUVIA_* environment overrides. A missing file is
// allowed when the environment supplies everything required.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	k := koanf.New(".")
	if _, err := os.Stat(absPath); err == nil {
		if err := k.Load(file.Provider(absPath), parserFor(absPath)); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", absPath, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	_ = godotenv.Load()
	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDefaults(filepath.Dir(absPath))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	default:
		return json.Parser()
	}
}

// envKey maps EDUVIA_BASIC_CONFIG__SERVER_ADDRESS to basic_config.server_address.
// Comma separated api keys become a list.
func envKey(key, value string) (string, interface{}) {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	switch key {
	case "config", "apikey_key":
		return "", nil
	}
	key = strings.ReplaceAll(key, "__", ".")
	if key == "provider.api_keys" {
		return key, strings.Split(value, ",")
	}
	return key, value
}

func (c *Config) applyDefaults(baseDir string) {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = ":8090"
	}
	if c.BasicConfig.Database == "" {
		c.BasicConfig.Database = "sqlite3"
	}
	if c.BasicConfig.HistoryWindow <= 0 {
		c.BasicConfig.HistoryWindow = 10
	}
	if c.BasicConfig.StreamTimeoutSeconds <= 0 {
		c.BasicConfig.StreamTimeoutSeconds = 120
	}
	if c.Provider.Name == "" {
		c.Provider.Name = "gemini"
	}
	if c.Provider.Model == "" && c.Provider.Name == "gemini" {
		c.Provider.Model = "gemini-1.5-flash"
	}
	if c.Databases == nil {
		c.Databases = make(map[string]DatabaseConfig)
	}
	if db, ok := c.Databases[c.BasicConfig.Database]; ok || isSQLite(c.BasicConfig.Database) {
		if isSQLite(c.BasicConfig.Database) {
			if db.DSN == "" {
				db.DSN = filepath.Join("data", "eduvia.db")
			}
			if !filepath.IsAbs(db.DSN) && !strings.HasPrefix(db.DSN, "file:") {
				db.DSN = filepath.Join(baseDir, db.DSN)
			}
		}
		c.Databases[c.BasicConfig.Database] = db
	}
	if c.Redis.TTLSeconds <= 0 {
		c.Redis.TTLSeconds = 300
	}
	if c.Library.BaseURL == "" {
		c.Library.BaseURL = "https://api.openalex.org"
	}
	if c.Library.PerPage <= 0 {
		c.Library.PerPage = 20
	}
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case "gemini", "openai", "claude":
	default:
		return fmt.Errorf("unsupported provider: %s", c.Provider.Name)
	}
	if c.Provider.Model == "" {
		return fmt.Errorf("provider.model must be configured for %s", c.Provider.Name)
	}
	if len(c.Provider.APIKeys) == 0 {
		return errors.New("provider.api_keys must be configured")
	}
	if _, ok := c.Databases[c.BasicConfig.Database]; !ok {
		return fmt.Errorf("database config for %s not found", c.BasicConfig.Database)
	}
	if c.BasicConfig.RateLimit.RequestsPerSecond < 0 || c.BasicConfig.RateLimit.Burst < 0 {
		return errors.New("rate_limit values cannot be negative")
	}
	return nil
}

func isSQLite(dbType string) bool {
	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		return true
	}
	return false
}
