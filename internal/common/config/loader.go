// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// providerKeyEnv maps well-known roster names onto the env var holding their key.
var providerKeyEnv = map[string]string{
	"claude": "ANTHROPIC_API_KEY",
	"gpt":    "OPENAI_API_KEY",
	"gemini": "GOOGLE_API_KEY",
	"grok":   "XAI_API_KEY",
}

func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // ignore error if not found

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets and a few tunables from the environment.
func overrideEmptyConfig(cfg *Config) {
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		// viper does not walk into lists, so placeholders there are expanded here.
		p.APIKey = os.ExpandEnv(p.APIKey)
		p.BaseURL = os.ExpandEnv(p.BaseURL)
		if p.APIKey != "" {
			continue
		}
		if envName, ok := providerKeyEnv[strings.ToLower(p.Name)]; ok {
			p.APIKey = os.Getenv(envName)
		}
	}

	if val := os.Getenv("REDIS_URL"); val != "" && cfg.Database.Redis.URL == "" {
		cfg.Database.Redis.URL = val
	}
	if val := os.Getenv("DATABASE_URL"); val != "" && cfg.Database.Postgres.URL == "" {
		cfg.Database.Postgres.URL = val
	}
	if val := os.Getenv("CACHE_TTL"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			cfg.Cache.TTLSeconds = n
		}
	}
	if val := os.Getenv("MAX_HISTORY_PER_USER"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			cfg.History.MaxPerUser = n
		}
	}
}

// DefaultProviders is the three member roster used when none is configured.
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{Name: "Claude", Kind: "anthropic", Model: "claude-sonnet-4-5"},
		{Name: "GPT", Kind: "openai", Model: "gpt-4o", BaseURL: "https://api.openai.com/v1"},
		{Name: "Gemini", Kind: "openai", Model: "gemini-2.0-flash", BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai"},
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "peer-review"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 300000
	}

	if len(cfg.Providers) == 0 {
		cfg.Providers = DefaultProviders()
	}
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if p.Kind == "" {
			p.Kind = "openai"
		}
		if p.MaxTokens == 0 {
			p.MaxTokens = 2000
		}
		if p.Temperature == 0 {
			p.Temperature = 0.2
		}
		if p.Timeout == 0 {
			p.Timeout = 120000
		}
	}

	if cfg.Pipeline.MaxAttempts == 0 {
		cfg.Pipeline.MaxAttempts = 3
	}
	if cfg.Pipeline.BaseDelay == 0 {
		cfg.Pipeline.BaseDelay = 1000
	}
	if cfg.Pipeline.Timeout == 0 {
		cfg.Pipeline.Timeout = 300000
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = 86400
	}
	if cfg.Cache.Prefix == "" {
		cfg.Cache.Prefix = "peer-review:"
	}

	if cfg.History.Backend == "" {
		cfg.History.Backend = "memory"
	}
	if cfg.History.FilePath == "" {
		cfg.History.FilePath = "data/history.json"
	}
	if cfg.History.MaxPerUser == 0 {
		cfg.History.MaxPerUser = 100
	}

	if cfg.Followup.MaxChain == 0 {
		cfg.Followup.MaxChain = 5
	}
	if cfg.Followup.FullRunCost == 0 {
		cfg.Followup.FullRunCost = 3.0
	}
	if cfg.Followup.CostMultiplier == 0 {
		cfg.Followup.CostMultiplier = 0.17
	}

	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if len(cfg.Providers) < 2 {
		return fmt.Errorf("providers: at least 2 are required, got %d", len(cfg.Providers))
	}
	seen := make(map[string]bool, len(cfg.Providers))
	for i, p := range cfg.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d].name is required", i)
		}
		key := strings.ToLower(p.Name)
		if seen[key] {
			return fmt.Errorf("providers[%d]: duplicate provider %q", i, p.Name)
		}
		seen[key] = true

		switch p.Kind {
		case "anthropic", "static":
		case "openai":
			if p.BaseURL == "" {
				return fmt.Errorf("providers[%d].base_url is required for kind openai", i)
			}
		default:
			return fmt.Errorf("providers[%d]: unknown kind %q", i, p.Kind)
		}
	}

	switch cfg.Cache.Backend {
	case "memory":
	case "redis":
		if cfg.Database.Redis.URL == "" && cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address or url is required for the redis cache")
		}
	default:
		return fmt.Errorf("cache.backend: unknown backend %q", cfg.Cache.Backend)
	}

	switch cfg.History.Backend {
	case "memory", "file":
	case "postgres":
		if cfg.Database.Postgres.URL == "" && cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host or url is required for the postgres ledger")
		}
	default:
		return fmt.Errorf("history.backend: unknown backend %q", cfg.History.Backend)
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// UseOffline swaps every provider for the scripted in-process invoker.
func UseOffline(cfg *Config) {
	for i := range cfg.Providers {
		cfg.Providers[i].Kind = "static"
	}
}
