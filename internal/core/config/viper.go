package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/solatis/rulesmith/internal/llm"
	"github.com/solatis/rulesmith/internal/schema"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	return load(viper.New(), configPath)
}

// LoadConfigWith loads configuration into v, which may already carry
// bound CLI flags.
func LoadConfigWith(v *viper.Viper, configPath string) (*Config, error) {
	return load(v, configPath)
}

func load(v *viper.Viper, configPath string) (*Config, error) {
	def := DefaultConfig()

	// Set defaults matching DefaultConfig
	v.SetDefault("server.host", def.Server.Host)
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.max_sessions", def.Server.MaxSessions)
	v.SetDefault("server.session_idle_timeout", def.Server.SessionIdleTimeout.String())
	v.SetDefault("llm.provider", def.LLM.Provider)
	v.SetDefault("llm.model", def.LLM.Model)
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", def.LLM.Temperature)
	v.SetDefault("llm.json_mode", def.LLM.JSONMode)
	v.SetDefault("llm.max_tokens", def.LLM.MaxTokens)
	v.SetDefault("llm.request_timeout", def.LLM.RequestTimeout.String())
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("db.url", "")
	v.SetDefault("schema.csv_dir", "")

	// Bind environment variables with RULESMITH_ prefix
	v.SetEnvPrefix("RULESMITH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets must be environment-only
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:               v.GetString("server.host"),
			Port:               v.GetInt("server.port"),
			MaxSessions:        v.GetInt("server.max_sessions"),
			SessionIdleTimeout: v.GetDuration("server.session_idle_timeout"),
		},
		LLM: LLMConfig{
			Provider:       strings.ToLower(v.GetString("llm.provider")),
			Model:          v.GetString("llm.model"),
			BaseURL:        v.GetString("llm.base_url"),
			Temperature:    float32(v.GetFloat64("llm.temperature")),
			JSONMode:       v.GetBool("llm.json_mode"),
			MaxTokens:      v.GetInt("llm.max_tokens"),
			RequestTimeout: v.GetDuration("llm.request_timeout"),
		},
		DataDir: v.GetString("data_dir"),
		DB:      DBConfig{URL: v.GetString("db.url")},
		Schema: SchemaConfig{
			CSVDir:     v.GetString("schema.csv_dir"),
			DateFields: v.GetStringMapString("schema.date_fields"),
		},
	}
	cfg.LLM.APIKey = APIKey(cfg.LLM.Provider)

	if v.IsSet("schema.sources") {
		var sources []schema.Source
		if err := v.UnmarshalKey("schema.sources", &sources); err != nil {
			return nil, fmt.Errorf("invalid schema.sources: %w", err)
		}
		cfg.Schema.Sources = sources
	}
	if v.IsSet("validator.aliases") {
		// An explicit empty list disables aliasing; cast returns it as nil.
		aliases := v.GetStringSlice("validator.aliases")
		if aliases == nil {
			aliases = []string{}
		}
		cfg.Validator.Aliases = aliases
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port range, limits, timeouts, provider and aliases.
func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxSessions <= 0 {
		return fmt.Errorf("max_sessions must be positive, got %d", cfg.Server.MaxSessions)
	}
	if cfg.Server.SessionIdleTimeout <= 0 {
		return fmt.Errorf("session_idle_timeout must be positive, got %v", cfg.Server.SessionIdleTimeout)
	}
	if !knownProvider(cfg.LLM.Provider) {
		return fmt.Errorf("unknown llm provider %q (supported: %s)", cfg.LLM.Provider, strings.Join(llm.Providers(), ", "))
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", cfg.LLM.Temperature)
	}
	if cfg.LLM.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", cfg.LLM.MaxTokens)
	}
	if cfg.LLM.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.LLM.RequestTimeout)
	}
	if _, err := cfg.Validator.ParsedAliases(); err != nil {
		return err
	}
	return nil
}

func knownProvider(name string) bool {
	for _, p := range llm.Providers() {
		if p == name {
			return true
		}
	}
	return false
}

// validateNoSecretsInConfig enforces environment-only secrets.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("api_key") || v.InConfig("llm.api_key") {
		return fmt.Errorf("API keys not allowed in config files (use RULESMITH_LLM_API_KEY environment variable)")
	}
	return nil
}
