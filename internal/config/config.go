package config

import (
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `json:"server" mapstructure:"server"`
	Database DatabaseConfig `json:"database" mapstructure:"database"`
	OpenAI   OpenAIConfig   `json:"openai" mapstructure:"openai"`
	Search   SearchConfig   `json:"search" mapstructure:"search"`
	Limits   LimitsConfig   `json:"limits" mapstructure:"limits"`
	Language LanguageConfig `json:"language" mapstructure:"language"`
}

type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

type OpenAIConfig struct {
	APIKey      string  `json:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string  `json:"base_url,omitempty" mapstructure:"base_url"`
	Model       string  `json:"model" mapstructure:"model"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
}

type SearchConfig struct {
	APIKey     string        `json:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL    string        `json:"base_url,omitempty" mapstructure:"base_url"`
	MaxResults int           `json:"max_results" mapstructure:"max_results"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
}

type LimitsConfig struct {
	TurnTimeout        time.Duration `json:"turn_timeout" mapstructure:"turn_timeout"`
	AgentTimeout       time.Duration `json:"agent_timeout" mapstructure:"agent_timeout"`
	MaxContextMessages int           `json:"max_context_messages" mapstructure:"max_context_messages"`
	SessionMaxIdle     time.Duration `json:"session_max_idle" mapstructure:"session_max_idle"`
}

type LanguageConfig struct {
	ConfidenceThreshold float64 `json:"confidence_threshold" mapstructure:"confidence_threshold"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("database.path", "voyago.db")
	viper.SetDefault("openai.model", "gpt-4o-mini")
	viper.SetDefault("openai.temperature", 0.7)
	viper.SetDefault("search.max_results", 3)
	viper.SetDefault("search.timeout", "10s")
	viper.SetDefault("limits.turn_timeout", "60s")
	viper.SetDefault("limits.agent_timeout", "20s")
	viper.SetDefault("limits.max_context_messages", 10)
	viper.SetDefault("limits.session_max_idle", "720h")
	viper.SetDefault("language.confidence_threshold", 0.5)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// No config file is fine; defaults plus env carry a local run.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvOverrides(&cfg)
	return &cfg, nil
}

func loadEnvOverrides(cfg *Config) {
	if host := os.Getenv("VOYAGO_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("VOYAGO_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if path := os.Getenv("VOYAGO_DB_PATH"); path != "" {
		cfg.Database.Path = path
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.OpenAI.APIKey = key
	}
	if url := os.Getenv("OPENAI_BASE_URL"); url != "" {
		cfg.OpenAI.BaseURL = url
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		cfg.OpenAI.Model = model
	}
	if key := os.Getenv("EXA_API_KEY"); key != "" {
		cfg.Search.APIKey = key
	}
	if url := os.Getenv("EXA_BASE_URL"); url != "" {
		cfg.Search.BaseURL = url
	}
}
