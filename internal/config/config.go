package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration
type Config struct {
	LLM struct {
		Provider       string  `koanf:"provider"`
		APIKey         string  `koanf:"api_key"`
		Model          string  `koanf:"model"`
		MaxTokens      int     `koanf:"max_tokens"`
		Temperature    float64 `koanf:"temperature"`
		TimeoutSeconds int     `koanf:"timeout_seconds"`
	} `koanf:"llm"`

	Council struct {
		DefaultThreshold  float64 `koanf:"default_threshold"`
		WeightPolicy      string  `koanf:"weight_policy"`
		MaxConcurrent     int     `koanf:"max_concurrent"`
		RequestsPerSecond float64 `koanf:"requests_per_second"`
	} `koanf:"council"`

	Server struct {
		Port int `koanf:"port"`
	} `koanf:"server"`

	Database struct {
		URL string `koanf:"url"`
	} `koanf:"database"`
}

// LLMTimeout returns the per-call LLM timeout as a duration.
func (c *Config) LLMTimeout() time.Duration {
	if c.LLM.TimeoutSeconds <= 0 {
		return 45 * time.Second
	}
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// LoadConfig loads the configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	// Set up default configuration
	k.Load(confmap.Provider(map[string]interface{}{
		"llm.provider":                "googleai",
		"llm.model":                   "gemini-2.5-flash",
		"llm.max_tokens":              8192,
		"llm.temperature":             0.2,
		"llm.timeout_seconds":         45,
		"council.default_threshold":   0.66,
		"council.weight_policy":       "flat",
		"council.max_concurrent":      4,
		"council.requests_per_second": 2.0,
		"server.port":                 8899,
	}, "."), nil)

	// Load from TOML file if it exists
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		// Try to load from default locations
		defaultPaths := []string{"./sagespace.toml", "$HOME/.sagespace.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Load from environment variables with prefix SAGESPACE_
	k.Load(env.Provider("SAGESPACE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "SAGESPACE_")), "_", ".", 1)
	}), nil)

	// Unmarshal into Config struct
	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sampleConfig := `# SageSpace Council Configuration

[llm]
provider = "googleai"
api_key = "your-api-key"
model = "gemini-2.5-flash"
temperature = 0.2
timeout_seconds = 45

[council]
default_threshold = 0.66
weight_policy = "flat" # or "harmony"
max_concurrent = 4
requests_per_second = 2.0

[server]
port = 8899

[database]
url = "" # falls back to DATABASE_URL / .env
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	if config.LLM.Provider == "" {
		return fmt.Errorf("llm provider is required")
	}

	if config.LLM.APIKey == "" {
		return fmt.Errorf("llm api_key is required")
	}

	if config.Council.DefaultThreshold < 0 || config.Council.DefaultThreshold > 1 {
		return fmt.Errorf("council default_threshold must be within [0,1], got %v", config.Council.DefaultThreshold)
	}

	switch config.Council.WeightPolicy {
	case "flat", "harmony":
	default:
		return fmt.Errorf("unknown weight_policy %q (expected flat or harmony)", config.Council.WeightPolicy)
	}

	if config.Council.MaxConcurrent <= 0 {
		return fmt.Errorf("council max_concurrent must be positive")
	}

	return nil
}
