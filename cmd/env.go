package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/sagespace/council/internal/config"
)

// EnvCheckResult holds the result of environment validation.
type EnvCheckResult struct {
	Missing  []string          // Required settings that are absent
	Present  map[string]string // Settings that resolved (secrets masked)
	Warnings []string
}

// EnvCommand reports whether the process environment and config file
// are complete enough to run the engine.
func EnvCommand() *cli.Command {
	return &cli.Command{
		Name:   "env",
		Usage:  "Check configuration and environment readiness",
		Action: runEnvCheck,
	}
}

// CheckEnvironment validates the effective configuration without
// touching the database or the LLM provider.
func CheckEnvironment(cfg *config.Config) *EnvCheckResult {
	result := &EnvCheckResult{
		Missing: []string{},
		Present: make(map[string]string),
	}

	if cfg.LLM.APIKey == "" {
		result.Missing = append(result.Missing, "llm.api_key (or SAGESPACE_LLM_API_KEY)")
	} else {
		result.Present["llm.api_key"] = maskSecret(cfg.LLM.APIKey)
	}

	dbURL := cfg.Database.URL
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		result.Warnings = append(result.Warnings, "database.url not set; will fall back to DATABASE_URL or a .env file at startup")
	} else {
		result.Present["database.url"] = maskSecret(dbURL)
	}

	if cfg.Council.DefaultThreshold < 0 || cfg.Council.DefaultThreshold > 1 {
		result.Missing = append(result.Missing, "council.default_threshold within [0,1]")
	}

	return result
}

func runEnvCheck(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	result := CheckEnvironment(cfg)

	for key, value := range result.Present {
		fmt.Printf("  ok   %s = %s\n", key, value)
	}
	for _, w := range result.Warnings {
		fmt.Printf("  warn %s\n", w)
	}
	for _, m := range result.Missing {
		fmt.Printf("  MISS %s\n", m)
	}

	if len(result.Missing) > 0 {
		return fmt.Errorf("%d required setting(s) missing", len(result.Missing))
	}

	fmt.Println("Environment looks ready.")
	return nil
}

// maskSecret shows only the edges of a secret value.
func maskSecret(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:4] + strings.Repeat("*", 4) + value[len(value)-4:]
}
