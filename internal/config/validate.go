package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the configuration needed for the given command mode.
// Modes: "pipeline" (run/worker), "serve", "export", "push".
func (c *Config) Validate(mode string) error {
	var problems []string

	requireStore := func() {
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	}

	checkBounds := func() {
		if c.Pipeline.EnrichTimeoutSecs <= 0 || c.Pipeline.ResearchTimeoutSecs <= 0 ||
			c.Pipeline.AssetTimeoutSecs <= 0 || c.Pipeline.PipelineTimeoutSecs <= 0 {
			problems = append(problems, "pipeline timeouts must be > 0")
		}
		if c.Import.MaxConcurrent < 1 || c.Import.MaxConcurrent > 50 {
			problems = append(problems, "import.max_concurrent must be between 1 and 50")
		}
	}

	switch mode {
	case "pipeline":
		requireStore()
		checkBounds()
		if c.ProAPIs.Key == "" {
			problems = append(problems, "proapis.key is required")
		}
		if c.Perplexity.Key == "" {
			problems = append(problems, "perplexity.key is required")
		}
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
	case "serve":
		requireStore()
		checkBounds()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "export":
		requireStore()
	case "push":
		requireStore()
		if c.Instantly.Key == "" {
			problems = append(problems, "instantly.key is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
