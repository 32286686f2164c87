package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	ProAPIs    ProAPIsConfig    `yaml:"proapis" mapstructure:"proapis"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	VZero      VZeroConfig      `yaml:"vzero" mapstructure:"vzero"`
	Instantly  InstantlyConfig  `yaml:"instantly" mapstructure:"instantly"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Temporal   TemporalConfig   `yaml:"temporal" mapstructure:"temporal"`
	Import     ImportConfig     `yaml:"import" mapstructure:"import"`
	Prompts    PromptsConfig    `yaml:"prompts" mapstructure:"prompts"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ProAPIsConfig holds profile enrichment provider settings.
type ProAPIsConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	BypassCache bool    `yaml:"bypass_cache" mapstructure:"bypass_cache"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
	HaikuModel  string `yaml:"haiku_model" mapstructure:"haiku_model"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// VZeroConfig holds v0 landing page generation settings.
type VZeroConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// InstantlyConfig holds campaign platform settings.
type InstantlyConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	ListID  string `yaml:"list_id" mapstructure:"list_id"`
}

// PipelineConfig bounds the orchestrator and its stages.
type PipelineConfig struct {
	EnrichTimeoutSecs   int  `yaml:"enrich_timeout_secs" mapstructure:"enrich_timeout_secs"`
	ResearchTimeoutSecs int  `yaml:"research_timeout_secs" mapstructure:"research_timeout_secs"`
	AssetTimeoutSecs    int  `yaml:"asset_timeout_secs" mapstructure:"asset_timeout_secs"`
	PipelineTimeoutSecs int  `yaml:"pipeline_timeout_secs" mapstructure:"pipeline_timeout_secs"`
	ParallelFanout      bool `yaml:"parallel_fanout" mapstructure:"parallel_fanout"`
}

// EnrichTimeout returns the enrichment stage ceiling.
func (c PipelineConfig) EnrichTimeout() time.Duration {
	return time.Duration(c.EnrichTimeoutSecs) * time.Second
}

// ResearchTimeout returns the research stage ceiling.
func (c PipelineConfig) ResearchTimeout() time.Duration {
	return time.Duration(c.ResearchTimeoutSecs) * time.Second
}

// AssetTimeout returns the per-asset-stage ceiling.
func (c PipelineConfig) AssetTimeout() time.Duration {
	return time.Duration(c.AssetTimeoutSecs) * time.Second
}

// PipelineTimeout returns the whole-run ceiling.
func (c PipelineConfig) PipelineTimeout() time.Duration {
	return time.Duration(c.PipelineTimeoutSecs) * time.Second
}

// TemporalConfig configures the task substrate.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
}

// ImportConfig bounds bulk lead submission.
type ImportConfig struct {
	MaxConcurrent int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	RatePerSec    float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// PromptsConfig points at an optional prompt template override file.
type PromptsConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("proapis.base_url", "https://api.proapis.com/iscraper/v4")
	v.SetDefault("proapis.rate_per_sec", 2.0)
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("vzero.base_url", "https://api.v0.dev/v1")
	v.SetDefault("instantly.base_url", "https://api.instantly.ai/api/v2")
	v.SetDefault("pipeline.enrich_timeout_secs", 300)
	v.SetDefault("pipeline.research_timeout_secs", 600)
	v.SetDefault("pipeline.asset_timeout_secs", 300)
	v.SetDefault("pipeline.pipeline_timeout_secs", 900)
	v.SetDefault("pipeline.parallel_fanout", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "outreach-pipeline")
	v.SetDefault("import.max_concurrent", 5)
	v.SetDefault("import.rate_per_sec", 5.0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
