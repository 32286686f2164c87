package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/orchestrator"
	"github.com/sells-group/outreach-cli/internal/registry"
	"github.com/sells-group/outreach-cli/internal/stage"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/internal/substrate"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
	"github.com/sells-group/outreach-cli/pkg/instantly"
	"github.com/sells-group/outreach-cli/pkg/perplexity"
	"github.com/sells-group/outreach-cli/pkg/proapis"
	"github.com/sells-group/outreach-cli/pkg/vzero"
)

// useTemporal switches stage execution from the in-process substrate to a
// Temporal task queue.
var useTemporal bool

func init() {
	rootCmd.PersistentFlags().BoolVar(&useTemporal, "temporal", false, "execute stages on the Temporal task queue instead of in-process")
}

// env bundles the wired application for one command invocation.
type env struct {
	Store     store.Store
	Registry  *substrate.Registry
	Substrate substrate.Client
	Runner    *orchestrator.Runner
	Prompts   *registry.Prompts
	Instantly instantly.Client

	temporal *substrate.Temporal
}

func (e *env) Close() {
	if e.Substrate != nil {
		e.Substrate.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "outreach.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv wires the store, providers, stage registry, substrate, and
// orchestrator from config. mode selects which config sections Validate
// requires.
func initEnv(ctx context.Context, mode string) (*env, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	prompts, err := registry.Load(cfg.Prompts.Path)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	reg := substrate.NewRegistry()
	stage.Register(reg, stage.Deps{
		Store:     st,
		Anthropic: anthropic.NewClient(cfg.Anthropic.Key),
		Perplexity: perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model)),
		Profiles: proapis.NewClient(cfg.ProAPIs.Key,
			proapis.WithBaseURL(cfg.ProAPIs.BaseURL),
			proapis.WithRateLimit(cfg.ProAPIs.RatePerSec)),
		Pages: vzero.NewClient(cfg.VZero.Key,
			vzero.WithBaseURL(cfg.VZero.BaseURL)),
		Prompts: prompts,
		Models: stage.Models{
			Sonnet:    cfg.Anthropic.SonnetModel,
			Haiku:     cfg.Anthropic.HaikuModel,
			MaxTokens: cfg.Anthropic.MaxTokens,
		},
		BypassCache: cfg.ProAPIs.BypassCache,
	})

	e := &env{
		Store:    st,
		Registry: reg,
		Prompts:  prompts,
		Instantly: instantly.NewClient(cfg.Instantly.Key,
			instantly.WithBaseURL(cfg.Instantly.BaseURL)),
	}

	if useTemporal {
		tc, err := substrate.DialTemporal(substrate.TemporalConfig{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
			TaskQueue: cfg.Temporal.TaskQueue,
		})
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		e.temporal = tc
		e.Substrate = tc
	} else {
		e.Substrate = substrate.NewLocal(reg, cfg.Pipeline.PipelineTimeout())
	}

	e.Runner = orchestrator.New(st, e.Substrate, orchestrator.Timeouts{
		Enrich:   cfg.Pipeline.EnrichTimeout(),
		Research: cfg.Pipeline.ResearchTimeout(),
		Asset:    cfg.Pipeline.AssetTimeout(),
		Pipeline: cfg.Pipeline.PipelineTimeout(),
	}, cfg.Pipeline.ParallelFanout)
	orchestrator.RegisterPipeline(reg, e.Runner)

	return e, nil
}
