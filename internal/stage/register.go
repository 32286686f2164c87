package stage

import (
	"github.com/sells-group/outreach-cli/internal/registry"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/internal/substrate"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
	"github.com/sells-group/outreach-cli/pkg/perplexity"
	"github.com/sells-group/outreach-cli/pkg/proapis"
	"github.com/sells-group/outreach-cli/pkg/vzero"
)

// Deps carries everything the stage executors need.
type Deps struct {
	Store       store.Store
	Anthropic   anthropic.Client
	Perplexity  perplexity.Client
	Profiles    proapis.Client
	Pages       vzero.Client
	Prompts     *registry.Prompts
	Models      Models
	BypassCache bool
}

// Register wires all stage executors into the registry. The pipeline stage
// itself is registered separately by the orchestrator, which supervises the
// individual stages registered here.
func Register(reg *substrate.Registry, deps Deps) {
	reg.Register(Enrich, NewEnricher(deps.Store, deps.Profiles, deps.BypassCache).Execute)
	reg.Register(Research, NewResearcher(deps.Store, deps.Anthropic, deps.Perplexity, deps.Prompts, deps.Models).Execute)
	reg.Register(Emails, NewEmailWriter(deps.Store, deps.Anthropic, deps.Prompts, deps.Models).Execute)
	reg.Register(LandingPage, NewLandingBuilder(deps.Store, deps.Anthropic, deps.Pages, deps.Prompts, deps.Models).Execute)
	reg.Register(ClientProfile, NewProfiler(deps.Store, deps.Anthropic, deps.Perplexity, deps.Prompts, deps.Models).Execute)
}
