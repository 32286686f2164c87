// Package stage implements the pipeline's stage executors. Executors read
// from the store and call exactly one provider chain; persisting results and
// moving stage markers stays with the orchestrator.
package stage

import (
	"github.com/sells-group/outreach-cli/internal/model"
)

// Stage names as registered on the substrate.
const (
	Enrich      = "lead-enrich"
	Research    = "lead-research"
	Emails      = "lead-emails"
	LandingPage = "lead-landing-page"

	// ClientProfile is the standalone client self-profiling stage. It is
	// not part of the lead pipeline.
	ClientProfile = "client-profile"

	// Pipeline is the whole lead pipeline as one invocable unit, used for
	// fire-and-forget submission.
	Pipeline = "lead-pipeline"
)

// Payload addresses a single lead.
type Payload struct {
	LeadID string `json:"lead_id"`
}

// ClientPayload addresses a single client.
type ClientPayload struct {
	ClientID string `json:"client_id"`
}

// EnrichOutput is the enrichment stage result.
type EnrichOutput struct {
	Profile *model.EnrichmentProfile `json:"profile"`
}

// ResearchOutput is the research stage result.
type ResearchOutput struct {
	Report string `json:"report"`
}

// AssetsOutput is the result shape shared by the asset generation stages.
type AssetsOutput struct {
	Assets []model.LeadAsset `json:"assets"`
}

// Models selects which Anthropic models the generation stages use.
type Models struct {
	Sonnet    string
	Haiku     string
	MaxTokens int64
}
