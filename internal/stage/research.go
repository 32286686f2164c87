package stage

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/registry"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
	"github.com/sells-group/outreach-cli/pkg/perplexity"
)

const noCompanyResearch = "Unable to research company - company name not found in enrichment data."

// Researcher produces the markdown research report for a lead in three
// phases: extract key facts from the enrichment profile, research the
// lead's current company, then synthesize the report against the client's
// positioning.
type Researcher struct {
	store     store.Store
	anthropic anthropic.Client
	search    perplexity.Client
	prompts   *registry.Prompts
	models    Models
}

// NewResearcher creates the research stage executor.
func NewResearcher(st store.Store, ac anthropic.Client, search perplexity.Client, prompts *registry.Prompts, models Models) *Researcher {
	return &Researcher{store: st, anthropic: ac, search: search, prompts: prompts, models: models}
}

// leadBrief is the structured extract of an enrichment profile used to
// steer the company research and report phases.
type leadBrief struct {
	Name                   string `json:"name"`
	Title                  string `json:"title"`
	LinkedInProfileURL     string `json:"linkedin_profile_url"`
	CurrentCompany         string `json:"current_company"`
	CurrentCompanyLinkedIn string `json:"current_company_linkedin"`
	CurrentCompanyURL      string `json:"current_company_url"`
	Location               string `json:"location"`
	Education              string `json:"education"`
}

// Execute runs the three research phases and returns the report.
func (r *Researcher) Execute(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var p Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, eris.Wrap(err, "stage: decode research payload")
	}

	lead, err := r.store.GetLead(ctx, p.LeadID)
	if err != nil {
		return nil, eris.Wrapf(err, "stage: load lead %s", p.LeadID)
	}
	if lead.Enrichment == nil {
		return nil, eris.Errorf("stage: lead %s has no enrichment profile", p.LeadID)
	}

	client, err := r.store.GetClient(ctx, lead.ClientID)
	if err != nil {
		return nil, eris.Wrapf(err, "stage: load client %s", lead.ClientID)
	}

	brief, err := r.extractBrief(ctx, lead.ID, lead.Enrichment)
	if err != nil {
		return nil, err
	}

	companyResearch, err := r.researchCompany(ctx, lead.ID, brief)
	if err != nil {
		return nil, err
	}

	briefJSON, err := json.MarshalIndent(brief, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "stage: marshal lead brief")
	}

	prompt, err := r.prompts.Render(registry.PromptResearchReport, map[string]any{
		"LeadProfileJSON": string(briefJSON),
		"CompanyResearch": companyResearch,
		"ClientContext":   client.PromptContext(),
	})
	if err != nil {
		return nil, err
	}

	resp, err := r.anthropic.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     r.models.Sonnet,
		MaxTokens: r.models.MaxTokens,
		Messages:  anthropic.UserMessage(prompt),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "stage: research report for lead %s", p.LeadID)
	}
	resp.Usage.LogCost(r.models.Sonnet, "research_report")

	report := resp.Text()
	if report == "" {
		return nil, eris.Errorf("stage: empty research report for lead %s", p.LeadID)
	}

	zap.L().Info("research complete",
		zap.String("lead_id", lead.ID),
		zap.String("company", brief.CurrentCompany),
		zap.Int("report_chars", len(report)))

	return json.Marshal(ResearchOutput{Report: report})
}

func (r *Researcher) extractBrief(ctx context.Context, leadID string, profile any) (*leadBrief, error) {
	enrichmentJSON, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "stage: marshal enrichment profile")
	}

	prompt, err := r.prompts.Render(registry.PromptResearchExtract, map[string]any{
		"EnrichmentJSON": string(enrichmentJSON),
	})
	if err != nil {
		return nil, err
	}

	resp, err := r.anthropic.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     r.models.Haiku,
		MaxTokens: r.models.MaxTokens,
		Messages:  anthropic.UserMessage(prompt),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "stage: enrichment extract for lead %s", leadID)
	}
	resp.Usage.LogCost(r.models.Haiku, "research_extract")

	var brief leadBrief
	if err := json.Unmarshal([]byte(resp.JSONText()), &brief); err != nil {
		return nil, eris.Wrapf(err, "stage: decode enrichment extract for lead %s", leadID)
	}
	return &brief, nil
}

func (r *Researcher) researchCompany(ctx context.Context, leadID string, brief *leadBrief) (string, error) {
	if brief.CurrentCompany == "" {
		zap.L().Warn("no current company in enrichment, skipping company research",
			zap.String("lead_id", leadID))
		return noCompanyResearch, nil
	}

	prompt, err := r.prompts.Render(registry.PromptResearchCompany, map[string]any{
		"Company":    brief.CurrentCompany,
		"CompanyURL": brief.CurrentCompanyURL,
	})
	if err != nil {
		return "", err
	}

	answer, err := r.search.Ask(ctx, prompt)
	if err != nil {
		return "", eris.Wrapf(err, "stage: company research for lead %s", leadID)
	}
	return answer, nil
}
