package stage

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/registry"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
	"github.com/sells-group/outreach-cli/pkg/vzero"
)

// LandingBuilder generates a personalized landing page for a lead: one
// Anthropic call writes the v0 build prompt from the research report, then
// the v0 chat is created and its page URL recorded as the asset.
type LandingBuilder struct {
	store     store.Store
	anthropic anthropic.Client
	pages     vzero.Client
	prompts   *registry.Prompts
	models    Models
}

// NewLandingBuilder creates the landing page stage executor.
func NewLandingBuilder(st store.Store, ac anthropic.Client, pages vzero.Client, prompts *registry.Prompts, models Models) *LandingBuilder {
	return &LandingBuilder{store: st, anthropic: ac, pages: pages, prompts: prompts, models: models}
}

// Execute produces the landing_page_url asset for the lead.
func (b *LandingBuilder) Execute(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var p Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, eris.Wrap(err, "stage: decode landing payload")
	}

	lead, err := b.store.GetLead(ctx, p.LeadID)
	if err != nil {
		return nil, eris.Wrapf(err, "stage: load lead %s", p.LeadID)
	}
	if lead.Research == "" {
		return nil, eris.Errorf("stage: lead %s has no research report", p.LeadID)
	}

	client, err := b.store.GetClient(ctx, lead.ClientID)
	if err != nil {
		return nil, eris.Wrapf(err, "stage: load client %s", lead.ClientID)
	}

	prompt, err := b.prompts.Render(registry.PromptLandingPage, map[string]any{
		"Research":         lead.Research,
		"ClientName":       client.Name,
		"Website":          client.Website,
		"Industry":         client.Industry,
		"CompanySummary":   client.CompanySummary,
		"TargetCustomer":   client.TargetCustomer,
		"ValueProposition": client.ValueProposition,
		"Features":         featureList(client.Features),
		"Testimonials":     testimonialList(client.Testimonials),
	})
	if err != nil {
		return nil, err
	}

	resp, err := b.anthropic.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     b.models.Sonnet,
		MaxTokens: b.models.MaxTokens,
		Messages:  anthropic.UserMessage(prompt),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "stage: landing prompt for lead %s", p.LeadID)
	}
	resp.Usage.LogCost(b.models.Sonnet, "landing_prompt")

	buildPrompt := resp.Text()
	if buildPrompt == "" {
		return nil, eris.Errorf("stage: empty landing prompt for lead %s", p.LeadID)
	}

	chat, err := b.pages.CreateChat(ctx, vzero.CreateChatRequest{Message: buildPrompt})
	if err != nil {
		return nil, eris.Wrapf(err, "stage: create landing page for lead %s", p.LeadID)
	}

	pageURL := chat.PageURL()
	zap.L().Info("landing page generated",
		zap.String("lead_id", lead.ID),
		zap.String("page_url", pageURL))

	return json.Marshal(AssetsOutput{Assets: []model.LeadAsset{
		{LeadID: lead.ID, Kind: model.AssetLandingPage, Name: model.AssetNameLandingPageURL, Content: pageURL},
	}})
}

func featureList(features []model.Feature) string {
	if len(features) == 0 {
		return "None provided"
	}
	lines := make([]string, len(features))
	for i, f := range features {
		if f.Description != "" {
			lines[i] = "- " + f.Title + ": " + f.Description
		} else {
			lines[i] = "- " + f.Title
		}
	}
	return strings.Join(lines, "\n")
}

func testimonialList(testimonials []model.Testimonial) string {
	if len(testimonials) == 0 {
		return "None provided"
	}
	lines := make([]string, len(testimonials))
	for i, t := range testimonials {
		lines[i] = "- " + t.Name + " (" + t.Title + "): " + t.Quote
	}
	return strings.Join(lines, "\n")
}
