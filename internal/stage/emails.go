package stage

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/registry"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
)

// EmailWriter generates the four outreach email assets for a lead. The
// followup prompts receive the initial subject and body, so the four
// generations run strictly in order.
type EmailWriter struct {
	store     store.Store
	anthropic anthropic.Client
	prompts   *registry.Prompts
	models    Models
}

// NewEmailWriter creates the email generation stage executor.
func NewEmailWriter(st store.Store, ac anthropic.Client, prompts *registry.Prompts, models Models) *EmailWriter {
	return &EmailWriter{store: st, anthropic: ac, prompts: prompts, models: models}
}

// Execute generates the initial and followup subject and body assets.
func (w *EmailWriter) Execute(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var p Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, eris.Wrap(err, "stage: decode emails payload")
	}

	lead, err := w.store.GetLead(ctx, p.LeadID)
	if err != nil {
		return nil, eris.Wrapf(err, "stage: load lead %s", p.LeadID)
	}
	if lead.Research == "" {
		return nil, eris.Errorf("stage: lead %s has no research report", p.LeadID)
	}

	client, err := w.store.GetClient(ctx, lead.ClientID)
	if err != nil {
		return nil, eris.Wrapf(err, "stage: load client %s", lead.ClientID)
	}

	// The same client context backs all four generations, so it goes in a
	// cached system block.
	system := anthropic.CachedSystemBlocks(client.PromptContext())

	initialSubject, err := w.generate(ctx, system, "email_initial_subject", registry.PromptEmailInitialSubject, map[string]any{
		"ClientName": client.Name,
		"Research":   lead.Research,
	})
	if err != nil {
		return nil, err
	}

	initialBody, err := w.generate(ctx, system, "email_initial_body", registry.PromptEmailInitialBody, map[string]any{
		"ClientName":       client.Name,
		"Research":         lead.Research,
		"ValueProposition": client.ValueProposition,
		"CompanySummary":   client.CompanySummary,
		"CalendarURL":      client.CalendarURL,
	})
	if err != nil {
		return nil, err
	}

	followupSubject, err := w.generate(ctx, system, "email_followup_subject", registry.PromptEmailFollowupSubject, map[string]any{
		"ClientName":     client.Name,
		"Research":       lead.Research,
		"InitialSubject": initialSubject,
	})
	if err != nil {
		return nil, err
	}

	followupBody, err := w.generate(ctx, system, "email_followup_body", registry.PromptEmailFollowupBody, map[string]any{
		"ClientName":       client.Name,
		"Research":         lead.Research,
		"InitialBody":      initialBody,
		"ValueProposition": client.ValueProposition,
		"CalendarURL":      client.CalendarURL,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("emails generated", zap.String("lead_id", lead.ID))

	return json.Marshal(AssetsOutput{Assets: []model.LeadAsset{
		{LeadID: lead.ID, Kind: model.AssetOutreachSubject, Name: model.AssetNameInitialSubject, Content: initialSubject},
		{LeadID: lead.ID, Kind: model.AssetOutreachBody, Name: model.AssetNameInitialBody, Content: initialBody},
		{LeadID: lead.ID, Kind: model.AssetOutreachSubject, Name: model.AssetNameFollowupSubject, Content: followupSubject},
		{LeadID: lead.ID, Kind: model.AssetOutreachBody, Name: model.AssetNameFollowupBody, Content: followupBody},
	}})
}

func (w *EmailWriter) generate(ctx context.Context, system []anthropic.SystemBlock, phase, promptName string, data map[string]any) (string, error) {
	prompt, err := w.prompts.Render(promptName, data)
	if err != nil {
		return "", err
	}

	resp, err := w.anthropic.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     w.models.Sonnet,
		MaxTokens: w.models.MaxTokens,
		System:    system,
		Messages:  anthropic.UserMessage(prompt),
	})
	if err != nil {
		return "", eris.Wrapf(err, "stage: %s generation", phase)
	}
	resp.Usage.LogCost(w.models.Sonnet, phase)

	text := resp.Text()
	if text == "" {
		return "", eris.Errorf("stage: empty %s completion", phase)
	}
	return text, nil
}
